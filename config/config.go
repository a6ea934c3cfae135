package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Credentials have no defaults inside code and must be provided via config.json, .env or the environment.
type AppConfig struct {
	AppPort            string
	DatabaseURI        string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for list caching and the chat relay; empty host disables both
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Media storage
	UploadDir           string
	MaxUploadMB         int
	MediaReclaimMinutes int
	// Chat delivery policy: "all" or "participants"
	ChatDelivery string
}

const (
	ChatDeliveryAll          = "all"
	ChatDeliveryParticipants = "participants"
)

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults -> environment variable overrides.
	// .env only seeds the process environment and never overwrites variables already set.
	_ = godotenv.Load()

	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("config/config.json ignored: %v", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Defaults are applied to zero values.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// fileConfig mirrors config.json. Grouped sections win over the flat keys.
type fileConfig struct {
	AppPort            string   `json:"AppPort"`
	GinMode            string   `json:"GinMode"`
	RateLimitPerMinute int      `json:"RateLimitPerMinute"`
	AllowedOrigins     []string `json:"AllowedOrigins"`

	App struct {
		AppPort            string   `json:"AppPort"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
	} `json:"app"`
	Database struct {
		DatabaseURI string `json:"DatabaseURI"`
		DBHost      string `json:"DBHost"`
		DBPort      string `json:"DBPort"`
		DBUser      string `json:"DBUser"`
		DBPassword  string `json:"DBPassword"`
		DBName      string `json:"DBName"`
	} `json:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
	} `json:"redis"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		GinMode    string `json:"GinMode"`
		GinPath    string `json:"GinPath"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
	Upload struct {
		Dir            string `json:"Dir"`
		MaxSizeMB      int    `json:"MaxSizeMB"`
		ReclaimMinutes int    `json:"ReclaimMinutes"`
	} `json:"upload"`
	Chat struct {
		Delivery string `json:"Delivery"`
	} `json:"chat"`
}

// loadJSONConfig reads the JSON file into out if present. Only invalid JSON is an error.
func loadJSONConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return err
	}
	fc.apply(out)
	return nil
}

func (fc fileConfig) apply(out *AppConfig) {
	out.AppPort = firstString(fc.App.AppPort, fc.AppPort)
	out.RateLimitPerMinute = firstInt(fc.App.RateLimitPerMinute, fc.RateLimitPerMinute)
	out.AllowedOrigins = fc.App.AllowedOrigins
	if len(out.AllowedOrigins) == 0 {
		out.AllowedOrigins = fc.AllowedOrigins
	}

	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName

	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.GinMode = firstString(fc.Log.GinMode, fc.GinMode)
	out.GinPath = fc.Log.GinPath
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress

	out.UploadDir = fc.Upload.Dir
	out.MaxUploadMB = fc.Upload.MaxSizeMB
	out.MediaReclaimMinutes = fc.Upload.ReclaimMinutes

	out.ChatDelivery = fc.Chat.Delivery
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func applyDefaults(c *AppConfig) {
	setDefault(&c.AppPort, "5000")
	setDefault(&c.DBHost, "127.0.0.1")
	setDefault(&c.DBPort, "3306")
	setDefault(&c.DBUser, "root")
	setDefault(&c.DBName, "bu_connects")
	setDefault(&c.LogLevel, "info")
	setDefault(&c.UploadDir, "uploads")
	setDefault(&c.RateLimitPerMinute, 60)
	setDefault(&c.RedisPort, 6379)
	setDefault(&c.LogMaxSizeMB, 100)
	setDefault(&c.LogMaxBackups, 3)
	setDefault(&c.LogMaxAgeDays, 7)
	setDefault(&c.MaxUploadMB, 50)
	setDefault(&c.MediaReclaimMinutes, 60)
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if strings.ToLower(c.ChatDelivery) == ChatDeliveryParticipants {
		c.ChatDelivery = ChatDeliveryParticipants
	} else {
		c.ChatDelivery = ChatDeliveryAll
	}
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	strs := map[string]*string{
		"APP_PORT":       &c.AppPort,
		"GIN_MODE":       &c.GinMode,
		"GIN_PATH":       &c.GinPath,
		"DATABASE_URI":   &c.DatabaseURI,
		"DB_HOST":        &c.DBHost,
		"DB_PORT":        &c.DBPort,
		"DB_USER":        &c.DBUser,
		"DB_PASSWORD":    &c.DBPassword,
		"DB_NAME":        &c.DBName,
		"REDIS_HOST":     &c.RedisHost,
		"REDIS_PASSWORD": &c.RedisPassword,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_PATH":       &c.LogPath,
		"UPLOAD_DIR":     &c.UploadDir,
		"CHAT_DELIVERY":  &c.ChatDelivery,
	}
	for key, field := range strs {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"REDIS_PORT":            &c.RedisPort,
		"REDIS_DB":              &c.RedisDB,
		"LOG_MAX_SIZE_MB":       &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":       &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":      &c.LogMaxAgeDays,
		"MAX_UPLOAD_MB":         &c.MaxUploadMB,
		"MEDIA_RECLAIM_MINUTES": &c.MediaReclaimMinutes,
	}
	for key, field := range ints {
		if v := os.Getenv(key); v != "" {
			*field = mustParseInt(key, v)
		}
	}

	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "true"
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	// CHAT_DELIVERY may carry any casing or an unknown value.
	applyDefaults(c)
}

func mustParseInt(key, val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value for %s=%q: %v", key, val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
