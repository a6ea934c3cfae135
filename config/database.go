package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/buconnects/server/models"
)

var db *gorm.DB

// InitDatabase establishes the MySQL connection pool using configuration values and migrates the given models.
// Any failure here is fatal.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	cfg := Get()
	var err error
	db, err = OpenDatabase(mysql.Open(MySQLDSN(cfg)), cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	// Lifetime limits recycle connections the server closed on its side.
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}

	if err := Migrate(db, modelDefs...); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	return db
}

// MySQLDSN builds the driver DSN, preferring an explicit DatabaseURI.
func MySQLDSN(cfg AppConfig) string {
	if cfg.DatabaseURI != "" {
		return cfg.DatabaseURI
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)
}

// OpenDatabase opens a gorm handle on the given dialector with the application's logging policy.
func OpenDatabase(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormCfg := &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		// Map driver duplicate-key errors onto gorm.ErrDuplicatedKey.
		TranslateError: true,
	}
	return gorm.Open(dialector, gormCfg)
}

// Migrate creates missing tables. For tables that already exist only the
// uniqueness indexes the handlers rely on are added.
func Migrate(db *gorm.DB, modelDefs ...interface{}) error {
	for _, model := range modelDefs {
		if !db.Migrator().HasTable(model) {
			if err := db.AutoMigrate(model); err != nil {
				return fmt.Errorf("auto migrate %T: %w", model, err)
			}
			continue
		}
		switch m := model.(type) {
		case *models.User:
			ensureIndex(db, m, "idx_users_email")
		case *models.PostLike:
			ensureIndex(db, m, "idx_post_like_post_user")
		}
	}
	return nil
}

func ensureIndex(db *gorm.DB, model interface{}, name string) {
	if db.Migrator().HasIndex(model, name) {
		return
	}
	// Fails when existing rows already violate the constraint.
	if err := db.Migrator().CreateIndex(model, name); err != nil {
		log.Printf("failed to create index %s on %T: %v", name, model, err)
	}
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}
