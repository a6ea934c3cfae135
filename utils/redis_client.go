package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buconnects/server/config"
)

var (
	redisClient *redis.Client
	redisInit   bool
	redisMu     sync.Mutex
)

// GetRedis returns a singleton Redis client based on loaded config, or nil when
// no Redis host is configured. Callers must treat nil as "feature disabled".
func GetRedis() *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisInit {
		return redisClient
	}
	redisInit = true

	cfg := config.Get()
	if cfg.RedisHost == "" {
		return nil
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Keep the client: go-redis reconnects lazily and callers fail open.
		Sugar.Warnf("redis ping failed addr=%s err=%v", redisClient.Options().Addr, err)
	}
	return redisClient
}

// SetRedis overrides the shared client; nil disables Redis-backed features.
func SetRedis(c *redis.Client) {
	redisMu.Lock()
	defer redisMu.Unlock()
	redisClient = c
	redisInit = true
}
