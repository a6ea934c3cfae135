package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
	invalidateBatch = 500
)

// Cache keys for the list endpoints. Post lists are keyed per campus filter.
const (
	CachePostsListPrefix = "cache:posts:list:"
	CacheMarketList      = "cache:market:list"
)

// withRedis runs fn against the shared client with a bounded context. It is a
// no-op when Redis is not configured.
func withRedis(timeout time.Duration, fn func(ctx context.Context, rc *redis.Client)) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	fn(ctx, rc)
}

// CacheGetBytes returns the cached bytes under key, if any.
func CacheGetBytes(key string) (b []byte, ok bool) {
	withRedis(cacheOpTimeout, func(ctx context.Context, rc *redis.Client) {
		var err error
		if b, err = rc.Get(ctx, key).Bytes(); err != nil {
			if err != redis.Nil {
				Sugar.Debugw("cache get failed", "key", key, "err", err)
			}
			return
		}
		ok = true
	})
	return b, ok
}

func generationKey(prefix string) string {
	return "cache:gen:" + prefix
}

// CacheGeneration returns the invalidation counter for prefix. Readers take it
// before querying the store and hand it to CacheSetJSONAt afterwards.
func CacheGeneration(prefix string) (gen int64) {
	withRedis(cacheOpTimeout, func(ctx context.Context, rc *redis.Client) {
		n, err := rc.Get(ctx, generationKey(prefix)).Int64()
		if err != nil && err != redis.Nil {
			Sugar.Debugw("cache generation read failed", "prefix", prefix, "err", err)
			gen = -1
			return
		}
		gen = n
	})
	return gen
}

// CacheSetJSONAt stores v under key only while the generation of prefix still
// equals gen. A writer that invalidated in between makes this a no-op, so a
// snapshot read before that write never lands in the cache.
func CacheSetJSONAt(key, prefix string, gen int64, v interface{}, ttl time.Duration) {
	if gen < 0 {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		Sugar.Warnw("cache encode failed", "key", key, "err", err)
		return
	}
	genKey := generationKey(prefix)
	withRedis(cacheOpTimeout, func(ctx context.Context, rc *redis.Client) {
		err := rc.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, genKey).Int64()
			if err != nil && err != redis.Nil {
				return err
			}
			if cur != gen {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, b, ttl)
				return nil
			})
			return err
		}, genKey)
		if err != nil && err != redis.TxFailedErr {
			Sugar.Warnw("cache set failed", "key", key, "err", err)
		}
	})
}

// InvalidateByPrefix bumps the generation of prefix and drops every key starting
// with it. Writers call it after a successful insert or delete.
func InvalidateByPrefix(prefix string) {
	withRedis(3*time.Second, func(ctx context.Context, rc *redis.Client) {
		if err := rc.Incr(ctx, generationKey(prefix)).Err(); err != nil {
			Sugar.Warnw("cache generation bump failed", "prefix", prefix, "err", err)
		}
		batch := make([]string, 0, invalidateBatch)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := rc.Del(ctx, batch...).Err(); err != nil {
				Sugar.Warnw("cache invalidate failed", "prefix", prefix, "err", err)
			}
			batch = batch[:0]
		}
		it := rc.Scan(ctx, 0, prefix+"*", invalidateBatch).Iterator()
		for it.Next(ctx) {
			batch = append(batch, it.Val())
			if len(batch) == invalidateBatch {
				flush()
			}
		}
		if err := it.Err(); err != nil {
			Sugar.Warnw("cache invalidate scan failed", "prefix", prefix, "err", err)
		}
		flush()
	})
}
