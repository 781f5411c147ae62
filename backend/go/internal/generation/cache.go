package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/util"

	"github.com/go-redis/redis/v8"
)

// Cache stores raw model replies keyed by input content so that the same
// document never pays for generation twice. Redis is preferred; without it
// we fall back to an in-process LRU that dies with the process.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	memory *util.LRUCache[string, string]
	log    *logger.Logger
}

// NewCache creates a reply cache. rdb may be nil.
func NewCache(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	c := &Cache{rdb: rdb, ttl: ttl, log: log}
	if rdb == nil {
		c.memory, _ = util.NewWithConfig(util.CacheConfig[string, string]{
			Capacity: 256,
			TTL:      ttl,
		})
	}
	return c
}

// Key derives the cache key from the model name, the prompt version and
// the input content.
func Key(model, content string) string {
	sum := sha256.Sum256([]byte(model + "|" + promptVersion + "|" + content))
	return "neurodeck:generation:" + hex.EncodeToString(sum[:])
}

// Get returns a cached raw reply. Cache failures are logged and treated
// as misses; generation must never break because the cache is down.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			return "", false
		}
		if err != nil {
			c.warn("generation cache read failed: " + err.Error())
			return "", false
		}
		return val, true
	}
	if c.memory != nil {
		return c.memory.Get(key)
	}
	return "", false
}

// Put stores a raw reply under key.
func (c *Cache) Put(ctx context.Context, key, raw string) {
	if c == nil {
		return
	}
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.warn("generation cache write failed: " + err.Error())
		}
		return
	}
	if c.memory != nil {
		c.memory.Put(key, raw, 1)
	}
}

func (c *Cache) warn(msg string) {
	if c.log != nil {
		c.log.Warn(msg)
	}
}
