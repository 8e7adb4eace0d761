package board

import (
	"context"
	"encoding/json"
	"time"

	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Cache is the optional Redis-backed contact-list cache. It is advisory
// only: any failure degrades to a cache miss, and entries expire on a short
// TTL. Nil receivers are valid and behave as a disabled cache.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewCache creates the contact cache. Returns nil when REDIS_URL is not
// configured or unparsable (graceful degradation).
func NewCache(cfg config.CacheConfig, log *logger.Logger) *Cache {
	if !cfg.IsCacheEnabled() {
		return nil
	}

	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Warn("invalid REDIS_URL; board cache disabled", "error", err)
		return nil
	}

	return &Cache{
		rdb: redis.NewClient(opts),
		ttl: cfg.GetBoardCacheTTL(),
		log: log,
	}
}

// Get returns the cached contact list for key, or false on miss, expiry,
// or any Redis failure.
func (c *Cache) Get(ctx context.Context, key string) ([]Contact, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("board cache read failed", "error", err)
		}
		return nil, false
	}

	var contacts []Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		c.log.Warn("board cache entry corrupt; dropping", "key", key)
		c.rdb.Del(ctx, key)
		return nil, false
	}
	return contacts, true
}

// Set stores the contact list under key with the configured TTL. Failures
// are logged and ignored.
func (c *Cache) Set(ctx context.Context, key string, contacts []Contact) {
	if c == nil {
		return
	}

	data, err := json.Marshal(contacts)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("board cache write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
