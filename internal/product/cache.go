package product

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through cache for product rows. Misses are collapsed with
// singleflight so a hot product under cache expiry loads from the database
// once, not once per request. A nil redis client disables caching entirely.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	sf  singleflight.Group
	log *logrus.Entry
}

func NewCache(rdb *redis.Client, ttl time.Duration, log *logrus.Entry) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(id int) string { return fmt.Sprintf("product:%d", id) }

// Get returns the cached product, loading and caching it via load on a miss.
// Redis failures degrade to a direct load; the cache never blocks a read.
func (c *Cache) Get(ctx context.Context, id int, load func(context.Context, int) (*Product, error)) (*Product, error) {
	if c.rdb == nil {
		return load(ctx, id)
	}

	key := cacheKey(id)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var p Product
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return &p, nil
		}
		// Corrupt entry, fall through to reload.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.log.WithError(err).WithField("key", key).Warn("redis get failed, loading from database")
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		p, err := load(ctx, id)
		if err != nil {
			return nil, err
		}
		if raw, jerr := json.Marshal(p); jerr == nil {
			if serr := c.rdb.Set(ctx, key, raw, c.ttl).Err(); serr != nil {
				c.log.WithError(serr).WithField("key", key).Warn("redis set failed")
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

// Invalidate drops the cached row after a stock or catalog write.
func (c *Cache) Invalidate(ctx context.Context, ids ...int) {
	if c.rdb == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).Warn("redis invalidate failed")
	}
}
