// pkg/credentials/rediscache.go
package credentials

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cachedStore is a read-through cache in front of another Store. Writes go
// to the inner store first and then invalidate the cache key, so a racing
// reader sees at worst the previous committed row, never a phantom.
type cachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.SugaredLogger
}

// WithRedisCache decorates inner with a redis read-through cache. Pass the
// inner store through unchanged when rdb is nil.
func WithRedisCache(inner Store, rdb *redis.Client, log *zap.SugaredLogger) Store {
	if rdb == nil {
		return inner
	}
	return &cachedStore{inner: inner, rdb: rdb, ttl: 5 * time.Minute, log: log}
}

func cacheKey(tenantID, provider string) string {
	return "toolgate:cred:" + tenantID + ":" + provider
}

func (c *cachedStore) Get(ctx context.Context, tenantID, provider string) (*Record, error) {
	if raw, err := c.rdb.Get(ctx, cacheKey(tenantID, provider)).Bytes(); err == nil {
		var rec Record
		if json.Unmarshal(raw, &rec) == nil {
			return &rec, nil
		}
	}
	rec, err := c.inner.Get(ctx, tenantID, provider)
	if err != nil || rec == nil {
		return rec, err
	}
	if raw, err := json.Marshal(rec); err == nil {
		if err := c.rdb.Set(ctx, cacheKey(tenantID, provider), raw, c.ttl).Err(); err != nil {
			c.log.Warnw("credential cache set", "err", err)
		}
	}
	return rec, nil
}

func (c *cachedStore) Upsert(ctx context.Context, rec Record) error {
	if err := c.inner.Upsert(ctx, rec); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKey(rec.TenantID, rec.Provider)).Err(); err != nil {
		c.log.Warnw("credential cache invalidate", "err", err)
	}
	return nil
}

func (c *cachedStore) Delete(ctx context.Context, tenantID, provider string) error {
	if err := c.inner.Delete(ctx, tenantID, provider); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKey(tenantID, provider)).Err(); err != nil {
		c.log.Warnw("credential cache invalidate", "err", err)
	}
	return nil
}
