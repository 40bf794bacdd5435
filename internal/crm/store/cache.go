// internal/crm/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
	"dibs-assistant/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "crm:client:"

// CachedStore is a read-through Redis cache in front of another store.
// Only non-empty results are cached; follow-up windows move with the clock
// and always go to the wrapped store. A failing cache never fails a lookup.
type CachedStore struct {
	next   ClientStore
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(next ClientStore, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedStore {
	return &CachedStore{next: next, rdb: rdb, ttl: ttl, logger: log}
}

func (c *CachedStore) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	return readThrough(ctx, c, fmt.Sprintf("id:%d", id), func() (*models.Client, bool, error) {
		client, err := c.next.GetByID(ctx, id)
		return client, client != nil, err
	})
}

func (c *CachedStore) SearchByName(ctx context.Context, term string) ([]models.Client, error) {
	return c.list(ctx, "name:"+normalizeKey(term), func() ([]models.Client, error) {
		return c.next.SearchByName(ctx, term)
	})
}

func (c *CachedStore) SearchByEmail(ctx context.Context, term string) ([]models.Client, error) {
	return c.list(ctx, "email:"+normalizeKey(term), func() ([]models.Client, error) {
		return c.next.SearchByEmail(ctx, term)
	})
}

func (c *CachedStore) FilterByStatus(ctx context.Context, status string) ([]models.Client, error) {
	return c.list(ctx, "status:"+normalizeKey(status), func() ([]models.Client, error) {
		return c.next.FilterByStatus(ctx, status)
	})
}

func (c *CachedStore) FilterByFollowUpWindow(ctx context.Context, start, end time.Time) ([]models.Client, error) {
	return c.next.FilterByFollowUpWindow(ctx, start, end)
}

func (c *CachedStore) list(ctx context.Context, key string, load func() ([]models.Client, error)) ([]models.Client, error) {
	return readThrough(ctx, c, key, func() ([]models.Client, bool, error) {
		clients, err := load()
		return clients, len(clients) > 0, err
	})
}

func readThrough[T any](ctx context.Context, c *CachedStore, key string, load func() (T, bool, error)) (T, error) {
	key = cacheKeyPrefix + key

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			metrics.CRMCacheRequests.WithLabelValues("hit").Inc()
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
		metrics.CRMCacheRequests.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CRMCacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.CRMCacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	v, keep, err := load()
	if err != nil || !keep {
		return v, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return v, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
