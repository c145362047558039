// Package cache keeps computed center statistics in Redis for a short TTL so
// dashboards polling the same view do not rescan the ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"presence/internal/stats/models"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "presence_stats_cache_lookups_total",
	Help: "Stats cache lookups by result",
}, []string{"result"})

const keyPrefix = "presence:"

// RedisCache is a Redis-backed stats cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.CenterStats, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		lookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		lookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("get stats: %w", err)
	}
	var stats []models.CenterStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		lookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("decode stats: %w", err)
	}
	lookups.WithLabelValues("hit").Inc()
	return stats, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, stats []models.CenterStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}
