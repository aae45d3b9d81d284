// Package cacheadapter is the C1 external-adapter client for the cache
// layer, grounded on intelligencedev-manifold's internal/skills/redis_cache.go
// (redis.NewClient + Options, Get/Set with TTL, Nil-miss handling).
// Generalized here to typed batch Get/Set (MGet/pipelined Set). The
// retrieval engine caches embeddings and rerank orders under different
// key prefixes with different TTLs.
package cacheadapter

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cacheadapter: cache miss")

// Status is the uniform health-check result shared by every C1 adapter.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Cache is the adapter contract the retrieval engine depends on.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	MGet(ctx context.Context, keys []string) (map[string]string, error)
	MSet(ctx context.Context, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	HealthCheck(ctx context.Context) (Status, *time.Duration, *string)
	// Stats reports hits/misses/keyCount for the monitoring dashboard's
	// cache panel.
	Stats(ctx context.Context) (hits, misses, keyCount int64, err error)
	// Flush drops every cached entry, for the admin cache-flush endpoint.
	Flush(ctx context.Context) error
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

type redisCache struct {
	client redis.UniversalClient
}

// New builds a Redis-backed Cache.
func New(ctx context.Context, cfg Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisCache{client: client}, nil
}

// NewNoop builds a Cache that never stores anything, for deployments
// that run without a cache tier; every Get is a miss and every Set is a
// no-op, so callers fall back to computing fresh results transparently.
func NewNoop() Cache { return noopCache{} }

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = s
	}
	return out, nil
}

func (c *redisCache) MSet(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for k, v := range values {
		pipe.Set(ctx, k, v, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Stats(ctx context.Context) (int64, int64, int64, error) {
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return 0, 0, 0, err
	}
	hits := parseInfoInt(info, "keyspace_hits")
	misses := parseInfoInt(info, "keyspace_misses")
	keyCount, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return hits, misses, 0, err
	}
	return hits, misses, keyCount, nil
}

func (c *redisCache) Flush(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

func parseInfoInt(info, field string) int64 {
	idx := strings.Index(info, field+":")
	if idx < 0 {
		return 0
	}
	rest := info[idx+len(field)+1:]
	end := strings.IndexAny(rest, "\r\n")
	if end < 0 {
		end = len(rest)
	}
	n, _ := strconv.ParseInt(strings.TrimSpace(rest[:end]), 10, 64)
	return n
}

func (c *redisCache) HealthCheck(ctx context.Context) (Status, *time.Duration, *string) {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	elapsed := time.Since(start)
	if err != nil {
		msg := err.Error()
		return StatusDown, &elapsed, &msg
	}
	return StatusOK, &elapsed, nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }
func (noopCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return nil
}
func (noopCache) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	return nil, nil
}
func (noopCache) MSet(ctx context.Context, values map[string]string, ttl time.Duration) error {
	return nil
}
func (noopCache) Delete(ctx context.Context, keys ...string) error { return nil }
func (noopCache) HealthCheck(ctx context.Context) (Status, *time.Duration, *string) {
	return StatusOK, nil, nil
}
func (noopCache) Stats(ctx context.Context) (int64, int64, int64, error) { return 0, 0, 0, nil }
func (noopCache) Flush(ctx context.Context) error                       { return nil }
