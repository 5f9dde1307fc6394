// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "evc:resp:"

// RedisCache is a Redis-backed implementation of Cache, shared by every
// client process pointed at the same Redis database.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
	stats  counters
}

// RedisConfig locates the shared cache database.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	redisDialTimeout = 5 * time.Second
	redisOpTimeout   = 2 * time.Second
	redisScanBatch   = 100
)

// NewRedisCache connects to cfg.Addr and fails when the server does not
// answer a PING within the dial timeout.
func NewRedisCache(cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	c := &RedisCache{client: client, logger: logger.With().Str("cache", "redis").Logger()}
	c.logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("response cache connected")
	return c, nil
}

// op runs fn under the per-operation timeout. Cache errors never reach the
// caller; a failed read is a miss and a failed write is skipped.
func (c *RedisCache) op(name, key string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Str("op", name).Str("key", key).Msg("redis operation failed")
	}
	return err
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	var val []byte
	err := c.op("get", key, func(ctx context.Context) (err error) {
		val, err = c.client.Get(ctx, redisKeyPrefix+key).Bytes()
		return err
	})
	if err != nil {
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) {
	err := c.op("set", key, func(ctx context.Context) error {
		return c.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
	})
	if err == nil {
		c.stats.sets.Add(1)
	}
}

func (c *RedisCache) Delete(key string) {
	_ = c.op("del", key, func(ctx context.Context) error {
		return c.client.Del(ctx, redisKeyPrefix+key).Err()
	})
}

// keys lists every response key under the prefix.
func (c *RedisCache) keys() ([]string, error) {
	var out []string
	err := c.op("scan", redisKeyPrefix+"*", func(ctx context.Context) error {
		iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanBatch).Iterator()
		for iter.Next(ctx) {
			out = append(out, iter.Val())
		}
		return iter.Err()
	})
	return out, err
}

// Clear removes the cached responses. Other keys in the database are kept.
func (c *RedisCache) Clear() {
	keys, err := c.keys()
	if err != nil || len(keys) == 0 {
		return
	}
	_ = c.op("unlink", redisKeyPrefix+"*", func(ctx context.Context) error {
		return c.client.Unlink(ctx, keys...).Err()
	})
}

// Stats counts live keys with a SCAN. A failed scan reports zero entries.
func (c *RedisCache) Stats() CacheStats {
	keys, _ := c.keys()
	return c.stats.snapshot(len(keys))
}

func (c *RedisCache) Close() error { return c.client.Close() }

// HealthCheck pings the server.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ Cache = (*RedisCache)(nil)
