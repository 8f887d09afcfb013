package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	CacheKeyPrefix = "books:cache"
	CacheGenKey    = "books:cache:gen"
)

var _ Cacher = (*redisCache)(nil) // ensure redisCache implements Cacher.

// Cacher describes the short-TTL response cache sitting in front of the
// read endpoints. Invalidate is called on every mutation.
type Cacher interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Invalidate(ctx context.Context)
}

type redisCache struct {
	logger *zap.Logger
	client *redis.Client
	ttl    time.Duration
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// NewRedisCache provides an instance of redis-based response cache.
func NewRedisCache(logger *zap.Logger, client *redis.Client, ttl time.Duration) Cacher {
	return &redisCache{
		logger: logger,
		client: client,
		ttl:    ttl,
	}
}

// Get returns the payload cached under the current generation of the key.
func (rc *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := rc.client.Get(ctx, rc.versioned(ctx, key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		rc.logger.Error("cache: failed to get entry", zap.String("cache.key", key), zap.Error(err))
		return nil, false
	}
	return value, true
}

// Set stores the payload under the current generation of the key with the
// configured TTL. Failures are logged only, the cache is best effort.
func (rc *redisCache) Set(ctx context.Context, key string, value []byte) {
	if err := rc.client.Set(ctx, rc.versioned(ctx, key), value, rc.ttl).Err(); err != nil {
		rc.logger.Error("cache: failed to set entry", zap.String("cache.key", key), zap.Error(err))
	}
}

// Invalidate bumps the generation counter. Entries written under older
// generations become unreachable and expire through their TTL.
func (rc *redisCache) Invalidate(ctx context.Context) {
	if err := rc.client.Incr(ctx, CacheGenKey).Err(); err != nil {
		rc.logger.Error("cache: failed to bump generation", zap.Error(err))
	}
}

// versioned prefixes the key with the current cache generation.
func (rc *redisCache) versioned(ctx context.Context, key string) string {
	gen, err := rc.client.Get(ctx, CacheGenKey).Int64()
	if err != nil && err != redis.Nil {
		rc.logger.Error("cache: failed to read generation", zap.Error(err))
	}
	return fmt.Sprintf("%s:g%d:%s", CacheKeyPrefix, gen, key)
}

// NoopCache is used when response caching is disabled by configuration.
type NoopCache struct{}

func (NoopCache) Get(_ context.Context, _ string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(_ context.Context, _ string, _ []byte)      {}
func (NoopCache) Invalidate(_ context.Context)                   {}
