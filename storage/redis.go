package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ctb/config"
	"ctb/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxCacheValueSize caps a single cached value (1MB).
const maxCacheValueSize = 1 << 20

// Redis is the optional cache provider. Initialize dials and pings the
// server; the JSON helpers serve read-through caches such as quotes.
type Redis struct {
	cfg    config.RedisConfig
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	client *redis.Client
}

// NewRedis creates an uninitialized provider.
func NewRedis(cfg config.RedisConfig, logger *zap.SugaredLogger) *Redis {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Redis{cfg: cfg, logger: logger}
}

// Name identifies the provider in logs and metrics.
func (rc *Redis) Name() string { return "redis" }

// Initialize connects and pings. Calling it on an initialized provider is a no-op.
func (rc *Redis) Initialize(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.client != nil {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.cfg.Addr,
		Password: rc.cfg.Password,
		DB:       rc.cfg.DB,
		PoolSize: rc.cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping redis at %s: %w", rc.cfg.Addr, err)
	}
	rc.client = client
	rc.logger.Infow("Connected to Redis", "addr", rc.cfg.Addr, "db", rc.cfg.DB)
	return nil
}

// Close closes the client. Safe to call more than once and before Initialize.
func (rc *Redis) Close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.client == nil {
		return nil
	}
	err := rc.client.Close()
	rc.client = nil
	return err
}

func (rc *Redis) getClient() (*redis.Client, error) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.client == nil {
		return nil, ErrNotInitialized
	}
	return rc.client, nil
}

// Ping tests the Redis connection.
func (rc *Redis) Ping(ctx context.Context) error {
	client, err := rc.getClient()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// SetJSON stores value as JSON under key with expiration.
func (rc *Redis) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	client, err := rc.getClient()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("failed to marshal cache value for key %s: %w", key, err)
	}
	if len(data) > maxCacheValueSize {
		rc.logger.Warnw("Cache value exceeds size limit, rejecting", "key", key, "size", len(data), "max", maxCacheValueSize)
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrValueTooLarge, len(data), maxCacheValueSize)
	}
	if err := client.Set(ctx, key, data, expiration).Err(); err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value under key into dest. found is false on a miss.
func (rc *Redis) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	client, err := rc.getClient()
	if err != nil {
		return false, err
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheRequests.WithLabelValues("redis", "miss").Inc()
			return false, nil
		}
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return false, fmt.Errorf("failed to unmarshal cache key %s: %w", key, err)
	}
	metrics.CacheRequests.WithLabelValues("redis", "hit").Inc()
	return true, nil
}

// Delete removes keys from the cache.
func (rc *Redis) Delete(ctx context.Context, keys ...string) error {
	client, err := rc.getClient()
	if err != nil {
		return err
	}
	return client.Del(ctx, keys...).Err()
}
