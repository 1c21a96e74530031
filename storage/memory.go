package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ctb/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is an in-process JSON cache with the same contract as Redis,
// used when no Redis server is configured. Least recently used entries are
// evicted once size is reached.
type MemoryCache struct {
	cache  *lru.Cache[string, memoryEntry]
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewMemoryCache creates a cache holding at most size entries.
func NewMemoryCache(size int, logger *zap.SugaredLogger) (*MemoryCache, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cache, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{cache: cache, logger: logger, now: time.Now}, nil
}

// SetJSON stores value as JSON under key with expiration.
func (mc *MemoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		metrics.CacheRequests.WithLabelValues("memory", "error").Inc()
		return fmt.Errorf("failed to marshal cache value for key %s: %w", key, err)
	}
	if len(data) > maxCacheValueSize {
		metrics.CacheRequests.WithLabelValues("memory", "error").Inc()
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrValueTooLarge, len(data), maxCacheValueSize)
	}
	entry := memoryEntry{data: data}
	if expiration > 0 {
		entry.expiresAt = mc.now().Add(expiration)
	}
	if evicted := mc.cache.Add(key, entry); evicted {
		mc.logger.Debugw("Memory cache full, evicted oldest entry", "size", mc.cache.Len())
	}
	return nil
}

// GetJSON decodes the value under key into dest. found is false on a miss or
// an expired entry.
func (mc *MemoryCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	entry, ok := mc.cache.Get(key)
	if ok && !entry.expiresAt.IsZero() && !mc.now().Before(entry.expiresAt) {
		mc.cache.Remove(key)
		ok = false
	}
	if !ok {
		metrics.CacheRequests.WithLabelValues("memory", "miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("memory", "error").Inc()
		return false, fmt.Errorf("failed to unmarshal cache key %s: %w", key, err)
	}
	metrics.CacheRequests.WithLabelValues("memory", "hit").Inc()
	return true, nil
}

// Delete removes keys from the cache.
func (mc *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		mc.cache.Remove(key)
	}
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (mc *MemoryCache) Len() int {
	return mc.cache.Len()
}
