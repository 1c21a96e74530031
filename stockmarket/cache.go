package stockmarket

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// quoteKeyPrefix namespaces cached quotes.
const quoteKeyPrefix = "ctb:quote:"

// JSONCache is the subset of the Redis provider used for quotes.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedService wraps a Service with a read-through quote cache. Cache
// failures are logged and the request falls through to the wrapped Service.
type CachedService struct {
	Service
	cache  JSONCache
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewCachedService caches quotes from svc for ttl.
func NewCachedService(svc Service, cache JSONCache, ttl time.Duration, logger *zap.SugaredLogger) *CachedService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CachedService{Service: svc, cache: cache, ttl: ttl, logger: logger}
}

// GetQuote returns the cached quote or fetches and stores it.
func (s *CachedService) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	key := quoteKeyPrefix + symbol

	var cached Quote
	found, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warnw("Quote cache read failed", "symbol", symbol, "error", err)
	} else if found {
		return &cached, nil
	}

	quote, err := s.Service.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, quote, s.ttl); err != nil {
		s.logger.Warnw("Quote cache write failed", "symbol", symbol, "error", err)
	}
	return quote, nil
}
