package bootstrap

import (
	"fmt"

	"ctb/auth"
	"ctb/config"
	"ctb/stockmarket"
	"ctb/storage"
	"ctb/validation"

	"go.uber.org/zap"
)

// memoryQuoteCacheSize bounds the in-process quote cache used without Redis.
const memoryQuoteCacheSize = 1024

// Services are the business backends plugged into the controllers. A nil
// service makes its routes answer 503 Service Unavailable.
type Services struct {
	Auth        auth.Service
	StockMarket stockmarket.Service
}

// DefaultDependencies wires the standard collaborators from cfg: SQLite (and
// Redis when enabled), the shared validator, and the auth and stock-market
// controllers in that order. Quotes are cached in Redis when it is enabled
// and in process memory otherwise.
func DefaultDependencies(cfg *config.Config, services Services, logger *zap.SugaredLogger) (Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db := NewDatabase(cfg, logger)
	validator := validation.New(logger)

	tokens, err := auth.NewTokenManager(cfg.Auth, logger)
	if err != nil {
		return Dependencies{}, fmt.Errorf("failed to create token manager: %w", err)
	}
	authController := auth.NewController(services.Auth, validator, tokens, cfg.API.BodyLimit, logger)

	market := services.StockMarket
	if market != nil {
		var cache stockmarket.JSONCache = db.Redis
		backend := "redis"
		if db.Redis == nil {
			memory, err := storage.NewMemoryCache(memoryQuoteCacheSize, logger)
			if err != nil {
				return Dependencies{}, err
			}
			cache, backend = memory, "memory"
		}
		market = stockmarket.NewCachedService(market, cache, cfg.Redis.QuoteTTL, logger)
		logger.Infow("Quote cache enabled", "backend", backend, "ttl", cfg.Redis.QuoteTTL)
	}
	marketController := stockmarket.NewController(market, validator, logger)

	return Dependencies{
		Database:    db,
		Validator:   validator,
		RouteGroups: []RouteGroupProvider{authController, marketController},
		Logger:      logger,
	}, nil
}
