package bootstrap

import (
	"context"
	"errors"

	"ctb/config"
	"ctb/storage"

	"go.uber.org/zap"
)

// Database is the server's database provider: SQLite, plus Redis when the
// quote cache is enabled.
type Database struct {
	SQLite *storage.SQLite
	Redis  *storage.Redis // nil when redis.enabled is false

	providers *storage.Providers
	cfg       *config.Config
	logger    *zap.SugaredLogger
}

// NewDatabase creates the providers described by cfg without connecting.
func NewDatabase(cfg *config.Config, logger *zap.SugaredLogger) *Database {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := &Database{
		SQLite: storage.NewSQLite(cfg.Database.SQLitePath, logger),
		cfg:    cfg,
		logger: logger,
	}
	if cfg.Redis.Enabled {
		d.Redis = storage.NewRedis(cfg.Redis, logger)
		d.providers = storage.NewProviders(logger, d.SQLite, d.Redis)
	} else {
		d.providers = storage.NewProviders(logger, d.SQLite)
	}
	return d
}

// Initialize connects every provider. On failure a remediation banner for
// the failing provider is written to stderr.
func (d *Database) Initialize(ctx context.Context) error {
	err := d.providers.Initialize(ctx)
	if err == nil {
		return nil
	}

	var initErr *storage.InitError
	if errors.As(err, &initErr) {
		switch initErr.Provider {
		case d.SQLite.Name():
			printFatal("SQLite Initialization Failed", ClassifySQLiteError(initErr.Err, d.cfg.Database.SQLitePath))
		case "redis":
			printFatal("Redis Connection Failed", ClassifyConnectionError(initErr.Err, d.cfg.Redis.Addr))
		}
	}
	return err
}

// Ping checks the providers that support it.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.SQLite.Ping(ctx); err != nil {
		return err
	}
	if d.Redis != nil {
		return d.Redis.Ping(ctx)
	}
	return nil
}

// Close releases every initialized provider. Safe to call more than once.
func (d *Database) Close() error {
	return d.providers.Close()
}
