package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Provider is a resource initialized at startup and released at shutdown.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Close() error
}

// Providers initializes a fixed list of providers in order and closes them
// in reverse. It satisfies the bootstrap database provider contract.
type Providers struct {
	providers []Provider
	logger    *zap.SugaredLogger

	mu          sync.Mutex
	initialized []Provider
}

// NewProviders groups providers; nil entries are skipped.
func NewProviders(logger *zap.SugaredLogger, providers ...Provider) *Providers {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Providers{logger: logger}
	for _, provider := range providers {
		if provider != nil {
			p.providers = append(p.providers, provider)
		}
	}
	return p
}

// Initialize runs every provider's Initialize in order. On the first failure
// the providers already initialized are closed and the error is returned.
func (p *Providers) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.initialized) > 0 {
		return nil
	}
	for _, provider := range p.providers {
		if err := provider.Initialize(ctx); err != nil {
			p.closeLocked()
			return &InitError{Provider: provider.Name(), Err: err}
		}
		p.initialized = append(p.initialized, provider)
		p.logger.Infow("Storage provider initialized", "provider", provider.Name())
	}
	return nil
}

// Close closes initialized providers in reverse order. Safe to call more than once.
func (p *Providers) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Providers) closeLocked() error {
	var errs []error
	for i := len(p.initialized) - 1; i >= 0; i-- {
		provider := p.initialized[i]
		if err := provider.Close(); err != nil {
			p.logger.Warnw("Failed to close storage provider", "provider", provider.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
		}
	}
	p.initialized = nil
	return errors.Join(errs...)
}
