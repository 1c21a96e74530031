package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a provider is used before Initialize.
	ErrNotInitialized = errors.New("storage provider not initialized")

	// ErrValueTooLarge is returned when a cache value exceeds maxCacheValueSize.
	ErrValueTooLarge = errors.New("cache value too large")
)

// InitError reports which provider failed to initialize.
type InitError struct {
	Provider string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Provider, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
