// Package auth serves the /auth route group: registration, login, logout and
// the current-user endpoint. Credential storage and verification belong to a
// Service supplied by the deployment; this package issues and checks the
// session tokens.
package auth

import (
	"context"
	"fmt"
	"time"

	"ctb/api"
)

// User is the public view of an account.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,max=128"`
}

// Service owns accounts. Implementations return errors wrapping
// api.ErrConflict, api.ErrInvalidCredentials or api.ErrNotFound.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}

// NotConfigured is the Service used when no account backend is wired.
type NotConfigured struct{}

func (NotConfigured) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	return nil, fmt.Errorf("auth register: %w", api.ErrNotConfigured)
}

func (NotConfigured) Authenticate(ctx context.Context, username, password string) (*User, error) {
	return nil, fmt.Errorf("auth authenticate: %w", api.ErrNotConfigured)
}

func (NotConfigured) GetUser(ctx context.Context, id string) (*User, error) {
	return nil, fmt.Errorf("auth get user: %w", api.ErrNotConfigured)
}
