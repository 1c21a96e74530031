package api

import (
	"errors"
	"net/http"

	"ctb/validation"

	"go.uber.org/zap"
)

// Sentinel errors returned by the services behind the controllers. Services
// wrap them with fmt.Errorf("...: %w", err) to add context.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotConfigured      = errors.New("service not configured")
)

// WriteServiceError maps a service or validation error to its HTTP status and
// writes the JSON error body.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.SugaredLogger) {
	if fields, ok := validation.FieldErrors(err); ok {
		WriteErrorDetails(w, r, http.StatusBadRequest, "Validation failed", fields, err, logger)
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "Resource not found", err, logger)
	case errors.Is(err, ErrConflict):
		WriteError(w, r, http.StatusConflict, "Resource already exists", err, logger)
	case errors.Is(err, ErrInvalidCredentials):
		WriteError(w, r, http.StatusUnauthorized, "Invalid credentials", err, logger)
	case errors.Is(err, ErrUnauthorized):
		WriteError(w, r, http.StatusUnauthorized, "Unauthorized", err, logger)
	case errors.Is(err, ErrNotConfigured):
		WriteError(w, r, http.StatusServiceUnavailable, "Service unavailable", err, logger)
	default:
		WriteError(w, r, http.StatusInternalServerError, "Internal server error", err, logger)
	}
}
