package auth

import (
	"context"
	"net/http"
	"time"

	"ctb/api"

	"go.uber.org/zap"
)

// GroupName and Prefix identify the route group under /api/v1.
const (
	GroupName = "auth"
	Prefix    = "/auth"
)

// serviceTimeout bounds each call into the Service.
const serviceTimeout = 5 * time.Second

// Validator checks decoded request bodies.
type Validator interface {
	Struct(s interface{}) error
}

// TokenResponse is returned by login and register.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Controller adapts HTTP requests to the Service.
type Controller struct {
	service   Service
	validator Validator
	tokens    *TokenManager
	bodyLimit int64
	logger    *zap.SugaredLogger
}

// NewController creates the auth controller. A nil service answers 503.
func NewController(service Service, validator Validator, tokens *TokenManager, bodyLimit int64, logger *zap.SugaredLogger) *Controller {
	if service == nil {
		service = NotConfigured{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{
		service:   service,
		validator: validator,
		tokens:    tokens,
		bodyLimit: bodyLimit,
		logger:    logger,
	}
}

// RouteGroup builds a fresh /auth group.
func (c *Controller) RouteGroup() *api.Group {
	requireToken := RequireToken(c.tokens, c.logger)
	return api.NewGroup(GroupName, Prefix).
		MustHandle("register", "/register", http.HandlerFunc(c.register), http.MethodPost).
		MustHandle("login", "/login", http.HandlerFunc(c.login), http.MethodPost).
		MustHandle("logout", "/logout", requireToken(http.HandlerFunc(c.logout)), http.MethodPost).
		MustHandle("me", "/me", requireToken(http.HandlerFunc(c.me)), http.MethodGet)
}

func (c *Controller) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := api.DecodeJSON(w, r, dst, c.bodyLimit, c.logger); err != nil {
		return false
	}
	if err := c.validator.Struct(dst); err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return false
	}
	return true
}

// register godoc
//
//	@Summary		Register a user
//	@Description	Creates an account and returns a session token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RegisterRequest		true	"New account"
//	@Success		201		{object}	TokenResponse
//	@Failure		400		{object}	api.ErrorResponse	"Validation failed"
//	@Failure		409		{object}	api.ErrorResponse	"Username taken"
//	@Failure		503		{object}	api.ErrorResponse	"Service not configured"
//	@Router			/api/v1/auth/register [post]
func (c *Controller) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !c.decodeAndValidate(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()
	user, err := c.service.Register(ctx, req)
	if err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return
	}

	c.logger.Infow("AUDIT: User registered",
		"action", "register",
		"user_id", user.ID,
		"username", user.Username,
		"request_id", api.GetRequestIDOrDefault(r.Context()))
	c.respondWithToken(w, r, http.StatusCreated, user)
}

// login godoc
//
//	@Summary		Log in
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest		true	"Credentials"
//	@Success		200		{object}	TokenResponse
//	@Failure		400		{object}	api.ErrorResponse	"Validation failed"
//	@Failure		401		{object}	api.ErrorResponse	"Invalid credentials"
//	@Failure		503		{object}	api.ErrorResponse	"Service not configured"
//	@Router			/api/v1/auth/login [post]
func (c *Controller) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !c.decodeAndValidate(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()
	user, err := c.service.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		c.logger.Infow("AUDIT: Login attempt failed",
			"action", "login",
			"outcome", "failure",
			"username", req.Username,
			"request_id", api.GetRequestIDOrDefault(r.Context()))
		api.WriteServiceError(w, r, err, c.logger)
		return
	}

	c.logger.Infow("AUDIT: Login successful",
		"action", "login",
		"outcome", "success",
		"user_id", user.ID,
		"request_id", api.GetRequestIDOrDefault(r.Context()))
	c.respondWithToken(w, r, http.StatusOK, user)
}

func (c *Controller) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *User) {
	token, expiresAt, err := c.tokens.Issue(user)
	if err != nil {
		api.WriteError(w, r, http.StatusInternalServerError, "Failed to issue token", err, c.logger)
		return
	}
	api.WriteJSON(w, status, TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      user,
	})
}

// logout godoc
//
//	@Summary		Log out
//	@Description	Revokes the presented token
//	@Tags			auth
//	@Security		ApiKeyAuth
//	@Success		204
//	@Failure		401	{object}	api.ErrorResponse	"Missing or invalid token"
//	@Router			/api/v1/auth/logout [post]
func (c *Controller) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		api.WriteError(w, r, http.StatusUnauthorized, "Unauthorized", nil, c.logger)
		return
	}
	c.tokens.Revoke(claims)
	c.logger.Infow("AUDIT: User logged out",
		"action", "logout",
		"user_id", claims.Subject,
		"request_id", api.GetRequestIDOrDefault(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// me godoc
//
//	@Summary	Current user
//	@Tags		auth
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Success	200	{object}	User
//	@Failure	401	{object}	api.ErrorResponse	"Missing or invalid token"
//	@Failure	404	{object}	api.ErrorResponse	"User not found"
//	@Router		/api/v1/auth/me [get]
func (c *Controller) me(w http.ResponseWriter, r *http.Request) {
	subject, ok := api.GetSubject(r.Context())
	if !ok {
		api.WriteError(w, r, http.StatusUnauthorized, "Unauthorized", nil, c.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()
	user, err := c.service.GetUser(ctx, subject)
	if err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return
	}
	api.WriteJSON(w, http.StatusOK, user)
}
