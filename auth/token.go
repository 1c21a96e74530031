package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"ctb/config"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrTokenInvalid is returned for malformed, expired or badly signed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned for tokens revoked by logout.
	ErrTokenRevoked = errors.New("token has been revoked")
)

// minSecretLength is the minimum HS256 key size (256 bits).
const minSecretLength = 32

// Claims represents session token claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens and keeps the
// revocation list for logged out tokens until they expire.
type TokenManager struct {
	secret []byte
	issuer string
	expiry time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> token expiry
}

// NewTokenManager builds a manager from config. An empty secret is replaced
// by a random one, which invalidates sessions on every restart.
func NewTokenManager(cfg config.AuthConfig, logger *zap.SugaredLogger) (*TokenManager, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		generated, err := randomHex(minSecretLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = []byte(generated)
		logger.Warnw("auth.jwt_secret not set, using an ephemeral secret; sessions end on restart")
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters", minSecretLength)
	}
	if cfg.JWTExpiry <= 0 {
		return nil, fmt.Errorf("JWT expiry must be positive, got %v", cfg.JWTExpiry)
	}
	return &TokenManager{
		secret:  secret,
		issuer:  cfg.Issuer,
		expiry:  cfg.JWTExpiry,
		logger:  logger,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Issue signs a token for user and returns it with its expiry.
func (tm *TokenManager) Issue(user *User) (string, time.Time, error) {
	jti, err := randomHex(32)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token ID: %w", err)
	}
	now := tm.now()
	expiresAt := now.Add(tm.expiry)

	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   user.ID,
			ID:        jti,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates a token, including the revocation list.
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if tm.isRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists the token until its natural expiry and prunes entries
// that have expired since.
func (tm *TokenManager) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expiresAt := tm.now().Add(tm.expiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.revoked[claims.ID] = expiresAt

	now := tm.now()
	pruned := 0
	for jti, exp := range tm.revoked {
		if now.After(exp) {
			delete(tm.revoked, jti)
			pruned++
		}
	}
	if pruned > 0 {
		tm.logger.Debugw("Pruned expired revoked tokens", "count", pruned)
	}
}

func (tm *TokenManager) isRevoked(jti string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	exp, ok := tm.revoked[jti]
	return ok && tm.now().Before(exp)
}

// randomHex returns n random bytes hex encoded.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
