package auth

import (
	"strings"
	"testing"
	"time"

	"ctb/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(config.AuthConfig{
		JWTSecret: testSecret,
		JWTExpiry: time.Hour,
		Issuer:    "ctb",
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return tm
}

func TestTokenManager_IssueVerify(t *testing.T) {
	tm := newTestTokenManager(t)
	user := &User{ID: "u-1", Username: "alice"}

	token, expiresAt, err := tm.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "ctb", claims.Issuer)
	assert.Len(t, claims.ID, 64)
}

func TestTokenManager_UniqueIDs(t *testing.T) {
	tm := newTestTokenManager(t)
	user := &User{ID: "u-1", Username: "alice"}

	first, _, err := tm.Issue(user)
	require.NoError(t, err)
	second, _, err := tm.Issue(user)
	require.NoError(t, err)

	c1, err := tm.Verify(first)
	require.NoError(t, err)
	c2, err := tm.Verify(second)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := newTestTokenManager(t)
	user := &User{ID: "u-1", Username: "alice"}
	valid, _, err := tm.Issue(user)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("tampered signature", func(t *testing.T) {
		_, err := tm.Verify(valid[:len(valid)-2] + "xx")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokenManager(config.AuthConfig{JWTSecret: strings.Repeat("z", 32), JWTExpiry: time.Hour, Issuer: "ctb"}, nil)
		require.NoError(t, err)
		_, err = other.Verify(valid)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewTokenManager(config.AuthConfig{JWTSecret: testSecret, JWTExpiry: time.Hour, Issuer: "someone-else"}, nil)
		require.NoError(t, err)
		_, err = other.Verify(valid)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := &Claims{Username: "alice", RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ID:        "abc",
			Issuer:    "ctb",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.Verify(unsigned)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { tm.now = time.Now }()
		_, err := tm.Verify(valid)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestTokenManager_Revoke(t *testing.T) {
	tm := newTestTokenManager(t)
	token, _, err := tm.Issue(&User{ID: "u-1", Username: "alice"})
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)

	tm.Revoke(claims)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// entries disappear once the token would have expired anyway
	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	tm.Revoke(&Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "other", ExpiresAt: jwt.NewNumericDate(time.Now().Add(3 * time.Hour))}})
	tm.mu.Lock()
	_, stillThere := tm.revoked[claims.ID]
	tm.mu.Unlock()
	assert.False(t, stillThere)
}

func TestNewTokenManager(t *testing.T) {
	t.Run("ephemeral secret", func(t *testing.T) {
		tm, err := NewTokenManager(config.AuthConfig{JWTExpiry: time.Hour, Issuer: "ctb"}, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(tm.secret), minSecretLength)
	})

	t.Run("short secret", func(t *testing.T) {
		_, err := NewTokenManager(config.AuthConfig{JWTSecret: "short", JWTExpiry: time.Hour}, nil)
		assert.Error(t, err)
	})

	t.Run("non-positive expiry", func(t *testing.T) {
		_, err := NewTokenManager(config.AuthConfig{JWTSecret: testSecret}, nil)
		assert.Error(t, err)
	})
}
