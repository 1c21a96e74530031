package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var testOrigins = []string{"http://localhost:3000", "https://ctb-agh.netlify.app"}

func TestCORSMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	tests := []struct {
		name          string
		method        string
		origin        string
		preflight     bool
		wantAllow     string
		wantReachNext bool
		wantStatus    int
	}{
		{
			name:          "allowed local origin",
			method:        http.MethodGet,
			origin:        "http://localhost:3000",
			wantAllow:     "http://localhost:3000",
			wantReachNext: true,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "allowed deployed origin",
			method:        http.MethodGet,
			origin:        "https://ctb-agh.netlify.app",
			wantAllow:     "https://ctb-agh.netlify.app",
			wantReachNext: true,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "disallowed origin gets no allow header",
			method:        http.MethodGet,
			origin:        "https://evil.example",
			wantAllow:     "",
			wantReachNext: true,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "same-origin request without Origin header",
			method:        http.MethodGet,
			wantReachNext: true,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "allowed preflight",
			method:        http.MethodOptions,
			origin:        "http://localhost:3000",
			preflight:     true,
			wantAllow:     "http://localhost:3000",
			wantReachNext: false,
			wantStatus:    http.StatusNoContent,
		},
		{
			name:          "disallowed preflight never reaches handler",
			method:        http.MethodOptions,
			origin:        "https://evil.example",
			preflight:     true,
			wantAllow:     "",
			wantReachNext: false,
			wantStatus:    http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})
			handler := CORSMiddleware(testOrigins, 10*time.Minute, logger)(next)

			req := httptest.NewRequest(tt.method, "/api/v1/auth/login", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "content-type")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantAllow, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantReachNext, reached)
			assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestCORSMiddleware_ExposesRequestID(t *testing.T) {
	handler := CORSMiddleware(testOrigins, time.Minute, nil)(okHandler("ok"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.True(t, strings.EqualFold(RequestIDHeader, rr.Header().Get("Access-Control-Expose-Headers")))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestIDOrDefault(r.Context())
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.NotEqual(t, "unknown", seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("propagates well-formed incoming ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	})

	t.Run("replaces malformed incoming ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "bad id\nwith newline")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.NotEqual(t, "bad id\nwith newline", seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core).Sugar()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom password=hunter2")
	})
	handler := RecoveryMiddleware(nil, logger)(RequestIDMiddleware(panicking))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, rr.Header().Get(RequestIDHeader), body.RequestID)
	assert.NotContains(t, rr.Body.String(), "hunter2")
	assert.NotContains(t, rr.Body.String(), "goroutine")

	require.Equal(t, 1, logs.FilterMessage("PANIC RECOVERED").Len())
}

func TestAccessLogMiddleware_RouteTemplate(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core).Sugar()

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/stock-market/quotes/{symbol}", okHandler("q")).Methods(http.MethodGet)
	handler := AccessLogMiddleware(router, logger)(router)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stock-market/quotes/MSFT", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/api/v1/stock-market/quotes/{symbol}", entries[0].ContextMap()["route"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, routeUnmatched, entries[1].ContextMap()["route"])
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2, false, nil, time.Hour, zaptest.NewLogger(t).Sugar())
	defer rl.Close()
	handler := rl.Middleware(okHandler("ok"))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1:1000"))
	assert.Equal(t, http.StatusOK, send("192.168.1.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:1002"))

	// other clients keep their own budget
	assert.Equal(t, http.StatusOK, send("192.168.1.2:1000"))
}

func TestRateLimiter_IgnoresForwardedHeaderWithoutTrustedProxy(t *testing.T) {
	rl := NewRateLimiter(1, 1, false, nil, time.Hour, nil)
	defer rl.Close()
	handler := rl.Middleware(okHandler("ok"))

	for i, spoofed := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:1000"
		req.Header.Set("X-Forwarded-For", spoofed)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, rr.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		}
	}
}

func TestRateLimiter_SpoofedForwardedHeaderFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(0.001, 3, true, testTrustedProxies, time.Hour, nil)
	defer rl.Close()
	handler := rl.Middleware(okHandler("ok"))

	limited := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.RemoteAddr = "198.51.100.9:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.%d.%d", i/250, i%250+1))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	assert.Equal(t, 47, limited)
	rl.mu.Lock()
	assert.Len(t, rl.limiters, 1)
	rl.mu.Unlock()
}

func TestRateLimiter_TrustedProxyForwardsClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1, true, testTrustedProxies, time.Hour, nil)
	defer rl.Close()
	handler := rl.Middleware(okHandler("ok"))

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.RemoteAddr = "10.0.0.2:5000"
		req.Header.Set("X-Forwarded-For", client)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
}

func TestRateLimiter_ExemptPaths(t *testing.T) {
	rl := NewRateLimiter(1, 1, false, nil, time.Hour, nil)
	defer rl.Close()
	rl.Exempt(IndexPath)
	handler := rl.Middleware(okHandler("ok"))

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?page=1", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRateLimiter_EvictIdleAndClose(t *testing.T) {
	rl := NewRateLimiter(10, 10, false, nil, time.Minute, nil)
	assert.True(t, rl.allow("1.1.1.1"))

	rl.evictIdle(time.Now().Add(2 * time.Minute))
	rl.mu.Lock()
	assert.Empty(t, rl.limiters)
	rl.mu.Unlock()

	rl.Close()
	rl.Close()
}

func TestApplicationMiddleware(t *testing.T) {
	app := &stubApplication{name: "ctb"}
	var got Application
	handler := ApplicationMiddleware(app)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ApplicationFrom(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, got)
	assert.Equal(t, "ctb", got.Name())
}
