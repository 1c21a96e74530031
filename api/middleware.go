package api

import (
	"fmt"
	"net/http"
	"regexp"
	"runtime"
	"sync"
	"time"

	"ctb/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-request correlation ID in both directions.
const RequestIDHeader = "X-Request-ID"

// routeUnmatched labels metrics for requests no route matched.
const routeUnmatched = "unmatched"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RecoveryMiddleware converts handler panics into a 500 JSON response.
// The stack trace is logged server side only, never sent to the client.
func RecoveryMiddleware(router *mux.Router, logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					stackBuf := make([]byte, 4096)
					stackLen := runtime.Stack(stackBuf, false)
					route := routeTemplate(router, r)
					// the request ID is assigned further in; recover it from the response
					if id := w.Header().Get(RequestIDHeader); id != "" {
						r = r.WithContext(WithRequestID(r.Context(), id))
					}

					logger.Errorw("PANIC RECOVERED",
						"error", sanitizeLogMessage(fmt.Sprintf("%v", err)),
						"request_id", GetRequestIDOrDefault(r.Context()),
						"method", r.Method,
						"route", route,
						"stack_trace", string(stackBuf[:stackLen]),
					)
					metrics.HTTPPanics.WithLabelValues(r.Method, route).Inc()

					WriteError(w, r, http.StatusInternalServerError, "Internal server error", fmt.Errorf("panic: %v", err), nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware propagates a well-formed incoming X-Request-ID or
// generates a fresh one, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !requestIDPattern.MatchString(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// AccessLogMiddleware logs every request and records request metrics labelled
// by route template, keeping label cardinality bounded.
func AccessLogMiddleware(router *mux.Router, logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			duration := time.Since(start)
			route := routeTemplate(router, r)

			metrics.HTTPRequests.WithLabelValues(r.Method, route, fmt.Sprintf("%d", rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			logger.Infow("HTTP request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"bytes", rec.written,
				"duration_ms", duration.Milliseconds(),
				"request_id", GetRequestIDOrDefault(r.Context()),
			)
		})
	}
}

func routeTemplate(router *mux.Router, r *http.Request) string {
	if router == nil {
		return routeUnmatched
	}
	var match mux.RouteMatch
	if !router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
		return routeUnmatched
	}
	tmpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return routeUnmatched
	}
	return tmpl
}

// CORSMiddleware applies the cross-origin policy for the configured origins.
// Requests from other origins get no Access-Control-Allow-Origin header, and
// preflight requests are answered here without reaching application handlers.
func CORSMiddleware(allowedOrigins []string, maxAge time.Duration, logger *zap.SugaredLogger) mux.MiddlewareFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           int(maxAge.Seconds()),
	})
	if logger != nil {
		logger.Infow("CORS policy configured", "allowed_origins", allowedOrigins)
	}
	return c.Handler
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP with a token bucket per address.
// Idle buckets are evicted by a background goroutine stopped by Close.
type RateLimiter struct {
	limit          rate.Limit
	burst          int
	trustProxy     bool
	trustedProxies []string
	exempt         map[string]struct{}
	idleTTL        time.Duration
	logger         *zap.SugaredLogger

	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst for each client. Clients are keyed by socket address unless
// trustProxy is set and the peer is one of trustedProxies. Cleanup runs
// every idleTTL.
func NewRateLimiter(rps float64, burst int, trustProxy bool, trustedProxies []string, idleTTL time.Duration, logger *zap.SugaredLogger) *RateLimiter {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	rl := &RateLimiter{
		limit:          rate.Limit(rps),
		burst:          burst,
		trustProxy:     trustProxy,
		trustedProxies: append([]string(nil), trustedProxies...),
		exempt:         make(map[string]struct{}),
		idleTTL:        idleTTL,
		logger:         logger,
		limiters:       make(map[string]*rateLimiterEntry),
		stopCh:         make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.cleanup()
	return rl
}

// Exempt excludes exact request paths from limiting. Call before serving.
func (rl *RateLimiter) Exempt(paths ...string) {
	for _, p := range paths {
		rl.exempt[p] = struct{}{}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := rl.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		ip := getRealIP(r, rl.trustProxy, rl.trustedProxies)
		if !rl.allow(ip) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			WriteError(w, r, http.StatusTooManyRequests, "Too many requests", nil, rl.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanup() {
	defer rl.wg.Done()
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.limiters, ip)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stopCh)
		rl.wg.Wait()
	})
}

// ApplicationMiddleware makes app available to handlers through the request
// context for the lifetime of the request.
func ApplicationMiddleware(app Application) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithApplication(r.Context(), app)))
		})
	}
}
