package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctb_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctb_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctb_http_panics_total",
			Help: "Total number of recovered handler panics",
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctb_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// BootstrapSteps counts dependency initialization outcomes by step and result.
	BootstrapSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctb_bootstrap_steps_total",
			Help: "Total number of bootstrap initialization steps by outcome",
		},
		[]string{"step", "result"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctb_cache_requests_total",
			Help: "Total number of cache lookups by outcome",
		},
		[]string{"cache", "result"},
	)
)
