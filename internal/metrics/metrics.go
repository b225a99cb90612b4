package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream outcomes
const (
	OutcomeOK       = "ok"
	OutcomeNetwork  = "network"
	OutcomeStatus   = "status"
	OutcomeFormat   = "format"
	OutcomeCanceled = "canceled"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booksearch_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booksearch_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booksearch_openlibrary_requests_total",
		Help: "Open Library search requests by outcome",
	}, []string{"outcome"})

	UpstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booksearch_openlibrary_request_duration_seconds",
		Help:    "Duration of Open Library search requests in seconds",
		Buckets: prometheus.DefBuckets,
	})

	UpstreamUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booksearch_openlibrary_up",
		Help: "Whether the last Open Library probe succeeded",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booksearch_sessions_active",
		Help: "Number of open live search sessions",
	})

	DebouncedEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booksearch_debounced_edits_total",
		Help: "Keyword or page edits superseded before their fetch was issued",
	})

	StaleResponsesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booksearch_stale_responses_discarded_total",
		Help: "Search responses dropped because a newer query was already issued",
	})
)

// ObserveUpstream records one Open Library call
func ObserveUpstream(outcome string, took time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(outcome).Inc()
	UpstreamRequestDuration.Observe(took.Seconds())
}

// EchoMiddleware counts requests per route pattern
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
