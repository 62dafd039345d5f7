package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	TransactionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transactions_created_total",
			Help: "PENDING transactions recorded by the ledger.",
		},
	)
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_status_transitions_total",
			Help: "Status update attempts by outcome.",
		},
		[]string{"result"},
	)
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_decisions_total",
			Help: "Payment decisions by resulting status.",
		},
		[]string{"status"},
	)
	LedgerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_ledger_calls_total",
			Help: "Ledger calls made by the engine, per attempt.",
		},
		[]string{"operation", "result"},
	)
)

// RegisterLedger registers the HTTP and ledger collectors.
func RegisterLedger(registry *prometheus.Registry) {
	registry.MustRegister(RequestCount, RequestDuration, TransactionsCreated, StatusTransitions)
}

// RegisterEngine registers the HTTP and engine collectors.
func RegisterEngine(registry *prometheus.Registry) {
	registry.MustRegister(RequestCount, RequestDuration, Decisions, LedgerCalls)
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			RequestCount.WithLabelValues(labels...).Inc()
			RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
