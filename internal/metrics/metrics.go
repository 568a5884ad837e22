package metrics

import (
	"net/http" // HTTP client and status codes
	"strconv"  // String conversions
	"time"     // Time and durations

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus"          // Prometheus collectors
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics HTTP handler
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "instapay",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instapay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "instapay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	// LedgerOperations counts balance mutations by type and outcome.
	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instapay",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Balance mutations by type and result.",
		},
		[]string{"type", "result"},
	)

	// PinFailures counts rejected PIN attempts.
	PinFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "instapay",
			Subsystem: "ledger",
			Name:      "pin_failures_total",
			Help:      "Rejected wallet PIN attempts.",
		},
	)

	// WalletLockouts counts lockouts triggered by repeated PIN failures.
	WalletLockouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "instapay",
			Subsystem: "ledger",
			Name:      "wallet_lockouts_total",
			Help:      "Wallets locked after too many PIN failures.",
		},
	)

	// WebhookEvents counts payment processor events by type and outcome.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instapay",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Payment processor webhook events by type and result.",
		},
		[]string{"type", "result"},
	)

	// JobRuns counts scheduled job executions.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instapay",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		},
		[]string{"job", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		LedgerOperations,
		PinFailures,
		WalletLockouts,
		WebhookEvents,
		JobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
