// Package metrics exposes Prometheus instruments for the proxy.
//
// Instruments are registered on the default registry at init and served by
// promhttp on /metrics. Callers use the Record* helpers so label values stay
// consistent across packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookupsTotal counts cache reads by outcome (hit, miss, expired).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maproxy_cache_lookups_total",
			Help: "Cache lookups by key kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// CacheWritesTotal counts cache writes.
	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maproxy_cache_writes_total",
			Help: "Cache writes by key kind",
		},
		[]string{"kind"},
	)

	// CacheSweptTotal counts entries removed by sweeps.
	CacheSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maproxy_cache_swept_total",
			Help: "Expired cache entries removed by sweeps",
		},
	)

	// UpstreamFetchDuration tracks uncached fetches end to end.
	UpstreamFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maproxy_upstream_fetch_duration_seconds",
			Help:    "Duration of uncached upstream fetches",
			Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34, 60, 90},
		},
		[]string{"operation"},
	)

	// UpstreamErrorsTotal counts failed fetches by error code.
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maproxy_upstream_errors_total",
			Help: "Failed upstream fetches by operation and error code",
		},
		[]string{"operation", "code"},
	)

	// BrowserSessionsStarted counts session generations.
	BrowserSessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maproxy_browser_sessions_started_total",
			Help: "Browser sessions started",
		},
	)

	// BrowserSessionsClosed counts teardowns by reason (explicit, idle, error).
	BrowserSessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maproxy_browser_sessions_closed_total",
			Help: "Browser sessions closed by reason",
		},
		[]string{"reason"},
	)

	// BrowserSessionActive is 1 while a session is live.
	BrowserSessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maproxy_browser_session_active",
			Help: "Whether a browser session is currently live",
		},
	)

	// BrowserRequestsBlocked counts sub-resource requests aborted by the interception rule.
	BrowserRequestsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maproxy_browser_requests_blocked_total",
			Help: "Sub-resource requests aborted by reason",
		},
		[]string{"reason"},
	)

	// CircuitBreakerState mirrors gobreaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maproxy_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maproxy_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// PreloadReady is 1 when the startup health check passed.
	PreloadReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maproxy_preload_ready",
			Help: "Whether the startup preload found the site reachable without a challenge",
		},
	)
)

// RecordCacheLookup records a cache read outcome.
func RecordCacheLookup(kind, outcome string) {
	CacheLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordCacheWrite records a cache write.
func RecordCacheWrite(kind string) {
	CacheWritesTotal.WithLabelValues(kind).Inc()
}

// RecordUpstreamFetch records an uncached fetch. code is empty on success.
func RecordUpstreamFetch(operation, code string, d time.Duration) {
	UpstreamFetchDuration.WithLabelValues(operation).Observe(d.Seconds())
	if code != "" {
		UpstreamErrorsTotal.WithLabelValues(operation, code).Inc()
	}
}

// RecordSessionStarted marks a new live session.
func RecordSessionStarted() {
	BrowserSessionsStarted.Inc()
	BrowserSessionActive.Set(1)
}

// RecordSessionClosed marks the session gone.
func RecordSessionClosed(reason string) {
	BrowserSessionsClosed.WithLabelValues(reason).Inc()
	BrowserSessionActive.Set(0)
}

// RecordBlockedRequest records an aborted sub-resource.
func RecordBlockedRequest(reason string) {
	BrowserRequestsBlocked.WithLabelValues(reason).Inc()
}

// SetPreloadReady records the startup health check result.
func SetPreloadReady(ready bool) {
	if ready {
		PreloadReady.Set(1)
		return
	}
	PreloadReady.Set(0)
}

// RecordBreakerTransition records a circuit breaker state change.
// state is the numeric value of to (0=closed, 1=half-open, 2=open).
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}
