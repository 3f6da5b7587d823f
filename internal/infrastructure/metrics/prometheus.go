// Package metrics exposes ingestion and Discord client metrics through Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/etchobot/wordle-hub/pkg/circuitbreaker"
)

// PrometheusMetrics implements command.Metrics and the resolver's failure recorder.
type PrometheusMetrics struct {
	messagesIngested *prometheus.CounterVec
	resultsLogged    *prometheus.CounterVec
	parseMisses      *prometheus.CounterVec
	snapshotSaves    *prometheus.CounterVec
	lookupFailures   *prometheus.CounterVec
	backfillDuration prometheus.Histogram
	backfillScanned  prometheus.Counter
	breakerState     *prometheus.GaugeVec
	httpRequests     *prometheus.HistogramVec
}

// NewPrometheusMetrics registers all collectors on reg.
// A nil reg uses the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		messagesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordle_messages_ingested_total",
				Help: "Result messages that produced at least one logged result.",
			},
			[]string{"mode"},
		),
		resultsLogged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordle_results_logged_total",
				Help: "Individual player results applied to the leaderboard.",
			},
			[]string{"mode"},
		),
		parseMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordle_parse_miss_total",
				Help: "Messages from the result source with no recognizable score token.",
			},
			[]string{"mode"},
		),
		snapshotSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordle_snapshot_saves_total",
				Help: "Leaderboard snapshot saves by outcome.",
			},
			[]string{"status"},
		),
		lookupFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordle_identity_lookup_failures_total",
				Help: "User lookups that fell back to a placeholder name.",
			},
			[]string{"kind"},
		),
		backfillDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wordle_backfill_duration_seconds",
				Help:    "Wall time of channel history backfills.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		backfillScanned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wordle_backfill_messages_scanned_total",
				Help: "Channel messages visited by backfills.",
			},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wordle_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
			},
			[]string{"name"},
		),
		httpRequests: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wordle_http_request_duration_seconds",
				Help:    "Operational HTTP requests by route and status code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
}

// MessageIngested implements command.Metrics.
func (pm *PrometheusMetrics) MessageIngested(mode string) {
	pm.messagesIngested.WithLabelValues(mode).Inc()
}

// ResultsLogged implements command.Metrics.
func (pm *PrometheusMetrics) ResultsLogged(mode string, n int) {
	pm.resultsLogged.WithLabelValues(mode).Add(float64(n))
}

// ParseMiss implements command.Metrics.
func (pm *PrometheusMetrics) ParseMiss(mode string) {
	pm.parseMisses.WithLabelValues(mode).Inc()
}

// SnapshotSaved implements command.Metrics.
func (pm *PrometheusMetrics) SnapshotSaved(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	pm.snapshotSaves.WithLabelValues(status).Inc()
}

// BackfillFinished implements command.Metrics.
func (pm *PrometheusMetrics) BackfillFinished(d time.Duration, scanned int) {
	pm.backfillDuration.Observe(d.Seconds())
	pm.backfillScanned.Add(float64(scanned))
}

// IdentityLookupFailed counts a placeholder name by error class.
func (pm *PrometheusMetrics) IdentityLookupFailed(class string) {
	pm.lookupFailures.WithLabelValues(class).Inc()
}

// BreakerStateChanged matches circuitbreaker's OnStateChange callback.
func (pm *PrometheusMetrics) BreakerStateChanged(name string, _, to circuitbreaker.State) {
	pm.breakerState.WithLabelValues(name).Set(float64(to))
}

// HTTPRequestServed matches the HTTP server's ObserveRequest hook.
func (pm *PrometheusMetrics) HTTPRequestServed(route string, status int, elapsed time.Duration) {
	pm.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
