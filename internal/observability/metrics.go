// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	VaultsDiscovered prometheus.Counter
	VaultsPruned     prometheus.Counter
	DecodeFailures   *prometheus.CounterVec

	// Monitor cycle metrics
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	VaultsEvaluated   prometheus.Counter
	ActiveVaults      prometheus.Gauge
	ThresholdBreaches prometheus.Counter
	Remediations      *prometheus.CounterVec

	// Oracle metrics
	SnapshotsServed     *prometheus.CounterVec
	OracleFetchLatency  prometheus.Histogram
	OracleFetchFailures prometheus.Counter

	// Ledger metrics
	RPCCallLatency  *prometheus.HistogramVec
	StreamReconnect prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vault_sentinel"
	}

	return &Metrics{
		// Scan metrics
		VaultsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "vaults_discovered_total",
			Help:      "Total number of new vaults discovered and registered",
		}),
		VaultsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "vaults_pruned_total",
			Help:      "Total number of vaults transitioned to withdrawn after disappearing on chain",
		}),
		DecodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "decode_failures_total",
			Help:      "Total number of account records that failed vault decoding by reason",
		}, []string{"reason"}),

		// Monitor cycle metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Monitoring cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		VaultsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "vaults_evaluated_total",
			Help:      "Total number of vault assessments completed",
		}),
		ActiveVaults: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "active_vaults",
			Help:      "Number of active vaults seen in the most recent cycle",
		}),
		ThresholdBreaches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "threshold_breaches_total",
			Help:      "Total number of assessments that breached the vault's IL threshold",
		}),
		Remediations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "remediations_total",
			Help:      "Total number of protective unwinds by outcome",
		}, []string{"outcome"}),

		// Oracle metrics
		SnapshotsServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "snapshots_served_total",
			Help:      "Total number of pool snapshots served by source tier",
		}, []string{"source"}),
		OracleFetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetch_latency_seconds",
			Help:      "Live oracle fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OracleFetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed live oracle fetches",
		}),

		// Ledger metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		StreamReconnect: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "stream_reconnects_total",
			Help:      "Total number of WebSocket stream reconnections",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last fully completed monitoring cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVaultDiscovered increments the vaults discovered counter.
func RecordVaultDiscovered() {
	DefaultMetrics.VaultsDiscovered.Inc()
}

// RecordVaultPruned increments the vaults pruned counter.
func RecordVaultPruned() {
	DefaultMetrics.VaultsPruned.Inc()
}

// RecordDecodeFailure records a vault decode failure.
func RecordDecodeFailure(reason string) {
	DefaultMetrics.DecodeFailures.WithLabelValues(reason).Inc()
}

// RecordCycle records a completed monitoring cycle.
func RecordCycle(status string, durationSeconds float64) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
}

// RecordEvaluation increments the assessments completed counter.
func RecordEvaluation(breached bool) {
	DefaultMetrics.VaultsEvaluated.Inc()
	if breached {
		DefaultMetrics.ThresholdBreaches.Inc()
	}
}

// RecordRemediation records a protective unwind attempt.
func RecordRemediation(outcome string) {
	DefaultMetrics.Remediations.WithLabelValues(outcome).Inc()
}

// RecordSnapshot records a served snapshot by source tier.
func RecordSnapshot(source string) {
	DefaultMetrics.SnapshotsServed.WithLabelValues(source).Inc()
}

// RecordOracleFetch records one live oracle fetch attempt.
func RecordOracleFetch(seconds float64, err error) {
	DefaultMetrics.OracleFetchLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.OracleFetchFailures.Inc()
	}
}

// RecordRPCCall records one ledger RPC call, retries included.
func RecordRPCCall(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordStreamReconnect increments the stream reconnection counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnect.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
