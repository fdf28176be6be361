// Package metrics provides Prometheus metrics for the adherence core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	MedicationsCreated    prometheus.Counter
	RecordsCreated        prometheus.Counter
	RecordsDeduplicated   prometheus.Counter
	RecordsMissed         prometheus.Counter
	RecordsPurged         prometheus.Counter
	ExpansionFailures     prometheus.Counter
	ExpansionDuration     prometheus.Histogram
	NotificationsEnqueued *prometheus.CounterVec
	DispatchFailures      prometheus.Counter
	SafetyWarnings        *prometheus.CounterVec
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all metrics and registers them on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics on the given registerer. Tests pass a fresh
// prometheus.NewRegistry so packages can build metrics repeatedly.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MedicationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_created_total",
			Help: "Total medications created",
		}),
		RecordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_records_created_total",
			Help: "Total adherence records materialized by the scheduler",
		}),
		RecordsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_records_deduplicated_total",
			Help: "Candidates skipped because a record existed inside the dedup band",
		}),
		RecordsMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_records_missed_total",
			Help: "Sent records flipped to missed by the sweep",
		}),
		RecordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_records_purged_total",
			Help: "Terminal records removed by the retention job",
		}),
		ExpansionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_expansion_failures_total",
			Help: "Per-medication expansion failures",
		}),
		ExpansionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_expansion_duration_seconds",
			Help:    "Per-medication expansion duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		NotificationsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notifications handed to the dispatcher, by channel",
		}, []string{"channel"}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_dispatch_failures_total",
			Help: "Dispatcher attempts that returned an error",
		}),
		SafetyWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safety_warnings_total",
			Help: "Safety warnings emitted at medication creation, by type",
		}, []string{"type", "severity"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending notification outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.MedicationsCreated,
		m.RecordsCreated,
		m.RecordsDeduplicated,
		m.RecordsMissed,
		m.RecordsPurged,
		m.ExpansionFailures,
		m.ExpansionDuration,
		m.NotificationsEnqueued,
		m.DispatchFailures,
		m.SafetyWarnings,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
