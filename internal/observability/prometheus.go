package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics holds the engine's Prometheus collectors.
type PromMetrics struct {
	SnapshotsAssembled  prometheus.Counter
	SnapshotFailures    prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	SurfacedSuggestions prometheus.Gauge
	Feedback            *prometheus.CounterVec
	EventsAppended      *prometheus.CounterVec
}

// NewPromMetrics registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the default registry.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	factory := promauto.With(reg)
	return &PromMetrics{
		SnapshotsAssembled: factory.NewCounter(prometheus.CounterOpts{
			Name: "ax_snapshots_assembled_total",
			Help: "Total number of snapshots assembled",
		}),
		SnapshotFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ax_snapshot_failures_total",
			Help: "Total number of snapshot assemblies that failed",
		}),
		SnapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ax_snapshot_duration_seconds",
			Help:    "Snapshot assembly latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SurfacedSuggestions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ax_suggestions_surfaced",
			Help: "Suggestions that passed gating in the latest snapshot",
		}),
		Feedback: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ax_suggestion_feedback_total",
			Help: "Suggestion feedback by action",
		}, []string{"action"}),
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ax_events_appended_total",
			Help: "Events appended to the log by type",
		}, []string{"type"}),
	}
}

// ObserveSnapshot records one successful assembly.
func (m *PromMetrics) ObserveSnapshot(d time.Duration, surfaced int) {
	m.SnapshotsAssembled.Inc()
	m.SnapshotDuration.Observe(d.Seconds())
	m.SurfacedSuggestions.Set(float64(surfaced))
}

// SnapshotFailed records one failed assembly.
func (m *PromMetrics) SnapshotFailed() {
	m.SnapshotFailures.Inc()
}

// FeedbackRecorded counts one approve or dismiss.
func (m *PromMetrics) FeedbackRecorded(action string) {
	m.Feedback.WithLabelValues(action).Inc()
}

// EventAppended counts one appended event.
func (m *PromMetrics) EventAppended(eventType string) {
	m.EventsAppended.WithLabelValues(eventType).Inc()
}
