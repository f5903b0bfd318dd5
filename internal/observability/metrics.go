// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Tick loop
	TicksTotal         *prometheus.CounterVec
	TickDuration       prometheus.Histogram
	PositionsProcessed prometheus.Counter
	PositionErrors     *prometheus.CounterVec

	// Decisions
	StateTransitions *prometheus.CounterVec
	ActionsProposed  *prometheus.CounterVec
	ActionsExecuted  *prometheus.CounterVec
	GatesSuppressed  *prometheus.CounterVec
	EpisodesClosed   *prometheus.CounterVec

	// Learning
	JobRunsTotal     *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	LessonsMined     prometheus.Gauge
	OverridesWritten *prometheus.GaugeVec

	// Health
	LastSuccessfulTick     prometheus.Gauge
	LastSuccessfulLearning prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trendloop"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "runs_total",
			Help:      "Total number of ticks by status",
		}, []string{"status"}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "duration_seconds",
			Help:      "Wall time of one tick over all positions",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		PositionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "positions_processed_total",
			Help:      "Total number of position evaluations",
		}),
		PositionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tick",
			Name:      "position_errors_total",
			Help:      "Total number of per-position failures by stage",
		}, []string{"stage"}),

		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "state_transitions_total",
			Help:      "Total number of trend state transitions",
		}, []string{"from", "to"}),
		ActionsProposed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "actions_proposed_total",
			Help:      "Total number of proposed actions by type",
		}, []string{"type"}),
		ActionsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "actions_executed_total",
			Help:      "Total number of executor outcomes by type and status",
		}, []string{"type", "status"}),
		GatesSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "gates_suppressed_total",
			Help:      "Total number of actions suppressed by gate",
		}, []string{"gate"}),
		EpisodesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "closed_total",
			Help:      "Total number of closed episodes by class and outcome",
		}, []string{"class", "outcome"}),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of job runs by job and status",
		}, []string{"job", "status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job run duration",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"job"}),
		LessonsMined: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "lessons",
			Help:      "Number of lessons produced by the last mining run",
		}),
		OverridesWritten: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "overrides",
			Help:      "Number of overrides written by the last materialization by kind",
		}, []string{"kind"}),

		LastSuccessfulTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix timestamp of the last completed tick",
		}),
		LastSuccessfulLearning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_learning_timestamp",
			Help:      "Unix timestamp of the last completed learning job",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records a finished tick.
func RecordTick(status string, d time.Duration, at time.Time) {
	DefaultMetrics.TicksTotal.WithLabelValues(status).Inc()
	DefaultMetrics.TickDuration.Observe(d.Seconds())
	if status == "success" {
		DefaultMetrics.LastSuccessfulTick.Set(float64(at.Unix()))
	}
}

// RecordPositionProcessed increments the position evaluation counter.
func RecordPositionProcessed() {
	DefaultMetrics.PositionsProcessed.Inc()
}

// RecordPositionError records a per-position failure.
func RecordPositionError(stage string) {
	DefaultMetrics.PositionErrors.WithLabelValues(stage).Inc()
}

// RecordTransition records a state change.
func RecordTransition(from, to string) {
	DefaultMetrics.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordActionProposed records a proposed action.
func RecordActionProposed(actionType string) {
	DefaultMetrics.ActionsProposed.WithLabelValues(actionType).Inc()
}

// RecordActionExecuted records an executor outcome.
func RecordActionExecuted(actionType, status string) {
	DefaultMetrics.ActionsExecuted.WithLabelValues(actionType, status).Inc()
}

// RecordSuppressed records a gated action.
func RecordSuppressed(gate string) {
	DefaultMetrics.GatesSuppressed.WithLabelValues(gate).Inc()
}

// RecordEpisodeClosed records an episode outcome.
func RecordEpisodeClosed(class, outcome string) {
	DefaultMetrics.EpisodesClosed.WithLabelValues(class, outcome).Inc()
}

// RecordJobRun records a job run.
func RecordJobRun(job, status string, d time.Duration) {
	DefaultMetrics.JobRunsTotal.WithLabelValues(job, status).Inc()
	DefaultMetrics.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordLearning records the output sizes of a learning run.
func RecordLearning(lessons, gating, posture int, at time.Time) {
	DefaultMetrics.LessonsMined.Set(float64(lessons))
	DefaultMetrics.OverridesWritten.WithLabelValues("gating").Set(float64(gating))
	DefaultMetrics.OverridesWritten.WithLabelValues("posture").Set(float64(posture))
	DefaultMetrics.LastSuccessfulLearning.Set(float64(at.Unix()))
}
