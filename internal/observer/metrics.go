package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for engine operation metrics
	engineOperationLabels = []string{"operation", "business_id", "outcome"}
	// Labels for DB access metrics
	dbOperationLabels = []string{"operation", "entity", "business_id", "status"}
	// Labels for intake events
	intakeLabels = []string{"event_type", "business_id", "outcome"}

	// EngineOperationsTotal counts lifecycle operations by outcome.
	EngineOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_engine_operations_total",
			Help: "Total number of lifecycle engine operations, labeled by outcome.",
		},
		engineOperationLabels,
	)

	// IntakeEventsTotal counts consumed intake events by outcome.
	IntakeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_engine_intake_events_total",
			Help: "Total number of intake events consumed, labeled by outcome.",
		},
		intakeLabels,
	)

	// SlaBreachesTotal counts conversations whose SLA clock expired.
	SlaBreachesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_engine_sla_breaches_total",
			Help: "Total number of conversations marked as SLA breached.",
		},
		[]string{"business_id"},
	)

	// TasksMarkedOverdueTotal counts tasks promoted to OVERDUE by the sweep.
	TasksMarkedOverdueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_engine_tasks_marked_overdue_total",
			Help: "Total number of tasks promoted to OVERDUE by the periodic sweep.",
		},
		[]string{"business_id"},
	)

	// DbOperationDurationSeconds is a histogram of repository call durations.
	DbOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_engine_db_operation_duration_seconds",
			Help:    "Histogram of repository operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		dbOperationLabels,
	)

	// SweepDurationSeconds is a histogram of full sweep cycle durations.
	SweepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_engine_sweep_duration_seconds",
			Help:    "Histogram of SLA/overdue sweep cycle durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"sweep"},
	)
)

// InitMetrics toggles metric collection. When disabled, the observe helpers
// become no-ops; the collectors stay registered so /metrics keeps serving.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// ObserveDbOperationDuration records the duration and status of a repository
// operation.
func ObserveDbOperationDuration(operation, entity, businessID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DbOperationDurationSeconds.WithLabelValues(operation, entity, businessID, status).Observe(duration.Seconds())
}

// IncEngineOperation records one lifecycle operation outcome.
func IncEngineOperation(operation, businessID string, err error) {
	if !metricsEnabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	EngineOperationsTotal.WithLabelValues(operation, businessID, outcome).Inc()
}

// IncIntakeEvent records one consumed intake event outcome.
func IncIntakeEvent(eventType, businessID, outcome string) {
	if !metricsEnabled {
		return
	}
	IntakeEventsTotal.WithLabelValues(eventType, businessID, outcome).Inc()
}

// IncSlaBreach records one SLA breach stamp.
func IncSlaBreach(businessID string) {
	if !metricsEnabled {
		return
	}
	SlaBreachesTotal.WithLabelValues(businessID).Inc()
}

// IncTasksMarkedOverdue records tasks promoted by a sweep.
func IncTasksMarkedOverdue(businessID string, count int) {
	if !metricsEnabled || count <= 0 {
		return
	}
	TasksMarkedOverdueTotal.WithLabelValues(businessID).Add(float64(count))
}

// ObserveSweepDuration records the duration of one sweep cycle.
func ObserveSweepDuration(sweep string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	SweepDurationSeconds.WithLabelValues(sweep).Observe(duration.Seconds())
}
