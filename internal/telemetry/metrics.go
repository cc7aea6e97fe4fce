package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики execution core. Регистрируются в default registry,
// экспорт — promhttp на /metrics.
var (
	// AdmissionDecisions — решения admission-контроля по исходам.
	// decision: start, enqueue, reject; reason пуст для start/enqueue.
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "admission_decisions_total",
		Help:      "Admission decisions per outcome.",
	}, []string{"decision", "reason"})

	// ExecutionsCompleted — завершённые runs по терминальным статусам.
	ExecutionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "executions_completed_total",
		Help:      "Finished executions per terminal status.",
	}, []string{"status"})

	// ExecutionDuration — длительность run'ов в секундах.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conveyor",
		Name:      "execution_duration_seconds",
		Help:      "Wall-clock duration of finished executions.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// StepsCompleted — завершённые шаги по статусам.
	StepsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "steps_completed_total",
		Help:      "Finished chain steps per terminal status.",
	}, []string{"status"})

	// ActiveRuns — выполняющиеся в данный момент runs.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conveyor",
		Name:      "active_runs",
		Help:      "Currently running executions.",
	})

	// ScheduledRuns — runs, созданные scheduler'ом.
	ScheduledRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "scheduled_runs_total",
		Help:      "Executions created by the scheduler.",
	})
)
