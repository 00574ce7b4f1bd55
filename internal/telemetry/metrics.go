package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Prometheus, общие для всех демонов Fabrika.
// Каждый cmd экспортирует их на собственном /metrics endpoint.
var (
	// SchedulerTicks — количество тиков scheduler.
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_scheduler_ticks_total",
		Help: "Total scheduler tick iterations",
	})

	// SchedulesClaimed — schedules, захваченные scheduler как due.
	SchedulesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_schedules_claimed_total",
		Help: "Total due schedules claimed by the scheduler",
	})

	// SchedulesPlanned — schedules, созданные cadence-планировщиком.
	SchedulesPlanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_schedules_planned_total",
		Help: "Total schedules auto-created by the cadence planner",
	})

	// StageTransitions — переходы стадий pipeline по имени и статусу.
	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_stage_transitions_total",
		Help: "Total pipeline stage transitions by stage and resulting status",
	}, []string{"stage", "status"})

	// StageDuration — длительность стадий pipeline в секундах.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabrika_stage_duration_seconds",
		Help:    "Pipeline stage execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"stage"})

	// TasksClaimed — задачи, захваченные worker, по kind.
	TasksClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_tasks_claimed_total",
		Help: "Total queue tasks claimed by workers, by kind",
	}, []string{"kind"})

	// TasksFinished — завершённые задачи по kind и статусу.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_tasks_finished_total",
		Help: "Total queue tasks finished, by kind and status",
	}, []string{"kind", "status"})

	// RefundsApplied — выполненные возвраты кредитов.
	RefundsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_refunds_applied_total",
		Help: "Total credit refunds applied for failed schedules",
	})
)
