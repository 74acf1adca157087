// Package metrics provides Prometheus instrumentation for goloop components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for goloop components.
type Registry struct {
	// Event Loop Metrics
	LoopSize    *prometheus.GaugeVec
	LoopActive  *prometheus.GaugeVec
	LoopQueued  *prometheus.GaugeVec

	TasksSubmitted *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksCancelled *prometheus.CounterVec

	TaskDuration  *prometheus.HistogramVec
	TaskQueueWait *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by goloop components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		LoopSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "workers",
				Help:      "Number of workers owned by the loop",
			},
			[]string{"loop_name"},
		),

		LoopActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "active_workers",
				Help:      "Number of workers currently executing tasks",
			},
			[]string{"loop_name"},
		),

		LoopQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "queued_tasks",
				Help:      "Number of tasks waiting for a worker",
			},
			[]string{"loop_name"},
		),

		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks submitted to the loop",
			},
			[]string{"loop_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"loop_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that returned an error or panicked",
			},
			[]string{"loop_name"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "tasks_rejected_total",
				Help:      "Total number of submissions rejected after shutdown",
			},
			[]string{"loop_name"},
		),

		TasksCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "tasks_cancelled_total",
				Help:      "Total number of tasks cancelled before completion",
			},
			[]string{"loop_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"loop_name"},
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "goloop",
				Subsystem: "eventloop",
				Name:      "task_queue_wait_seconds",
				Help:      "Time tasks spent waiting for a worker",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"loop_name"},
		),
	}
}
