package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_tasks_received_total",
			Help: "Total number of chapter story tasks received from the queue.",
		},
	)
	tasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_tasks_failed_total",
			Help: "Total number of chapter story tasks failed, partitioned by reason.",
		},
		[]string{"reason"},
	)
	tasksSucceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_tasks_succeeded_total",
			Help: "Total number of chapter story tasks processed successfully.",
		},
	)
	notificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_notifications_failed_total",
			Help: "Total number of story notifications that could not be published.",
		},
	)
	taskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chronicle_task_processing_duration_seconds",
			Help:    "Duration of chapter story task processing.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)
