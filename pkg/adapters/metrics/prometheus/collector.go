// Package prometheus implements the metrics collector on the Prometheus
// client library. Metrics are exposed through the HTTP server's /metrics
// endpoint.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsStarted       prometheus.Counter
	runsCompleted     *prometheus.CounterVec
	runDuration       prometheus.Histogram
	tasksExecuted     *prometheus.CounterVec
	tasksSkipped      prometheus.Counter
	retries           prometheus.Counter
	taskDuration      prometheus.Histogram
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	queueDepth        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		runsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taskgrid_runs_started_total",
				Help: "Total number of workspace DAG runs started",
			},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_runs_completed_total",
				Help: "Total number of workspace DAG runs completed",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskgrid_run_duration_seconds",
				Help:    "Workspace DAG run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		tasksExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_tasks_executed_total",
				Help: "Total number of tasks driven to a terminal state",
			},
			[]string{"status"},
		),
		tasksSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taskgrid_tasks_skipped_total",
				Help: "Total number of tasks skipped due to unmet dependencies",
			},
		),
		retries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taskgrid_task_retries_total",
				Help: "Total number of task attempt retries",
			},
		),
		taskDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskgrid_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_queue_depth",
				Help: "Current depth of the execution queue",
			},
		),
	}
}

// RecordRunStarted counts a workspace DAG run start.
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

// RecordRunCompleted counts a workspace DAG run completion.
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordTaskExecuted counts a task reaching a terminal state.
func (c *Collector) RecordTaskExecuted(status string, duration time.Duration) {
	c.tasksExecuted.WithLabelValues(status).Inc()
	c.taskDuration.Observe(duration.Seconds())
}

// RecordTaskSkipped counts a task skipped due to an unmet dependency.
func (c *Collector) RecordTaskSkipped() {
	c.tasksSkipped.Inc()
}

// RecordRetry counts a task attempt retry.
func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

// RecordWorkerPoolStatus records worker pool status gauges.
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth records the current execution queue depth.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
