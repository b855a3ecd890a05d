// Package noop provides a metrics collector that discards everything.
// It stands in for the Prometheus collector in tests.
package noop

import "time"

// Collector implements ports.MetricsCollector and does nothing.
type Collector struct{}

// NewCollector creates a no-op metrics collector.
func NewCollector() *Collector { return &Collector{} }

func (*Collector) RecordRunStarted() {}

func (*Collector) RecordRunCompleted(status string, d time.Duration) {}

func (*Collector) RecordTaskExecuted(status string, d time.Duration) {}

func (*Collector) RecordTaskSkipped() {}

func (*Collector) RecordRetry() {}

func (*Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {}

func (*Collector) SetQueueDepth(depth int) {}
