// Package workers implements the worker pool consuming the execution queue.
//
// The pool manages a fixed number of goroutines that:
//   - Take run and single-task jobs off a bounded queue
//   - Drive the DAG runner / executor for each job
//   - Report queue depth and worker status metrics
//
// The health monitor tracks worker status and logs metrics.
package workers
