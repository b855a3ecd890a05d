// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Workspace and task management
//   - DAG and single-task execution
//   - Execution records and per-workspace metrics
//   - Health checks
//   - Prometheus metrics
package http
