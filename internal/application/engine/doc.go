// Package engine implements the DAG execution core:
//
//   - Sort orders a workspace's tasks with Kahn's algorithm and reports
//     cycles before any execution side effect.
//   - The lifecycle functions guard task state transitions and their
//     timestamp invariants.
//   - Executor drives a single task from pending to a terminal state with
//     retry-on-failure and exponential backoff, persisting one execution
//     record per attempt and publishing status events.
//   - Runner orchestrates a whole-workspace run in dependency order,
//     skipping descendants of failed tasks.
package engine
