package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is wrapped by repository implementations when a workspace
// or task does not exist.
var ErrNotFound = errors.New("not found")

// CycleError reports that the dependency graph (or its pending subset) is
// not acyclic. Remaining holds the IDs of every task that could not be
// ordered; at least one of them participates in a cycle.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in task dependencies: unresolved tasks [%s]",
		strings.Join(e.Remaining, ", "))
}

// InvalidTransitionError reports an illegal lifecycle transition. It
// indicates a caller or concurrency bug and is never retried.
type InvalidTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for task %s: %s -> %s", e.TaskID, e.From, e.To)
}

// DependencyNotSatisfiedError reports a single-task execution request
// while a dependency is not done. The task is left untouched.
type DependencyNotSatisfiedError struct {
	TaskID       string
	DependencyID string
	Status       TaskStatus
}

func (e *DependencyNotSatisfiedError) Error() string {
	return fmt.Sprintf("task %s dependency %s not satisfied: status %s",
		e.TaskID, e.DependencyID, e.Status)
}
