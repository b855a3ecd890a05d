package engine

import (
	"time"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

// Start transitions a task from pending to running and stamps started_at.
func Start(task *domain.Task, now time.Time) error {
	if task.Status != domain.TaskStatusPending {
		return &domain.InvalidTransitionError{
			TaskID: task.ID,
			From:   task.Status,
			To:     domain.TaskStatusRunning,
		}
	}
	task.Status = domain.TaskStatusRunning
	task.StartedAt = &now
	task.UpdatedAt = now
	return nil
}

// Complete transitions a task from running to done and stamps completed_at.
func Complete(task *domain.Task, now time.Time) error {
	return finish(task, domain.TaskStatusDone, now)
}

// Fail transitions a task from running to failed and stamps completed_at.
// It is only legal once no retries remain; a failed attempt with retries
// left keeps the task running.
func Fail(task *domain.Task, now time.Time) error {
	return finish(task, domain.TaskStatusFailed, now)
}

func finish(task *domain.Task, terminal domain.TaskStatus, now time.Time) error {
	if task.Status != domain.TaskStatusRunning {
		return &domain.InvalidTransitionError{
			TaskID: task.ID,
			From:   task.Status,
			To:     terminal,
		}
	}
	task.Status = terminal
	task.CompletedAt = &now
	task.UpdatedAt = now
	return nil
}

// Resubmit resets a failed task to pending for another execution pass.
// Timestamps of the previous pass are cleared; execution records are
// history and stay intact.
func Resubmit(task *domain.Task, now time.Time) error {
	if task.Status != domain.TaskStatusFailed {
		return &domain.InvalidTransitionError{
			TaskID: task.ID,
			From:   task.Status,
			To:     domain.TaskStatusPending,
		}
	}
	task.Status = domain.TaskStatusPending
	task.StartedAt = nil
	task.CompletedAt = nil
	task.UpdatedAt = now
	return nil
}
