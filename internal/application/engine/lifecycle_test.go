package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

func newTask(status domain.TaskStatus) *domain.Task {
	return &domain.Task{
		ID:           "t1",
		WorkspaceKey: "ws",
		Title:        "test task",
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestStart(t *testing.T) {
	now := time.Now()
	task := newTask(domain.TaskStatusPending)

	if err := Start(task, now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if task.Status != domain.TaskStatusRunning {
		t.Errorf("Status = %s, want running", task.Status)
	}
	if task.StartedAt == nil || !task.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", task.StartedAt, now)
	}
	if task.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", task.CompletedAt)
	}
}

func TestCompleteStampsCompletedAt(t *testing.T) {
	started := time.Now()
	task := newTask(domain.TaskStatusPending)
	if err := Start(task, started); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	completed := started.Add(100 * time.Millisecond)
	if err := Complete(task, completed); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if task.Status != domain.TaskStatusDone {
		t.Errorf("Status = %s, want done", task.Status)
	}
	if task.CompletedAt == nil || task.CompletedAt.Before(*task.StartedAt) {
		t.Errorf("CompletedAt = %v, must not be before StartedAt %v", task.CompletedAt, task.StartedAt)
	}
	if got := task.Duration(); got != 100*time.Millisecond {
		t.Errorf("Duration() = %v, want 100ms", got)
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from domain.TaskStatus
		op   func(*domain.Task, time.Time) error
	}{
		{"start running", domain.TaskStatusRunning, Start},
		{"start done", domain.TaskStatusDone, Start},
		{"start failed", domain.TaskStatusFailed, Start},
		{"complete pending", domain.TaskStatusPending, Complete},
		{"complete done", domain.TaskStatusDone, Complete},
		{"complete failed", domain.TaskStatusFailed, Complete},
		{"fail pending", domain.TaskStatusPending, Fail},
		{"fail done", domain.TaskStatusDone, Fail},
		{"resubmit pending", domain.TaskStatusPending, Resubmit},
		{"resubmit running", domain.TaskStatusRunning, Resubmit},
		{"resubmit done", domain.TaskStatusDone, Resubmit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := newTask(tt.from)
			err := tt.op(task, time.Now())
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var transErr *domain.InvalidTransitionError
			if !errors.As(err, &transErr) {
				t.Fatalf("error = %T, want *domain.InvalidTransitionError", err)
			}
			if transErr.From != tt.from {
				t.Errorf("From = %s, want %s", transErr.From, tt.from)
			}
			if task.Status != tt.from {
				t.Errorf("Status mutated to %s on failed transition", task.Status)
			}
		})
	}
}

func TestResubmitClearsTimestamps(t *testing.T) {
	task := newTask(domain.TaskStatusPending)
	now := time.Now()
	if err := Start(task, now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := Fail(task, now.Add(time.Second)); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	if err := Resubmit(task, now.Add(2*time.Second)); err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if task.Status != domain.TaskStatusPending {
		t.Errorf("Status = %s, want pending", task.Status)
	}
	if task.StartedAt != nil || task.CompletedAt != nil {
		t.Errorf("timestamps not cleared: started=%v completed=%v", task.StartedAt, task.CompletedAt)
	}
}

func TestTerminalStatuses(t *testing.T) {
	if domain.TaskStatusPending.IsTerminal() || domain.TaskStatusRunning.IsTerminal() {
		t.Error("pending and running must not be terminal")
	}
	if !domain.TaskStatusDone.IsTerminal() || !domain.TaskStatusFailed.IsTerminal() {
		t.Error("done and failed must be terminal")
	}
}
