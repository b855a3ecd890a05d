package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

func task(id string, deps ...string) *domain.Task {
	return &domain.Task{
		ID:           id,
		WorkspaceKey: "ws",
		Title:        id,
		Status:       domain.TaskStatusPending,
		Dependencies: deps,
	}
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestSortLinearChain(t *testing.T) {
	tasks := []*domain.Task{
		task("c", "b"),
		task("a"),
		task("b", "a"),
	}

	order, err := Sort(tasks)
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Sort() = %v, want %v", order, want)
	}
}

func TestSortDiamond(t *testing.T) {
	tasks := []*domain.Task{
		task("d", "b", "c"),
		task("b", "a"),
		task("c", "a"),
		task("a"),
	}

	order, err := Sort(tasks)
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("Sort() returned %d ids, want 4", len(order))
	}

	for _, tc := range []struct{ before, after string }{
		{"a", "b"},
		{"a", "c"},
		{"b", "d"},
		{"c", "d"},
	} {
		if indexOf(order, tc.before) > indexOf(order, tc.after) {
			t.Errorf("Sort() = %v: %s must come before %s", order, tc.before, tc.after)
		}
	}
}

func TestSortDeterministicTieBreak(t *testing.T) {
	// Independent tasks with no edges must come out in id order,
	// regardless of input order.
	inputs := [][]*domain.Task{
		{task("b"), task("a"), task("c")},
		{task("c"), task("b"), task("a")},
		{task("a"), task("c"), task("b")},
	}

	want := []string{"a", "b", "c"}
	for _, tasks := range inputs {
		order, err := Sort(tasks)
		if err != nil {
			t.Fatalf("Sort() error = %v", err)
		}
		if !reflect.DeepEqual(order, want) {
			t.Errorf("Sort() = %v, want %v", order, want)
		}
	}
}

func TestSortEmptyInput(t *testing.T) {
	order, err := Sort(nil)
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if len(order) != 0 {
		t.Errorf("Sort() = %v, want empty", order)
	}
}

func TestSortIgnoresExternalDependencies(t *testing.T) {
	// Dependencies on tasks outside the input set contribute no in-degree.
	tasks := []*domain.Task{
		task("b", "a", "outside"),
		task("a"),
	}

	order, err := Sort(tasks)
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Sort() = %v, want %v", order, want)
	}
}

func TestSortCycle(t *testing.T) {
	tests := []struct {
		name      string
		tasks     []*domain.Task
		remaining []string
	}{
		{
			name: "direct cycle",
			tasks: []*domain.Task{
				task("a", "b"),
				task("b", "a"),
			},
			remaining: []string{"a", "b"},
		},
		{
			name: "indirect cycle",
			tasks: []*domain.Task{
				task("a", "c"),
				task("b", "a"),
				task("c", "b"),
			},
			remaining: []string{"a", "b", "c"},
		},
		{
			name: "self loop",
			tasks: []*domain.Task{
				task("a", "a"),
			},
			remaining: []string{"a"},
		},
		{
			name: "cycle with acyclic prefix",
			tasks: []*domain.Task{
				task("a"),
				task("b", "a", "c"),
				task("c", "b"),
			},
			remaining: []string{"b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sort(tt.tasks)
			if err == nil {
				t.Fatal("Sort() expected cycle error, got nil")
			}

			var cycleErr *domain.CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("Sort() error = %T, want *domain.CycleError", err)
			}
			if !reflect.DeepEqual(cycleErr.Remaining, tt.remaining) {
				t.Errorf("Remaining = %v, want %v", cycleErr.Remaining, tt.remaining)
			}
		})
	}
}
