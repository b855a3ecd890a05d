package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) handle(ctx context.Context, event domain.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishDeliversToWorkspaceSubscribers(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	ws1 := &recorder{}
	ws2 := &recorder{}
	if err := bus.Subscribe(ctx, "ws1", ws1.handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := bus.Subscribe(ctx, "ws2", ws2.handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	event := domain.Event{ID: "e1", WorkspaceKey: "ws1", TaskID: "t1"}
	if err := bus.Publish(ctx, "ws1", event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if ws1.count() != 1 {
		t.Errorf("ws1 received %d events, want 1", ws1.count())
	}
	if ws2.count() != 0 {
		t.Errorf("ws2 received %d events, want 0", ws2.count())
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	if err := bus.Publish(context.Background(), "ws", domain.Event{ID: "e1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	rec := &recorder{}
	if err := bus.Subscribe(ctx, "ws", rec.handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	_ = bus.Publish(context.Background(), "ws", domain.Event{ID: "e1"})
	if rec.count() != 1 {
		t.Fatalf("received %d events before cancel, want 1", rec.count())
	}

	cancel()

	// A cancelled subscription no longer receives events.
	_ = bus.Publish(context.Background(), "ws", domain.Event{ID: "e2"})
	if rec.count() != 1 {
		t.Error("cancelled subscriber still receives events")
	}
}

func TestCloseDropsSubscriptions(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	if err := bus.Subscribe(context.Background(), "ws", rec.handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Publish(context.Background(), "ws", domain.Event{ID: "e1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("received %d events after Close, want 0", rec.count())
	}
}

func TestMultipleSubscribersSameWorkspace(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	a := &recorder{}
	b := &recorder{}
	_ = bus.Subscribe(ctx, "ws", a.handle)
	_ = bus.Subscribe(ctx, "ws", b.handle)

	_ = bus.Publish(ctx, "ws", domain.Event{ID: "e1"})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", a.count(), b.count())
	}
}
