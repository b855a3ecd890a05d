package memory

import (
	"context"
	"sync"

	"github.com/taskgrid/taskgrid/pkg/domain"
	"github.com/taskgrid/taskgrid/pkg/ports"
)

// Bus is an in-memory event bus delivering task status events to
// per-workspace subscribers. It backs tests and single-process use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	closed      bool
}

type subscription struct {
	handler ports.EventHandler
	ctx     context.Context
}

// NewBus creates a new in-memory event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]*subscription),
	}
}

// Publish delivers the event synchronously to every live subscriber of
// the workspace. Handler errors are ignored; delivery is fire-and-forget.
func (b *Bus) Publish(ctx context.Context, workspaceKey string, event domain.Event) error {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subscribers[workspaceKey]))
	copy(subs, b.subscribers[workspaceKey])
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		_ = sub.handler(ctx, event)
	}
	return nil
}

// Subscribe registers a handler for one workspace's events until the
// context is cancelled.
func (b *Bus) Subscribe(ctx context.Context, workspaceKey string, handler ports.EventHandler) error {
	sub := &subscription{handler: handler, ctx: ctx}

	b.mu.Lock()
	b.subscribers[workspaceKey] = append(b.subscribers[workspaceKey], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(workspaceKey, sub)
	}()

	return nil
}

// Close drops all subscriptions.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[string][]*subscription)
	b.closed = true
	return nil
}

func (b *Bus) remove(workspaceKey string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[workspaceKey]
	for i, s := range subs {
		if s == sub {
			b.subscribers[workspaceKey] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
