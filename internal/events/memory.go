package events

import (
	"context"
	"sync"
)

// MemoryTransport delivers events in process. It backs the in-memory
// repository mode and tests.
type MemoryTransport struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
}

type memorySub struct {
	ctx      context.Context
	channels map[Channel]bool
	out      chan Event
}

// NewMemoryTransport creates an empty in-process transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: make(map[*memorySub]struct{})}
}

// Publish delivers evt to every live subscriber of its channel.
func (t *MemoryTransport) Publish(ctx context.Context, evt Event) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for sub := range t.subs {
		if evt.Name != Resync && !sub.channels[evt.Channel] {
			continue
		}
		select {
		case sub.out <- evt:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is cancelled.
func (t *MemoryTransport) Subscribe(ctx context.Context, channels ...Channel) (<-chan Event, error) {
	sub := &memorySub{ctx: ctx, channels: make(map[Channel]bool), out: make(chan Event, 64)}
	for _, c := range channels {
		sub.channels[c] = true
	}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, sub)
		t.mu.Unlock()
		close(sub.out)
	}()
	return sub.out, nil
}

// Close is a no-op.
func (t *MemoryTransport) Close() error { return nil }
