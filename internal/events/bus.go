package events

import (
	"context"
	"sync"
	"time"

	"restaurant_pos/pkg/utils"
)

const (
	busBuffer         = 16
	busResubscribeGap = 2 * time.Second
)

// Bus holds one transport subscription for the whole process and fans events
// out to per-workspace subscribers.
type Bus struct {
	source Subscriber

	mu   sync.RWMutex
	subs map[Channel]map[chan Event]struct{}
}

// NewBus creates a bus reading from source.
func NewBus(source Subscriber) *Bus {
	return &Bus{source: source, subs: make(map[Channel]map[chan Event]struct{})}
}

// Run consumes the transport until ctx is cancelled. When the transport stream
// ends it resubscribes and broadcasts Resync, since events may have been missed.
func (b *Bus) Run(ctx context.Context) error {
	for {
		stream, err := b.source.Subscribe(ctx, Channels...)
		if err != nil {
			utils.LogError(err, "Event bus: subscribe failed")
		} else {
			for evt := range stream {
				b.Dispatch(evt)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		utils.LogInfo("Event bus: transport stream ended, resubscribing", map[string]interface{}{"after": busResubscribeGap.String()})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(busResubscribeGap):
		}
		b.Dispatch(Event{Name: Resync, At: time.Now().UTC()})
	}
}

// Subscribe registers for channel. The returned cancel func must be called to
// release the subscription.
func (b *Bus) Subscribe(channel Channel) (<-chan Event, func()) {
	ch := make(chan Event, busBuffer)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan Event]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Dispatch delivers evt to the subscribers of its channel; Resync goes to all.
// A full subscriber buffer already holds an undelivered event that will trigger
// the same refetch, so the event is dropped for that subscriber.
func (b *Bus) Dispatch(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for channel, subs := range b.subs {
		if evt.Name != Resync && channel != evt.Channel {
			continue
		}
		for ch := range subs {
			select {
			case ch <- evt:
			default:
				utils.LogDebug("Event bus: subscriber buffer full, dropping", map[string]interface{}{"event": string(evt.Name)})
			}
		}
	}
}

// Publish dispatches evt locally, letting the bus stand in for a transport
// when writer and readers share the process.
func (b *Bus) Publish(_ context.Context, evt Event) error {
	b.Dispatch(evt)
	return nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *Bus) Subscribers(channel Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
