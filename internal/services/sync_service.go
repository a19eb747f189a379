package services

import (
	"context"
	"sync"
	"time"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"
	"restaurant_pos/pkg/utils"

	"github.com/jonboulle/clockwork"
)

// DefaultSettleDelay gives the writer's own commit time to land before every
// terminal re-reads.
const DefaultSettleDelay = 50 * time.Millisecond

// Syncer connects a workspace's query cache to the event bus. Every relevant
// event schedules a full refetch of the affected keys after the settle delay;
// notifications arriving while a refetch is scheduled are folded into it.
type Syncer struct {
	bus    *events.Bus
	cache  *QueryCache
	clock  clockwork.Clock
	settle time.Duration

	mu      sync.Mutex
	session *models.Session
	ctx     context.Context
	cancel  context.CancelFunc
	subs    map[events.Channel]func()
	pending map[QueryKey]clockwork.Timer
	wg      sync.WaitGroup
}

// NewSyncer creates a disconnected syncer.
func NewSyncer(bus *events.Bus, cache *QueryCache, clock clockwork.Clock, settle time.Duration) *Syncer {
	if settle < 0 {
		settle = 0
	}
	return &Syncer{
		bus:     bus,
		cache:   cache,
		clock:   clock,
		settle:  settle,
		subs:    make(map[events.Channel]func()),
		pending: make(map[QueryKey]clockwork.Timer),
	}
}

// Connect subscribes every channel on behalf of session. Refetches run under ctx
// until Disconnect. Connecting twice is a no-op.
func (s *Syncer) Connect(ctx context.Context, session *models.Session) error {
	if !session.Authenticated() {
		return ErrNotAuthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return nil
	}
	s.session = session
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, channel := range events.Channels {
		stream, cancel := s.bus.Subscribe(channel)
		s.subs[channel] = cancel
		s.wg.Add(1)
		go s.consume(channel, stream)
	}
	utils.LogInfo("Sync channels connected", map[string]interface{}{"session": session.Key()})
	return nil
}

// Disconnect tears down every channel and drops scheduled refetches.
func (s *Syncer) Disconnect() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}
	for channel, cancel := range s.subs {
		cancel()
		delete(s.subs, channel)
	}
	for key, timer := range s.pending {
		timer.Stop()
		delete(s.pending, key)
	}
	s.cancel()
	s.ctx, s.cancel = nil, nil
	session := s.session
	s.session = nil
	s.mu.Unlock()

	s.wg.Wait()
	if session != nil {
		utils.LogInfo("Sync channels disconnected", map[string]interface{}{"session": session.Key()})
	}
}

// Connected reports whether the channels are subscribed.
func (s *Syncer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil
}

// Pending returns how many refetches are scheduled.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Syncer) consume(channel events.Channel, stream <-chan events.Event) {
	defer s.wg.Done()
	for evt := range stream {
		utils.LogDebug("Sync event received", map[string]interface{}{"channel": string(channel), "event": string(evt.Name)})
		s.Handle(evt)
	}
}

// Handle maps evt to the queries it invalidates and schedules their refetch.
func (s *Syncer) Handle(evt events.Event) {
	s.Schedule(s.affectedKeys(evt.Name)...)
}

func (s *Syncer) affectedKeys(name events.Name) []QueryKey {
	switch name {
	case events.OrderReceived, events.OrderStatusChanged, events.OrderPaymentReceived, events.ReviewReceived:
		return []QueryKey{KeyOrders}
	case events.TableSent:
		return append([]QueryKey{KeyTables}, s.cache.DraftKeys()...)
	case events.ReservationReceived, events.ReservationUpdated, events.ReservationStatusChanged:
		return []QueryKey{KeyReservations, KeyTables}
	case events.Resync:
		return s.cache.Keys()
	default:
		return nil
	}
}

// Schedule refetches keys after the settle delay. A key that already has a
// refetch scheduled is left alone.
func (s *Syncer) Schedule(keys ...QueryKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return
	}
	ctx := s.ctx
	for _, key := range keys {
		if _, scheduled := s.pending[key]; scheduled || !s.cache.Registered(key) {
			continue
		}
		key := key
		s.pending[key] = s.clock.AfterFunc(s.settle, func() {
			s.mu.Lock()
			delete(s.pending, key)
			s.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			if err := s.cache.Refetch(ctx, key); err != nil {
				utils.LogWarn(err, "Sync refetch failed", map[string]interface{}{"query": string(key)})
			}
		})
	}
}

// ResyncAll schedules a refetch of every registered query.
func (s *Syncer) ResyncAll() {
	s.Schedule(s.cache.Keys()...)
}
