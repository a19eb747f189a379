// Package events carries backend change notifications from the shared store to
// every connected terminal workspace.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Channel groups related events. Terminals subscribe per channel.
type Channel string

const (
	ChannelOrders       Channel = "orders"
	ChannelTables       Channel = "tables"
	ChannelReservations Channel = "reservations"
	ChannelReviews      Channel = "reviews"
)

// Channels lists every channel a workspace listens on.
var Channels = []Channel{ChannelOrders, ChannelTables, ChannelReservations, ChannelReviews}

// Name is the event name published by the backend. The spellings are part of
// the wire contract with existing terminals and must not be corrected.
type Name string

const (
	OrderReceived            Name = "recieved-order"
	OrderStatusChanged       Name = "changed-order-status"
	OrderPaymentReceived     Name = "recieved-order-payment"
	TableSent                Name = "sended-table"
	ReservationReceived      Name = "received-reservation"
	ReservationUpdated       Name = "updated-reservation"
	ReservationStatusChanged Name = "changed-reservation-status"
	ReviewReceived           Name = "recieved-review"

	// Resync is emitted locally after a transport reconnect; it carries no channel.
	Resync Name = "resync"
)

var nameChannels = map[Name]Channel{
	OrderReceived:            ChannelOrders,
	OrderStatusChanged:       ChannelOrders,
	OrderPaymentReceived:     ChannelOrders,
	TableSent:                ChannelTables,
	ReservationReceived:      ChannelReservations,
	ReservationUpdated:       ChannelReservations,
	ReservationStatusChanged: ChannelReservations,
	ReviewReceived:           ChannelReviews,
}

// Channel returns the channel the event is published on.
func (n Name) Channel() (Channel, bool) {
	c, ok := nameChannels[n]
	return c, ok
}

// Event is one notification. Payload is informational only: receivers refetch
// full state instead of applying it.
type Event struct {
	Channel Channel         `json:"channel"`
	Name    Name            `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// New builds an event for name, encoding payload when it is not nil.
func New(name Name, payload any) Event {
	ch, _ := name.Channel()
	evt := Event{Channel: ch, Name: name, At: time.Now().UTC()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			evt.Payload = raw
		}
	}
	return evt
}

// Publisher sends events to every subscriber of the event's channel.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscriber opens a stream of events for the given channels. The stream is
// closed when ctx is cancelled or the transport fails.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...Channel) (<-chan Event, error)
}

// Transport is a full duplex event backend.
type Transport interface {
	Publisher
	Subscriber
	Close() error
}

func decode(raw []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Event{}, err
	}
	if evt.Channel == "" {
		evt.Channel, _ = evt.Name.Channel()
	}
	return evt, nil
}

func send(ctx context.Context, out chan<- Event, evt Event) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
