package models

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not one of the allowed edges.
var ErrInvalidTransition = errors.New("invalid status transition")

// DraftItemStatus is the kitchen preparation state of a single draft line.
type DraftItemStatus string

const (
	DraftItemStatusPending    DraftItemStatus = "pending"
	DraftItemStatusInProgress DraftItemStatus = "in_progress"
	DraftItemStatusReady      DraftItemStatus = "ready"
)

var draftItemTransitions = map[DraftItemStatus][]DraftItemStatus{
	DraftItemStatusPending:    {DraftItemStatusInProgress},
	DraftItemStatusInProgress: {DraftItemStatusReady},
}

// IsValidDraftItemStatus checks if the provided status string is a valid DraftItemStatus.
func IsValidDraftItemStatus(status string) bool {
	switch DraftItemStatus(status) {
	case DraftItemStatusPending, DraftItemStatusInProgress, DraftItemStatusReady:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a draft item may move from s to next.
func (s DraftItemStatus) CanTransitionTo(next DraftItemStatus) bool {
	return containsStatus(draftItemTransitions[s], next)
}

// OrderStatus is the lifecycle state of a finalized order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusPreparing          OrderStatus = "preparing"
	OrderStatusReady              OrderStatus = "ready"
	OrderStatusOutForDelivery     OrderStatus = "out_for_delivery"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusCancelledByKitchen OrderStatus = "cancelled_by_kitchen"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusCancelledByKitchen},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled, OrderStatusCancelledByKitchen},
	OrderStatusPreparing:      {OrderStatusReady, OrderStatusCancelled, OrderStatusCancelledByKitchen},
	OrderStatusReady:          {OrderStatusOutForDelivery, OrderStatusCompleted},
	OrderStatusOutForDelivery: {OrderStatusCompleted},
}

// IsValidOrderStatus checks if the provided status string is a valid OrderStatus.
func IsValidOrderStatus(status string) bool {
	switch OrderStatus(status) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusOutForDelivery, OrderStatusCompleted, OrderStatusCancelled, OrderStatusCancelledByKitchen:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether an order of the given type may move from s to next.
// OutForDelivery only exists for delivery orders.
func (s OrderStatus) CanTransitionTo(next OrderStatus, orderType OrderType) bool {
	if next == OrderStatusOutForDelivery && orderType != OrderTypeDelivery {
		return false
	}
	if s == OrderStatusReady && next == OrderStatusCompleted && orderType == OrderTypeDelivery {
		return false
	}
	return containsStatus(orderTransitions[s], next)
}

// IsKitchenStatus reports whether the status belongs to the kitchen queue view.
func (s OrderStatus) IsKitchenStatus() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusCancelledByKitchen:
		return true
	default:
		return false
	}
}

// KitchenStatuses is the subset of OrderStatus shown to the kitchen.
var KitchenStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCancelledByKitchen,
}

// TableStatus is the advisory occupancy state of a physical table.
type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
	TableStatusReserved  TableStatus = "reserved"
)

var tableTransitions = map[TableStatus][]TableStatus{
	TableStatusAvailable: {TableStatusOccupied},
	TableStatusOccupied:  {TableStatusAvailable, TableStatusReserved},
	TableStatusReserved:  {TableStatusOccupied},
}

// IsValidTableStatus checks if the provided status string is a valid TableStatus.
func IsValidTableStatus(status string) bool {
	switch TableStatus(status) {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a table may move from s to next.
func (s TableStatus) CanTransitionTo(next TableStatus) bool {
	return containsStatus(tableTransitions[s], next)
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusArrived   ReservationStatus = "arrived"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusArrived, ReservationStatusCancelled},
	ReservationStatusArrived:   {ReservationStatusCompleted, ReservationStatusCancelled},
}

// IsValidReservationStatus checks if the provided status string is a valid ReservationStatus.
func IsValidReservationStatus(status string) bool {
	switch ReservationStatus(status) {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusArrived,
		ReservationStatusCompleted, ReservationStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a reservation may move from s to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return containsStatus(reservationTransitions[s], next)
}

// IsActive reports whether the reservation still holds its table.
func (s ReservationStatus) IsActive() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// TransitionError builds an error wrapping ErrInvalidTransition.
func TransitionError(entity string, from, to fmt.Stringer) error {
	return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, entity, from, to)
}

func (s DraftItemStatus) String() string   { return string(s) }
func (s OrderStatus) String() string       { return string(s) }
func (s TableStatus) String() string       { return string(s) }
func (s ReservationStatus) String() string { return string(s) }

func containsStatus[T comparable](list []T, v T) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
