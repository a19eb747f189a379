package models

import "time"

// Table represents a physical dining table.
type Table struct {
	ID           int64         `json:"id" db:"id"`
	Code         string        `json:"code" db:"code"`
	Capacity     int           `json:"capacity" db:"capacity"`
	Location     *string       `json:"location,omitempty" db:"location"`
	Status       TableStatus   `json:"status" db:"status"`
	Reservations []Reservation `json:"reservations"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// Reservation represents a booking of a table for a point in time.
type Reservation struct {
	ID              int64             `json:"id" db:"id"`
	TableID         int64             `json:"table_id" db:"table_id"`
	GuestName       string            `json:"guest_name" db:"guest_name"`
	GuestPhone      string            `json:"guest_phone" db:"guest_phone"`
	NumberOfGuest   int               `json:"number_of_guest" db:"number_of_guest"`
	ReservationTime time.Time         `json:"reservation_time" db:"reservation_time"`
	Status          ReservationStatus `json:"status" db:"status"`
	Note            *string           `json:"note,omitempty" db:"note"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// ReservationFilters defines the available filters for querying reservations.
type ReservationFilters struct {
	TableID  *int64     `form:"table_id"`
	Status   *string    `form:"status"`
	DateFrom *time.Time `form:"date_from"`
	DateTo   *time.Time `form:"date_to"`
}

// HasImminentReservation reports whether an active reservation falls within window of now,
// before or after.
func (t Table) HasImminentReservation(now time.Time, window time.Duration) bool {
	for _, r := range t.Reservations {
		if !r.Status.IsActive() {
			continue
		}
		diff := r.ReservationTime.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return true
		}
	}
	return false
}
