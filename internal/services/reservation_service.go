package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"

	"github.com/jonboulle/clockwork"
)

var (
	ErrReservationOutsideHours = fmt.Errorf("%w: reservation time is outside operating hours", ErrValidation)
	ErrReservationOverCapacity = fmt.Errorf("%w: number of guests exceeds table capacity", ErrValidation)
	ErrReservationInPast       = fmt.Errorf("%w: reservation time is in the past", ErrValidation)
)

// CreateReservationRequest is used for booking a table.
type CreateReservationRequest struct {
	TableID         int64   `json:"table_id" binding:"required" validate:"gt=0"`
	GuestName       string  `json:"guest_name" binding:"required" validate:"required,max=150"`
	GuestPhone      string  `json:"guest_phone" binding:"required" validate:"required,e164|numeric,min=6,max=20"`
	NumberOfGuest   int     `json:"number_of_guest" binding:"required" validate:"gt=0"`
	ReservationTime string  `json:"reservation_time" binding:"required" validate:"required"`
	Note            *string `json:"note" validate:"omitempty,max=500"`
}

// UpdateReservationStatusRequest is used for updating the status of a reservation.
type UpdateReservationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReservationService books tables and moves reservations through their lifecycle.
type ReservationService interface {
	CreateReservation(ctx context.Context, req CreateReservationRequest) (*models.Reservation, error)
	GetReservations(ctx context.Context, filters models.ReservationFilters) ([]models.Reservation, error)
	GetReservationByID(ctx context.Context, reservationID int64) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID int64, req UpdateReservationStatusRequest) (*models.Reservation, error)
}

type reservationService struct {
	reservationRepo repositories.ReservationRepository
	tableRepo       repositories.TableRepository
	rules           SlotRules
	clock           clockwork.Clock
}

// NewReservationService creates a new instance of ReservationService.
func NewReservationService(rr repositories.ReservationRepository, tr repositories.TableRepository, rules SlotRules, clock clockwork.Clock) ReservationService {
	return &reservationService{reservationRepo: rr, tableRepo: tr, rules: rules, clock: clock}
}

// parseReservationTime accepts RFC3339 or a restaurant-local "YYYY-MM-DD HH:MM".
func (s *reservationService) parseReservationTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	loc := s.rules.Location
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reservation_time must be RFC3339 or YYYY-MM-DD HH:MM", ErrValidation)
	}
	return t, nil
}

func (s *reservationService) withinHours(t time.Time) bool {
	if s.rules.Location != nil {
		t = t.In(s.rules.Location)
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= s.rules.OpeningHour*60 && minute < s.rules.ClosingHour*60
}

func (s *reservationService) CreateReservation(ctx context.Context, req CreateReservationRequest) (*models.Reservation, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	at, err := s.parseReservationTime(req.ReservationTime)
	if err != nil {
		return nil, err
	}
	if at.Before(s.clock.Now()) {
		return nil, ErrReservationInPast
	}
	if !s.withinHours(at) {
		return nil, ErrReservationOutsideHours
	}

	table, err := s.tableRepo.GetByID(ctx, req.TableID)
	if err != nil {
		return nil, backendError("get table", err, ErrTableNotFound)
	}
	if req.NumberOfGuest > table.Capacity {
		return nil, fmt.Errorf("%w: table %s seats %d", ErrReservationOverCapacity, table.Code, table.Capacity)
	}

	res, err := s.reservationRepo.Create(ctx, &models.Reservation{
		TableID:         req.TableID,
		GuestName:       strings.TrimSpace(req.GuestName),
		GuestPhone:      strings.TrimSpace(req.GuestPhone),
		NumberOfGuest:   req.NumberOfGuest,
		ReservationTime: at,
		Status:          models.ReservationStatusPending,
		Note:            trimmed(req.Note),
	})
	if err != nil {
		return nil, backendError("create reservation", err, nil)
	}
	utils.LogInfo("Reservation created", map[string]interface{}{"reservation_id": res.ID, "table_id": res.TableID})
	return res, nil
}

func (s *reservationService) GetReservations(ctx context.Context, filters models.ReservationFilters) ([]models.Reservation, error) {
	if filters.Status != nil && !models.IsValidReservationStatus(*filters.Status) {
		return nil, fmt.Errorf("%w: unknown reservation status %q", ErrValidation, *filters.Status)
	}
	list, err := s.reservationRepo.List(ctx, filters)
	if err != nil {
		return nil, backendError("list reservations", err, nil)
	}
	return list, nil
}

func (s *reservationService) GetReservationByID(ctx context.Context, reservationID int64) (*models.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, backendError("get reservation", err, ErrReservationMissing)
	}
	return res, nil
}

// UpdateReservationStatus applies a legal transition. Marking a guest arrived
// seats them: the table becomes occupied.
func (s *reservationService) UpdateReservationStatus(ctx context.Context, reservationID int64, req UpdateReservationStatusRequest) (*models.Reservation, error) {
	if !models.IsValidReservationStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown reservation status %q", ErrValidation, req.Status)
	}
	next := models.ReservationStatus(req.Status)

	res, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, backendError("get reservation", err, ErrReservationMissing)
	}
	if !res.Status.CanTransitionTo(next) {
		return nil, models.TransitionError("reservation", res.Status, next)
	}

	updated, err := s.reservationRepo.UpdateStatus(ctx, reservationID, next)
	if err != nil {
		return nil, backendError("update reservation status", err, ErrReservationMissing)
	}

	if next == models.ReservationStatusArrived {
		table, err := s.tableRepo.GetByID(ctx, updated.TableID)
		if err != nil {
			return updated, backendError("seat reservation", err, ErrTableNotFound)
		}
		if table.Status.CanTransitionTo(models.TableStatusOccupied) {
			if _, err := s.tableRepo.UpdateStatus(ctx, table.ID, models.TableStatusOccupied); err != nil {
				return updated, backendError("seat reservation", err, ErrTableNotFound)
			}
		}
	}
	return updated, nil
}
