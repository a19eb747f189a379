package services

import (
	"context"
	"fmt"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"

	"github.com/jonboulle/clockwork"
)

// UpdateTableStatusRequest is used for updating the status of a table.
type UpdateTableStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// TableService reads tables, changes their status and computes bookable slots.
type TableService interface {
	GetTables(ctx context.Context) ([]models.Table, error)
	GetTableByID(ctx context.Context, tableID int64) (*models.Table, error)
	UpdateTableStatus(ctx context.Context, tableID int64, req UpdateTableStatusRequest) (*models.Table, error)
	GetAvailableSlots(ctx context.Context, tableID int64, date string) ([]TimeSlot, error)
}

type tableService struct {
	tableRepo repositories.TableRepository
	rules     SlotRules
	clock     clockwork.Clock
}

// NewTableService creates a new instance of TableService.
func NewTableService(tr repositories.TableRepository, rules SlotRules, clock clockwork.Clock) TableService {
	return &tableService{tableRepo: tr, rules: rules, clock: clock}
}

func (s *tableService) GetTables(ctx context.Context) ([]models.Table, error) {
	tables, err := s.tableRepo.List(ctx)
	if err != nil {
		return nil, backendError("list tables", err, nil)
	}
	return tables, nil
}

func (s *tableService) GetTableByID(ctx context.Context, tableID int64) (*models.Table, error) {
	table, err := s.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return nil, backendError("get table", err, ErrTableNotFound)
	}
	return table, nil
}

func (s *tableService) UpdateTableStatus(ctx context.Context, tableID int64, req UpdateTableStatusRequest) (*models.Table, error) {
	if !models.IsValidTableStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown table status %q", ErrValidation, req.Status)
	}
	next := models.TableStatus(req.Status)
	table, err := s.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return nil, backendError("get table", err, ErrTableNotFound)
	}
	if table.Status == next {
		return table, nil
	}
	if !table.Status.CanTransitionTo(next) {
		return nil, models.TransitionError("table", table.Status, next)
	}
	updated, err := s.tableRepo.UpdateStatus(ctx, tableID, next)
	if err != nil {
		return nil, backendError("update table status", err, ErrTableNotFound)
	}
	return updated, nil
}

func (s *tableService) GetAvailableSlots(ctx context.Context, tableID int64, date string) ([]TimeSlot, error) {
	table, err := s.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return nil, backendError("get table", err, ErrTableNotFound)
	}
	return AvailableSlots(*table, date, s.clock.Now(), s.rules)
}
