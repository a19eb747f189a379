package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
)

// Error classes. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNetwork           = errors.New("backend request failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = models.ErrInvalidTransition
	ErrNotFound          = errors.New("not found")
	ErrOperationPending  = errors.New("operation already in progress")
	ErrNotAuthenticated  = errors.New("session is not authenticated")
)

var (
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrDraftEmpty         = fmt.Errorf("%w: draft has no items", ErrValidation)
	ErrNoActiveTab        = fmt.Errorf("%w: no active order tab", ErrValidation)
	ErrTabNotFound        = fmt.Errorf("%w: order tab", ErrNotFound)
	ErrDraftItemNotFound  = fmt.Errorf("%w: draft item", ErrNotFound)
	ErrTableNotFound      = fmt.Errorf("%w: table", ErrNotFound)
	ErrReservationMissing = fmt.Errorf("%w: reservation", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("%w: order", ErrNotFound)
	ErrVariantNotFound    = fmt.Errorf("%w: menu variant", ErrNotFound)
	ErrNotDineInTab       = fmt.Errorf("%w: table combination needs a dine-in tab", ErrValidation)
	ErrTableHeld          = fmt.Errorf("%w: table already belongs to another combination", ErrConflict)
	ErrTableOccupied      = fmt.Errorf("%w: table is occupied", ErrConflict)
	ErrTableReserved      = fmt.Errorf("%w: table is reserved soon", ErrConflict)
	ErrPrimaryTable       = fmt.Errorf("%w: the tab's own table cannot be combined", ErrValidation)
)

// backendError converts a repository error into the engine taxonomy. notFound
// is used when the record is missing.
func backendError(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		if notFound == nil {
			notFound = ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, notFound)
	case errors.Is(err, repositories.ErrDuplicateKey):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
	}
}

// PartialFailureError reports a best-effort bulk operation where some members failed.
// Nothing is rolled back.
type PartialFailureError struct {
	Op        string
	Succeeded []int64
	Failed    map[int64]error
}

func (e *PartialFailureError) Error() string {
	ids := make([]int64, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)", e.Op, len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(parts, "; "))
}

// Unwrap exposes every member failure to errors.Is.
func (e *PartialFailureError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}

func newPartialFailure(op string) *PartialFailureError {
	return &PartialFailureError{Op: op, Failed: make(map[int64]error)}
}

// orNil returns nil when nothing failed.
func (e *PartialFailureError) orNil() error {
	if e == nil || len(e.Failed) == 0 {
		return nil
	}
	return e
}
