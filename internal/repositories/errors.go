package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"restaurant_pos/internal/events"
	"restaurant_pos/pkg/utils"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It can be used to wrap more specific driver errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx so repository helpers can run
// inside or outside a transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// scanner is an interface satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// wrapDBError maps driver errors onto the repository sentinels.
func wrapDBError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: %s: %s", ErrDuplicateKey, op, pqErr.Detail)
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
}

// withTx runs fn inside a transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", ErrDatabaseError, err)
	}
	return nil
}

// publish emits a change notification after a committed mutation. Failures are
// only logged since the write has already committed.
func publish(ctx context.Context, pub events.Publisher, name events.Name, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, events.New(name, payload)); err != nil {
		utils.LogError(err, "Repository: failed to publish "+string(name))
	}
}
