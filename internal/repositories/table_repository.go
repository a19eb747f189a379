package repositories

import (
	"context"
	"database/sql"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"

	"github.com/lib/pq"
)

// TableRepository defines the backend operations on dining tables.
type TableRepository interface {
	List(ctx context.Context) ([]models.Table, error)
	GetByID(ctx context.Context, id int64) (*models.Table, error)
	UpdateStatus(ctx context.Context, id int64, status models.TableStatus) (*models.Table, error)
}

type tableRepository struct {
	db        *sql.DB
	publisher events.Publisher
}

// NewTableRepository creates a Postgres backed TableRepository.
func NewTableRepository(db *sql.DB, publisher events.Publisher) TableRepository {
	return &tableRepository{db: db, publisher: publisher}
}

const selectTableFields = `t.id, t.code, t.capacity, t.location, t.status, t.created_at, t.updated_at FROM dining_tables t`

func scanTable(row scanner) (*models.Table, error) {
	var t models.Table
	var location sql.NullString
	if err := row.Scan(&t.ID, &t.Code, &t.Capacity, &location, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if location.Valid {
		t.Location = &location.String
	}
	t.Reservations = []models.Reservation{}
	return &t, nil
}

func (r *tableRepository) List(ctx context.Context) ([]models.Table, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+selectTableFields+" ORDER BY t.code")
	if err != nil {
		return nil, wrapDBError("listing tables", err)
	}
	defer rows.Close()

	tables := []models.Table{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, wrapDBError("scanning table", err)
		}
		index[t.ID] = len(tables)
		ids = append(ids, t.ID)
		tables = append(tables, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterating tables", err)
	}

	reservations, err := r.upcomingReservations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, res := range reservations {
		if i, ok := index[res.TableID]; ok {
			tables[i].Reservations = append(tables[i].Reservations, res)
		}
	}
	return tables, nil
}

func (r *tableRepository) GetByID(ctx context.Context, id int64) (*models.Table, error) {
	t, err := scanTable(r.db.QueryRowContext(ctx, "SELECT "+selectTableFields+" WHERE t.id = $1", id))
	if err != nil {
		return nil, wrapDBError("getting table", err)
	}
	reservations, err := r.upcomingReservations(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	t.Reservations = append(t.Reservations, reservations...)
	return t, nil
}

// upcomingReservations loads reservations from the start of today onwards.
func (r *tableRepository) upcomingReservations(ctx context.Context, tableIDs []int64) ([]models.Reservation, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+selectReservationFields+" WHERE r.table_id = ANY($1) AND r.reservation_time >= date_trunc('day', NOW()) ORDER BY r.reservation_time",
		pq.Array(tableIDs))
	if err != nil {
		return nil, wrapDBError("listing table reservations", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, wrapDBError("scanning reservation", err)
		}
		out = append(out, *res)
	}
	return out, wrapRowsErr("iterating table reservations", rows.Err())
}

func (r *tableRepository) UpdateStatus(ctx context.Context, id int64, status models.TableStatus) (*models.Table, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE dining_tables SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return nil, wrapDBError("updating table status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	publish(ctx, r.publisher, events.TableSent, map[string]interface{}{"table_id": id, "status": status})
	return r.GetByID(ctx, id)
}

func wrapRowsErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return wrapDBError(op, err)
}
