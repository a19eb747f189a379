package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"
)

// ReservationRepository defines the backend operations on reservations.
type ReservationRepository interface {
	List(ctx context.Context, filters models.ReservationFilters) ([]models.Reservation, error)
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status models.ReservationStatus) (*models.Reservation, error)
}

type reservationRepository struct {
	db        *sql.DB
	publisher events.Publisher
}

// NewReservationRepository creates a Postgres backed ReservationRepository.
func NewReservationRepository(db *sql.DB, publisher events.Publisher) ReservationRepository {
	return &reservationRepository{db: db, publisher: publisher}
}

const reservationColumns = `
	r.id, r.table_id, r.guest_name, r.guest_phone, r.number_of_guest, r.reservation_time,
	r.status, r.note, r.created_at, r.updated_at`

const selectReservationFields = reservationColumns + " FROM reservations r"

func scanReservation(row scanner) (*models.Reservation, error) {
	var res models.Reservation
	var note sql.NullString
	err := row.Scan(
		&res.ID, &res.TableID, &res.GuestName, &res.GuestPhone, &res.NumberOfGuest, &res.ReservationTime,
		&res.Status, &note, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if note.Valid {
		res.Note = &note.String
	}
	return &res, nil
}

func (r *reservationRepository) List(ctx context.Context, filters models.ReservationFilters) ([]models.Reservation, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT " + selectReservationFields)

	var conditions []string
	var args []interface{}
	argCount := 1
	if filters.TableID != nil {
		conditions = append(conditions, fmt.Sprintf("r.table_id = $%d", argCount))
		args = append(args, *filters.TableID)
		argCount++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("r.reservation_time >= $%d", argCount))
		args = append(args, *filters.DateFrom)
		argCount++
	}
	if filters.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("r.reservation_time <= $%d", argCount))
		args = append(args, *filters.DateTo)
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY r.reservation_time")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, wrapDBError("listing reservations", err)
	}
	defer rows.Close()

	reservations := []models.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, wrapDBError("scanning reservation", err)
		}
		reservations = append(reservations, *res)
	}
	return reservations, wrapRowsErr("iterating reservations", rows.Err())
}

func (r *reservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, "SELECT "+selectReservationFields+" WHERE r.id = $1", id))
	if err != nil {
		return nil, wrapDBError("getting reservation", err)
	}
	return res, nil
}

func (r *reservationRepository) Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error) {
	if reservation.Status == "" {
		reservation.Status = models.ReservationStatusPending
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO reservations (table_id, guest_name, guest_phone, number_of_guest, reservation_time, status, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		reservation.TableID, reservation.GuestName, reservation.GuestPhone, reservation.NumberOfGuest,
		reservation.ReservationTime, reservation.Status, reservation.Note,
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("creating reservation", err)
	}
	publish(ctx, r.publisher, events.ReservationReceived, reservation)
	return reservation, nil
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id int64, status models.ReservationStatus) (*models.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`UPDATE reservations r SET status = $1, updated_at = NOW() WHERE r.id = $2 RETURNING `+reservationColumns,
		status, id))
	if err != nil {
		return nil, wrapDBError("updating reservation status", err)
	}
	publish(ctx, r.publisher, events.ReservationStatusChanged, map[string]interface{}{"reservation_id": id, "status": status})
	return res, nil
}
