package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"

	"github.com/lib/pq"
)

// DraftItemRepository defines the backend operations on draft order lines.
type DraftItemRepository interface {
	List(ctx context.Context, filter models.DraftItemFilter) ([]models.DraftItem, error)
	GetByID(ctx context.Context, id int64) (*models.DraftItem, error)
	Create(ctx context.Context, item *models.DraftItem) (*models.DraftItem, error)
	Update(ctx context.Context, item *models.DraftItem) (*models.DraftItem, error)
	Delete(ctx context.Context, id int64) error
	DeleteByCode(ctx context.Context, draftCode string) (int, error)
}

type draftItemRepository struct {
	db               *sql.DB
	publisher        events.Publisher
	reservationGuard time.Duration
}

// NewDraftItemRepository creates a Postgres backed DraftItemRepository.
// reservationGuard decides whether a freed table goes back to available or to reserved.
func NewDraftItemRepository(db *sql.DB, publisher events.Publisher, reservationGuard time.Duration) DraftItemRepository {
	return &draftItemRepository{db: db, publisher: publisher, reservationGuard: reservationGuard}
}

const selectDraftItemFields = `
	d.id, d.draft_code, d.variant_id, d.quantity, d.status, d.table_ids,
	COALESCE(p.name || CASE WHEN v.name <> '' THEN ' (' || v.name || ')' ELSE '' END, ''),
	COALESCE(v.price, 0), d.created_at, d.updated_at
	FROM draft_items d
	LEFT JOIN variants v ON v.id = d.variant_id
	LEFT JOIN products p ON p.id = v.product_id
`

func scanDraftItem(row scanner) (*models.DraftItem, error) {
	var item models.DraftItem
	var tableIDs pq.Int64Array
	err := row.Scan(
		&item.ID, &item.DraftCode, &item.VariantID, &item.Quantity, &item.Status, &tableIDs,
		&item.VariantName, &item.Price, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.TableIDs = []int64(tableIDs)
	if item.TableIDs == nil {
		item.TableIDs = []int64{}
	}
	return &item, nil
}

func (r *draftItemRepository) List(ctx context.Context, filter models.DraftItemFilter) ([]models.DraftItem, error) {
	var conditions []string
	var args []interface{}
	if filter.TableID != nil {
		args = append(args, *filter.TableID)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(d.table_ids)", len(args)))
	}
	if filter.DraftCode != nil {
		args = append(args, *filter.DraftCode)
		conditions = append(conditions, fmt.Sprintf("d.draft_code = $%d", len(args)))
	}

	query := "SELECT " + selectDraftItemFields
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY d.created_at, d.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listing draft items", err)
	}
	defer rows.Close()

	items := []models.DraftItem{}
	for rows.Next() {
		item, err := scanDraftItem(rows)
		if err != nil {
			return nil, wrapDBError("scanning draft item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterating draft items", err)
	}
	return items, nil
}

func (r *draftItemRepository) GetByID(ctx context.Context, id int64) (*models.DraftItem, error) {
	item, err := scanDraftItem(r.db.QueryRowContext(ctx, "SELECT "+selectDraftItemFields+" WHERE d.id = $1", id))
	if err != nil {
		return nil, wrapDBError("getting draft item", err)
	}
	return item, nil
}

func (r *draftItemRepository) Create(ctx context.Context, item *models.DraftItem) (*models.DraftItem, error) {
	if item.Status == "" {
		item.Status = models.DraftItemStatusPending
	}
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO draft_items (draft_code, variant_id, quantity, status, table_ids, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
			item.DraftCode, item.VariantID, item.Quantity, item.Status, pq.Array(nonNilIDs(item.TableIDs)),
		).Scan(&id)
		if err != nil {
			return wrapDBError("creating draft item", err)
		}
		return syncTableOccupancy(ctx, tx, item.TableIDs, r.reservationGuard)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, r.publisher, events.TableSent, map[string]interface{}{"draft_code": item.DraftCode})
	return r.GetByID(ctx, id)
}

func (r *draftItemRepository) Update(ctx context.Context, item *models.DraftItem) (*models.DraftItem, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var previous pq.Int64Array
		err := tx.QueryRowContext(ctx, "SELECT table_ids FROM draft_items WHERE id = $1 FOR UPDATE", item.ID).Scan(&previous)
		if err != nil {
			return wrapDBError("locking draft item", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE draft_items SET quantity = $1, status = $2, table_ids = $3, updated_at = NOW() WHERE id = $4`,
			item.Quantity, item.Status, pq.Array(nonNilIDs(item.TableIDs)), item.ID,
		)
		if err != nil {
			return wrapDBError("updating draft item", err)
		}
		return syncTableOccupancy(ctx, tx, unionIDs(previous, item.TableIDs), r.reservationGuard)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, r.publisher, events.TableSent, map[string]interface{}{"draft_code": item.DraftCode})
	return r.GetByID(ctx, item.ID)
}

func (r *draftItemRepository) Delete(ctx context.Context, id int64) error {
	var code string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var tableIDs pq.Int64Array
		err := tx.QueryRowContext(ctx, "DELETE FROM draft_items WHERE id = $1 RETURNING draft_code, table_ids", id).Scan(&code, &tableIDs)
		if err != nil {
			return wrapDBError("deleting draft item", err)
		}
		return syncTableOccupancy(ctx, tx, tableIDs, r.reservationGuard)
	})
	if err != nil {
		return err
	}
	publish(ctx, r.publisher, events.TableSent, map[string]interface{}{"draft_code": code})
	return nil
}

func (r *draftItemRepository) DeleteByCode(ctx context.Context, draftCode string) (int, error) {
	deleted := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "DELETE FROM draft_items WHERE draft_code = $1 RETURNING table_ids", draftCode)
		if err != nil {
			return wrapDBError("deleting draft", err)
		}
		var affected []int64
		for rows.Next() {
			var ids pq.Int64Array
			if err := rows.Scan(&ids); err != nil {
				rows.Close()
				return wrapDBError("scanning deleted draft item", err)
			}
			affected = unionIDs(affected, ids)
			deleted++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return wrapDBError("iterating deleted draft items", err)
		}
		return syncTableOccupancy(ctx, tx, affected, r.reservationGuard)
	})
	if err != nil {
		return 0, err
	}
	publish(ctx, r.publisher, events.TableSent, map[string]interface{}{"draft_code": draftCode})
	return deleted, nil
}

// syncTableOccupancy marks tables referenced by any draft item as occupied and
// frees tables that no draft or open order references any more.
func syncTableOccupancy(ctx context.Context, exec SQLExecutor, tableIDs []int64, reservationGuard time.Duration) error {
	if len(tableIDs) == 0 {
		return nil
	}
	ids := pq.Array(tableIDs)
	_, err := exec.ExecContext(ctx, `
		UPDATE dining_tables t SET status = 'occupied', updated_at = NOW()
		WHERE t.id = ANY($1) AND t.status <> 'occupied'
		  AND EXISTS (SELECT 1 FROM draft_items d WHERE t.id = ANY(d.table_ids))`, ids)
	if err != nil {
		return wrapDBError("occupying tables", err)
	}
	_, err = exec.ExecContext(ctx, `
		UPDATE dining_tables t
		SET status = CASE WHEN EXISTS (
				SELECT 1 FROM reservations r
				WHERE r.table_id = t.id AND r.status IN ('pending', 'confirmed')
				  AND r.reservation_time BETWEEN NOW() - make_interval(secs => $2) AND NOW() + make_interval(secs => $2)
			) THEN 'reserved' ELSE 'available' END,
			updated_at = NOW()
		WHERE t.id = ANY($1) AND t.status = 'occupied'
		  AND NOT EXISTS (SELECT 1 FROM draft_items d WHERE t.id = ANY(d.table_ids))
		  AND NOT EXISTS (SELECT 1 FROM orders o WHERE t.id = ANY(o.table_ids)
		                  AND o.status NOT IN ('completed', 'cancelled', 'cancelled_by_kitchen'))`,
		ids, reservationGuard.Seconds())
	if err != nil {
		return wrapDBError("releasing tables", err)
	}
	return nil
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
