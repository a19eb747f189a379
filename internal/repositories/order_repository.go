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

// OrderRepository defines the backend operations on finalized orders.
type OrderRepository interface {
	List(ctx context.Context, filters models.OrderFilters) ([]models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Amend(ctx context.Context, order *models.Order) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
}

type orderRepository struct {
	db               *sql.DB
	publisher        events.Publisher
	reservationGuard time.Duration
}

// NewOrderRepository creates a Postgres backed OrderRepository.
func NewOrderRepository(db *sql.DB, publisher events.Publisher, reservationGuard time.Duration) OrderRepository {
	return &orderRepository{db: db, publisher: publisher, reservationGuard: reservationGuard}
}

const orderColumns = `
	o.id, o.order_type, o.draft_code, o.status, o.total_amount, o.fee_amount, o.discount_amount,
	o.final_amount, o.payment_method, o.payment_url, o.coupon_id, o.note, o.table_ids,
	o.reservation_id, o.delivery_address, o.created_at, o.updated_at`

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	var paymentURL, note, address sql.NullString
	var couponID, reservationID sql.NullInt64
	var tableIDs pq.Int64Array
	err := row.Scan(
		&o.ID, &o.OrderType, &o.DraftCode, &o.Status, &o.TotalAmount, &o.FeeAmount, &o.DiscountAmount,
		&o.FinalAmount, &o.PaymentMethod, &paymentURL, &couponID, &note, &tableIDs,
		&reservationID, &address, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentURL.Valid {
		o.PaymentURL = &paymentURL.String
	}
	if note.Valid {
		o.Note = &note.String
	}
	if address.Valid {
		o.DeliveryAddress = &address.String
	}
	if couponID.Valid {
		o.CouponID = &couponID.Int64
	}
	if reservationID.Valid {
		o.ReservationID = &reservationID.Int64
	}
	o.TableIDs = []int64(tableIDs)
	if o.TableIDs == nil {
		o.TableIDs = []int64{}
	}
	o.Items = []models.OrderItem{}
	return &o, nil
}

func (r *orderRepository) List(ctx context.Context, filters models.OrderFilters) ([]models.Order, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT " + orderColumns + " FROM orders o")

	var conditions []string
	var args []interface{}
	argCounter := 1
	if filters.OrderType != nil {
		conditions = append(conditions, fmt.Sprintf("o.order_type = $%d", argCounter))
		args = append(args, *filters.OrderType)
		argCounter++
	}
	if len(filters.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("o.status = ANY($%d)", argCounter))
		args = append(args, pq.Array(filters.Statuses))
		argCounter++
	}
	if filters.TableID != nil {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(o.table_ids)", argCounter))
		args = append(args, *filters.TableID)
		argCounter++
	}
	if filters.Date != nil {
		conditions = append(conditions, fmt.Sprintf("DATE(o.created_at) = $%d", argCounter))
		args = append(args, *filters.Date)
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY o.created_at DESC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, wrapDBError("listing orders", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapDBError("scanning order", err)
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterating orders", err)
	}

	items, err := r.itemsFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *orderRepository) getByID(ctx context.Context, exec SQLExecutor, id int64) (*models.Order, error) {
	o, err := scanOrder(exec.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id = $1", id))
	if err != nil {
		return nil, wrapDBError("getting order", err)
	}
	items, err := r.itemsFor(ctx, exec, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, items...)
	return o, nil
}

func (r *orderRepository) itemsFor(ctx context.Context, exec SQLExecutor, orderIDs []int64) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := exec.QueryContext(ctx,
		`SELECT id, order_id, variant_id, variant_name, quantity, price FROM order_items
		 WHERE order_id = ANY($1) ORDER BY id`, pq.Array(orderIDs))
	if err != nil {
		return nil, wrapDBError("listing order items", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.VariantName, &item.Quantity, &item.Price); err != nil {
			return nil, wrapDBError("scanning order item", err)
		}
		items = append(items, item)
	}
	return items, wrapRowsErr("iterating order items", rows.Err())
}

func insertOrderItems(ctx context.Context, exec SQLExecutor, orderID int64, items []models.OrderItem) error {
	for _, item := range items {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO order_items (order_id, variant_id, variant_name, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
			orderID, item.VariantID, item.VariantName, item.Quantity, item.Price)
		if err != nil {
			return wrapDBError("creating order item", err)
		}
	}
	return nil
}

// Create stores the order with its items and consumes one coupon use.
func (r *orderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	var created *models.Order
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders
			   (order_type, draft_code, status, total_amount, fee_amount, discount_amount, final_amount,
			    payment_method, payment_url, coupon_id, note, table_ids, reservation_id, delivery_address,
			    created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
			 RETURNING id`,
			order.OrderType, order.DraftCode, order.Status, order.TotalAmount, order.FeeAmount, order.DiscountAmount,
			order.FinalAmount, order.PaymentMethod, order.PaymentURL, order.CouponID, order.Note,
			pq.Array(nonNilIDs(order.TableIDs)), order.ReservationID, order.DeliveryAddress,
		).Scan(&id)
		if err != nil {
			return wrapDBError("creating order", err)
		}
		if err := insertOrderItems(ctx, tx, id, order.Items); err != nil {
			return err
		}
		if order.CouponID != nil {
			_, err := tx.ExecContext(ctx,
				"UPDATE coupons SET usage_limit = usage_limit - 1 WHERE id = $1 AND usage_limit IS NOT NULL AND usage_limit > 0",
				*order.CouponID)
			if err != nil {
				return wrapDBError("consuming coupon", err)
			}
		}
		created, err = r.getByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, r.publisher, events.OrderReceived, map[string]interface{}{"order_id": created.ID, "order_type": created.OrderType})
	return created, nil
}

// Amend replaces the items and amounts of an existing order in place.
func (r *orderRepository) Amend(ctx context.Context, order *models.Order) (*models.Order, error) {
	var amended *models.Order
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET total_amount = $1, fee_amount = $2, discount_amount = $3, final_amount = $4,
			        coupon_id = $5, note = $6, delivery_address = COALESCE($7, delivery_address), updated_at = NOW()
			 WHERE id = $8`,
			order.TotalAmount, order.FeeAmount, order.DiscountAmount, order.FinalAmount,
			order.CouponID, order.Note, order.DeliveryAddress, order.ID)
		if err != nil {
			return wrapDBError("amending order", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", order.ID); err != nil {
			return wrapDBError("clearing order items", err)
		}
		if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}
		amended, err = r.getByID(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, r.publisher, events.OrderReceived, map[string]interface{}{"order_id": amended.ID, "amended": true})
	return amended, nil
}

// UpdateStatus sets the order status. Closing an order frees its tables when
// no draft still holds them.
func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	var updated *models.Order
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
		if err != nil {
			return wrapDBError("updating order status", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		updated, err = r.getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		return syncTableOccupancy(ctx, tx, updated.TableIDs, r.reservationGuard)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, r.publisher, events.OrderStatusChanged, map[string]interface{}{"order_id": id, "status": status})
	if len(updated.TableIDs) > 0 {
		publish(ctx, r.publisher, events.TableSent, map[string]interface{}{"table_ids": updated.TableIDs})
	}
	return updated, nil
}
