package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the channel an order is served through.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// IsValidOrderType checks if the provided string is a valid OrderType.
func IsValidOrderType(t string) bool {
	switch OrderType(t) {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	default:
		return false
	}
}

// PaymentMethod is how the guest settles the order.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOnline       PaymentMethod = "online"
)

// IsValidPaymentMethod checks if the provided string is a valid PaymentMethod.
func IsValidPaymentMethod(m string) bool {
	switch PaymentMethod(m) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodOnline:
		return true
	default:
		return false
	}
}

// IsOnline reports whether the method is settled through a payment URL.
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodOnline
}

// Order is a finalized order record.
type Order struct {
	ID              int64           `json:"id" db:"id"`
	OrderType       OrderType       `json:"order_type" db:"order_type"`
	DraftCode       string          `json:"draft_code" db:"draft_code"`
	Status          OrderStatus     `json:"status" db:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount" db:"fee_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	FinalAmount     decimal.Decimal `json:"final_amount" db:"final_amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentURL      *string         `json:"payment_url,omitempty" db:"payment_url"`
	CouponID        *int64          `json:"coupon_id,omitempty" db:"coupon_id"`
	Note            *string         `json:"note,omitempty" db:"note"`
	TableIDs        []int64         `json:"table_ids" db:"table_ids"`
	ReservationID   *int64          `json:"reservation_id,omitempty" db:"reservation_id"`
	DeliveryAddress *string         `json:"delivery_address,omitempty" db:"delivery_address"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is the snapshot of a draft line taken at finalization.
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	VariantID   int64           `json:"variant_id" db:"variant_id"`
	VariantName string          `json:"variant_name" db:"variant_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
}

// OrderFilters defines the available filters for querying orders.
type OrderFilters struct {
	OrderType *string  `form:"order_type"`
	Statuses  []string `form:"status"`
	TableID   *int64   `form:"table_id"`
	Date      *string  `form:"date"` // YYYY-MM-DD
}
