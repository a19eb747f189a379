package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is a sellable size/flavour of a menu product.
type Variant struct {
	ID          int64           `json:"id" db:"id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	IsAvailable bool            `json:"is_available" db:"is_available"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// DisplayName joins product and variant names.
func (v Variant) DisplayName() string {
	if v.Name == "" {
		return v.ProductName
	}
	return v.ProductName + " (" + v.Name + ")"
}

// DiscountType is how a coupon reduces the total.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeAmount  DiscountType = "amount"
)

// Coupon is a discount code applied at finalization.
type Coupon struct {
	ID             int64            `json:"id" db:"id"`
	Code           string           `json:"code" db:"code"`
	DiscountType   DiscountType     `json:"discount_type" db:"discount_type"`
	Value          decimal.Decimal  `json:"value" db:"value"`
	IsActive       bool             `json:"is_active" db:"is_active"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty" db:"min_order_amount"`
	UsageLimit     *int             `json:"usage_limit,omitempty" db:"usage_limit"` // nil means unlimited
}
