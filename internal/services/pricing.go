package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"

	"github.com/shopspring/decimal"
)

// Coupon rejections. Each one is reported to staff with its own message.
var (
	ErrCouponNotFound     = fmt.Errorf("%w: coupon not found", ErrValidation)
	ErrCouponInactive     = fmt.Errorf("%w: coupon is not active", ErrValidation)
	ErrCouponExpired      = fmt.Errorf("%w: coupon has expired", ErrValidation)
	ErrCouponBelowMinimum = fmt.Errorf("%w: order total is below the coupon minimum", ErrValidation)
	ErrCouponExhausted    = fmt.Errorf("%w: coupon usage limit reached", ErrValidation)
)

var hundred = decimal.NewFromInt(100)

// PricingRules are the rates applied at finalization.
type PricingRules struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
}

// Totals are the amounts of an order.
type Totals struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// SumItems is price times quantity over items.
func SumItems(items []models.DraftItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// FindCoupon looks code up case-insensitively.
func FindCoupon(coupons []models.Coupon, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	for i := range coupons {
		if strings.EqualFold(coupons[i].Code, code) {
			return &coupons[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
}

// ValidateCoupon checks coupon against total at now.
func ValidateCoupon(coupon *models.Coupon, total decimal.Decimal, now time.Time) error {
	switch {
	case coupon == nil:
		return ErrCouponNotFound
	case !coupon.IsActive:
		return fmt.Errorf("%w: %s", ErrCouponInactive, coupon.Code)
	case coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt):
		return fmt.Errorf("%w: %s expired at %s", ErrCouponExpired, coupon.Code, coupon.ExpiresAt.Format(time.RFC3339))
	case coupon.MinOrderAmount != nil && total.LessThan(*coupon.MinOrderAmount):
		return fmt.Errorf("%w: %s requires %s", ErrCouponBelowMinimum, coupon.Code, coupon.MinOrderAmount.StringFixed(2))
	case coupon.UsageLimit != nil && *coupon.UsageLimit == 0:
		return fmt.Errorf("%w: %s", ErrCouponExhausted, coupon.Code)
	}
	return nil
}

// ComputeTotals prices items. A percent coupon discounts total*value/100 and
// the tax is then levied on the discount; otherwise tax is levied on the total.
// Delivery orders add the flat delivery fee. The final amount never goes below zero.
func ComputeTotals(items []models.DraftItem, coupon *models.Coupon, orderType models.OrderType, rules PricingRules) Totals {
	total := SumItems(items)

	discount := decimal.Zero
	base := total
	if coupon != nil {
		switch coupon.DiscountType {
		case models.DiscountTypePercent:
			discount = total.Mul(coupon.Value).Div(hundred)
			base = discount
		case models.DiscountTypeAmount:
			discount = coupon.Value
		}
	}
	discount = discount.Round(2)

	fee := rules.TaxRate.Mul(base)
	if orderType == models.OrderTypeDelivery {
		fee = fee.Add(rules.DeliveryFee)
	}
	fee = fee.Round(2)

	final := total.Add(fee).Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	return Totals{TotalAmount: total, FeeAmount: fee, DiscountAmount: discount, FinalAmount: final}
}

// PricingService resolves the current rates and coupons for a quote.
type PricingService interface {
	Rules(ctx context.Context) PricingRules
	Quote(ctx context.Context, items []models.DraftItem, couponCode *string, orderType models.OrderType, now time.Time) (Totals, *models.Coupon, error)
	Coupon(ctx context.Context, couponID int64) (*models.Coupon, error)
	QuoteApplied(ctx context.Context, items []models.DraftItem, coupon *models.Coupon, orderType models.OrderType) (Totals, error)
}

type pricingService struct {
	couponRepo  repositories.CouponRepository
	settingRepo repositories.SettingRepository
	defaults    PricingRules
}

// NewPricingService creates a new instance of PricingService. Stored settings
// override defaults.
func NewPricingService(cr repositories.CouponRepository, sr repositories.SettingRepository, defaults PricingRules) PricingService {
	return &pricingService{couponRepo: cr, settingRepo: sr, defaults: defaults}
}

func (s *pricingService) Rules(ctx context.Context) PricingRules {
	rules := s.defaults
	if s.settingRepo == nil {
		return rules
	}
	if v, ok := s.setting(ctx, models.SettingTaxRate); ok {
		rules.TaxRate = v
	}
	if v, ok := s.setting(ctx, models.SettingDeliveryFee); ok {
		rules.DeliveryFee = v
	}
	return rules
}

func (s *pricingService) setting(ctx context.Context, key string) (decimal.Decimal, bool) {
	setting, err := s.settingRepo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			utils.LogWarn(err, "Falling back to configured rate", map[string]interface{}{"setting": key})
		}
		return decimal.Zero, false
	}
	if setting.SettingValue == nil {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.TrimSpace(*setting.SettingValue))
	if err != nil {
		utils.LogWarn(err, "Ignoring malformed setting", map[string]interface{}{"setting": key, "value": *setting.SettingValue})
		return decimal.Zero, false
	}
	return v, true
}

// Quote validates the coupon when one is given and computes the totals.
func (s *pricingService) Quote(ctx context.Context, items []models.DraftItem, couponCode *string, orderType models.OrderType, now time.Time) (Totals, *models.Coupon, error) {
	total := SumItems(items)
	var coupon *models.Coupon
	if couponCode != nil && strings.TrimSpace(*couponCode) != "" {
		coupons, err := s.couponRepo.List(ctx)
		if err != nil {
			return Totals{}, nil, backendError("list coupons", err, nil)
		}
		coupon, err = FindCoupon(coupons, *couponCode)
		if err != nil {
			return Totals{}, nil, err
		}
		if err := ValidateCoupon(coupon, total, now); err != nil {
			return Totals{}, nil, err
		}
	}
	return ComputeTotals(items, coupon, orderType, s.Rules(ctx)), coupon, nil
}

// Coupon looks a coupon up by id.
func (s *pricingService) Coupon(ctx context.Context, couponID int64) (*models.Coupon, error) {
	coupons, err := s.couponRepo.List(ctx)
	if err != nil {
		return nil, backendError("list coupons", err, nil)
	}
	for i := range coupons {
		if coupons[i].ID == couponID {
			return &coupons[i], nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrCouponNotFound, couponID)
}

// QuoteApplied prices items with a coupon an existing order already redeemed.
// Only the minimum order amount is checked again; the redemption itself already
// counted against the usage limit.
func (s *pricingService) QuoteApplied(ctx context.Context, items []models.DraftItem, coupon *models.Coupon, orderType models.OrderType) (Totals, error) {
	if coupon != nil && coupon.MinOrderAmount != nil && SumItems(items).LessThan(*coupon.MinOrderAmount) {
		return Totals{}, fmt.Errorf("%w: %s requires %s", ErrCouponBelowMinimum, coupon.Code, coupon.MinOrderAmount.StringFixed(2))
	}
	return ComputeTotals(items, coupon, orderType, s.Rules(ctx)), nil
}
