package services

import (
	"context"
	"testing"
	"time"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(price string, qty int) models.DraftItem {
	return models.DraftItem{Price: dec(price), Quantity: qty}
}

var houseRules = PricingRules{TaxRate: dec("0.10"), DeliveryFee: dec("15000")}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name      string
		items     []models.DraftItem
		coupon    *models.Coupon
		orderType models.OrderType
		total     string
		fee       string
		discount  string
		final     string
	}{
		{
			name:      "percent coupon levies tax on the discount",
			items:     []models.DraftItem{line("50000", 2)},
			coupon:    &models.Coupon{DiscountType: models.DiscountTypePercent, Value: dec("10")},
			orderType: models.OrderTypeDineIn,
			total:     "100000", fee: "1000", discount: "10000", final: "91000",
		},
		{
			name:      "no coupon",
			items:     []models.DraftItem{line("50000", 2)},
			orderType: models.OrderTypeDineIn,
			total:     "100000", fee: "10000", discount: "0", final: "110000",
		},
		{
			name:      "amount coupon levies tax on the total",
			items:     []models.DraftItem{line("30000", 1), line("20000", 1)},
			coupon:    &models.Coupon{DiscountType: models.DiscountTypeAmount, Value: dec("5000")},
			orderType: models.OrderTypeTakeaway,
			total:     "50000", fee: "5000", discount: "5000", final: "50000",
		},
		{
			name:      "delivery adds the flat fee",
			items:     []models.DraftItem{line("40000", 1)},
			orderType: models.OrderTypeDelivery,
			total:     "40000", fee: "19000", discount: "0", final: "59000",
		},
		{
			name:      "final amount is clamped at zero",
			items:     []models.DraftItem{line("100", 1)},
			coupon:    &models.Coupon{DiscountType: models.DiscountTypeAmount, Value: dec("500")},
			orderType: models.OrderTypeTakeaway,
			total:     "100", fee: "10", discount: "500", final: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, tt.coupon, tt.orderType, houseRules)
			assertDecimal(t, tt.total, got.TotalAmount)
			assertDecimal(t, tt.fee, got.FeeAmount)
			assertDecimal(t, tt.discount, got.DiscountAmount)
			assertDecimal(t, tt.final, got.FinalAmount)
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	minimum := dec("200000")
	zero := 0
	total := dec("100000")

	tests := []struct {
		name   string
		coupon *models.Coupon
		want   error
	}{
		{"valid", &models.Coupon{Code: "OK", IsActive: true}, nil},
		{"missing", nil, ErrCouponNotFound},
		{"inactive", &models.Coupon{Code: "OFF"}, ErrCouponInactive},
		{"expired", &models.Coupon{Code: "OLD", IsActive: true, ExpiresAt: &past}, ErrCouponExpired},
		{"below minimum", &models.Coupon{Code: "BIG", IsActive: true, MinOrderAmount: &minimum}, ErrCouponBelowMinimum},
		{"exhausted", &models.Coupon{Code: "USED", IsActive: true, UsageLimit: &zero}, ErrCouponExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoupon(tt.coupon, total, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestFindCoupon_CaseInsensitive(t *testing.T) {
	coupons := []models.Coupon{{Code: "WELCOME10"}, {Code: "VIP"}}
	c, err := FindCoupon(coupons, " welcome10 ")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", c.Code)

	_, err = FindCoupon(coupons, "NOPE")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestPricingService_Quote(t *testing.T) {
	store := repositories.NewMemoryStore(nil, DefaultReservationGuard)
	store.SeedCoupon(models.Coupon{Code: "TEN", DiscountType: models.DiscountTypePercent, Value: dec("10"), IsActive: true})
	svc := NewPricingService(store.Coupons(), store.Settings(), houseRules)
	ctx := context.Background()
	items := []models.DraftItem{line("50000", 2)}

	code := "ten"
	totals, coupon, err := svc.Quote(ctx, items, &code, models.OrderTypeDineIn, time.Now())
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assertDecimal(t, "91000", totals.FinalAmount)

	store.SetSetting(models.SettingTaxRate, "0.08")
	totals, _, err = svc.Quote(ctx, items, nil, models.OrderTypeDineIn, time.Now())
	require.NoError(t, err)
	assertDecimal(t, "8000", totals.FeeAmount)

	missing := "GHOST"
	_, _, err = svc.Quote(ctx, items, &missing, models.OrderTypeDineIn, time.Now())
	assert.ErrorIs(t, err, ErrCouponNotFound)
}
