package main

import (
	"time"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"

	"github.com/shopspring/decimal"
)

// seedDemoData fills the in-memory backend with a small floor and menu.
func seedDemoData(store *repositories.MemoryStore, now time.Time) {
	terrace := "terrace"
	hall := "hall"
	for i, t := range []struct {
		code     string
		capacity int
		location *string
	}{
		{"T1", 2, &hall}, {"T2", 4, &hall}, {"T3", 4, &hall}, {"T4", 6, &hall},
		{"P1", 4, &terrace}, {"P2", 8, &terrace},
	} {
		store.SeedTable(models.Table{ID: int64(i + 1), Code: t.code, Capacity: t.capacity, Location: t.location, Status: models.TableStatusAvailable})
	}

	for i, v := range []struct {
		product, name, price string
	}{
		{"Pho Bo", "Small", "45000"},
		{"Pho Bo", "Large", "55000"},
		{"Bun Cha", "", "50000"},
		{"Iced Coffee", "", "25000"},
		{"Spring Rolls", "4 pcs", "35000"},
	} {
		store.SeedVariant(models.Variant{
			ID:          int64(i + 1),
			ProductID:   int64(i/2 + 1),
			ProductName: v.product,
			Name:        v.name,
			Price:       decimal.RequireFromString(v.price),
			IsAvailable: true,
		})
	}

	expires := now.AddDate(0, 1, 0)
	minimum := decimal.NewFromInt(100000)
	limit := 100
	store.SeedCoupon(models.Coupon{Code: "WELCOME10", DiscountType: models.DiscountTypePercent, Value: decimal.NewFromInt(10), IsActive: true, ExpiresAt: &expires})
	store.SeedCoupon(models.Coupon{Code: "MINUS20K", DiscountType: models.DiscountTypeAmount, Value: decimal.NewFromInt(20000), IsActive: true, MinOrderAmount: &minimum, UsageLimit: &limit})

	evening := time.Date(now.Year(), now.Month(), now.Day(), 19, 0, 0, 0, now.Location())
	if evening.After(now) {
		store.SeedReservation(models.Reservation{
			TableID:         4,
			GuestName:       "Demo Guest",
			GuestPhone:      "0900000000",
			NumberOfGuest:   5,
			ReservationTime: evening,
			Status:          models.ReservationStatusConfirmed,
		})
	}
}
