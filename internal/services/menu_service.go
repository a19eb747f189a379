package services

import (
	"context"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
)

// MenuService exposes the priced menu and the coupon catalog.
type MenuService interface {
	GetVariants(ctx context.Context, onlyAvailable bool) ([]models.Variant, error)
	GetVariantByID(ctx context.Context, variantID int64) (*models.Variant, error)
	GetCoupons(ctx context.Context) ([]models.Coupon, error)
}

type menuService struct {
	variantRepo repositories.VariantRepository
	couponRepo  repositories.CouponRepository
}

// NewMenuService creates a new instance of MenuService.
func NewMenuService(vr repositories.VariantRepository, cr repositories.CouponRepository) MenuService {
	return &menuService{variantRepo: vr, couponRepo: cr}
}

func (s *menuService) GetVariants(ctx context.Context, onlyAvailable bool) ([]models.Variant, error) {
	variants, err := s.variantRepo.List(ctx, onlyAvailable)
	if err != nil {
		return nil, backendError("list variants", err, nil)
	}
	return variants, nil
}

func (s *menuService) GetVariantByID(ctx context.Context, variantID int64) (*models.Variant, error) {
	v, err := s.variantRepo.GetByID(ctx, variantID)
	if err != nil {
		return nil, backendError("get variant", err, ErrVariantNotFound)
	}
	return v, nil
}

func (s *menuService) GetCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.couponRepo.List(ctx)
	if err != nil {
		return nil, backendError("list coupons", err, nil)
	}
	return coupons, nil
}
