package services

import (
	"context"
	"fmt"
	"strings"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"

	"github.com/jinzhu/copier"
	"github.com/jonboulle/clockwork"
)

var (
	ErrPaymentMethodRequired   = fmt.Errorf("%w: payment method is required", ErrValidation)
	ErrDeliveryAddressRequired = fmt.Errorf("%w: delivery address is required", ErrValidation)
)

// CheckoutState is what staff picked for the active tab before finalizing.
type CheckoutState struct {
	CouponCode      *string              `json:"coupon_code,omitempty"`
	PaymentMethod   models.PaymentMethod `json:"payment_method,omitempty"`
	Note            *string              `json:"note,omitempty"`
	DeliveryAddress *string              `json:"delivery_address,omitempty"`
}

// UpdateCheckoutRequest changes the fields that are present. An empty string clears
// the field.
type UpdateCheckoutRequest struct {
	CouponCode      *string `json:"coupon_code"`
	PaymentMethod   *string `json:"payment_method"`
	Note            *string `json:"note"`
	DeliveryAddress *string `json:"delivery_address"`
}

// FinalizeResult is the outcome of a successful finalization. Warnings list
// cleanup steps that failed after the order was stored.
type FinalizeResult struct {
	Order      *models.Order `json:"order"`
	Totals     Totals        `json:"totals"`
	PaymentURL *string       `json:"payment_url,omitempty"`
	Amended    bool          `json:"amended"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// PaymentLinker returns the URL a guest pays an online order at.
type PaymentLinker interface {
	PaymentURL(ctx context.Context, order models.Order) (string, error)
}

type templatePaymentLinker struct {
	template string
}

// NewTemplatePaymentLinker formats template with the order id and final amount.
func NewTemplatePaymentLinker(template string) PaymentLinker {
	return &templatePaymentLinker{template: template}
}

func (l *templatePaymentLinker) PaymentURL(_ context.Context, order models.Order) (string, error) {
	if l.template == "" {
		return "", fmt.Errorf("payment url template is not configured")
	}
	return fmt.Sprintf(l.template, order.ID, order.FinalAmount.StringFixed(2)), nil
}

// FinalizationService turns a tab's draft into an order.
type FinalizationService interface {
	Quote(ctx context.Context, tab models.OrderTab, items []models.DraftItem, checkout CheckoutState) (Totals, *models.Coupon, error)
	Finalize(ctx context.Context, tab models.OrderTab, items []models.DraftItem, checkout CheckoutState) (*FinalizeResult, error)
	StartDeliveryEdit(ctx context.Context, orderID int64) (string, []models.DraftItem, error)
}

type finalizationService struct {
	orderRepo repositories.OrderRepository
	drafts    DraftService
	pricing   PricingService
	linker    PaymentLinker
	clock     clockwork.Clock
}

// NewFinalizationService creates a new instance of FinalizationService.
func NewFinalizationService(or repositories.OrderRepository, drafts DraftService, pricing PricingService, linker PaymentLinker, clock clockwork.Clock) FinalizationService {
	return &finalizationService{orderRepo: or, drafts: drafts, pricing: pricing, linker: linker, clock: clock}
}

// Finalize prices items, stores the order, then deletes the draft. When storing
// fails nothing else is touched.
func (s *finalizationService) Finalize(ctx context.Context, tab models.OrderTab, items []models.DraftItem, checkout CheckoutState) (*FinalizeResult, error) {
	if len(items) == 0 {
		return nil, ErrDraftEmpty
	}
	if checkout.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if !models.IsValidPaymentMethod(string(checkout.PaymentMethod)) {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, checkout.PaymentMethod)
	}

	totals, coupon, err := s.Quote(ctx, tab, items, checkout)
	if err != nil {
		return nil, err
	}
	snapshot, err := snapshotItems(items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderType:      tab.OrderType(),
		DraftCode:      tab.DraftCode(),
		Status:         models.OrderStatusPending,
		TotalAmount:    totals.TotalAmount,
		FeeAmount:      totals.FeeAmount,
		DiscountAmount: totals.DiscountAmount,
		FinalAmount:    totals.FinalAmount,
		PaymentMethod:  checkout.PaymentMethod,
		Note:           trimmed(checkout.Note),
		TableIDs:       []int64{},
		Items:          snapshot,
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
	}

	var result *FinalizeResult
	switch t := tab.Target.(type) {
	case models.DineInTable:
		order.TableIDs = []int64{t.TableID}
		for _, item := range items {
			order.TableIDs = unionIDs(order.TableIDs, item.TableIDs)
		}
		order.ReservationID = tab.ReservationID
		result, err = s.create(ctx, order)
	case models.TakeawayDraft:
		result, err = s.create(ctx, order)
	case models.DeliveryDraft:
		order.DeliveryAddress = trimmed(checkout.DeliveryAddress)
		if t.EditOrderID != nil {
			order.ID = *t.EditOrderID
			result, err = s.amend(ctx, order)
			break
		}
		if order.DeliveryAddress == nil {
			return nil, ErrDeliveryAddressRequired
		}
		result, err = s.create(ctx, order)
	default:
		return nil, fmt.Errorf("%w: unknown tab target %T", ErrValidation, tab.Target)
	}
	if err != nil {
		return nil, err
	}
	result.Totals = totals

	if checkout.PaymentMethod.IsOnline() {
		url, err := s.linker.PaymentURL(ctx, *result.Order)
		if err != nil {
			result.Warnings = append(result.Warnings, "payment link unavailable: "+err.Error())
		} else {
			result.PaymentURL = &url
			result.Order.PaymentURL = &url
		}
	}

	for _, code := range draftCodes(tab.DraftCode(), items) {
		if _, err := s.drafts.DeleteAllForCode(ctx, code); err != nil {
			utils.LogWarn(err, "Order stored but draft cleanup failed", map[string]interface{}{"draft_code": code, "order_id": result.Order.ID})
			result.Warnings = append(result.Warnings, fmt.Sprintf("draft %s was not cleared: %v", code, err))
		}
	}

	utils.LogInfo("Order finalized", map[string]interface{}{
		"order_id": result.Order.ID, "draft_code": tab.DraftCode(), "order_type": string(tab.OrderType()),
		"final_amount": totals.FinalAmount.String(), "amended": result.Amended,
	})
	return result, nil
}

// Quote prices items for tab. An order being edited keeps the coupon it was placed
// with unless checkout names a different one.
func (s *finalizationService) Quote(ctx context.Context, tab models.OrderTab, items []models.DraftItem, checkout CheckoutState) (Totals, *models.Coupon, error) {
	kept, err := s.keptCoupon(ctx, tab, checkout.CouponCode)
	if err != nil {
		return Totals{}, nil, err
	}
	if kept != nil {
		totals, err := s.pricing.QuoteApplied(ctx, items, kept, tab.OrderType())
		if err != nil {
			return Totals{}, nil, err
		}
		return totals, kept, nil
	}
	return s.pricing.Quote(ctx, items, checkout.CouponCode, tab.OrderType(), s.clock.Now())
}

// keptCoupon returns the coupon of the order tab edits when couponCode is unset or
// names that same coupon.
func (s *finalizationService) keptCoupon(ctx context.Context, tab models.OrderTab, couponCode *string) (*models.Coupon, error) {
	target, ok := tab.Target.(models.DeliveryDraft)
	if !ok || target.EditOrderID == nil {
		return nil, nil
	}
	existing, err := s.orderRepo.GetByID(ctx, *target.EditOrderID)
	if err != nil {
		return nil, backendError("load edited order", err, ErrOrderNotFound)
	}
	if existing.CouponID == nil {
		return nil, nil
	}
	coupon, err := s.pricing.Coupon(ctx, *existing.CouponID)
	if err != nil {
		return nil, err
	}
	if couponCode != nil && !strings.EqualFold(strings.TrimSpace(*couponCode), coupon.Code) {
		return nil, nil
	}
	return coupon, nil
}

func (s *finalizationService) create(ctx context.Context, order *models.Order) (*FinalizeResult, error) {
	created, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		return nil, backendError("create order", err, nil)
	}
	return &FinalizeResult{Order: created}, nil
}

// amend replaces items and amounts of the order being edited; no new order is made.
func (s *finalizationService) amend(ctx context.Context, order *models.Order) (*FinalizeResult, error) {
	existing, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, backendError("load edited order", err, ErrOrderNotFound)
	}
	switch existing.Status {
	case models.OrderStatusPending, models.OrderStatusConfirmed:
	default:
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotEditable, existing.ID, existing.Status)
	}
	if order.Note == nil {
		order.Note = existing.Note
	}
	amended, err := s.orderRepo.Amend(ctx, order)
	if err != nil {
		return nil, backendError("amend order", err, ErrOrderNotFound)
	}
	return &FinalizeResult{Order: amended, Amended: true}, nil
}

func (s *finalizationService) StartDeliveryEdit(ctx context.Context, orderID int64) (string, []models.DraftItem, error) {
	return s.drafts.PopulateFromOrder(ctx, orderID)
}

// snapshotItems copies draft lines into order lines.
func snapshotItems(items []models.DraftItem) ([]models.OrderItem, error) {
	var out []models.OrderItem
	if err := copier.Copy(&out, &items); err != nil {
		return nil, fmt.Errorf("snapshot draft items: %w", err)
	}
	for i := range out {
		out[i].ID = 0
		out[i].OrderID = 0
	}
	return out, nil
}

// draftCodes lists primary followed by any other code the items live under.
func draftCodes(primary string, items []models.DraftItem) []string {
	codes := []string{primary}
	seen := map[string]bool{primary: true}
	for _, item := range items {
		if !seen[item.DraftCode] {
			seen[item.DraftCode] = true
			codes = append(codes, item.DraftCode)
		}
	}
	return codes
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.NewNullString(*s)
}
