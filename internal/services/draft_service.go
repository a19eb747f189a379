package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"
)

var (
	ErrVariantUnavailable = fmt.Errorf("%w: menu variant is not available", ErrValidation)
	ErrDraftCodeRequired  = fmt.Errorf("%w: draft code is required", ErrValidation)
	ErrOrderNotEditable   = fmt.Errorf("%w: order can no longer be edited", ErrValidation)
)

// AddDraftItemRequest is the payload for adding a variant to the active tab.
type AddDraftItemRequest struct {
	VariantID int64 `json:"variant_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// UpdateDraftItemRequest changes the quantity of a draft line. A quantity of
// zero or less removes the line.
type UpdateDraftItemRequest struct {
	Quantity int `json:"quantity"`
}

// ChangeDraftItemStatusRequest moves a draft line through the kitchen workflow.
type ChangeDraftItemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DraftService is a thin command interface over the draft item backend. It never
// caches: terminals observe results through the sync layer's refetch.
type DraftService interface {
	AddItem(ctx context.Context, draftCode string, variantID int64, quantity int, tableIDs []int64) (*models.DraftItem, error)
	UpdateQuantity(ctx context.Context, itemID int64, quantity int, tableIDs []int64) (*models.DraftItem, error)
	DeleteItem(ctx context.Context, itemID int64) error
	DeleteAllForCode(ctx context.Context, draftCode string) (int, error)
	ChangeStatus(ctx context.Context, itemID int64, status models.DraftItemStatus) (*models.DraftItem, error)
	ChangeTables(ctx context.Context, draftCode string, tableIDs []int64) error
	List(ctx context.Context, filter models.DraftItemFilter) ([]models.DraftItem, error)
	PopulateFromOrder(ctx context.Context, orderID int64) (string, []models.DraftItem, error)
}

type draftService struct {
	draftRepo   repositories.DraftItemRepository
	variantRepo repositories.VariantRepository
	orderRepo   repositories.OrderRepository
}

// NewDraftService creates a new instance of DraftService.
func NewDraftService(dr repositories.DraftItemRepository, vr repositories.VariantRepository, or repositories.OrderRepository) DraftService {
	return &draftService{draftRepo: dr, variantRepo: vr, orderRepo: or}
}

// AddItem merges quantity into the (code, variant) line or creates it. When one of
// tableIDs already carries items under another code, the item goes to that code
// so a table never has two live drafts.
func (s *draftService) AddItem(ctx context.Context, draftCode string, variantID int64, quantity int, tableIDs []int64) (*models.DraftItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(draftCode) == "" {
		return nil, ErrDraftCodeRequired
	}

	variant, err := s.variantRepo.GetByID(ctx, variantID)
	if err != nil {
		return nil, backendError("add draft item", err, ErrVariantNotFound)
	}
	if !variant.IsAvailable {
		return nil, fmt.Errorf("%w: %s", ErrVariantUnavailable, variant.DisplayName())
	}

	code, err := s.liveCode(ctx, draftCode, tableIDs)
	if err != nil {
		return nil, err
	}

	items, err := s.draftRepo.List(ctx, models.DraftItemFilter{DraftCode: &code})
	if err != nil {
		return nil, backendError("add draft item", err, nil)
	}
	for _, existing := range items {
		if existing.VariantID != variantID {
			continue
		}
		existing.Quantity += quantity
		existing.TableIDs = unionIDs(existing.TableIDs, tableIDs)
		updated, err := s.draftRepo.Update(ctx, &existing)
		if err != nil {
			return nil, backendError("add draft item", err, ErrDraftItemNotFound)
		}
		utils.LogDebug("Draft item quantity merged", map[string]interface{}{"draft_code": code, "variant_id": variantID, "quantity": updated.Quantity})
		return updated, nil
	}

	created, err := s.draftRepo.Create(ctx, &models.DraftItem{
		DraftCode: code,
		VariantID: variantID,
		Quantity:  quantity,
		Status:    models.DraftItemStatusPending,
		TableIDs:  unionIDs(nil, tableIDs),
	})
	if err != nil {
		return nil, backendError("add draft item", err, nil)
	}
	utils.LogDebug("Draft item created", map[string]interface{}{"draft_code": code, "variant_id": variantID})
	return created, nil
}

// liveCode returns the code of the first existing item on any of tableIDs that
// lives under a different code, or draftCode when there is none.
func (s *draftService) liveCode(ctx context.Context, draftCode string, tableIDs []int64) (string, error) {
	for _, tableID := range tableIDs {
		id := tableID
		items, err := s.draftRepo.List(ctx, models.DraftItemFilter{TableID: &id})
		if err != nil {
			return "", backendError("resolve draft code", err, nil)
		}
		for _, item := range items {
			if item.DraftCode != draftCode {
				utils.LogInfo("Draft item re-targeted to live draft of table", map[string]interface{}{
					"requested_code": draftCode, "draft_code": item.DraftCode, "table_id": tableID,
				})
				return item.DraftCode, nil
			}
		}
	}
	return draftCode, nil
}

func (s *draftService) UpdateQuantity(ctx context.Context, itemID int64, quantity int, tableIDs []int64) (*models.DraftItem, error) {
	if quantity <= 0 {
		return nil, s.DeleteItem(ctx, itemID)
	}
	item, err := s.draftRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, backendError("update draft item", err, ErrDraftItemNotFound)
	}
	item.Quantity = quantity
	if tableIDs != nil {
		item.TableIDs = unionIDs(nil, tableIDs)
	}
	updated, err := s.draftRepo.Update(ctx, item)
	if err != nil {
		return nil, backendError("update draft item", err, ErrDraftItemNotFound)
	}
	return updated, nil
}

func (s *draftService) DeleteItem(ctx context.Context, itemID int64) error {
	if err := s.draftRepo.Delete(ctx, itemID); err != nil {
		return backendError("delete draft item", err, ErrDraftItemNotFound)
	}
	return nil
}

func (s *draftService) DeleteAllForCode(ctx context.Context, draftCode string) (int, error) {
	if strings.TrimSpace(draftCode) == "" {
		return 0, ErrDraftCodeRequired
	}
	n, err := s.draftRepo.DeleteByCode(ctx, draftCode)
	if err != nil {
		return 0, backendError("delete draft", err, nil)
	}
	utils.LogDebug("Draft deleted", map[string]interface{}{"draft_code": draftCode, "items": n})
	return n, nil
}

func (s *draftService) ChangeStatus(ctx context.Context, itemID int64, status models.DraftItemStatus) (*models.DraftItem, error) {
	if !models.IsValidDraftItemStatus(string(status)) {
		return nil, fmt.Errorf("%w: unknown draft item status %q", ErrValidation, status)
	}
	item, err := s.draftRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, backendError("change draft item status", err, ErrDraftItemNotFound)
	}
	if !item.Status.CanTransitionTo(status) {
		return nil, models.TransitionError("draft item", item.Status, status)
	}
	item.Status = status
	updated, err := s.draftRepo.Update(ctx, item)
	if err != nil {
		return nil, backendError("change draft item status", err, ErrDraftItemNotFound)
	}
	return updated, nil
}

// ChangeTables rewrites the tables of every item under draftCode. It keeps going
// after a failed item and reports the failures together.
func (s *draftService) ChangeTables(ctx context.Context, draftCode string, tableIDs []int64) error {
	items, err := s.draftRepo.List(ctx, models.DraftItemFilter{DraftCode: &draftCode})
	if err != nil {
		return backendError("change draft tables", err, nil)
	}
	tables := unionIDs(nil, tableIDs)
	failures := newPartialFailure("change draft tables")
	for i := range items {
		item := items[i]
		item.TableIDs = tables
		if _, err := s.draftRepo.Update(ctx, &item); err != nil {
			failures.Failed[item.ID] = backendError("update draft item tables", err, ErrDraftItemNotFound)
			continue
		}
		failures.Succeeded = append(failures.Succeeded, item.ID)
	}
	if err := failures.orNil(); err != nil {
		utils.LogWarn(err, "Some draft items kept their old tables", map[string]interface{}{"draft_code": draftCode})
		return err
	}
	return nil
}

func (s *draftService) List(ctx context.Context, filter models.DraftItemFilter) ([]models.DraftItem, error) {
	if filter.TableID == nil && filter.DraftCode == nil {
		return nil, fmt.Errorf("%w: table_id or draft_code is required", ErrValidation)
	}
	items, err := s.draftRepo.List(ctx, filter)
	if err != nil {
		return nil, backendError("list draft items", err, nil)
	}
	return items, nil
}

// PopulateFromOrder rebuilds the edit draft of a delivery order from its items,
// replacing whatever the edit draft held before.
func (s *draftService) PopulateFromOrder(ctx context.Context, orderID int64) (string, []models.DraftItem, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return "", nil, backendError("load order for edit", err, ErrOrderNotFound)
	}
	if order.OrderType != models.OrderTypeDelivery {
		return "", nil, fmt.Errorf("%w: only delivery orders can be edited", ErrValidation)
	}
	switch order.Status {
	case models.OrderStatusPending, models.OrderStatusConfirmed:
	default:
		return "", nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotEditable, orderID, order.Status)
	}

	code := models.DeliveryEditDraftCode(orderID)
	if _, err := s.draftRepo.DeleteByCode(ctx, code); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return "", nil, backendError("reset edit draft", err, nil)
	}

	items := make([]models.DraftItem, 0, len(order.Items))
	for _, line := range order.Items {
		created, err := s.draftRepo.Create(ctx, &models.DraftItem{
			DraftCode: code,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Status:    models.DraftItemStatusPending,
			TableIDs:  []int64{},
		})
		if err != nil {
			return code, items, backendError("populate edit draft", err, nil)
		}
		items = append(items, *created)
	}
	utils.LogInfo("Delivery order opened for edit", map[string]interface{}{"order_id": orderID, "draft_code": code, "items": len(items)})
	return code, items, nil
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
