package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	draftCodePrefix             = "draft-"
	takeawayDraftCodePrefix     = "draft-takeaway-"
	deliveryDraftCodePrefix     = "draft-delivery-"
	deliveryEditDraftCodePrefix = "draft-delivery-edit-"
	draftSuffixLength           = 6
)

// DraftItem is one line of an in-progress order. At most one item exists per
// (DraftCode, VariantID).
type DraftItem struct {
	ID          int64           `json:"id" db:"id"`
	DraftCode   string          `json:"draft_code" db:"draft_code"`
	VariantID   int64           `json:"variant_id" db:"variant_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Status      DraftItemStatus `json:"status" db:"status"`
	TableIDs    []int64         `json:"table_ids" db:"table_ids"`
	VariantName string          `json:"variant_name" db:"variant_name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// LineTotal is price times quantity.
func (d DraftItem) LineTotal() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// References reports whether the item is attached to the given table.
func (d DraftItem) References(tableID int64) bool {
	for _, id := range d.TableIDs {
		if id == tableID {
			return true
		}
	}
	return false
}

// DraftItemFilter selects draft items either by table or by draft code.
type DraftItemFilter struct {
	TableID   *int64  `form:"table_id"`
	DraftCode *string `form:"draft_code"`
}

// TableDraftCode is the draft code of a dine-in order on the given table.
func TableDraftCode(tableCode string) string {
	return draftCodePrefix + tableCode
}

// NewTakeawayDraftCode returns a fresh takeaway draft code.
func NewTakeawayDraftCode() string {
	return takeawayDraftCodePrefix + randomDraftSuffix()
}

// NewDeliveryDraftCode returns a fresh delivery draft code.
func NewDeliveryDraftCode() string {
	return deliveryDraftCodePrefix + randomDraftSuffix()
}

// DeliveryEditDraftCode is the draft code used while amending an existing delivery order.
func DeliveryEditDraftCode(orderID int64) string {
	return deliveryEditDraftCodePrefix + strconv.FormatInt(orderID, 10)
}

// DraftCodeOrderType infers the channel a draft code belongs to.
func DraftCodeOrderType(code string) (OrderType, bool) {
	switch {
	case strings.HasPrefix(code, takeawayDraftCodePrefix):
		return OrderTypeTakeaway, true
	case strings.HasPrefix(code, deliveryDraftCodePrefix):
		return OrderTypeDelivery, true
	case strings.HasPrefix(code, draftCodePrefix) && len(code) > len(draftCodePrefix):
		return OrderTypeDineIn, true
	default:
		return "", false
	}
}

// EditedOrderID extracts the order id from a delivery edit draft code.
func EditedOrderID(code string) (int64, bool) {
	if !strings.HasPrefix(code, deliveryEditDraftCodePrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(code, deliveryEditDraftCodePrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// DraftCodeSuffix returns the trailing six character suffix of a takeaway or delivery code.
func DraftCodeSuffix(code string) string {
	if len(code) < draftSuffixLength {
		return code
	}
	return code[len(code)-draftSuffixLength:]
}

func randomDraftSuffix() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:draftSuffixLength])
}
