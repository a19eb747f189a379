package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TabTarget is what an OrderTab points at. Implementations are DineInTable,
// TakeawayDraft and DeliveryDraft; callers switch on the concrete type.
type TabTarget interface {
	OrderType() OrderType
	DraftCode() string
	isTabTarget()
}

// DineInTable targets the draft of a physical table.
type DineInTable struct {
	TableID   int64
	TableCode string
}

func (DineInTable) OrderType() OrderType { return OrderTypeDineIn }
func (t DineInTable) DraftCode() string  { return TableDraftCode(t.TableCode) }
func (DineInTable) isTabTarget()         {}

// TakeawayDraft targets a takeaway draft code.
type TakeawayDraft struct {
	Code string
}

func (TakeawayDraft) OrderType() OrderType { return OrderTypeTakeaway }
func (t TakeawayDraft) DraftCode() string  { return t.Code }
func (TakeawayDraft) isTabTarget()         {}

// DeliveryDraft targets a delivery draft code. EditOrderID is set while an
// existing delivery order is being amended.
type DeliveryDraft struct {
	Code        string
	EditOrderID *int64
}

func (DeliveryDraft) OrderType() OrderType { return OrderTypeDelivery }
func (t DeliveryDraft) DraftCode() string  { return t.Code }
func (DeliveryDraft) isTabTarget()         {}

// SameTarget reports whether two targets address the same draft.
func SameTarget(a, b TabTarget) bool {
	switch at := a.(type) {
	case DineInTable:
		bt, ok := b.(DineInTable)
		return ok && bt.TableID == at.TableID
	case TakeawayDraft:
		bt, ok := b.(TakeawayDraft)
		return ok && bt.Code == at.Code
	case DeliveryDraft:
		bt, ok := b.(DeliveryDraft)
		return ok && bt.Code == at.Code
	default:
		return false
	}
}

// OrderTab is an open, locally held handle on one draft.
type OrderTab struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Target        TabTarget `json:"-"`
	Active        bool      `json:"active"`
	ReservationID *int64    `json:"reservation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderType of the tab's target.
func (t OrderTab) OrderType() OrderType { return t.Target.OrderType() }

// DraftCode of the tab's target.
func (t OrderTab) DraftCode() string { return t.Target.DraftCode() }

// TableID returns the table of a dine-in tab.
func (t OrderTab) TableID() (int64, bool) {
	if d, ok := t.Target.(DineInTable); ok {
		return d.TableID, true
	}
	return 0, false
}

type tabTargetJSON struct {
	Kind        OrderType `json:"kind"`
	TableID     int64     `json:"table_id,omitempty"`
	TableCode   string    `json:"table_code,omitempty"`
	Code        string    `json:"code,omitempty"`
	EditOrderID *int64    `json:"edit_order_id,omitempty"`
}

// MarshalJSON flattens the target into a tagged object.
func (t OrderTab) MarshalJSON() ([]byte, error) {
	type alias OrderTab
	var target tabTargetJSON
	switch tt := t.Target.(type) {
	case DineInTable:
		target = tabTargetJSON{Kind: OrderTypeDineIn, TableID: tt.TableID, TableCode: tt.TableCode}
	case TakeawayDraft:
		target = tabTargetJSON{Kind: OrderTypeTakeaway, Code: tt.Code}
	case DeliveryDraft:
		target = tabTargetJSON{Kind: OrderTypeDelivery, Code: tt.Code, EditOrderID: tt.EditOrderID}
	default:
		return nil, fmt.Errorf("unknown tab target %T", t.Target)
	}
	return json.Marshal(struct {
		alias
		Target    tabTargetJSON `json:"target"`
		DraftCode string        `json:"draft_code"`
		OrderType OrderType     `json:"order_type"`
	}{alias: alias(t), Target: target, DraftCode: t.DraftCode(), OrderType: t.OrderType()})
}
