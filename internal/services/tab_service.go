package services

import (
	"fmt"
	"sync"

	"restaurant_pos/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// OpenTabRequest opens, or re-activates, an order tab.
type OpenTabRequest struct {
	OrderType     string `json:"order_type" binding:"required"`
	TableID       *int64 `json:"table_id"`
	DraftCode     string `json:"draft_code"`
	Name          string `json:"name"`
	ReservationID *int64 `json:"reservation_id"`
}

// TabManager keeps the open order tabs of one workspace and which one is active.
type TabManager struct {
	clock clockwork.Clock

	mu       sync.Mutex
	tabs     []*models.OrderTab
	activeID string
}

// NewTabManager creates a manager without tabs.
func NewTabManager(clock clockwork.Clock) *TabManager {
	return &TabManager{clock: clock}
}

func (m *TabManager) snapshot(t *models.OrderTab) models.OrderTab {
	out := *t
	out.Active = t.ID == m.activeID
	return out
}

func (m *TabManager) find(tabID string) (int, *models.OrderTab) {
	for i, t := range m.tabs {
		if t.ID == tabID {
			return i, t
		}
	}
	return -1, nil
}

// OpenOrCreate activates the tab already targeting the same draft, or creates a
// new active tab. It reports whether a tab was created.
func (m *TabManager) OpenOrCreate(target models.TabTarget, name string, reservationID *int64) (models.OrderTab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tabs {
		if models.SameTarget(t.Target, target) {
			if reservationID != nil {
				t.ReservationID = reservationID
			}
			m.activeID = t.ID
			return m.snapshot(t), false
		}
	}

	if name == "" {
		name = DefaultTabName(target)
	}
	tab := &models.OrderTab{
		ID:            uuid.NewString(),
		Name:          name,
		Target:        target,
		ReservationID: reservationID,
		CreatedAt:     m.clock.Now(),
	}
	m.tabs = append(m.tabs, tab)
	m.activeID = tab.ID
	return m.snapshot(tab), true
}

// Close removes tabID. When it was active, the most recently created remaining
// tab becomes active, or none when no tab is left.
func (m *TabManager) Close(tabID string) (models.OrderTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, tab := m.find(tabID)
	if tab == nil {
		return models.OrderTab{}, ErrTabNotFound
	}
	closed := m.snapshot(tab)
	m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
	if m.activeID == tabID {
		m.activeID = ""
		if n := len(m.tabs); n > 0 {
			m.activeID = m.tabs[n-1].ID
		}
	}
	closed.Active = false
	return closed, nil
}

// Activate makes tabID the active tab.
func (m *TabManager) Activate(tabID string) (models.OrderTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, tab := m.find(tabID)
	if tab == nil {
		return models.OrderTab{}, ErrTabNotFound
	}
	m.activeID = tabID
	return m.snapshot(tab), nil
}

// Retarget points tabID at a new target, keeping its identity.
func (m *TabManager) Retarget(tabID string, target models.TabTarget) (models.OrderTab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, tab := m.find(tabID)
	if tab == nil {
		return models.OrderTab{}, ErrTabNotFound
	}
	tab.Target = target
	return m.snapshot(tab), nil
}

// Active returns the active tab.
func (m *TabManager) Active() (models.OrderTab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, tab := m.find(m.activeID)
	if tab == nil {
		return models.OrderTab{}, false
	}
	return m.snapshot(tab), true
}

// Get returns tabID.
func (m *TabManager) Get(tabID string) (models.OrderTab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, tab := m.find(tabID)
	if tab == nil {
		return models.OrderTab{}, false
	}
	return m.snapshot(tab), true
}

// Tabs lists the open tabs in creation order.
func (m *TabManager) Tabs() []models.OrderTab {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OrderTab, 0, len(m.tabs))
	for _, t := range m.tabs {
		out = append(out, m.snapshot(t))
	}
	return out
}

// DraftKey is the cache query holding the items of tab.
func DraftKey(tab models.OrderTab) QueryKey {
	switch t := tab.Target.(type) {
	case models.DineInTable:
		return TableDraftsKey(t.TableID)
	default:
		return CodeDraftsKey(tab.DraftCode())
	}
}

// VisibleItems derives the items shown for tab from the cached draft queries.
// A dine-in tab shows its table's draft while active; otherwise only items that
// reference its table. Nothing is shown before the first fetch.
func (m *TabManager) VisibleItems(tab models.OrderTab, cache *QueryCache) []models.DraftItem {
	items, fetched := cache.Drafts(DraftKey(tab))
	if !fetched {
		return []models.DraftItem{}
	}
	switch t := tab.Target.(type) {
	case models.DineInTable:
		if tab.Active {
			return append([]models.DraftItem{}, items...)
		}
		visible := []models.DraftItem{}
		for _, item := range items {
			if item.References(t.TableID) {
				visible = append(visible, item)
			}
		}
		return visible
	case models.TakeawayDraft, models.DeliveryDraft:
		return append([]models.DraftItem{}, items...)
	default:
		return []models.DraftItem{}
	}
}

// DefaultTabName labels a tab after its target.
func DefaultTabName(target models.TabTarget) string {
	switch t := target.(type) {
	case models.DineInTable:
		return "Table " + t.TableCode
	case models.TakeawayDraft:
		return "Takeaway #" + models.DraftCodeSuffix(t.Code)
	case models.DeliveryDraft:
		if t.EditOrderID != nil {
			return fmt.Sprintf("Edit order #%d", *t.EditOrderID)
		}
		return "Delivery #" + models.DraftCodeSuffix(t.Code)
	default:
		return "Order"
	}
}
