package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"

	"github.com/jonboulle/clockwork"
)

const watcherBuffer = 32

// CacheUpdate is pushed to terminals whenever a query result lands.
type CacheUpdate struct {
	Key     QueryKey  `json:"key"`
	Version uint64    `json:"version"`
	Value   any       `json:"value"`
	At      time.Time `json:"at"`
}

// WorkspaceDeps are the collaborators shared by every workspace.
type WorkspaceDeps struct {
	DraftRepo       repositories.DraftItemRepository
	TableRepo       repositories.TableRepository
	ReservationRepo repositories.ReservationRepository
	OrderRepo       repositories.OrderRepository
	CouponRepo      repositories.CouponRepository
	VariantRepo     repositories.VariantRepository
	SettingRepo     repositories.SettingRepository

	Bus              *events.Bus
	Clock            clockwork.Clock
	SettleDelay      time.Duration
	ReservationGuard time.Duration
	Pricing          PricingRules
	Linker           PaymentLinker
}

// pendingGuard rejects an operation while an identical one is in flight.
type pendingGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func (g *pendingGuard) begin(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight == nil {
		g.inflight = make(map[string]struct{})
	}
	if _, busy := g.inflight[key]; busy {
		return nil, fmt.Errorf("%w: %s", ErrOperationPending, key)
	}
	g.inflight[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}, nil
}

// Workspace is the engine state of one authenticated terminal: its tabs, table
// combinations, cached queries and checkout choices.
type Workspace struct {
	session models.Session
	clock   clockwork.Clock

	tabs      *TabManager
	combos    *CombinationEngine
	cache     *QueryCache
	syncer    *Syncer
	drafts    DraftService
	pricing   PricingService
	finalizer FinalizationService

	tableRepo       repositories.TableRepository
	reservationRepo repositories.ReservationRepository
	orderRepo       repositories.OrderRepository
	couponRepo      repositories.CouponRepository

	guard pendingGuard

	mu         sync.Mutex
	checkout   map[string]CheckoutState
	watchers   map[chan CacheUpdate]struct{}
	draftSizes map[QueryKey]int
}

func newWorkspace(session models.Session, deps WorkspaceDeps, registry *CombinationRegistry) *Workspace {
	drafts := NewDraftService(deps.DraftRepo, deps.VariantRepo, deps.OrderRepo)
	pricing := NewPricingService(deps.CouponRepo, deps.SettingRepo, deps.Pricing)
	cache := NewQueryCache(deps.Clock)
	ws := &Workspace{
		session:         session,
		clock:           deps.Clock,
		tabs:            NewTabManager(deps.Clock),
		combos:          NewCombinationEngine(registry, deps.TableRepo, drafts, deps.ReservationGuard, deps.Clock),
		cache:           cache,
		syncer:          NewSyncer(deps.Bus, cache, deps.Clock, deps.SettleDelay),
		drafts:          drafts,
		pricing:         pricing,
		finalizer:       NewFinalizationService(deps.OrderRepo, drafts, pricing, deps.Linker, deps.Clock),
		tableRepo:       deps.TableRepo,
		reservationRepo: deps.ReservationRepo,
		orderRepo:       deps.OrderRepo,
		couponRepo:      deps.CouponRepo,
		checkout:        make(map[string]CheckoutState),
		watchers:        make(map[chan CacheUpdate]struct{}),
		draftSizes:      make(map[QueryKey]int),
	}

	cache.Register(KeyTables, func(ctx context.Context) (any, error) { return ws.tableRepo.List(ctx) })
	cache.Register(KeyReservations, func(ctx context.Context) (any, error) {
		return ws.reservationRepo.List(ctx, models.ReservationFilters{})
	})
	cache.Register(KeyOrders, func(ctx context.Context) (any, error) {
		return ws.orderRepo.List(ctx, models.OrderFilters{})
	})
	cache.Register(KeyCoupons, func(ctx context.Context) (any, error) { return ws.couponRepo.List(ctx) })
	cache.OnChange(ws.cacheChanged)
	return ws
}

// Session returns the session owning the workspace.
func (w *Workspace) Session() models.Session { return w.session }

// Cache exposes the workspace's query cache.
func (w *Workspace) Cache() *QueryCache { return w.cache }

// Syncer exposes the workspace's sync layer.
func (w *Workspace) Syncer() *Syncer { return w.syncer }

// Refresh refetches every registered query now.
func (w *Workspace) Refresh(ctx context.Context) error {
	var firstErr error
	for _, key := range w.cache.Keys() {
		if err := w.cache.Refetch(ctx, key); err != nil {
			utils.LogWarn(err, "Workspace refresh failed", map[string]interface{}{"query": string(key), "session": w.session.Key()})
			if firstErr == nil {
				firstErr = backendError("refresh "+string(key), err, nil)
			}
		}
	}
	return firstErr
}

// Watch streams cache updates until the returned cancel func is called.
func (w *Workspace) Watch() (<-chan CacheUpdate, func()) {
	ch := make(chan CacheUpdate, watcherBuffer)
	w.mu.Lock()
	w.watchers[ch] = struct{}{}
	w.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if _, ok := w.watchers[ch]; ok {
				delete(w.watchers, ch)
				close(ch)
			}
		})
	}
}

func (w *Workspace) cacheChanged(key QueryKey, result QueryResult) {
	if key.IsDrafts() {
		w.closeVanishedTab(key, result)
	}
	update := CacheUpdate{Key: key, Version: result.Version, Value: result.Value, At: result.UpdatedAt}
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.watchers {
		select {
		case ch <- update:
		default:
		}
	}
}

// closeVanishedTab closes an inactive dine-in tab whose draft was emptied by
// someone else.
func (w *Workspace) closeVanishedTab(key QueryKey, result QueryResult) {
	items, _ := result.Value.([]models.DraftItem)
	w.mu.Lock()
	before, seen := w.draftSizes[key]
	w.draftSizes[key] = len(items)
	w.mu.Unlock()
	if !seen || before == 0 || len(items) > 0 {
		return
	}
	for _, tab := range w.tabs.Tabs() {
		if _, dineIn := tab.Target.(models.DineInTable); !dineIn || tab.Active || DraftKey(tab) != key {
			continue
		}
		if _, err := w.closeTab(context.Background(), tab.ID); err == nil {
			utils.LogInfo("Tab closed after its draft was deleted elsewhere", map[string]interface{}{"tab_id": tab.ID, "draft_code": tab.DraftCode()})
		}
	}
}

// Tabs lists the open tabs.
func (w *Workspace) Tabs() []models.OrderTab { return w.tabs.Tabs() }

// ActiveTab returns the active tab.
func (w *Workspace) ActiveTab() (models.OrderTab, error) {
	tab, ok := w.tabs.Active()
	if !ok {
		return models.OrderTab{}, ErrNoActiveTab
	}
	return tab, nil
}

func (w *Workspace) tab(tabID string) (models.OrderTab, error) {
	if tabID == "" {
		return w.ActiveTab()
	}
	tab, ok := w.tabs.Get(tabID)
	if !ok {
		return models.OrderTab{}, ErrTabNotFound
	}
	return tab, nil
}

// OpenTab opens or re-activates the tab for the requested target and loads its draft.
func (w *Workspace) OpenTab(ctx context.Context, req OpenTabRequest) (models.OrderTab, error) {
	target, err := w.resolveTarget(ctx, req)
	if err != nil {
		return models.OrderTab{}, err
	}
	if req.ReservationID != nil {
		if _, err := w.reservationRepo.GetByID(ctx, *req.ReservationID); err != nil {
			return models.OrderTab{}, backendError("load reservation", err, ErrReservationMissing)
		}
	}
	tab, created := w.tabs.OpenOrCreate(target, strings.TrimSpace(req.Name), req.ReservationID)
	w.watchDraft(ctx, tab)
	if created {
		utils.LogInfo("Order tab opened", map[string]interface{}{"tab_id": tab.ID, "draft_code": tab.DraftCode(), "session": w.session.Key()})
	}
	return tab, nil
}

func (w *Workspace) resolveTarget(ctx context.Context, req OpenTabRequest) (models.TabTarget, error) {
	code := strings.TrimSpace(req.DraftCode)
	switch models.OrderType(req.OrderType) {
	case models.OrderTypeDineIn:
		if req.TableID == nil {
			return nil, fmt.Errorf("%w: table_id is required for dine-in", ErrValidation)
		}
		table, err := w.tableRepo.GetByID(ctx, *req.TableID)
		if err != nil {
			return nil, backendError("load table", err, ErrTableNotFound)
		}
		return models.DineInTable{TableID: table.ID, TableCode: table.Code}, nil
	case models.OrderTypeTakeaway:
		if code == "" {
			code = models.NewTakeawayDraftCode()
		} else if t, ok := models.DraftCodeOrderType(code); !ok || t != models.OrderTypeTakeaway {
			return nil, fmt.Errorf("%w: %q is not a takeaway draft code", ErrValidation, code)
		}
		return models.TakeawayDraft{Code: code}, nil
	case models.OrderTypeDelivery:
		if code == "" {
			code = models.NewDeliveryDraftCode()
		} else if t, ok := models.DraftCodeOrderType(code); !ok || t != models.OrderTypeDelivery {
			return nil, fmt.Errorf("%w: %q is not a delivery draft code", ErrValidation, code)
		}
		target := models.DeliveryDraft{Code: code}
		if id, ok := models.EditedOrderID(code); ok {
			target.EditOrderID = &id
		}
		return target, nil
	default:
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, req.OrderType)
	}
}

// watchDraft registers the draft query of tab and loads it once.
func (w *Workspace) watchDraft(ctx context.Context, tab models.OrderTab) {
	key := DraftKey(tab)
	if w.cache.Registered(key) {
		return
	}
	filter := models.DraftItemFilter{}
	switch t := tab.Target.(type) {
	case models.DineInTable:
		id := t.TableID
		filter.TableID = &id
	default:
		code := tab.DraftCode()
		filter.DraftCode = &code
	}
	w.cache.Register(key, func(ctx context.Context) (any, error) { return w.drafts.List(ctx, filter) })
	if err := w.cache.Refetch(ctx, key); err != nil {
		utils.LogWarn(err, "Initial draft load failed", map[string]interface{}{"query": string(key)})
	}
}

// ActivateTab makes tabID active.
func (w *Workspace) ActivateTab(tabID string) (models.OrderTab, error) {
	return w.tabs.Activate(tabID)
}

// CloseTab closes tabID. Uncommitted combined tables are handed back best-effort;
// a delivery order open for edit stays as it is.
func (w *Workspace) CloseTab(ctx context.Context, tabID string) (models.OrderTab, error) {
	return w.closeTab(ctx, tabID)
}

func (w *Workspace) closeTab(ctx context.Context, tabID string) (models.OrderTab, error) {
	tab, err := w.tabs.Close(tabID)
	if err != nil {
		return models.OrderTab{}, err
	}
	if err := w.combos.Clear(ctx, tabID); err != nil {
		utils.LogWarn(err, "Combined tables not released on tab close", map[string]interface{}{"tab_id": tabID})
	}
	w.combos.Release(tabID)

	w.mu.Lock()
	delete(w.checkout, tabID)
	w.mu.Unlock()

	if !w.keyInUse(DraftKey(tab)) {
		w.cache.Forget(DraftKey(tab))
		w.mu.Lock()
		delete(w.draftSizes, DraftKey(tab))
		w.mu.Unlock()
	}
	return tab, nil
}

func (w *Workspace) keyInUse(key QueryKey) bool {
	for _, t := range w.tabs.Tabs() {
		if DraftKey(t) == key {
			return true
		}
	}
	return false
}

// Items returns the visible items of tabID, or of the active tab when empty.
func (w *Workspace) Items(tabID string) ([]models.DraftItem, error) {
	tab, err := w.tab(tabID)
	if err != nil {
		return nil, err
	}
	return w.tabs.VisibleItems(tab, w.cache), nil
}

// draftTables is the table list new items of tab are attached to: the tab's
// table plus any table already combined into its draft.
func (w *Workspace) draftTables(tab models.OrderTab) []int64 {
	t, ok := tab.Target.(models.DineInTable)
	if !ok {
		return nil
	}
	tables := []int64{t.TableID}
	for _, item := range w.tabs.VisibleItems(tab, w.cache) {
		tables = unionIDs(tables, item.TableIDs)
	}
	return tables
}

// AddItem adds a variant to the active tab's draft.
func (w *Workspace) AddItem(ctx context.Context, req AddDraftItemRequest) (*models.DraftItem, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return nil, err
	}
	done, err := w.guard.begin(fmt.Sprintf("add:%s:%d", tab.DraftCode(), req.VariantID))
	if err != nil {
		return nil, err
	}
	defer done()
	return w.drafts.AddItem(ctx, tab.DraftCode(), req.VariantID, req.Quantity, w.draftTables(tab))
}

// UpdateItem sets the quantity of a draft line; zero or less removes it.
func (w *Workspace) UpdateItem(ctx context.Context, itemID int64, quantity int) (*models.DraftItem, error) {
	done, err := w.guard.begin(fmt.Sprintf("item:%d", itemID))
	if err != nil {
		return nil, err
	}
	defer done()
	return w.drafts.UpdateQuantity(ctx, itemID, quantity, nil)
}

// RemoveItem deletes a draft line.
func (w *Workspace) RemoveItem(ctx context.Context, itemID int64) error {
	done, err := w.guard.begin(fmt.Sprintf("item:%d", itemID))
	if err != nil {
		return err
	}
	defer done()
	return w.drafts.DeleteItem(ctx, itemID)
}

// ChangeItemStatus moves a draft line through the kitchen workflow.
func (w *Workspace) ChangeItemStatus(ctx context.Context, itemID int64, status models.DraftItemStatus) (*models.DraftItem, error) {
	done, err := w.guard.begin(fmt.Sprintf("item:%d", itemID))
	if err != nil {
		return nil, err
	}
	defer done()
	return w.drafts.ChangeStatus(ctx, itemID, status)
}

// CancelDraft deletes every item of the active tab's draft and closes the tab.
func (w *Workspace) CancelDraft(ctx context.Context) (int, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return 0, err
	}
	done, err := w.guard.begin("draft:" + tab.ID)
	if err != nil {
		return 0, err
	}
	defer done()
	n, err := w.drafts.DeleteAllForCode(ctx, tab.DraftCode())
	if err != nil {
		return 0, err
	}
	if _, err := w.closeTab(ctx, tab.ID); err != nil {
		return n, err
	}
	return n, nil
}

// combinationTab returns the active tab when table combination is allowed for it.
// Growing a combination needs items on the draft; handing tables back does not.
func (w *Workspace) combinationTab(needItems bool) (models.OrderTab, models.DineInTable, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return models.OrderTab{}, models.DineInTable{}, err
	}
	target, ok := tab.Target.(models.DineInTable)
	if !ok {
		return models.OrderTab{}, models.DineInTable{}, ErrNotDineInTab
	}
	if needItems && len(w.tabs.VisibleItems(tab, w.cache)) == 0 {
		return models.OrderTab{}, models.DineInTable{}, fmt.Errorf("%w: add items before combining tables", ErrDraftEmpty)
	}
	return tab, target, nil
}

// EligibleTables lists the cached tables the active tab may combine with.
func (w *Workspace) EligibleTables() ([]models.Table, error) {
	tab, target, err := w.combinationTab(true)
	if err != nil {
		return nil, err
	}
	tables, _ := w.cache.Tables()
	return w.combos.Propose(tab.ID, target.TableID, tables, w.clock.Now()), nil
}

// SelectedTables returns the uncommitted combination of the active tab.
func (w *Workspace) SelectedTables() ([]int64, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return nil, err
	}
	return w.combos.Selected(tab.ID), nil
}

// ToggleTable adds or removes tableID from the active tab's combination.
func (w *Workspace) ToggleTable(ctx context.Context, tableID int64) (bool, error) {
	active, err := w.ActiveTab()
	if err != nil {
		return false, err
	}
	removing := w.combos.isSelected(active.ID, tableID)
	tab, target, err := w.combinationTab(!removing)
	if err != nil {
		return false, err
	}
	if tableID == target.TableID {
		return false, ErrPrimaryTable
	}
	done, err := w.guard.begin(fmt.Sprintf("table:%d", tableID))
	if err != nil {
		return false, err
	}
	defer done()
	return w.combos.Toggle(ctx, tab.ID, tableID)
}

// CommitTables attaches the selection to the active draft.
func (w *Workspace) CommitTables(ctx context.Context) ([]int64, error) {
	tab, target, err := w.combinationTab(true)
	if err != nil {
		return nil, err
	}
	done, err := w.guard.begin("combination:" + tab.ID)
	if err != nil {
		return nil, err
	}
	defer done()
	return w.combos.Commit(ctx, tab.ID, tab.DraftCode(), target.TableID)
}

// ClearTables hands back every selected table of the active tab.
func (w *Workspace) ClearTables(ctx context.Context) error {
	tab, _, err := w.combinationTab(false)
	if err != nil {
		return err
	}
	done, err := w.guard.begin("combination:" + tab.ID)
	if err != nil {
		return err
	}
	defer done()
	return w.combos.Clear(ctx, tab.ID)
}

// Checkout returns the checkout choices of the active tab.
func (w *Workspace) Checkout() (CheckoutState, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return CheckoutState{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checkout[tab.ID], nil
}

// UpdateCheckout changes the checkout choices of the active tab.
func (w *Workspace) UpdateCheckout(req UpdateCheckoutRequest) (CheckoutState, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return CheckoutState{}, err
	}
	if req.PaymentMethod != nil && *req.PaymentMethod != "" && !models.IsValidPaymentMethod(*req.PaymentMethod) {
		return CheckoutState{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, *req.PaymentMethod)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	state := w.checkout[tab.ID]
	if req.CouponCode != nil {
		state.CouponCode = trimmed(req.CouponCode)
	}
	if req.PaymentMethod != nil {
		state.PaymentMethod = models.PaymentMethod(strings.TrimSpace(*req.PaymentMethod))
	}
	if req.Note != nil {
		state.Note = trimmed(req.Note)
	}
	if req.DeliveryAddress != nil {
		state.DeliveryAddress = trimmed(req.DeliveryAddress)
	}
	w.checkout[tab.ID] = state
	return state, nil
}

// Quote prices the active tab with its current checkout choices.
func (w *Workspace) Quote(ctx context.Context) (Totals, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return Totals{}, err
	}
	state, _ := w.Checkout()
	totals, _, err := w.finalizer.Quote(ctx, tab, w.tabs.VisibleItems(tab, w.cache), state)
	return totals, err
}

// Finalize turns the active tab into an order. On success the tab is closed and
// its checkout choices are dropped; on failure everything is left as it was.
func (w *Workspace) Finalize(ctx context.Context) (*FinalizeResult, error) {
	tab, err := w.ActiveTab()
	if err != nil {
		return nil, err
	}
	done, err := w.guard.begin("finalize:" + tab.ID)
	if err != nil {
		return nil, err
	}
	defer done()

	state, _ := w.Checkout()
	items := w.tabs.VisibleItems(tab, w.cache)
	result, err := w.finalizer.Finalize(ctx, tab, items, state)
	if err != nil {
		return nil, err
	}
	if _, err := w.closeTab(ctx, tab.ID); err != nil {
		result.Warnings = append(result.Warnings, "tab was already closed")
	}
	return result, nil
}

// StartDeliveryEdit loads a delivery order into its edit draft and opens a tab on it.
func (w *Workspace) StartDeliveryEdit(ctx context.Context, orderID int64) (models.OrderTab, error) {
	done, err := w.guard.begin(fmt.Sprintf("edit:%d", orderID))
	if err != nil {
		return models.OrderTab{}, err
	}
	defer done()

	code, _, err := w.finalizer.StartDeliveryEdit(ctx, orderID)
	if err != nil {
		return models.OrderTab{}, err
	}
	id := orderID
	tab, _ := w.tabs.OpenOrCreate(models.DeliveryDraft{Code: code, EditOrderID: &id}, "", nil)
	w.watchDraft(ctx, tab)

	order, err := w.orderRepo.GetByID(ctx, orderID)
	if err == nil {
		state := CheckoutState{PaymentMethod: order.PaymentMethod, Note: order.Note, DeliveryAddress: order.DeliveryAddress}
		if order.CouponID != nil {
			if coupon, err := w.pricing.Coupon(ctx, *order.CouponID); err == nil {
				state.CouponCode = &coupon.Code
			}
		}
		w.mu.Lock()
		w.checkout[tab.ID] = state
		w.mu.Unlock()
	}
	return tab, nil
}

// connect loads every query and subscribes the sync channels.
func (w *Workspace) connect(ctx context.Context) error {
	if err := w.syncer.Connect(ctx, &w.session); err != nil {
		return err
	}
	if err := w.Refresh(ctx); err != nil {
		utils.LogWarn(err, "Workspace opened with stale queries", map[string]interface{}{"session": w.session.Key()})
	}
	return nil
}

// shutdown disconnects the workspace and hands back every uncommitted table.
func (w *Workspace) shutdown(ctx context.Context) {
	w.syncer.Disconnect()
	for _, tab := range w.tabs.Tabs() {
		if err := w.combos.Clear(ctx, tab.ID); err != nil {
			utils.LogWarn(err, "Combined tables not released on logout", map[string]interface{}{"tab_id": tab.ID})
		}
		w.combos.Release(tab.ID)
	}
	w.mu.Lock()
	for ch := range w.watchers {
		delete(w.watchers, ch)
		close(ch)
	}
	w.mu.Unlock()
}

// WorkspaceManager owns one workspace per session key.
type WorkspaceManager struct {
	ctx      context.Context
	deps     WorkspaceDeps
	registry *CombinationRegistry

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewWorkspaceManager creates a manager. Workspaces refetch under ctx.
func NewWorkspaceManager(ctx context.Context, deps WorkspaceDeps) *WorkspaceManager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.ReservationGuard <= 0 {
		deps.ReservationGuard = DefaultReservationGuard
	}
	return &WorkspaceManager{
		ctx:        ctx,
		deps:       deps,
		registry:   NewCombinationRegistry(),
		workspaces: make(map[string]*Workspace),
	}
}

// Registry returns the process-wide combination registry.
func (m *WorkspaceManager) Registry() *CombinationRegistry { return m.registry }

// Open returns the workspace of session, creating and connecting it on first use.
func (m *WorkspaceManager) Open(session *models.Session) (*Workspace, error) {
	if !session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[session.Key()]; ok {
		return ws, nil
	}
	ws := newWorkspace(*session, m.deps, m.registry)
	if err := ws.connect(m.ctx); err != nil {
		return nil, err
	}
	m.workspaces[session.Key()] = ws
	utils.LogInfo("Workspace opened", map[string]interface{}{"session": session.Key(), "user": session.Username})
	return ws, nil
}

// Get returns the workspace of key if open.
func (m *WorkspaceManager) Get(key string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[key]
	return ws, ok
}

// Close shuts the workspace of key down.
func (m *WorkspaceManager) Close(ctx context.Context, key string) bool {
	m.mu.Lock()
	ws, ok := m.workspaces[key]
	delete(m.workspaces, key)
	m.mu.Unlock()
	if !ok {
		return false
	}
	ws.shutdown(ctx)
	utils.LogInfo("Workspace closed", map[string]interface{}{"session": key})
	return true
}

// Count returns the number of open workspaces.
func (m *WorkspaceManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// ResyncAll schedules a full refetch in every workspace.
func (m *WorkspaceManager) ResyncAll() {
	m.mu.Lock()
	list := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		list = append(list, ws)
	}
	m.mu.Unlock()
	for _, ws := range list {
		ws.syncer.ResyncAll()
	}
	utils.LogDebug("Periodic resync scheduled", map[string]interface{}{"workspaces": len(list)})
}

// Shutdown closes every workspace.
func (m *WorkspaceManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.workspaces))
	for k := range m.workspaces {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	for _, k := range keys {
		m.Close(ctx, k)
	}
}
