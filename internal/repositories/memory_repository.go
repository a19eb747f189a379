package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"
	"restaurant_pos/pkg/utils"
)

// MemoryStore is an in-process backend implementing every repository
// contract. It publishes the same events as the Postgres repositories.
type MemoryStore struct {
	mu               sync.Mutex
	publisher        events.Publisher
	reservationGuard time.Duration
	now              func() time.Time

	nextID       int64
	drafts       map[int64]*models.DraftItem
	tables       map[int64]*models.Table
	reservations map[int64]*models.Reservation
	orders       map[int64]*models.Order
	coupons      map[int64]*models.Coupon
	variants     map[int64]*models.Variant
	settings     map[string]*models.ApplicationSetting
	failures     map[string]error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(publisher events.Publisher, reservationGuard time.Duration) *MemoryStore {
	return &MemoryStore{
		publisher:        publisher,
		reservationGuard: reservationGuard,
		now:              time.Now,
		drafts:           make(map[int64]*models.DraftItem),
		tables:           make(map[int64]*models.Table),
		reservations:     make(map[int64]*models.Reservation),
		orders:           make(map[int64]*models.Order),
		coupons:          make(map[int64]*models.Coupon),
		variants:         make(map[int64]*models.Variant),
		settings:         make(map[string]*models.ApplicationSetting),
		failures:         make(map[string]error),
	}
}

// SetClock replaces the store's time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// InjectFailure makes the operation op fail with err until cleared. op is
// "<repo>.<method>" optionally suffixed with ":<id>", e.g. "tables.UpdateStatus:3".
func (s *MemoryStore) InjectFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// ClearFailures removes every injected failure.
func (s *MemoryStore) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

func (s *MemoryStore) failure(op string, id int64) error {
	if err, ok := s.failures[op+":"+utils.Int64ToStr(id)]; ok {
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
	return nil
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) emit(ctx context.Context, name events.Name, payload any) {
	publish(ctx, s.publisher, name, payload)
}

// SeedTable stores t, assigning an id when it has none.
func (s *MemoryStore) SeedTable(t models.Table) models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	} else if t.ID > s.nextID {
		s.nextID = t.ID
	}
	if t.Status == "" {
		t.Status = models.TableStatusAvailable
	}
	t.Reservations = nil
	s.tables[t.ID] = &t
	return t
}

// SeedVariant stores v, assigning an id when it has none.
func (s *MemoryStore) SeedVariant(v models.Variant) models.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == 0 {
		v.ID = s.id()
	} else if v.ID > s.nextID {
		s.nextID = v.ID
	}
	s.variants[v.ID] = &v
	return v
}

// SeedCoupon stores c, assigning an id when it has none.
func (s *MemoryStore) SeedCoupon(c models.Coupon) models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	} else if c.ID > s.nextID {
		s.nextID = c.ID
	}
	s.coupons[c.ID] = &c
	return c
}

// SeedReservation stores r without publishing.
func (s *MemoryStore) SeedReservation(r models.Reservation) models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id()
	}
	if r.Status == "" {
		r.Status = models.ReservationStatusPending
	}
	s.reservations[r.ID] = &r
	return r
}

// SetSetting stores a setting value.
func (s *MemoryStore) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.settings[key] = &models.ApplicationSetting{ID: s.id(), SettingKey: key, SettingValue: &value, CreatedAt: now, UpdatedAt: now}
}

// DraftItems returns the store as a DraftItemRepository.
func (s *MemoryStore) DraftItems() DraftItemRepository { return memoryDrafts{s} }

// Tables returns the store as a TableRepository.
func (s *MemoryStore) Tables() TableRepository { return memoryTables{s} }

// Reservations returns the store as a ReservationRepository.
func (s *MemoryStore) Reservations() ReservationRepository { return memoryReservations{s} }

// Orders returns the store as an OrderRepository.
func (s *MemoryStore) Orders() OrderRepository { return memoryOrders{s} }

// Coupons returns the store as a CouponRepository.
func (s *MemoryStore) Coupons() CouponRepository { return memoryCoupons{s} }

// Variants returns the store as a VariantRepository.
func (s *MemoryStore) Variants() VariantRepository { return memoryVariants{s} }

// Settings returns the store as a SettingRepository.
func (s *MemoryStore) Settings() SettingRepository { return memorySettings{s} }

// syncTables mirrors the Postgres occupancy rules. Caller holds s.mu.
func (s *MemoryStore) syncTables(tableIDs []int64) {
	for _, id := range tableIDs {
		t, ok := s.tables[id]
		if !ok {
			continue
		}
		held := s.tableHeld(id)
		switch {
		case held && t.Status != models.TableStatusOccupied:
			t.Status = models.TableStatusOccupied
			t.UpdatedAt = s.now()
		case !held && t.Status == models.TableStatusOccupied:
			t.Status = models.TableStatusAvailable
			if s.tableWithReservations(*t).HasImminentReservation(s.now(), s.reservationGuard) {
				t.Status = models.TableStatusReserved
			}
			t.UpdatedAt = s.now()
		}
	}
}

func (s *MemoryStore) tableHeld(tableID int64) bool {
	for _, d := range s.drafts {
		if d.References(tableID) {
			return true
		}
	}
	for _, o := range s.orders {
		switch o.Status {
		case models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusCancelledByKitchen:
			continue
		}
		for _, id := range o.TableIDs {
			if id == tableID {
				return true
			}
		}
	}
	return false
}

func (s *MemoryStore) tableWithReservations(t models.Table) models.Table {
	t.Reservations = []models.Reservation{}
	for _, r := range s.reservations {
		if r.TableID == t.ID {
			t.Reservations = append(t.Reservations, *r)
		}
	}
	sort.Slice(t.Reservations, func(i, j int) bool {
		return t.Reservations[i].ReservationTime.Before(t.Reservations[j].ReservationTime)
	})
	return t
}

func (s *MemoryStore) draftCopy(d *models.DraftItem) models.DraftItem {
	out := *d
	out.TableIDs = append([]int64{}, d.TableIDs...)
	if v, ok := s.variants[d.VariantID]; ok {
		out.VariantName = v.DisplayName()
		out.Price = v.Price
	}
	return out
}

type memoryDrafts struct{ s *MemoryStore }

func (r memoryDrafts) List(ctx context.Context, filter models.DraftItemFilter) ([]models.DraftItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("drafts.List", 0); err != nil {
		return nil, err
	}
	items := []models.DraftItem{}
	for _, d := range s.drafts {
		if filter.TableID != nil && !d.References(*filter.TableID) {
			continue
		}
		if filter.DraftCode != nil && d.DraftCode != *filter.DraftCode {
			continue
		}
		items = append(items, s.draftCopy(d))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r memoryDrafts) GetByID(ctx context.Context, id int64) (*models.DraftItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.draftCopy(d)
	return &out, nil
}

func (r memoryDrafts) Create(ctx context.Context, item *models.DraftItem) (*models.DraftItem, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("drafts.Create", 0); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for _, d := range s.drafts {
		if d.DraftCode == item.DraftCode && d.VariantID == item.VariantID {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: draft %s already has variant %d", ErrDuplicateKey, item.DraftCode, item.VariantID)
		}
	}
	stored := *item
	stored.ID = s.id()
	if stored.Status == "" {
		stored.Status = models.DraftItemStatusPending
	}
	stored.TableIDs = append([]int64{}, item.TableIDs...)
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.drafts[stored.ID] = &stored
	s.syncTables(stored.TableIDs)
	out := s.draftCopy(&stored)
	s.mu.Unlock()

	s.emit(ctx, events.TableSent, map[string]interface{}{"draft_code": out.DraftCode})
	return &out, nil
}

func (r memoryDrafts) Update(ctx context.Context, item *models.DraftItem) (*models.DraftItem, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("drafts.Update", item.ID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	d, ok := s.drafts[item.ID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	previous := d.TableIDs
	d.Quantity = item.Quantity
	d.Status = item.Status
	d.TableIDs = append([]int64{}, item.TableIDs...)
	d.UpdatedAt = s.now()
	s.syncTables(unionIDs(previous, d.TableIDs))
	out := s.draftCopy(d)
	s.mu.Unlock()

	s.emit(ctx, events.TableSent, map[string]interface{}{"draft_code": out.DraftCode})
	return &out, nil
}

func (r memoryDrafts) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	if err := s.failure("drafts.Delete", id); err != nil {
		s.mu.Unlock()
		return err
	}
	d, ok := s.drafts[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.drafts, id)
	s.syncTables(d.TableIDs)
	s.mu.Unlock()

	s.emit(ctx, events.TableSent, map[string]interface{}{"draft_code": d.DraftCode})
	return nil
}

func (r memoryDrafts) DeleteByCode(ctx context.Context, draftCode string) (int, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("drafts.DeleteByCode", 0); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	var affected []int64
	deleted := 0
	for id, d := range s.drafts {
		if d.DraftCode == draftCode {
			affected = unionIDs(affected, d.TableIDs)
			delete(s.drafts, id)
			deleted++
		}
	}
	s.syncTables(affected)
	s.mu.Unlock()

	s.emit(ctx, events.TableSent, map[string]interface{}{"draft_code": draftCode})
	return deleted, nil
}

type memoryTables struct{ s *MemoryStore }

func (r memoryTables) List(ctx context.Context) ([]models.Table, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("tables.List", 0); err != nil {
		return nil, err
	}
	tables := make([]models.Table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, s.tableWithReservations(*t))
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Code < tables[j].Code })
	return tables, nil
}

func (r memoryTables) GetByID(ctx context.Context, id int64) (*models.Table, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("tables.GetByID", id); err != nil {
		return nil, err
	}
	t, ok := s.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.tableWithReservations(*t)
	return &out, nil
}

func (r memoryTables) UpdateStatus(ctx context.Context, id int64, status models.TableStatus) (*models.Table, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("tables.UpdateStatus", id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	t, ok := s.tables[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = s.now()
	out := s.tableWithReservations(*t)
	s.mu.Unlock()

	s.emit(ctx, events.TableSent, map[string]interface{}{"table_id": id, "status": status})
	return &out, nil
}

type memoryReservations struct{ s *MemoryStore }

func (r memoryReservations) List(ctx context.Context, filters models.ReservationFilters) ([]models.Reservation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("reservations.List", 0); err != nil {
		return nil, err
	}
	out := []models.Reservation{}
	for _, res := range s.reservations {
		if filters.TableID != nil && res.TableID != *filters.TableID {
			continue
		}
		if filters.Status != nil && string(res.Status) != *filters.Status {
			continue
		}
		if filters.DateFrom != nil && res.ReservationTime.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && res.ReservationTime.After(*filters.DateTo) {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservationTime.Before(out[j].ReservationTime) })
	return out, nil
}

func (r memoryReservations) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *res
	return &out, nil
}

func (r memoryReservations) Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("reservations.Create", 0); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	stored := *reservation
	stored.ID = s.id()
	if stored.Status == "" {
		stored.Status = models.ReservationStatusPending
	}
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.reservations[stored.ID] = &stored
	out := stored
	s.mu.Unlock()

	s.emit(ctx, events.ReservationReceived, out)
	return &out, nil
}

func (r memoryReservations) UpdateStatus(ctx context.Context, id int64, status models.ReservationStatus) (*models.Reservation, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("reservations.UpdateStatus", id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	res, ok := s.reservations[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	res.Status = status
	res.UpdatedAt = s.now()
	out := *res
	s.mu.Unlock()

	s.emit(ctx, events.ReservationStatusChanged, map[string]interface{}{"reservation_id": id, "status": status})
	return &out, nil
}

type memoryOrders struct{ s *MemoryStore }

func orderCopy(o *models.Order) models.Order {
	out := *o
	out.TableIDs = append([]int64{}, o.TableIDs...)
	out.Items = append([]models.OrderItem{}, o.Items...)
	return out
}

func (r memoryOrders) List(ctx context.Context, filters models.OrderFilters) ([]models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("orders.List", 0); err != nil {
		return nil, err
	}
	statuses := map[string]bool{}
	for _, st := range filters.Statuses {
		statuses[st] = true
	}
	out := []models.Order{}
	for _, o := range s.orders {
		if filters.OrderType != nil && string(o.OrderType) != *filters.OrderType {
			continue
		}
		if len(statuses) > 0 && !statuses[string(o.Status)] {
			continue
		}
		if filters.TableID != nil && !containsID(o.TableIDs, *filters.TableID) {
			continue
		}
		if filters.Date != nil && o.CreatedAt.Format("2006-01-02") != *filters.Date {
			continue
		}
		out = append(out, orderCopy(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memoryOrders) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := orderCopy(o)
	return &out, nil
}

func (r memoryOrders) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("orders.Create", 0); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	stored := orderCopy(order)
	stored.ID = s.id()
	if stored.Status == "" {
		stored.Status = models.OrderStatusPending
	}
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	for i := range stored.Items {
		stored.Items[i].ID = s.id()
		stored.Items[i].OrderID = stored.ID
	}
	if stored.CouponID != nil {
		if c, ok := s.coupons[*stored.CouponID]; ok && c.UsageLimit != nil && *c.UsageLimit > 0 {
			left := *c.UsageLimit - 1
			c.UsageLimit = &left
		}
	}
	s.orders[stored.ID] = &stored
	out := orderCopy(&stored)
	s.mu.Unlock()

	s.emit(ctx, events.OrderReceived, map[string]interface{}{"order_id": out.ID, "order_type": out.OrderType})
	return &out, nil
}

func (r memoryOrders) Amend(ctx context.Context, order *models.Order) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("orders.Amend", order.ID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	o, ok := s.orders[order.ID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	o.TotalAmount = order.TotalAmount
	o.FeeAmount = order.FeeAmount
	o.DiscountAmount = order.DiscountAmount
	o.FinalAmount = order.FinalAmount
	o.CouponID = order.CouponID
	o.Note = order.Note
	if order.DeliveryAddress != nil {
		o.DeliveryAddress = order.DeliveryAddress
	}
	o.Items = append([]models.OrderItem{}, order.Items...)
	for i := range o.Items {
		o.Items[i].ID = s.id()
		o.Items[i].OrderID = o.ID
	}
	o.UpdatedAt = s.now()
	out := orderCopy(o)
	s.mu.Unlock()

	s.emit(ctx, events.OrderReceived, map[string]interface{}{"order_id": out.ID, "amended": true})
	return &out, nil
}

func (r memoryOrders) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	if err := s.failure("orders.UpdateStatus", id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = s.now()
	s.syncTables(o.TableIDs)
	out := orderCopy(o)
	s.mu.Unlock()

	s.emit(ctx, events.OrderStatusChanged, map[string]interface{}{"order_id": id, "status": status})
	if len(out.TableIDs) > 0 {
		s.emit(ctx, events.TableSent, map[string]interface{}{"table_ids": out.TableIDs})
	}
	return &out, nil
}

type memoryCoupons struct{ s *MemoryStore }

func (r memoryCoupons) List(ctx context.Context) ([]models.Coupon, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("coupons.List", 0); err != nil {
		return nil, err
	}
	out := make([]models.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type memoryVariants struct{ s *MemoryStore }

func (r memoryVariants) List(ctx context.Context, onlyAvailable bool) ([]models.Variant, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Variant{}
	for _, v := range s.variants {
		if onlyAvailable && !v.IsAvailable {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryVariants) GetByID(ctx context.Context, id int64) (*models.Variant, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *v
	return &out, nil
}

type memorySettings struct{ s *MemoryStore }

func (r memorySettings) Get(ctx context.Context, key string) (*models.ApplicationSetting, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := *setting
	return &out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
