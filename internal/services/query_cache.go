package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"restaurant_pos/internal/models"

	"github.com/jonboulle/clockwork"
)

// QueryKey names one cached backend query of a workspace.
type QueryKey string

const (
	KeyTables       QueryKey = "tables"
	KeyReservations QueryKey = "reservations"
	KeyOrders       QueryKey = "orders"
	KeyCoupons      QueryKey = "coupons"

	draftsKeyPrefix = "drafts:"
)

// TableDraftsKey is the query of the draft items attached to a table.
func TableDraftsKey(tableID int64) QueryKey {
	return QueryKey(draftsKeyPrefix + "table:" + strconv.FormatInt(tableID, 10))
}

// CodeDraftsKey is the query of the draft items under a draft code.
func CodeDraftsKey(code string) QueryKey {
	return QueryKey(draftsKeyPrefix + "code:" + code)
}

// IsDrafts reports whether k is a draft item query.
func (k QueryKey) IsDrafts() bool {
	return strings.HasPrefix(string(k), draftsKeyPrefix)
}

// Fetcher re-queries the full current state behind a key.
type Fetcher func(ctx context.Context) (any, error)

// QueryResult is the last stored outcome of a key. Fetched is false until the
// first fetch lands.
type QueryResult struct {
	Value     any       `json:"value"`
	Err       error     `json:"-"`
	Fetched   bool      `json:"fetched"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type queryEntry struct {
	fetch  Fetcher
	result QueryResult
}

// QueryCache stores refetched query results. The only writer is Refetch; a
// result that lands later overwrites an earlier one.
type QueryCache struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	entries  map[QueryKey]*queryEntry
	onChange func(QueryKey, QueryResult)
}

// NewQueryCache creates an empty cache.
func NewQueryCache(clock clockwork.Clock) *QueryCache {
	return &QueryCache{clock: clock, entries: make(map[QueryKey]*queryEntry)}
}

// OnChange installs the callback run after every stored result.
func (c *QueryCache) OnChange(fn func(QueryKey, QueryResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Register adds key with its fetcher. Registering a known key keeps its result.
func (c *QueryCache) Register(key QueryKey, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.fetch = fetch
		return
	}
	c.entries[key] = &queryEntry{fetch: fetch}
}

// Forget drops key and its result.
func (c *QueryCache) Forget(key QueryKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Registered reports whether key is known.
func (c *QueryCache) Registered(key QueryKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Keys lists registered keys in lexical order.
func (c *QueryCache) Keys() []QueryKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]QueryKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// DraftKeys lists the registered draft item queries.
func (c *QueryCache) DraftKeys() []QueryKey {
	var out []QueryKey
	for _, k := range c.Keys() {
		if k.IsDrafts() {
			out = append(out, k)
		}
	}
	return out
}

// Get returns the stored result of key.
func (c *QueryCache) Get(key QueryKey) QueryResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok {
		return e.result
	}
	return QueryResult{}
}

// Refetch runs the fetcher of key and stores the outcome. A failed fetch keeps
// the previous value and records the error.
func (c *QueryCache) Refetch(ctx context.Context, key QueryKey) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	var fetch Fetcher
	if ok {
		fetch = e.fetch
	}
	c.mu.RUnlock()
	if !ok || fetch == nil {
		return nil
	}

	value, err := fetch(ctx)

	c.mu.Lock()
	e, ok = c.entries[key]
	if !ok {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		e.result.Err = err
		c.mu.Unlock()
		return err
	}
	e.result = QueryResult{Value: value, Fetched: true, Version: e.result.Version + 1, UpdatedAt: c.clock.Now()}
	result := e.result
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(key, result)
	}
	return nil
}

// Drafts returns the cached draft items of key.
func (c *QueryCache) Drafts(key QueryKey) ([]models.DraftItem, bool) {
	res := c.Get(key)
	items, ok := res.Value.([]models.DraftItem)
	return items, res.Fetched && ok
}

// Tables returns the cached table list.
func (c *QueryCache) Tables() ([]models.Table, bool) {
	res := c.Get(KeyTables)
	tables, ok := res.Value.([]models.Table)
	return tables, res.Fetched && ok
}

// Reservations returns the cached reservation list.
func (c *QueryCache) Reservations() ([]models.Reservation, bool) {
	res := c.Get(KeyReservations)
	list, ok := res.Value.([]models.Reservation)
	return list, res.Fetched && ok
}

// Orders returns the cached order list.
func (c *QueryCache) Orders() ([]models.Order, bool) {
	res := c.Get(KeyOrders)
	list, ok := res.Value.([]models.Order)
	return list, res.Fetched && ok
}

// Coupons returns the cached coupon list.
func (c *QueryCache) Coupons() ([]models.Coupon, bool) {
	res := c.Get(KeyCoupons)
	list, ok := res.Value.([]models.Coupon)
	return list, res.Fetched && ok
}
