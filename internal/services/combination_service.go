package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/pkg/utils"

	"github.com/jonboulle/clockwork"
)

// DefaultReservationGuard is how close an active reservation may be before a
// table is withheld from combinations.
const DefaultReservationGuard = 150 * time.Minute

// CombinationRegistry records which tab holds each combined table across all
// workspaces of the process.
type CombinationRegistry struct {
	mu     sync.Mutex
	owners map[int64]string
}

// NewCombinationRegistry creates an empty registry.
func NewCombinationRegistry() *CombinationRegistry {
	return &CombinationRegistry{owners: make(map[int64]string)}
}

// Claim gives tableID to tabID. Claiming a table the tab already holds is a no-op.
func (r *CombinationRegistry) Claim(tableID int64, tabID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[tableID]; ok && owner != tabID {
		return ErrTableHeld
	}
	r.owners[tableID] = tabID
	return nil
}

// Release drops the claim of tabID on tableID.
func (r *CombinationRegistry) Release(tableID int64, tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[tableID] == tabID {
		delete(r.owners, tableID)
	}
}

// ReleaseTab drops every claim of tabID and returns the released tables.
func (r *CombinationRegistry) ReleaseTab(tabID string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released []int64
	for tableID, owner := range r.owners {
		if owner == tabID {
			delete(r.owners, tableID)
			released = append(released, tableID)
		}
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released
}

// Owner returns the tab holding tableID.
func (r *CombinationRegistry) Owner(tableID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[tableID]
	return owner, ok
}

// CombinationEngine merges extra tables into a dine-in tab. Selections are kept
// per tab until committed onto the draft.
type CombinationEngine struct {
	registry  *CombinationRegistry
	tableRepo repositories.TableRepository
	drafts    DraftService
	guard     time.Duration
	clock     clockwork.Clock

	mu       sync.Mutex
	selected map[string][]int64
}

// NewCombinationEngine creates an engine sharing registry with the other workspaces.
func NewCombinationEngine(registry *CombinationRegistry, tr repositories.TableRepository, drafts DraftService, guard time.Duration, clock clockwork.Clock) *CombinationEngine {
	return &CombinationEngine{
		registry:  registry,
		tableRepo: tr,
		drafts:    drafts,
		guard:     guard,
		clock:     clock,
		selected:  make(map[string][]int64),
	}
}

// Propose filters candidates down to the tables tabID may combine with primaryID.
func (e *CombinationEngine) Propose(tabID string, primaryID int64, candidates []models.Table, now time.Time) []models.Table {
	eligible := []models.Table{}
	for _, t := range candidates {
		if t.ID == primaryID || t.Status != models.TableStatusAvailable {
			continue
		}
		if owner, held := e.registry.Owner(t.ID); held && owner != tabID {
			continue
		}
		if t.HasImminentReservation(now, e.guard) {
			continue
		}
		eligible = append(eligible, t)
	}
	return eligible
}

// Selected returns the uncommitted selection of tabID.
func (e *CombinationEngine) Selected(tabID string) []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64{}, e.selected[tabID]...)
}

func (e *CombinationEngine) isSelected(tabID string, tableID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.selected[tabID] {
		if id == tableID {
			return true
		}
	}
	return false
}

func (e *CombinationEngine) deselect(tabID string, tableID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.selected[tabID]
	for i, id := range ids {
		if id == tableID {
			e.selected[tabID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(e.selected[tabID]) == 0 {
		delete(e.selected, tabID)
	}
}

// Toggle adds tableID to the selection of tabID, or removes it when already
// selected. It reports whether the table is selected afterwards. Only tables that
// Propose would offer can be added, and a table is only part of the selection
// once its status change has been stored.
func (e *CombinationEngine) Toggle(ctx context.Context, tabID string, tableID int64) (bool, error) {
	if e.isSelected(tabID, tableID) {
		if err := e.free(ctx, tableID); err != nil {
			return true, err
		}
		e.deselect(tabID, tableID)
		e.registry.Release(tableID, tabID)
		return false, nil
	}

	if err := e.registry.Claim(tableID, tabID); err != nil {
		return false, err
	}
	table, err := e.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		e.registry.Release(tableID, tabID)
		return false, backendError("load table", err, ErrTableNotFound)
	}
	switch {
	case table.Status == models.TableStatusOccupied:
		e.registry.Release(tableID, tabID)
		return false, ErrTableOccupied
	case table.Status != models.TableStatusAvailable, table.HasImminentReservation(e.clock.Now(), e.guard):
		e.registry.Release(tableID, tabID)
		return false, ErrTableReserved
	}
	if _, err := e.tableRepo.UpdateStatus(ctx, tableID, models.TableStatusOccupied); err != nil {
		e.registry.Release(tableID, tabID)
		return false, backendError("occupy combined table", err, ErrTableNotFound)
	}

	e.mu.Lock()
	e.selected[tabID] = append(e.selected[tabID], tableID)
	e.mu.Unlock()
	utils.LogDebug("Table added to combination", map[string]interface{}{"tab_id": tabID, "table_id": tableID})
	return true, nil
}

// free hands a selected table back: reserved when a booking is near, available otherwise.
func (e *CombinationEngine) free(ctx context.Context, tableID int64) error {
	table, err := e.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return backendError("load combined table", err, ErrTableNotFound)
	}
	status := models.TableStatusAvailable
	if table.HasImminentReservation(e.clock.Now(), e.guard) {
		status = models.TableStatusReserved
	}
	if _, err := e.tableRepo.UpdateStatus(ctx, tableID, status); err != nil {
		return backendError("release combined table", err, ErrTableNotFound)
	}
	return nil
}

// Commit writes primary plus the selection onto every item of draftCode and
// clears the selection. Committed tables stay claimed until the tab is released;
// tables an earlier commit attached and this one drops lose their claim.
func (e *CombinationEngine) Commit(ctx context.Context, tabID, draftCode string, primaryID int64) ([]int64, error) {
	tables := unionIDs([]int64{primaryID}, e.Selected(tabID))
	current, err := e.drafts.List(ctx, models.DraftItemFilter{DraftCode: &draftCode})
	if err != nil {
		return nil, err
	}
	var previous []int64
	for _, item := range current {
		previous = unionIDs(previous, item.TableIDs)
	}
	if err := e.registry.Claim(primaryID, tabID); err != nil {
		return nil, err
	}
	if err := e.drafts.ChangeTables(ctx, draftCode, tables); err != nil {
		return nil, err
	}

	kept := make(map[int64]bool, len(tables))
	for _, id := range tables {
		kept[id] = true
	}
	for _, id := range previous {
		if !kept[id] {
			e.registry.Release(id, tabID)
		}
	}
	e.mu.Lock()
	delete(e.selected, tabID)
	e.mu.Unlock()
	utils.LogInfo("Table combination committed", map[string]interface{}{"tab_id": tabID, "draft_code": draftCode, "tables": tables})
	return tables, nil
}

// Clear hands every selected table of tabID back. Tables whose reset fails stay
// selected and are reported in a *PartialFailureError.
func (e *CombinationEngine) Clear(ctx context.Context, tabID string) error {
	failures := newPartialFailure("clear table combination")
	for _, tableID := range e.Selected(tabID) {
		if err := e.free(ctx, tableID); err != nil {
			failures.Failed[tableID] = err
			continue
		}
		e.deselect(tabID, tableID)
		e.registry.Release(tableID, tabID)
		failures.Succeeded = append(failures.Succeeded, tableID)
	}
	if err := failures.orNil(); err != nil {
		utils.LogWarn(err, "Table combination only partly cleared", map[string]interface{}{"tab_id": tabID})
		return err
	}
	return nil
}

// Release forgets the selection of tabID and drops its registry claims.
func (e *CombinationEngine) Release(tabID string) []int64 {
	e.mu.Lock()
	delete(e.selected, tabID)
	e.mu.Unlock()
	return e.registry.ReleaseTab(tabID)
}
