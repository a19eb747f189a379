package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant_pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) combinations(registry *CombinationRegistry) *CombinationEngine {
	return NewCombinationEngine(registry, f.store.Tables(), f.drafts(), DefaultReservationGuard, f.clock)
}

func TestCombinationEngine_TableHeldByAnotherTab(t *testing.T) {
	f := newFixture()
	registry := NewCombinationRegistry()
	// Two terminals share the registry but have their own engines.
	engineA := f.combinations(registry)
	engineB := f.combinations(registry)
	ctx := context.Background()

	selected, err := engineA.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)
	assert.True(t, selected)

	_, err = engineB.Toggle(ctx, "tab-b", tableT2)
	assert.ErrorIs(t, err, ErrTableHeld)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, engineB.Selected("tab-b"))

	// Even if a stale list still shows T2 as available, B must not be offered it.
	candidates := []models.Table{
		{ID: tableT1, Status: models.TableStatusAvailable},
		{ID: tableT2, Status: models.TableStatusAvailable},
		{ID: tableT3, Status: models.TableStatusAvailable},
	}
	ids := func(tables []models.Table) []int64 {
		out := []int64{}
		for _, t := range tables {
			out = append(out, t.ID)
		}
		return out
	}
	assert.Equal(t, []int64{tableT3}, ids(engineB.Propose("tab-b", tableT1, candidates, fixtureNow)))
	assert.Equal(t, []int64{tableT2, tableT3}, ids(engineA.Propose("tab-a", tableT1, candidates, fixtureNow)))
}

func TestCombinationEngine_ProposeSkipsImminentReservations(t *testing.T) {
	engine := newFixture().combinations(NewCombinationRegistry())
	soon := models.Table{ID: tableT2, Status: models.TableStatusAvailable, Reservations: []models.Reservation{
		{TableID: tableT2, ReservationTime: fixtureNow.Add(2 * time.Hour), Status: models.ReservationStatusConfirmed},
	}}
	later := models.Table{ID: tableT3, Status: models.TableStatusAvailable, Reservations: []models.Reservation{
		{TableID: tableT3, ReservationTime: fixtureNow.Add(3 * time.Hour), Status: models.ReservationStatusConfirmed},
	}}
	busy := models.Table{ID: 4, Status: models.TableStatusOccupied}

	eligible := engine.Propose("tab-a", tableT1, []models.Table{soon, later, busy}, fixtureNow)
	require.Len(t, eligible, 1)
	assert.Equal(t, tableT3, eligible[0].ID)
}

func TestCombinationEngine_ToggleTwiceRestoresTable(t *testing.T) {
	f := newFixture()
	engine := f.combinations(NewCombinationRegistry())
	ctx := context.Background()

	selected, err := engine.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT2).Status)
	assert.Equal(t, []int64{tableT2}, engine.Selected("tab-a"))

	selected, err = engine.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT2).Status)
	assert.Empty(t, engine.Selected("tab-a"))
}

func TestCombinationEngine_ToggleFailureKeepsSelection(t *testing.T) {
	f := newFixture()
	registry := NewCombinationRegistry()
	engine := f.combinations(registry)
	ctx := context.Background()

	f.store.InjectFailure("tables.UpdateStatus:3", errors.New("timeout"))
	_, err := engine.Toggle(ctx, "tab-a", tableT3)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Empty(t, engine.Selected("tab-a"))
	_, held := registry.Owner(tableT3)
	assert.False(t, held)

	_, err = engine.Toggle(ctx, "tab-a", 99)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestCombinationEngine_ClearReportsPartialFailure(t *testing.T) {
	f := newFixture()
	engine := f.combinations(NewCombinationRegistry())
	ctx := context.Background()

	for _, id := range []int64{tableT2, tableT3} {
		_, err := engine.Toggle(ctx, "tab-a", id)
		require.NoError(t, err)
	}

	f.store.InjectFailure("tables.UpdateStatus:2", errors.New("timeout"))
	err := engine.Clear(ctx, "tab-a")

	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []int64{tableT3}, partial.Succeeded)
	assert.Contains(t, partial.Failed, tableT2)
	assert.Equal(t, []int64{tableT2}, engine.Selected("tab-a"))
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT3).Status)
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT2).Status)

	f.store.ClearFailures()
	require.NoError(t, engine.Clear(ctx, "tab-a"))
	assert.Empty(t, engine.Selected("tab-a"))
}

func TestCombinationEngine_CommitRetargetsDraft(t *testing.T) {
	f := newFixture()
	registry := NewCombinationRegistry()
	engine := f.combinations(registry)
	ctx := context.Background()

	item, err := f.drafts().AddItem(ctx, "draft-T1", variantPho, 2, []int64{tableT1})
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)

	tables, err := engine.Commit(ctx, "tab-a", "draft-T1", tableT1)
	require.NoError(t, err)
	assert.Equal(t, []int64{tableT1, tableT2}, tables)
	assert.Empty(t, engine.Selected("tab-a"))

	got, err := f.store.DraftItems().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{tableT1, tableT2}, got.TableIDs)

	owner, held := registry.Owner(tableT1)
	require.True(t, held)
	assert.Equal(t, "tab-a", owner)

	assert.Equal(t, []int64{tableT1, tableT2}, engine.Release("tab-a"))
	_, held = registry.Owner(tableT2)
	assert.False(t, held)
}

func TestCombinationEngine_ToggleRejectsTablesProposeWouldSkip(t *testing.T) {
	f := newFixture()
	registry := NewCombinationRegistry()
	engine := f.combinations(registry)
	ctx := context.Background()

	_, err := f.store.Tables().UpdateStatus(ctx, tableT2, models.TableStatusReserved)
	require.NoError(t, err)
	f.store.SeedReservation(models.Reservation{TableID: tableT3, ReservationTime: fixtureNow.Add(30 * time.Minute), Status: models.ReservationStatusConfirmed})

	tests := []struct {
		name   string
		table  int64
		status models.TableStatus
	}{
		{"reserved table", tableT2, models.TableStatusReserved},
		{"booking inside the guard window", tableT3, models.TableStatusAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := engine.Toggle(ctx, "tab-a", tt.table)
			assert.ErrorIs(t, err, ErrTableReserved)
			assert.ErrorIs(t, err, ErrConflict)
			assert.False(t, selected)
			assert.Equal(t, tt.status, f.table(tt.table).Status)
			_, held := registry.Owner(tt.table)
			assert.False(t, held)
		})
	}
	assert.Empty(t, engine.Selected("tab-a"))
}

func TestCombinationEngine_ToggleOffRestoresReservedTable(t *testing.T) {
	f := newFixture()
	engine := f.combinations(NewCombinationRegistry())
	ctx := context.Background()
	f.store.SeedReservation(models.Reservation{TableID: tableT2, ReservationTime: fixtureNow.Add(3 * time.Hour), Status: models.ReservationStatusConfirmed})

	selected, err := engine.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)
	require.True(t, selected)

	// The booking is now inside the guard window.
	f.clock.Advance(time.Hour)
	selected, err = engine.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Equal(t, models.TableStatusReserved, f.table(tableT2).Status)
}

func TestCombinationEngine_RecommitReleasesDroppedTables(t *testing.T) {
	f := newFixture()
	registry := NewCombinationRegistry()
	engine := f.combinations(registry)
	other := f.combinations(registry)
	ctx := context.Background()

	_, err := f.drafts().AddItem(ctx, "draft-T1", variantPho, 1, []int64{tableT1})
	require.NoError(t, err)

	_, err = engine.Toggle(ctx, "tab-a", tableT2)
	require.NoError(t, err)
	tables, err := engine.Commit(ctx, "tab-a", "draft-T1", tableT1)
	require.NoError(t, err)
	assert.Equal(t, []int64{tableT1, tableT2}, tables)

	_, err = engine.Toggle(ctx, "tab-a", tableT3)
	require.NoError(t, err)
	tables, err = engine.Commit(ctx, "tab-a", "draft-T1", tableT1)
	require.NoError(t, err)
	assert.Equal(t, []int64{tableT1, tableT3}, tables)

	assert.Equal(t, models.TableStatusAvailable, f.table(tableT2).Status)
	_, held := registry.Owner(tableT2)
	assert.False(t, held)
	owner, held := registry.Owner(tableT3)
	require.True(t, held)
	assert.Equal(t, "tab-a", owner)

	selected, err := other.Toggle(ctx, "tab-b", tableT2)
	require.NoError(t, err)
	assert.True(t, selected)
}
