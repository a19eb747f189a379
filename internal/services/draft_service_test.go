package services

import (
	"context"
	"errors"
	"testing"

	"restaurant_pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftService_AddItemMergesQuantity(t *testing.T) {
	tests := []struct {
		name   string
		q1, q2 int
	}{
		{"one plus one", 1, 1},
		{"two plus three", 2, 3},
		{"large batch", 10, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			svc := f.drafts()
			ctx := context.Background()
			code := models.NewTakeawayDraftCode()

			first, err := svc.AddItem(ctx, code, variantPho, tt.q1, nil)
			require.NoError(t, err)
			second, err := svc.AddItem(ctx, code, variantPho, tt.q2, nil)
			require.NoError(t, err)

			assert.Equal(t, first.ID, second.ID)
			items, err := svc.List(ctx, models.DraftItemFilter{DraftCode: &code})
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, tt.q1+tt.q2, items[0].Quantity)
			assert.Equal(t, "Pho (Large)", items[0].VariantName)
		})
	}
}

func TestDraftService_AddItemRejectsBadInput(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "draft-T1", variantPho, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddItem(ctx, " ", variantPho, 1, nil)
	assert.ErrorIs(t, err, ErrDraftCodeRequired)

	_, err = svc.AddItem(ctx, "draft-T1", variantSoldOut, 1, nil)
	assert.ErrorIs(t, err, ErrVariantUnavailable)

	_, err = svc.AddItem(ctx, "draft-T1", 999, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDraftService_AddItemOccupiesTable(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()

	item, err := svc.AddItem(ctx, "draft-T1", variantPho, 1, []int64{tableT1})
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT1).Status)

	require.NoError(t, svc.DeleteItem(ctx, item.ID))
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT1).Status)
}

func TestDraftService_AddItemFollowsLiveDraftOfTable(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()

	// T2 was combined into T1's draft; a new order opened on T2 must land there.
	_, err := svc.AddItem(ctx, "draft-T1", variantPho, 1, []int64{tableT1, tableT2})
	require.NoError(t, err)

	item, err := svc.AddItem(ctx, "draft-T2", variantCoffee, 2, []int64{tableT2})
	require.NoError(t, err)
	assert.Equal(t, "draft-T1", item.DraftCode)

	code := "draft-T2"
	stray, err := svc.List(ctx, models.DraftItemFilter{DraftCode: &code})
	require.NoError(t, err)
	assert.Empty(t, stray)
}

func TestDraftService_UpdateQuantityToZeroDeletes(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()
	code := models.NewDeliveryDraftCode()

	item, err := svc.AddItem(ctx, code, variantCoffee, 3, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateQuantity(ctx, item.ID, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	gone, err := svc.UpdateQuantity(ctx, item.ID, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, err = svc.UpdateQuantity(ctx, item.ID, 1, nil)
	assert.ErrorIs(t, err, ErrDraftItemNotFound)
}

func TestDraftService_ChangeStatus(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()

	item, err := svc.AddItem(ctx, "draft-T3", variantPho, 1, []int64{tableT3})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, item.ID, models.DraftItemStatusReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	updated, err := svc.ChangeStatus(ctx, item.ID, models.DraftItemStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.DraftItemStatusInProgress, updated.Status)

	_, err = svc.ChangeStatus(ctx, item.ID, "served")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDraftService_ChangeTablesReportsPartialFailure(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()

	a, err := svc.AddItem(ctx, "draft-T1", variantPho, 1, []int64{tableT1})
	require.NoError(t, err)
	b, err := svc.AddItem(ctx, "draft-T1", variantCoffee, 1, []int64{tableT1})
	require.NoError(t, err)

	f.store.InjectFailure("drafts.Update:"+itoa64(b.ID), errors.New("connection reset"))
	err = svc.ChangeTables(ctx, "draft-T1", []int64{tableT1, tableT2})

	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []int64{a.ID}, partial.Succeeded)
	assert.Contains(t, partial.Failed, b.ID)
	assert.ErrorIs(t, err, ErrNetwork)

	got, err := f.store.DraftItems().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{tableT1, tableT2}, got.TableIDs)
}

func TestDraftService_ListNeedsFilter(t *testing.T) {
	_, err := newFixture().drafts().List(context.Background(), models.DraftItemFilter{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDraftService_PopulateFromOrder(t *testing.T) {
	f := newFixture()
	svc := f.drafts()
	ctx := context.Background()

	order, err := f.store.Orders().Create(ctx, &models.Order{
		OrderType: models.OrderTypeDelivery,
		Status:    models.OrderStatusConfirmed,
		Items: []models.OrderItem{
			{VariantID: variantPho, Quantity: 2, Price: dec("50000")},
			{VariantID: variantCoffee, Quantity: 1, Price: dec("25000")},
		},
	})
	require.NoError(t, err)

	code, items, err := svc.PopulateFromOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryEditDraftCode(order.ID), code)
	assert.Len(t, items, 2)

	// A second load replaces rather than duplicates.
	_, items, err = svc.PopulateFromOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = f.store.Orders().UpdateStatus(ctx, order.ID, models.OrderStatusPreparing)
	require.NoError(t, err)
	_, _, err = svc.PopulateFromOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotEditable)

	dineIn, err := f.store.Orders().Create(ctx, &models.Order{OrderType: models.OrderTypeDineIn})
	require.NoError(t, err)
	_, _, err = svc.PopulateFromOrder(ctx, dineIn.ID)
	assert.ErrorIs(t, err, ErrValidation)
}
