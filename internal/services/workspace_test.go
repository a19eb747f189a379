package services

import (
	"context"
	"errors"
	"testing"

	"restaurant_pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func openWorkspace(t *testing.T, f *fixture) (*WorkspaceManager, *Workspace) {
	t.Helper()
	manager := NewWorkspaceManager(context.Background(), f.deps())
	t.Cleanup(func() { manager.Shutdown(context.Background()) })
	ws, err := manager.Open(testSession(7))
	require.NoError(t, err)
	return manager, ws
}

func TestWorkspace_DineInWithCombinedTable(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	tab, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn), TableID: int64Ptr(tableT1)})
	require.NoError(t, err)
	assert.Equal(t, "draft-T1", tab.DraftCode())

	_, err = ws.ToggleTable(ctx, tableT2)
	assert.ErrorIs(t, err, ErrDraftEmpty, "combining needs items first")

	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantPho, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))

	_, err = ws.ToggleTable(ctx, tableT1)
	assert.ErrorIs(t, err, ErrPrimaryTable)

	selected, err := ws.ToggleTable(ctx, tableT2)
	require.NoError(t, err)
	assert.True(t, selected)
	tables, err := ws.CommitTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{tableT1, tableT2}, tables)
	require.NoError(t, ws.Refresh(ctx))

	assert.Equal(t, models.TableStatusOccupied, f.table(tableT1).Status)
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT2).Status)

	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{PaymentMethod: strPtr(string(models.PaymentMethodCash))})
	require.NoError(t, err)
	quote, err := ws.Quote(ctx)
	require.NoError(t, err)
	assertDecimal(t, "110000", quote.FinalAmount)

	result, err := ws.Finalize(ctx)
	require.NoError(t, err)
	assert.False(t, result.Amended)
	assert.Empty(t, result.Warnings)
	assertDecimal(t, "100000", result.Order.TotalAmount)
	assertDecimal(t, "10000", result.Order.FeeAmount)
	assertDecimal(t, "0", result.Order.DiscountAmount)
	assertDecimal(t, "110000", result.Order.FinalAmount)
	assert.Equal(t, []int64{tableT1, tableT2}, result.Order.TableIDs)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, 2, result.Order.Items[0].Quantity)

	code := "draft-T1"
	left, err := f.store.DraftItems().List(ctx, models.DraftItemFilter{DraftCode: &code})
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Empty(t, ws.Tabs())

	// The open order still holds both tables until it is completed.
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT2).Status)
	_, err = f.store.Orders().UpdateStatus(ctx, result.Order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT1).Status)
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT2).Status)
}

func TestWorkspace_FinalizeFailureKeepsDraft(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	tab, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeTakeaway)})
	require.NoError(t, err)
	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantCoffee, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))
	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{PaymentMethod: strPtr("card")})
	require.NoError(t, err)

	f.store.InjectFailure("orders.Create", errors.New("connection refused"))
	_, err = ws.Finalize(ctx)
	assert.ErrorIs(t, err, ErrNetwork)

	items, err := ws.Items("")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	active, err := ws.ActiveTab()
	require.NoError(t, err)
	assert.Equal(t, tab.ID, active.ID)
	state, err := ws.Checkout()
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, state.PaymentMethod)

	f.store.ClearFailures()
	result, err := ws.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OrderTypeTakeaway, result.Order.OrderType)
	assert.Equal(t, tab.DraftCode(), result.Order.DraftCode)
}

func TestWorkspace_FinalizeValidation(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	_, err := ws.Finalize(ctx)
	assert.ErrorIs(t, err, ErrNoActiveTab)

	_, err = ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeTakeaway)})
	require.NoError(t, err)
	_, err = ws.Finalize(ctx)
	assert.ErrorIs(t, err, ErrDraftEmpty)

	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantCoffee, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))
	_, err = ws.Finalize(ctx)
	assert.ErrorIs(t, err, ErrPaymentMethodRequired)

	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{PaymentMethod: strPtr("crypto")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{PaymentMethod: strPtr("cash"), CouponCode: strPtr("GHOST")})
	require.NoError(t, err)
	_, err = ws.Finalize(ctx)
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestWorkspace_DeliveryOnlinePayment(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	tab, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDelivery)})
	require.NoError(t, err)
	assert.Contains(t, tab.Name, "Delivery #")
	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantCoffee, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))

	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{PaymentMethod: strPtr("online"), DeliveryAddress: strPtr("   ")})
	require.NoError(t, err)
	_, err = ws.Finalize(ctx)
	assert.ErrorIs(t, err, ErrDeliveryAddressRequired)

	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{DeliveryAddress: strPtr("12 Harbour Road")})
	require.NoError(t, err)
	result, err := ws.Finalize(ctx)
	require.NoError(t, err)
	assertDecimal(t, "42500", result.Totals.FinalAmount)
	require.NotNil(t, result.PaymentURL)
	assert.Equal(t, "https://pay.test/o/"+itoa64(result.Order.ID)+"?amount=42500.00", *result.PaymentURL)
	require.NotNil(t, result.Order.DeliveryAddress)
	assert.Equal(t, "12 Harbour Road", *result.Order.DeliveryAddress)
}

func TestWorkspace_DeliveryEditAmendsOrder(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	order, err := f.store.Orders().Create(ctx, &models.Order{
		OrderType:       models.OrderTypeDelivery,
		Status:          models.OrderStatusConfirmed,
		PaymentMethod:   models.PaymentMethodCard,
		DeliveryAddress: strPtr("5 Mill Lane"),
		Items:           []models.OrderItem{{VariantID: variantPho, Quantity: 1, Price: dec("50000")}},
	})
	require.NoError(t, err)

	tab, err := ws.StartDeliveryEdit(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edit order #"+itoa64(order.ID), tab.Name)
	assert.True(t, tab.Active)

	items, err := ws.Items(tab.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = ws.UpdateItem(ctx, items[0].ID, 3)
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))

	result, err := ws.Finalize(ctx)
	require.NoError(t, err)
	assert.True(t, result.Amended)
	assert.Equal(t, order.ID, result.Order.ID)
	assertDecimal(t, "150000", result.Order.TotalAmount)
	assertDecimal(t, "180000", result.Order.FinalAmount)

	orders, err := f.store.Orders().List(ctx, models.OrderFilters{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	code := models.DeliveryEditDraftCode(order.ID)
	left, err := f.store.DraftItems().List(ctx, models.DraftItemFilter{DraftCode: &code})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestWorkspace_DeliveryEditKeepsCoupon(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	limit := 1
	coupon := f.store.SeedCoupon(models.Coupon{Code: "FLAT10", DiscountType: models.DiscountTypeAmount, Value: dec("10000"), IsActive: true, UsageLimit: &limit})
	order, err := f.store.Orders().Create(ctx, &models.Order{
		OrderType:       models.OrderTypeDelivery,
		Status:          models.OrderStatusPending,
		PaymentMethod:   models.PaymentMethodCash,
		CouponID:        &coupon.ID,
		DiscountAmount:  dec("10000"),
		FinalAmount:     dec("60000"),
		DeliveryAddress: strPtr("5 Mill Lane"),
		Items:           []models.OrderItem{{VariantID: variantPho, Quantity: 1, Price: dec("50000")}},
	})
	require.NoError(t, err)

	_, err = ws.StartDeliveryEdit(ctx, order.ID)
	require.NoError(t, err)
	state, err := ws.Checkout()
	require.NoError(t, err)
	require.NotNil(t, state.CouponCode)
	assert.Equal(t, "FLAT10", *state.CouponCode)

	quote, err := ws.Quote(ctx)
	require.NoError(t, err)
	assertDecimal(t, "60000", quote.FinalAmount)

	result, err := ws.Finalize(ctx)
	require.NoError(t, err, "an exhausted coupon already redeemed by this order still applies")
	assert.True(t, result.Amended)
	require.NotNil(t, result.Order.CouponID)
	assert.Equal(t, coupon.ID, *result.Order.CouponID)
	assertDecimal(t, "10000", result.Order.DiscountAmount)
	assertDecimal(t, "60000", result.Order.FinalAmount)
}

func TestWorkspace_DeliveryEditSwapsCoupon(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	first := f.store.SeedCoupon(models.Coupon{Code: "FLAT10", DiscountType: models.DiscountTypeAmount, Value: dec("10000"), IsActive: true})
	f.store.SeedCoupon(models.Coupon{Code: "HALF", DiscountType: models.DiscountTypePercent, Value: dec("50"), IsActive: true})
	order, err := f.store.Orders().Create(ctx, &models.Order{
		OrderType:       models.OrderTypeDelivery,
		Status:          models.OrderStatusConfirmed,
		PaymentMethod:   models.PaymentMethodCash,
		CouponID:        &first.ID,
		DeliveryAddress: strPtr("5 Mill Lane"),
		Items:           []models.OrderItem{{VariantID: variantPho, Quantity: 1, Price: dec("50000")}},
	})
	require.NoError(t, err)

	_, err = ws.StartDeliveryEdit(ctx, order.ID)
	require.NoError(t, err)
	_, err = ws.UpdateCheckout(UpdateCheckoutRequest{CouponCode: strPtr("half")})
	require.NoError(t, err)

	result, err := ws.Finalize(ctx)
	require.NoError(t, err)
	assertDecimal(t, "25000", result.Order.DiscountAmount)
	// 50000 + 0.10*25000 + 15000 - 25000
	assertDecimal(t, "42500", result.Order.FinalAmount)
	require.NotNil(t, result.Order.CouponID)
	assert.NotEqual(t, first.ID, *result.Order.CouponID)
}

func TestWorkspace_CancelDraftClosesTab(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	_, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn), TableID: int64Ptr(tableT3)})
	require.NoError(t, err)
	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantPho, Quantity: 1})
	require.NoError(t, err)
	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantCoffee, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT3).Status)

	n, err := ws.CancelDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, ws.Tabs())
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT3).Status)
}

func TestWorkspace_OpenTabValidation(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	_, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn), TableID: int64Ptr(404)})
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeTakeaway), DraftCode: "draft-delivery-ABC123"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ws.OpenTab(ctx, OpenTabRequest{OrderType: "drive_through"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn), TableID: int64Ptr(tableT1), ReservationID: int64Ptr(99)})
	assert.ErrorIs(t, err, ErrReservationMissing)

	_, err = ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeTakeaway)})
	require.NoError(t, err)
	_, err = ws.ToggleTable(ctx, tableT2)
	assert.ErrorIs(t, err, ErrNotDineInTab)
}

func TestPendingGuard(t *testing.T) {
	var g pendingGuard
	done, err := g.begin("finalize:tab-1")
	require.NoError(t, err)

	_, err = g.begin("finalize:tab-1")
	assert.ErrorIs(t, err, ErrOperationPending)

	other, err := g.begin("finalize:tab-2")
	require.NoError(t, err)
	other()

	done()
	again, err := g.begin("finalize:tab-1")
	require.NoError(t, err)
	again()
}

func TestWorkspaceManager_Lifecycle(t *testing.T) {
	f := newFixture()
	manager := NewWorkspaceManager(context.Background(), f.deps())

	_, err := manager.Open(&models.Session{TerminalID: "till-1"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = manager.Open(nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	session := testSession(3)
	ws, err := manager.Open(session)
	require.NoError(t, err)
	assert.True(t, ws.Syncer().Connected())
	tables, fetched := ws.Cache().Tables()
	require.True(t, fetched)
	assert.Len(t, tables, 3)

	again, err := manager.Open(session)
	require.NoError(t, err)
	assert.Same(t, ws, again)

	other := *session
	other.TerminalID = "till-2"
	_, err = manager.Open(&other)
	require.NoError(t, err)
	assert.Equal(t, 2, manager.Count())

	updates, cancel := ws.Watch()
	defer cancel()
	assert.True(t, manager.Close(context.Background(), session.Key()))
	assert.False(t, manager.Close(context.Background(), session.Key()))
	assert.False(t, ws.Syncer().Connected())
	_, open := <-updates
	assert.False(t, open)

	manager.Shutdown(context.Background())
	assert.Zero(t, manager.Count())
}

func TestWorkspace_LogoutReleasesCombinedTables(t *testing.T) {
	f := newFixture()
	manager, ws := openWorkspace(t, f)
	ctx := context.Background()

	_, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn), TableID: int64Ptr(tableT1)})
	require.NoError(t, err)
	_, err = ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantPho, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))
	_, err = ws.ToggleTable(ctx, tableT3)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusOccupied, f.table(tableT3).Status)

	require.True(t, manager.Close(ctx, ws.Session().Key()))
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT3).Status)
	_, held := manager.Registry().Owner(tableT3)
	assert.False(t, held)
}

func TestWorkspace_EmptiedDraftCanStillHandTablesBack(t *testing.T) {
	f := newFixture()
	_, ws := openWorkspace(t, f)
	ctx := context.Background()

	_, err := ws.OpenTab(ctx, OpenTabRequest{OrderType: string(models.OrderTypeDineIn), TableID: int64Ptr(tableT1)})
	require.NoError(t, err)
	item, err := ws.AddItem(ctx, AddDraftItemRequest{VariantID: variantPho, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx))
	for _, id := range []int64{tableT2, tableT3} {
		_, err = ws.ToggleTable(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, ws.RemoveItem(ctx, item.ID))
	require.NoError(t, ws.Refresh(ctx))

	selected, err := ws.ToggleTable(ctx, tableT2)
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT2).Status)

	require.NoError(t, ws.ClearTables(ctx))
	assert.Equal(t, models.TableStatusAvailable, f.table(tableT3).Status)
	left, err := ws.SelectedTables()
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = ws.ToggleTable(ctx, tableT2)
	assert.ErrorIs(t, err, ErrDraftEmpty, "adding still needs items")
}
