package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	engine *gin.Engine
	store  *repositories.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("router-test-secret-000")

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus(events.NewMemoryTransport())
	store := repositories.NewMemoryStore(bus, services.DefaultReservationGuard)
	store.SetClock(clock.Now)
	store.SeedTable(models.Table{ID: 1, Code: "T1", Capacity: 4})
	store.SeedTable(models.Table{ID: 2, Code: "T2", Capacity: 2})
	store.SeedVariant(models.Variant{ID: 10, ProductName: "Pho", Price: decimal.NewFromInt(50000), IsAvailable: true})

	slots := services.DefaultSlotRules()
	slots.Location = time.UTC
	wd := services.WorkspaceDeps{
		DraftRepo:       store.DraftItems(),
		TableRepo:       store.Tables(),
		ReservationRepo: store.Reservations(),
		OrderRepo:       store.Orders(),
		CouponRepo:      store.Coupons(),
		VariantRepo:     store.Variants(),
		SettingRepo:     store.Settings(),
		Bus:             bus,
		Clock:           clock,
		SettleDelay:     services.DefaultSettleDelay,
		Pricing:         services.PricingRules{TaxRate: decimal.RequireFromString("0.10")},
		Linker:          services.NewTemplatePaymentLinker("https://pay.test/%d/%s"),
	}
	manager := services.NewWorkspaceManager(context.Background(), wd)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	engine := gin.New()
	Setup(engine, Dependencies{Workspace: wd, Manager: manager, SlotRules: slots, Clock: clock})
	return &testServer{engine: engine, store: store}
}

func (s *testServer) do(t *testing.T, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := utils.GenerateAccessToken(1, "anna", role, "till-1")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestRoutes_AccessControl(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/tabs", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/tabs", RoleKitchen, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/orders/kitchen", RoleKitchen, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/menu/variants?available=true", RoleKitchen, nil).Code)
}

func TestRoutes_DineInCheckout(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/session", RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		Connected bool `json:"connected"`
	}
	decodeBody(t, w, &session)
	assert.True(t, session.Connected)

	w = s.do(t, http.MethodPost, "/api/v1/draft/items", RoleStaff, map[string]any{"variant_id": 10, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no active tab yet")

	w = s.do(t, http.MethodPost, "/api/v1/tabs", RoleStaff, map[string]any{"order_type": "dine_in", "table_id": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tab struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		DraftCode string `json:"draft_code"`
	}
	decodeBody(t, w, &tab)
	assert.Equal(t, "Table T1", tab.Name)
	assert.Equal(t, "draft-T1", tab.DraftCode)

	w = s.do(t, http.MethodPost, "/api/v1/draft/items", RoleStaff, map[string]any{"variant_id": 10, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/draft/items", RoleStaff, map[string]any{"variant_id": 99, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/session/refresh", RoleStaff, nil).Code)

	w = s.do(t, http.MethodGet, "/api/v1/tabs/"+tab.ID+"/items", RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.DraftItem
	decodeBody(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	w = s.do(t, http.MethodPost, "/api/v1/draft/finalize", RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "payment method missing")

	w = s.do(t, http.MethodPatch, "/api/v1/draft/checkout", RoleStaff, map[string]any{"payment_method": "cash"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/draft/quote", RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var quote services.Totals
	decodeBody(t, w, &quote)
	assert.True(t, decimal.NewFromInt(110000).Equal(quote.FinalAmount), quote.FinalAmount.String())

	w = s.do(t, http.MethodPost, "/api/v1/draft/finalize", RoleStaff, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result struct {
		Order struct {
			ID       int64   `json:"id"`
			TableIDs []int64 `json:"table_ids"`
		} `json:"order"`
	}
	decodeBody(t, w, &result)
	assert.Equal(t, []int64{1}, result.Order.TableIDs)

	w = s.do(t, http.MethodGet, "/api/v1/tabs", RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(t, http.MethodPatch, "/api/v1/orders/"+utils.Int64ToStr(result.Order.ID)+"/status", RoleKitchen, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending orders cannot jump to completed")

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/session", RoleStaff, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/session", RoleStaff, nil).Code)
}

func TestRoutes_TableSlots(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/tables/1/slots", RoleStaff, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/tables/x/slots?date=2025-03-03", RoleStaff, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/tables/9/slots?date=2025-03-03", RoleStaff, nil).Code)

	w := s.do(t, http.MethodGet, "/api/v1/tables/1/slots?date=2025-03-03", RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var slots []services.TimeSlot
	decodeBody(t, w, &slots)
	assert.Len(t, slots, 30)
}

func TestRoutes_LiveStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	tok, err := utils.GenerateAccessToken(1, "anna", RoleStaff, "till-1")
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/live?access_token=" + tok

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello struct {
		Type  string         `json:"type"`
		Cache map[string]any `json:"cache"`
	}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.Contains(t, hello.Cache, string(services.KeyTables))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh"}))
	var update struct {
		Type   string `json:"type"`
		Update struct {
			Key     string `json:"key"`
			Version uint64 `json:"version"`
		} `json:"update"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "update", update.Type)
	assert.Equal(t, uint64(2), update.Update.Version)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/session/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
