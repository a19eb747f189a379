package handlers

import (
	"net/http"

	"restaurant_pos/internal/middleware"
	"restaurant_pos/internal/models"
	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
)

// WorkspaceHandler serves the terminal's own session: tabs, drafts, table
// combination and checkout.
type WorkspaceHandler struct {
	manager *services.WorkspaceManager
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(m *services.WorkspaceManager) *WorkspaceHandler {
	return &WorkspaceHandler{manager: m}
}

type sessionResponse struct {
	Session   models.Session      `json:"session"`
	Tabs      []models.OrderTab   `json:"tabs"`
	Connected bool                `json:"connected"`
	Queries   []services.QueryKey `json:"queries"`
}

func sessionView(ws *services.Workspace) sessionResponse {
	return sessionResponse{
		Session:   ws.Session(),
		Tabs:      ws.Tabs(),
		Connected: ws.Syncer().Connected(),
		Queries:   ws.Cache().Keys(),
	}
}

// OpenSession connects the terminal's workspace.
func (h *WorkspaceHandler) OpenSession(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionView(ws))
}

// CloseSession disconnects the workspace and drops its tabs.
func (h *WorkspaceHandler) CloseSession(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		respondServiceError(c, services.ErrNotAuthenticated, "No authenticated session")
		return
	}
	if !h.manager.Close(c.Request.Context(), session.Key()) {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Session is not open", ""))
		return
	}
	c.Status(http.StatusNoContent)
}

// RefreshSession refetches every query now.
func (h *WorkspaceHandler) RefreshSession(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	if err := ws.Refresh(c.Request.Context()); err != nil {
		respondServiceError(c, err, "Failed to refresh queries")
		return
	}
	c.JSON(http.StatusOK, sessionView(ws))
}

// GetSnapshot returns the cached value of every query.
func (h *WorkspaceHandler) GetSnapshot(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	out := make(map[services.QueryKey]services.QueryResult)
	for _, key := range ws.Cache().Keys() {
		out[key] = ws.Cache().Get(key)
	}
	c.JSON(http.StatusOK, out)
}

// GetTabs lists the open tabs.
func (h *WorkspaceHandler) GetTabs(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ws.Tabs())
}

// OpenTab opens (or re-activates) a tab on a table or a takeaway/delivery draft.
func (h *WorkspaceHandler) OpenTab(c *gin.Context) {
	var req services.OpenTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	tab, err := ws.OpenTab(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to open tab")
		return
	}
	c.JSON(http.StatusOK, tab)
}

// ActivateTab makes a tab the active one.
func (h *WorkspaceHandler) ActivateTab(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	tab, err := ws.ActivateTab(c.Param("tabId"))
	if err != nil {
		respondServiceError(c, err, "Failed to activate tab")
		return
	}
	c.JSON(http.StatusOK, tab)
}

// CloseTab closes a tab without touching its draft.
func (h *WorkspaceHandler) CloseTab(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	if _, err := ws.CloseTab(c.Request.Context(), c.Param("tabId")); err != nil {
		respondServiceError(c, err, "Failed to close tab")
		return
	}
	c.JSON(http.StatusOK, ws.Tabs())
}

// GetTabItems lists the cached draft items of a tab.
func (h *WorkspaceHandler) GetTabItems(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	items, err := ws.Items(c.Param("tabId"))
	if err != nil {
		respondServiceError(c, err, "Failed to list tab items")
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddDraftItem adds a menu variant to the active tab.
func (h *WorkspaceHandler) AddDraftItem(c *gin.Context) {
	var req services.AddDraftItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	item, err := ws.AddItem(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to add draft item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateDraftItem sets the quantity of a draft line. Zero removes it.
func (h *WorkspaceHandler) UpdateDraftItem(c *gin.Context) {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	var req services.UpdateDraftItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	item, err := ws.UpdateItem(c.Request.Context(), itemID, req.Quantity)
	if err != nil {
		respondServiceError(c, err, "Failed to update draft item")
		return
	}
	if item == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteDraftItem removes a draft line.
func (h *WorkspaceHandler) DeleteDraftItem(c *gin.Context) {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	if err := ws.RemoveItem(c.Request.Context(), itemID); err != nil {
		respondServiceError(c, err, "Failed to delete draft item")
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeDraftItemStatus moves a draft line through the kitchen workflow.
func (h *WorkspaceHandler) ChangeDraftItemStatus(c *gin.Context) {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	var req services.ChangeDraftItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	item, err := ws.ChangeItemStatus(c.Request.Context(), itemID, models.DraftItemStatus(req.Status))
	if err != nil {
		respondServiceError(c, err, "Failed to change draft item status")
		return
	}
	c.JSON(http.StatusOK, item)
}

// CancelDraft deletes the active draft and closes its tab.
func (h *WorkspaceHandler) CancelDraft(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	n, err := ws.CancelDraft(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to cancel draft")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "tabs": ws.Tabs()})
}

// GetEligibleTables lists tables the active tab may combine with.
func (h *WorkspaceHandler) GetEligibleTables(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	tables, err := ws.EligibleTables()
	if err != nil {
		respondServiceError(c, err, "Failed to list eligible tables")
		return
	}
	c.JSON(http.StatusOK, tables)
}

// GetSelectedTables returns the uncommitted combination.
func (h *WorkspaceHandler) GetSelectedTables(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	ids, err := ws.SelectedTables()
	if err != nil {
		respondServiceError(c, err, "Failed to list selected tables")
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_ids": ids})
}

// ToggleTable adds a table to, or removes it from, the combination.
func (h *WorkspaceHandler) ToggleTable(c *gin.Context) {
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	selected, err := ws.ToggleTable(c.Request.Context(), tableID)
	if err != nil {
		respondServiceError(c, err, "Failed to toggle table")
		return
	}
	ids, _ := ws.SelectedTables()
	c.JSON(http.StatusOK, gin.H{"table_id": tableID, "selected": selected, "table_ids": ids})
}

// CommitTables attaches the combination to the active draft.
func (h *WorkspaceHandler) CommitTables(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	ids, err := ws.CommitTables(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to combine tables")
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_ids": ids})
}

// ClearTables releases every selected table.
func (h *WorkspaceHandler) ClearTables(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	if err := ws.ClearTables(c.Request.Context()); err != nil {
		respondServiceError(c, err, "Failed to clear table combination")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCheckout returns the checkout choices of the active tab.
func (h *WorkspaceHandler) GetCheckout(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	state, err := ws.Checkout()
	if err != nil {
		respondServiceError(c, err, "Failed to read checkout")
		return
	}
	c.JSON(http.StatusOK, state)
}

// UpdateCheckout changes coupon, payment method, note or delivery address.
func (h *WorkspaceHandler) UpdateCheckout(c *gin.Context) {
	var req services.UpdateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	state, err := ws.UpdateCheckout(req)
	if err != nil {
		respondServiceError(c, err, "Failed to update checkout")
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetQuote prices the active tab.
func (h *WorkspaceHandler) GetQuote(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	totals, err := ws.Quote(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to price draft")
		return
	}
	c.JSON(http.StatusOK, totals)
}

// Finalize turns the active tab into an order.
func (h *WorkspaceHandler) Finalize(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	result, err := ws.Finalize(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to finalize order")
		return
	}
	status := http.StatusCreated
	if result.Amended {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// StartDeliveryEdit loads a delivery order into an editable draft.
func (h *WorkspaceHandler) StartDeliveryEdit(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	tab, err := ws.StartDeliveryEdit(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "Failed to start delivery edit")
		return
	}
	c.JSON(http.StatusOK, tab)
}
