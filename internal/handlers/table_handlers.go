package handlers

import (
	"net/http"

	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
)

// TableHandler holds the table service.
type TableHandler struct {
	tableService services.TableService
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(ts services.TableService) *TableHandler {
	return &TableHandler{tableService: ts}
}

// GetTables handles fetching all tables with their reservations.
func (h *TableHandler) GetTables(c *gin.Context) {
	tables, err := h.tableService.GetTables(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to fetch tables")
		return
	}
	c.JSON(http.StatusOK, tables)
}

// GetTableByID handles fetching a single table.
func (h *TableHandler) GetTableByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	table, err := h.tableService.GetTableByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch table")
		return
	}
	c.JSON(http.StatusOK, table)
}

// UpdateTableStatus handles a manual status change.
func (h *TableHandler) UpdateTableStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateTableStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	table, err := h.tableService.UpdateTableStatus(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update table status")
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetAvailableSlots lists bookable times for a table on ?date=YYYY-MM-DD.
func (h *TableHandler) GetAvailableSlots(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	date := c.Query("date")
	if utils.IsEmpty(date) {
		utils.RespondValidationFailed(c, "date query parameter is required (YYYY-MM-DD)")
		return
	}
	slots, err := h.tableService.GetAvailableSlots(c.Request.Context(), id, date)
	if err != nil {
		respondServiceError(c, err, "Failed to compute available slots")
		return
	}
	c.JSON(http.StatusOK, slots)
}
