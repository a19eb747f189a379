package handlers

import (
	"net/http"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OrderHandler holds the order service.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

// GetOrders handles fetching orders. status may repeat.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	orders, err := h.orderService.GetOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderByID handles fetching a single order with its items.
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetKitchenQueue handles fetching the orders the kitchen is working on.
func (h *OrderHandler) GetKitchenQueue(c *gin.Context) {
	orders, err := h.orderService.GetKitchenQueue(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to fetch kitchen queue")
		return
	}
	c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus handles moving an order through its lifecycle.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, order)
}
