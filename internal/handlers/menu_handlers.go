package handlers

import (
	"net/http"

	"restaurant_pos/internal/services"

	"github.com/gin-gonic/gin"
)

// MenuHandler holds the menu service.
type MenuHandler struct {
	menuService services.MenuService
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(ms services.MenuService) *MenuHandler {
	return &MenuHandler{menuService: ms}
}

// GetVariants lists menu variants. ?available=true hides sold-out ones.
func (h *MenuHandler) GetVariants(c *gin.Context) {
	variants, err := h.menuService.GetVariants(c.Request.Context(), c.Query("available") == "true")
	if err != nil {
		respondServiceError(c, err, "Failed to fetch menu")
		return
	}
	c.JSON(http.StatusOK, variants)
}

func (h *MenuHandler) GetVariantByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	v, err := h.menuService.GetVariantByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch variant")
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *MenuHandler) GetCoupons(c *gin.Context) {
	coupons, err := h.menuService.GetCoupons(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to fetch coupons")
		return
	}
	c.JSON(http.StatusOK, coupons)
}
