package handlers

import (
	"net/http"
	"time"

	"restaurant_pos/internal/models"
	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ReservationHandler holds the reservation service.
type ReservationHandler struct {
	reservationService services.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(rs services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

// CreateReservation handles booking a table.
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req services.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	res, err := h.reservationService.CreateReservation(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to create reservation")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetReservations handles fetching reservations with filters.
func (h *ReservationHandler) GetReservations(c *gin.Context) {
	var filters models.ReservationFilters
	if s := c.Query("table_id"); s != "" {
		id, err := utils.StrToInt64(s)
		if err != nil {
			utils.RespondValidationFailed(c, "Invalid table_id format")
			return
		}
		filters.TableID = &id
	}
	if s := c.Query("status"); s != "" {
		filters.Status = &s
	}
	for param, dst := range map[string]**time.Time{"date_from": &filters.DateFrom, "date_to": &filters.DateTo} {
		s := c.Query(param)
		if s == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			utils.RespondValidationFailed(c, "Invalid "+param+" format. Use YYYY-MM-DD.")
			return
		}
		*dst = &t
	}

	list, err := h.reservationService.GetReservations(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch reservations")
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetReservationByID handles fetching a single reservation.
func (h *ReservationHandler) GetReservationByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.reservationService.GetReservationByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch reservation")
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateReservationStatus handles confirming, seating, completing or cancelling.
func (h *ReservationHandler) UpdateReservationStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	res, err := h.reservationService.UpdateReservationStatus(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update reservation status")
		return
	}
	c.JSON(http.StatusOK, res)
}
