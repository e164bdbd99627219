package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"table-reservation-backend/internal/availability"
	"table-reservation-backend/internal/model"
	"table-reservation-backend/internal/store"
)

type createReservationRequest struct {
	Date          string `json:"date" binding:"required"`
	Time          string `json:"time" binding:"required"`
	PartySize     int    `json:"partySize" binding:"required"`
	CustomerName  string `json:"customerName" binding:"required"`
	CustomerPhone string `json:"customerPhone" binding:"required"`
	CustomerEmail string `json:"customerEmail"`
	TableNumber   *int   `json:"tableNumber"`
	Notes         string `json:"notes"`
	SessionID     string `json:"sessionId"`
	Locale        string `json:"locale"`
}

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.svc.Book(c.Request.Context(), availability.BookingInput{
		Date:          req.Date,
		Time:          req.Time,
		PartySize:     req.PartySize,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		TableNumber:   req.TableNumber,
		Notes:         req.Notes,
		SessionID:     req.SessionID,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"success": true, "reservation": r})
	case errors.Is(err, availability.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, availability.ErrClosed),
		errors.Is(err, availability.ErrOutsideHours),
		errors.Is(err, availability.ErrUnavailable):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": availability.Message(err, req.Locale)})
	default:
		log.Printf("Error creating reservation for %s %s: %v", req.Date, req.Time, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create reservation"})
	}
}

// ListReservations handles GET /api/admin/reservations?date=YYYY-MM-DD.
func (h *Handler) ListReservations(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	list, err := h.svc.Reservations(c.Request.Context(), date)
	if errors.Is(err, availability.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Error listing reservations for %s: %v", date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reservations"})
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{"reservations": list})
}

type updateStatusRequest struct {
	Status model.ReservationStatus `json:"status" binding:"required"`
}

// UpdateReservationStatus handles PATCH /api/admin/reservations/:id/status.
func (h *Handler) UpdateReservationStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "reservation": r})
	case errors.Is(err, availability.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
	case errors.Is(err, availability.ErrUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": availability.Message(err, "en")})
	default:
		log.Printf("Error updating reservation %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reservation"})
	}
}
