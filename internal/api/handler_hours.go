package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"table-reservation-backend/internal/availability"
	"table-reservation-backend/internal/parse"
)

type businessHoursResponse struct {
	Date   string `json:"date"`
	Closed bool   `json:"closed"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

// GetBusinessHours handles GET /api/business-hours?date=YYYY-MM-DD.
func (h *Handler) GetBusinessHours(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	w, err := h.svc.Day(c.Request.Context(), date)
	if errors.Is(err, availability.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load business hours"})
		return
	}

	resp := businessHoursResponse{Date: date, Closed: w.Closed}
	if !w.Closed {
		resp.Open = parse.FormatClock(w.Open)
		resp.Close = parse.FormatClock(w.Close)
	}
	c.JSON(http.StatusOK, resp)
}
