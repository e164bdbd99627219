package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"table-reservation-backend/internal/availability"
	"table-reservation-backend/internal/hold"
)

// GetTimeSlots handles GET /api/timeslots?date=YYYY-MM-DD&sessionId=.
func (h *Handler) GetTimeSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	list, err := h.svc.TimeSlots(c.Request.Context(), date, c.Query("sessionId"))
	if errors.Is(err, availability.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Error loading time slots for %s: %v", date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load time slots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": list})
}

type timeSlotRequest struct {
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	Action    string `json:"action" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
	Locale    string `json:"locale"`
}

// PostTimeSlot handles POST /api/timeslots: hold or release a slot.
func (h *Handler) PostTimeSlot(c *gin.Context) {
	var req timeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date, time, action and sessionId are required"})
		return
	}

	switch req.Action {
	case "hold":
		err := h.svc.Hold(c.Request.Context(), req.Date, req.Time, req.SessionID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"success": true})
		case errors.Is(err, hold.ErrFullyBooked), errors.Is(err, hold.ErrHeldByOther):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": availability.Message(err, req.Locale)})
		case errors.Is(err, availability.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("Error holding %s %s for %s: %v", req.Date, req.Time, req.SessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hold time slot"})
		}
	case "release":
		h.svc.Release(req.Date, req.Time, req.SessionID)
		c.JSON(http.StatusOK, gin.H{"success": true})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
	}
}
