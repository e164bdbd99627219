package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"table-reservation-backend/internal/store"
)

// PutSetting handles PUT /api/admin/settings/:key. The body is the raw JSON
// value of the setting.
func (h *Handler) PutSetting(c *gin.Context) {
	key := c.Param("key")
	if c.Request.Body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a JSON value is required"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a JSON value is required"})
		return
	}

	err = h.store.PutSetting(c.Request.Context(), key, body)
	if errors.Is(err, store.ErrInvalidSetting) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Error saving setting %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save setting"})
		return
	}

	// Cached business-hours pages are stale now.
	if h.pages != nil {
		h.pages.Flush()
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
