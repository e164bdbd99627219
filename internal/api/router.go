package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"table-reservation-backend/config"
	"table-reservation-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limiters := mw.NewClientLimiters(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute)

	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if h.pages != nil {
		caching = h.pages.Middleware()
	}

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiters))
	{
		api.GET("/timeslots", h.GetTimeSlots)
		api.POST("/timeslots", h.PostTimeSlot)
		api.GET("/business-hours", caching, h.GetBusinessHours)
		api.POST("/reservations", h.CreateReservation)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		admin := api.Group("/admin")
		admin.GET("/reservations", h.ListReservations)
		admin.PATCH("/reservations/:id/status", h.UpdateReservationStatus)
		admin.PUT("/settings/:key", h.PutSetting)
		admin.GET("/subscriptions", h.GetSubscription)
		admin.PUT("/subscriptions", h.PutSubscription)
		admin.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}
