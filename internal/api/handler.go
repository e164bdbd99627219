package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"table-reservation-backend/internal/availability"
	"table-reservation-backend/internal/mw"
	"table-reservation-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *availability.Service
	store   store.Store
	webpush *webpush.Options
	pages   *mw.ResponseCache
}

// NewHandler creates a new API handler. pages may be nil when response
// caching is disabled.
func NewHandler(svc *availability.Service, s store.Store, webpushOptions *webpush.Options, pages *mw.ResponseCache) *Handler {
	return &Handler{
		svc:     svc,
		store:   s,
		webpush: webpushOptions,
		pages:   pages,
	}
}
