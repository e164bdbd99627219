package store

import (
	"errors"
	"time"

	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/model"
	"table-reservation-backend/internal/slots"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrOverlap  = errors.New("reservation overlaps an existing booking")

	ErrInvalidSetting = errors.New("invalid setting")
)

// Options tunes the gorm-backed store.
type Options struct {
	// DefaultPolicy is returned when the duration settings are absent or unreadable.
	DefaultPolicy slots.Policy
	// CacheTTL bounds how stale a settings read may be.
	CacheTTL time.Duration
	// Retries is the number of extra attempts made by retried reads.
	Retries int
	// RetryBaseDelay is the first backoff delay; it doubles on each retry.
	RetryBaseDelay time.Duration
}

// OverlapCheck carries the policy a new reservation is validated against.
// Window is the opening window of the reservation's date; start times are
// compared on its timeline so bookings after midnight meet the ones before.
type OverlapCheck struct {
	Window        calendar.Window
	WindowMinutes int
	TotalTables   int
}

func activeStatuses() []string {
	out := make([]string, len(model.ActiveStatuses))
	for i, s := range model.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}
