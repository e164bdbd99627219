// Package hold keeps short-lived claims on time slots while customers
// finish checking out.
//
// The ledger lives in process memory. Holds granted by one process are
// invisible to another, so running several replicas behind a load balancer
// weakens the guarantee to "per replica".
package hold

import (
	"errors"
	"sync"
	"time"

	"table-reservation-backend/internal/clock"
	"table-reservation-backend/internal/slots"
)

var (
	ErrFullyBooked = errors.New("slot is fully booked")
	ErrHeldByOther = errors.New("slot is held by another user")
)

// DefaultDuration is how long a hold stays valid.
const DefaultDuration = 30 * time.Second

// Entry is one live hold.
type Entry struct {
	Date      string
	Time      string
	Minutes   int
	SessionID string
	HeldAt    time.Time
}

// Request asks for a hold on Date at Time. Committed is the reservation
// occupancy of the slot's window, computed by the caller from the store.
type Request struct {
	Date          string
	Time          string
	Minutes       int
	SessionID     string
	Committed     int
	TotalTables   int
	WindowMinutes int
}

// Ledger maps "date|time" to the session currently holding it.
type Ledger struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	entries map[string]Entry
}

// NewLedger creates an empty ledger. A non-positive ttl selects DefaultDuration.
func NewLedger(clk clock.Clock, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultDuration
	}
	return &Ledger{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
}

func key(date, tm string) string {
	return date + "|" + tm
}

// TTL returns how long a hold stays valid.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Purge drops every expired hold and reports how many were removed.
func (l *Ledger) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purgeLocked(l.clock.Now())
}

func (l *Ledger) purgeLocked(now time.Time) int {
	removed := 0
	for k, e := range l.entries {
		if now.Sub(e.HeldAt) >= l.ttl {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// Hold grants req.SessionID the slot unless committed reservations, or
// committed reservations plus other sessions' holds, already fill every
// table. A granted hold replaces whatever entry existed for the same key.
func (l *Ledger) Hold(req Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.purgeLocked(now)

	if req.Committed >= req.TotalTables {
		return ErrFullyBooked
	}

	others := 0
	for _, e := range l.entries {
		if e.Date != req.Date || e.SessionID == req.SessionID {
			continue
		}
		if slots.Overlaps(e.Minutes, req.Minutes, req.WindowMinutes) {
			others++
		}
	}
	if req.Committed+others >= req.TotalTables {
		return ErrHeldByOther
	}

	l.entries[key(req.Date, req.Time)] = Entry{
		Date:      req.Date,
		Time:      req.Time,
		Minutes:   req.Minutes,
		SessionID: req.SessionID,
		HeldAt:    now,
	}
	return nil
}

// Release drops the hold on date/time if sessionID owns it. Releasing a
// missing or foreign hold is a no-op.
func (l *Ledger) Release(date, tm, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purgeLocked(l.clock.Now())

	k := key(date, tm)
	if e, ok := l.entries[k]; ok && e.SessionID == sessionID {
		delete(l.entries, k)
	}
}

// Live returns the unexpired holds for date.
func (l *Ledger) Live(date string) []slots.Claim {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purgeLocked(l.clock.Now())

	var claims []slots.Claim
	for _, e := range l.entries {
		if e.Date == date {
			claims = append(claims, slots.Claim{Minutes: e.Minutes, SessionID: e.SessionID})
		}
	}
	return claims
}

// Lookup returns the live hold on date/time, if any.
func (l *Ledger) Lookup(date, tm string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purgeLocked(l.clock.Now())
	e, ok := l.entries[key(date, tm)]
	return e, ok
}
