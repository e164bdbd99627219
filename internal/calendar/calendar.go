// Package calendar decides whether the venue is open on a given date and,
// if so, between which times.
package calendar

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"table-reservation-backend/internal/parse"
)

// ClosedWeekday is the permanent weekly closure. It is evaluated before any
// configured hours and cannot be overridden by settings.
const ClosedWeekday = time.Friday

// Hours is one weekday's opening window as stored in settings.
type Hours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// BusinessHours maps a weekday to its opening window.
type BusinessHours map[time.Weekday]Hours

// DefaultHours is used whenever the business_hours setting is absent or
// unusable.
func DefaultHours() BusinessHours {
	return BusinessHours{
		time.Sunday:    {Open: "11:00", Close: "22:00"},
		time.Monday:    {Open: "11:00", Close: "22:00"},
		time.Tuesday:   {Open: "11:00", Close: "22:00"},
		time.Wednesday: {Open: "11:00", Close: "22:00"},
		time.Thursday:  {Open: "11:00", Close: "22:00"},
		time.Saturday:  {Open: "11:00", Close: "23:00"},
	}
}

// Window is the resolved opening window of one date, in minutes since that
// date's midnight. Close may exceed 24h when the venue closes after midnight.
type Window struct {
	Closed bool
	Open   int
	Close  int
}

// ParseHours decodes the business_hours setting, a JSON object keyed by
// weekday index ("0" = Sunday). Malformed entries are dropped; a document
// that yields no usable entry falls back to DefaultHours. It never fails.
func ParseHours(raw []byte) BusinessHours {
	if len(raw) == 0 {
		return DefaultHours()
	}

	var doc map[string]Hours
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Printf("business_hours setting is malformed, using defaults: %v", err)
		return DefaultHours()
	}

	hours := make(BusinessHours, len(doc))
	for key, h := range doc {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx > 6 {
			log.Printf("business_hours: ignoring unknown weekday key %q", key)
			continue
		}
		if _, err := parse.ParseClock(h.Open); err != nil {
			log.Printf("business_hours: ignoring weekday %d: %v", idx, err)
			continue
		}
		if _, err := parse.ParseClock(h.Close); err != nil {
			log.Printf("business_hours: ignoring weekday %d: %v", idx, err)
			continue
		}
		hours[time.Weekday(idx)] = h
	}

	if len(hours) == 0 {
		return DefaultHours()
	}
	return hours
}

// Resolve returns the opening window for date. The weekday is taken in
// date's own location, which callers set to the venue timezone.
func Resolve(date time.Time, hours BusinessHours) Window {
	weekday := date.Weekday()
	if weekday == ClosedWeekday {
		return Window{Closed: true}
	}

	if hours == nil {
		hours = DefaultHours()
	}
	h, ok := hours[weekday]
	if !ok {
		return Window{Closed: true}
	}

	open, errOpen := parse.ParseClock(h.Open)
	closing, errClose := parse.ParseClock(h.Close)
	if errOpen != nil || errClose != nil {
		// Only reachable for hand-built maps; ParseHours drops these entries.
		def, ok := DefaultHours()[weekday]
		if !ok {
			return Window{Closed: true}
		}
		open, _ = parse.ParseClock(def.Open)
		closing, _ = parse.ParseClock(def.Close)
	}

	if closing <= open {
		closing += parse.MinutesPerDay
	}
	return Window{Open: open, Close: closing}
}

// Normalize places a time of day on the window's timeline. Times earlier
// than opening belong to the small hours after midnight and are moved into
// the next day, so "00:30" in an 18:00-02:00 window becomes 1470. Every
// comparison between start times must use normalized values.
func (w Window) Normalize(minutes int) int {
	if !w.Closed && minutes < w.Open {
		return minutes + parse.MinutesPerDay
	}
	return minutes
}

// Contains reports whether a reservation starting at minutes fits a dining
// block of diningMinutes inside the window.
func (w Window) Contains(minutes, diningMinutes int) bool {
	if w.Closed {
		return false
	}
	minutes = w.Normalize(minutes)
	return minutes >= w.Open && minutes+diningMinutes <= w.Close
}
