// Package slots builds the list of bookable start times for a date.
package slots

import (
	"time"

	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/parse"
)

// Status is the availability of a slot as shown to a customer.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusHeld      Status = "held"
)

// Slot is one candidate start time.
type Slot struct {
	Time   string `json:"time"`
	Label  string `json:"label"`
	Status Status `json:"status"`
}

// Input is everything Generate needs for one date.
type Input struct {
	// Date is midnight of the requested day in the venue timezone.
	Date time.Time
	// Now is the current instant; it decides which of today's slots have passed.
	Now             time.Time
	Window          calendar.Window
	Policy          Policy
	IntervalMinutes int
	// TotalTables must be positive; callers apply the inventory fallback.
	TotalTables  int
	Reservations []Booking
	Holds        []Claim
	SessionID    string
}

// Generate walks the window from opening time in fixed steps and labels
// every start time that still leaves room for a full dining block.
func Generate(in Input) []Slot {
	out := []Slot{}
	if in.Window.Closed || in.IntervalMinutes <= 0 {
		return out
	}

	pastCutoff := -1
	now := in.Now.In(in.Date.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	date := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, in.Date.Location())
	switch {
	case date.Before(today):
		return out
	case date.Equal(today):
		pastCutoff = parse.MinuteOfDay(now)
	}

	total := in.Policy.Total()
	for t := in.Window.Open; t+in.Policy.DiningMinutes <= in.Window.Close; t += in.IntervalMinutes {
		if t <= pastCutoff {
			continue
		}

		own := false
		if in.SessionID != "" {
			for _, c := range in.Holds {
				if c.Minutes == t && c.SessionID == in.SessionID {
					own = true
					break
				}
			}
		}

		booked := ReservationOccupancy(in.Reservations, t, total)
		held := HoldOccupancy(in.Holds, t, total, func(c Claim) bool {
			return in.SessionID != "" && c.SessionID == in.SessionID && c.Minutes == t
		})

		status := StatusAvailable
		switch {
		case booked >= in.TotalTables:
			status = StatusBooked
		case !own && booked+held >= in.TotalTables:
			status = StatusHeld
		}

		out = append(out, Slot{
			Time:   parse.FormatClock(t),
			Label:  parse.SlotLabel(t, in.Policy.DiningMinutes),
			Status: status,
		})
	}
	return out
}
