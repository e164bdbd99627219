package slots

import (
	"log"

	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/model"
	"table-reservation-backend/internal/parse"
)

// Policy is the exclusion window applied around every reservation.
type Policy struct {
	DiningMinutes int
	BufferMinutes int
}

// Total is dining duration plus buffer, the minimum distance between two
// reservations on the same table.
func (p Policy) Total() int {
	return p.DiningMinutes + p.BufferMinutes
}

// Overlaps reports whether start times a and b, in minutes, fall within
// total of each other. Every reservation has the same length, so this
// symmetric distance stands in for interval intersection.
func Overlaps(a, b, total int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < total
}

// Booking is the slice of a reservation the occupancy rules look at.
type Booking struct {
	Minutes     int
	TableNumber *int
	Status      model.ReservationStatus
}

// Claim is a live hold on a slot.
type Claim struct {
	Minutes   int
	SessionID string
}

// FromReservations converts stored reservations of one date, placing each
// start time on w's timeline and dropping rows whose time cannot be parsed.
func FromReservations(rs []model.Reservation, w calendar.Window) []Booking {
	out := make([]Booking, 0, len(rs))
	for _, r := range rs {
		m, err := parse.ParseClock(r.ReservationTime)
		if err != nil {
			log.Printf("Warning: skipping reservation %s with unparseable time: %v", r.ID, err)
			continue
		}
		out = append(out, Booking{Minutes: w.Normalize(m), TableNumber: r.TableNumber, Status: r.Status})
	}
	return out
}

// ReservationOccupancy counts the tables taken around candidate. Assigned
// tables are counted once each; unassigned bookings count one unit apiece.
func ReservationOccupancy(bookings []Booking, candidate, total int) int {
	tables := make(map[int]struct{})
	generic := 0
	for _, b := range bookings {
		if !b.Status.Active() || !Overlaps(b.Minutes, candidate, total) {
			continue
		}
		if b.TableNumber != nil {
			tables[*b.TableNumber] = struct{}{}
		} else {
			generic++
		}
	}
	return len(tables) + generic
}

// HoldOccupancy counts the claims around candidate for which skip returns
// false. A nil skip counts every overlapping claim.
func HoldOccupancy(claims []Claim, candidate, total int, skip func(Claim) bool) int {
	n := 0
	for _, c := range claims {
		if !Overlaps(c.Minutes, candidate, total) {
			continue
		}
		if skip != nil && skip(c) {
			continue
		}
		n++
	}
	return n
}
