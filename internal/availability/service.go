// Package availability answers "which tables are free when" and
// coordinates holds and bookings against that answer.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/clock"
	"table-reservation-backend/internal/hold"
	"table-reservation-backend/internal/model"
	"table-reservation-backend/internal/parse"
	"table-reservation-backend/internal/slots"
	"table-reservation-backend/internal/store"
)

var (
	ErrValidation   = errors.New("invalid request")
	ErrClosed       = errors.New("the restaurant is closed on this date")
	ErrOutsideHours = errors.New("time is outside business hours")
	ErrUnavailable  = errors.New("time slot is no longer available")
)

// Notifier is told about every reservation created through Book.
type Notifier interface {
	Dispatch(reservationID string)
}

// Options configures a Service.
type Options struct {
	Location        *time.Location
	IntervalMinutes int
	DefaultTables   int
	Notifier        Notifier
}

// Service owns the process-wide hold ledger.
type Service struct {
	store         store.Store
	ledger        *hold.Ledger
	clock         clock.Clock
	loc           *time.Location
	interval      int
	defaultTables int
	notifier      Notifier
}

// NewService wires the availability core.
func NewService(s store.Store, ledger *hold.Ledger, clk clock.Clock, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.FixedZone("UTC+7", 7*3600)
	}
	if opts.IntervalMinutes <= 0 {
		opts.IntervalMinutes = 30
	}
	if opts.DefaultTables <= 0 {
		opts.DefaultTables = 10
	}
	return &Service{
		store:         s,
		ledger:        ledger,
		clock:         clk,
		loc:           opts.Location,
		interval:      opts.IntervalMinutes,
		defaultTables: opts.DefaultTables,
		notifier:      opts.Notifier,
	}
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// parseDate returns midnight of raw in the venue zone and its canonical
// YYYY-MM-DD form, which is the only form passed to the store and ledger.
func (s *Service) parseDate(raw string) (time.Time, string, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, "", validation("date is required")
	}
	d, err := parse.ParseDate(raw, s.loc)
	if err != nil {
		return time.Time{}, "", validation("%v", err)
	}
	return d, d.Format(parse.DateLayout), nil
}

func (s *Service) totalTables(ctx context.Context) int {
	n, err := s.store.ActiveTableCount(ctx)
	if err != nil {
		log.Printf("Warning: %v; assuming %d tables", err, s.defaultTables)
		return s.defaultTables
	}
	if n <= 0 {
		return s.defaultTables
	}
	return n
}

// Day resolves the opening window of date.
func (s *Service) Day(ctx context.Context, date string) (calendar.Window, error) {
	d, _, err := s.parseDate(date)
	if err != nil {
		return calendar.Window{}, err
	}
	return calendar.Resolve(d, s.store.BusinessHours(ctx)), nil
}

// TimeSlots lists the start times of date with their status as seen by
// sessionID. A failed reservation read is returned as an error; every
// configuration read degrades to defaults instead.
func (s *Service) TimeSlots(ctx context.Context, date, sessionID string) ([]slots.Slot, error) {
	d, date, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}

	window := calendar.Resolve(d, s.store.BusinessHours(ctx))
	if window.Closed {
		return []slots.Slot{}, nil
	}

	policy := s.store.DiningPolicy(ctx)
	reservations, err := s.store.ReservationsForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	return slots.Generate(slots.Input{
		Date:            d,
		Now:             s.clock.Now(),
		Window:          window,
		Policy:          policy,
		IntervalMinutes: s.interval,
		TotalTables:     s.totalTables(ctx),
		Reservations:    slots.FromReservations(reservations, window),
		Holds:           s.ledger.Live(date),
		SessionID:       sessionID,
	}), nil
}

// Hold claims date/tm for sessionID for the ledger's TTL. It returns
// hold.ErrFullyBooked or hold.ErrHeldByOther when the slot cannot be held.
func (s *Service) Hold(ctx context.Context, date, tm, sessionID string) error {
	d, date, err := s.parseDate(date)
	if err != nil {
		return err
	}
	clockMinutes, err := parse.ParseClock(tm)
	if err != nil {
		return validation("%v", err)
	}
	if sessionID == "" {
		return validation("sessionId is required")
	}

	window := calendar.Resolve(d, s.store.BusinessHours(ctx))
	minutes := window.Normalize(clockMinutes)
	policy := s.store.DiningPolicy(ctx)
	reservations, err := s.store.ReservationsForDate(ctx, date)
	if err != nil {
		return err
	}

	return s.ledger.Hold(hold.Request{
		Date:          date,
		Time:          parse.FormatClock(minutes),
		Minutes:       minutes,
		SessionID:     sessionID,
		Committed:     slots.ReservationOccupancy(slots.FromReservations(reservations, window), minutes, policy.Total()),
		TotalTables:   s.totalTables(ctx),
		WindowMinutes: policy.Total(),
	})
}

// Release drops sessionID's hold on date/tm, if any.
func (s *Service) Release(date, tm, sessionID string) {
	if _, canonical, err := s.parseDate(date); err == nil {
		date = canonical
	}
	if minutes, err := parse.ParseClock(tm); err == nil {
		tm = parse.FormatClock(minutes)
	}
	s.ledger.Release(date, tm, sessionID)
}

// BookingInput is a customer's reservation request.
type BookingInput struct {
	Date          string
	Time          string
	PartySize     int
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	TableNumber   *int
	Notes         string
	SessionID     string
}

// Book validates in against the calendar and the committed reservations,
// persists it as pending and releases the caller's hold on the slot. Holds
// are advisory: only committed reservations can reject a booking.
func (s *Service) Book(ctx context.Context, in BookingInput) (*model.Reservation, error) {
	d, date, err := s.parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	minutes, err := parse.ParseClock(in.Time)
	if err != nil {
		return nil, validation("%v", err)
	}
	switch {
	case in.PartySize <= 0:
		return nil, validation("partySize must be positive")
	case strings.TrimSpace(in.CustomerName) == "":
		return nil, validation("customerName is required")
	case strings.TrimSpace(in.CustomerPhone) == "":
		return nil, validation("customerPhone is required")
	}

	policy := s.store.DiningPolicy(ctx)
	window := calendar.Resolve(d, s.store.BusinessHours(ctx))
	if window.Closed {
		return nil, ErrClosed
	}
	if !window.Contains(minutes, policy.DiningMinutes) {
		return nil, ErrOutsideHours
	}
	minutes = window.Normalize(minutes)

	now := s.clock.Now().In(s.loc)
	start := d.Add(time.Duration(minutes) * time.Minute)
	if !start.After(now) {
		return nil, validation("time has already passed")
	}

	r := &model.Reservation{
		ReservationDate: date,
		ReservationTime: parse.FormatClock(minutes),
		TableNumber:     in.TableNumber,
		Status:          model.StatusPending,
		PartySize:       in.PartySize,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		Notes:           in.Notes,
	}
	err = s.store.CreateReservation(ctx, r, store.OverlapCheck{
		Window:        window,
		WindowMinutes: policy.Total(),
		TotalTables:   s.totalTables(ctx),
	})
	if errors.Is(err, store.ErrOverlap) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, err
	}

	if in.SessionID != "" {
		s.ledger.Release(date, r.ReservationTime, in.SessionID)
	}
	if s.notifier != nil {
		s.notifier.Dispatch(r.ID)
	}
	log.Printf("Reservation %s created for %s %s (party of %d)", r.ID, r.ReservationDate, r.ReservationTime, r.PartySize)
	return r, nil
}

// UpdateStatus moves a reservation to status. Reactivating a cancelled or
// completed reservation is checked against the reservations made since, and
// fails with ErrUnavailable when its slot has been taken.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.ReservationStatus) (*model.Reservation, error) {
	if !status.Valid() {
		return nil, validation("unknown status %q", status)
	}

	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	check := store.OverlapCheck{TotalTables: s.totalTables(ctx)}
	if d, err := parse.ParseDate(current.ReservationDate, s.loc); err == nil {
		check.Window = calendar.Resolve(d, s.store.BusinessHours(ctx))
	}
	check.WindowMinutes = s.store.DiningPolicy(ctx).Total()

	r, err := s.store.UpdateReservationStatus(ctx, id, status, check)
	if errors.Is(err, store.ErrOverlap) {
		return nil, ErrUnavailable
	}
	return r, err
}

// Reservations lists every reservation of date.
func (s *Service) Reservations(ctx context.Context, date string) ([]model.Reservation, error) {
	_, date, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.store.ListReservations(ctx, date)
}
