package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/model"
	"table-reservation-backend/internal/parse"
	"table-reservation-backend/internal/slots"
)

// Store defines the interface for all database operations.
type Store interface {
	ReservationsForDate(ctx context.Context, date string) ([]model.Reservation, error)
	ActiveTableCount(ctx context.Context) (int, error)
	BusinessHours(ctx context.Context) calendar.BusinessHours
	DiningPolicy(ctx context.Context) slots.Policy

	CreateReservation(ctx context.Context, r *model.Reservation, check OverlapCheck) error
	ListReservations(ctx context.Context, date string) ([]model.Reservation, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, status model.ReservationStatus, check OverlapCheck) (*model.Reservation, error)
	PutSetting(ctx context.Context, key string, value []byte) error

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

const (
	cacheKeyHours  = "setting:" + model.SettingBusinessHours
	cacheKeyPolicy = "setting:dining_policy"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	cache *cache.Cache
	opts  Options
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts Options) Store {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.DefaultPolicy.DiningMinutes <= 0 {
		opts.DefaultPolicy = slots.Policy{DiningMinutes: 90, BufferMinutes: 15}
	}
	return &gormStore{
		db:    db,
		cache: cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		opts:  opts,
	}
}

// ReservationsForDate returns the pending and confirmed reservations of a date.
func (s *gormStore) ReservationsForDate(ctx context.Context, date string) ([]model.Reservation, error) {
	var rows []model.Reservation
	err := withRetry(ctx, s.opts.Retries, s.opts.RetryBaseDelay, "load reservations", func() error {
		rows = rows[:0]
		return s.db.WithContext(ctx).
			Select("id", "reservation_date", "reservation_time", "table_number", "status", "party_size").
			Where("reservation_date = ? AND status IN ?", date, activeStatuses()).
			Order("reservation_time").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations for %s: %w", date, err)
	}
	return rows, nil
}

// ActiveTableCount counts the tables currently in service.
func (s *gormStore) ActiveTableCount(ctx context.Context) (int, error) {
	var n int64
	err := withRetry(ctx, s.opts.Retries, s.opts.RetryBaseDelay, "count tables", func() error {
		return s.db.WithContext(ctx).Model(&model.Table{}).Where("is_active = ?", true).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active tables: %w", err)
	}
	return int(n), nil
}

// BusinessHours returns the configured weekly schedule, falling back to the
// built-in defaults when the setting is missing or unreadable.
func (s *gormStore) BusinessHours(ctx context.Context) calendar.BusinessHours {
	if v, found := s.cache.Get(cacheKeyHours); found {
		return v.(calendar.BusinessHours)
	}

	var setting model.Setting
	err := s.db.WithContext(ctx).First(&setting, `"key" = ?`, model.SettingBusinessHours).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hours := calendar.DefaultHours()
		s.cache.SetDefault(cacheKeyHours, hours)
		return hours
	case err != nil:
		log.Printf("Warning: could not read business hours, using defaults: %v", err)
		return calendar.DefaultHours()
	}

	hours := calendar.ParseHours(setting.Value)
	s.cache.SetDefault(cacheKeyHours, hours)
	return hours
}

// DiningPolicy returns dining_duration and buffer_time, each falling back
// to its default independently.
func (s *gormStore) DiningPolicy(ctx context.Context) slots.Policy {
	if v, found := s.cache.Get(cacheKeyPolicy); found {
		return v.(slots.Policy)
	}

	policy := s.opts.DefaultPolicy
	var rows []model.Setting
	err := s.db.WithContext(ctx).
		Where(`"key" IN ?`, []string{model.SettingDiningDuration, model.SettingBufferTime}).
		Find(&rows).Error
	if err != nil {
		log.Printf("Warning: could not read dining policy, using defaults: %v", err)
		return policy
	}

	for _, row := range rows {
		n, ok := parseMinutes(row.Value)
		switch {
		case !ok:
			log.Printf("Warning: setting %s has invalid value %s; using default", row.Key, string(row.Value))
		case row.Key == model.SettingDiningDuration && n > 0:
			policy.DiningMinutes = n
		case row.Key == model.SettingBufferTime && n >= 0:
			policy.BufferMinutes = n
		}
	}

	s.cache.SetDefault(cacheKeyPolicy, policy)
	return policy
}

// parseMinutes accepts a JSON number or a numeric JSON string.
func parseMinutes(raw []byte) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// lockDate serialises every booking decision for one date. Row locks only
// cover reservations that already exist, so two first bookings of a date
// would otherwise both pass the check. SQLite already serialises writers.
func lockDate(tx *gorm.DB, date string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "reservations:"+date).Error; err != nil {
		return fmt.Errorf("failed to lock reservations for %s: %w", date, err)
	}
	return nil
}

// checkOverlap rejects r when it would share a table with, or exceed the
// capacity left by, the other active reservations of its date. Rows with
// excludeID are ignored. The caller must hold the date lock.
func checkOverlap(tx *gorm.DB, r *model.Reservation, minutes int, check OverlapCheck, excludeID string) error {
	q := tx.Where("reservation_date = ? AND status IN ?", r.ReservationDate, activeStatuses())
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var existing []model.Reservation
	if err := q.Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to read reservations for %s: %w", r.ReservationDate, err)
	}

	bookings := slots.FromReservations(existing, check.Window)
	if r.TableNumber != nil {
		for _, b := range bookings {
			if b.TableNumber != nil && *b.TableNumber == *r.TableNumber &&
				slots.Overlaps(b.Minutes, minutes, check.WindowMinutes) {
				return ErrOverlap
			}
		}
		return nil
	}
	if slots.ReservationOccupancy(bookings, minutes, check.WindowMinutes) >= check.TotalTables {
		return ErrOverlap
	}
	return nil
}

// CreateReservation re-checks the overlap rule against committed
// reservations and inserts r in the same transaction.
func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation, check OverlapCheck) error {
	clockMinutes, err := parse.ParseClock(r.ReservationTime)
	if err != nil {
		return err
	}
	minutes := check.Window.Normalize(clockMinutes)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDate(tx, r.ReservationDate); err != nil {
			return err
		}
		if err := checkOverlap(tx, r, minutes, check, ""); err != nil {
			return err
		}

		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Status == "" {
			r.Status = model.StatusPending
		}
		r.ReservationTime = parse.FormatClock(minutes)
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
}

// ListReservations returns every reservation of a date regardless of status.
func (s *gormStore) ListReservations(ctx context.Context, date string) ([]model.Reservation, error) {
	var rows []model.Reservation
	if err := s.db.WithContext(ctx).
		Where("reservation_date = ?", date).
		Order("reservation_time, created_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations for %s: %w", date, err)
	}
	return rows, nil
}

// GetReservation loads a single reservation.
func (s *gormStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var r model.Reservation
	err := withRetry(ctx, s.opts.Retries, s.opts.RetryBaseDelay, "load reservation", func() error {
		return s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation %s: %w", id, err)
	}
	return &r, nil
}

// UpdateReservationStatus moves a reservation to a new status. A move from
// an inactive status back to an active one re-runs the overlap check, since
// the slot may have been booked in the meantime.
func (s *gormStore) UpdateReservationStatus(ctx context.Context, id string, status model.ReservationStatus, check OverlapCheck) (*model.Reservation, error) {
	var r model.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, "id = ?", id).Error; err != nil {
			return err
		}
		if !r.Status.Active() && status.Active() {
			if err := lockDate(tx, r.ReservationDate); err != nil {
				return err
			}
			clockMinutes, err := parse.ParseClock(r.ReservationTime)
			if err != nil {
				return err
			}
			if err := checkOverlap(tx, &r, check.Window.Normalize(clockMinutes), check, r.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(&r).Update("status", status).Error; err != nil {
			return err
		}
		r.Status = status
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, ErrOverlap) {
		return nil, ErrOverlap
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", id, err)
	}
	return &r, nil
}

// ValidateSetting checks that value is acceptable for key. Reads are
// lenient; writes are not.
func ValidateSetting(key string, value []byte) error {
	switch key {
	case model.SettingBusinessHours:
		var doc map[string]calendar.Hours
		if err := json.Unmarshal(value, &doc); err != nil {
			return fmt.Errorf("%w: %s must be an object keyed by weekday: %v", ErrInvalidSetting, key, err)
		}
		for day, h := range doc {
			idx, err := strconv.Atoi(day)
			if err != nil || idx < 0 || idx > 6 {
				return fmt.Errorf("%w: %s: unknown weekday %q", ErrInvalidSetting, key, day)
			}
			if _, err := parse.ParseClock(h.Open); err != nil {
				return fmt.Errorf("%w: %s: weekday %d: %v", ErrInvalidSetting, key, idx, err)
			}
			if _, err := parse.ParseClock(h.Close); err != nil {
				return fmt.Errorf("%w: %s: weekday %d: %v", ErrInvalidSetting, key, idx, err)
			}
		}
	case model.SettingDiningDuration:
		if n, ok := parseMinutes(value); !ok || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive number of minutes", ErrInvalidSetting, key)
		}
	case model.SettingBufferTime:
		if n, ok := parseMinutes(value); !ok || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number of minutes", ErrInvalidSetting, key)
		}
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
	return nil
}

// PutSetting validates and upserts a setting and drops any cached copy.
func (s *gormStore) PutSetting(ctx context.Context, key string, value []byte) error {
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	setting := model.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}

	s.cache.Delete(cacheKeyHours)
	s.cache.Delete(cacheKeyPolicy)
	return nil
}

// UpsertSubscription creates or refreshes a push subscription.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "label"}),
	}).Create(sub).Error
}

// DeleteSubscription removes a push subscription; deleting a missing one is not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

// GetSubscription loads one push subscription.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscriptions returns every staff push subscription.
func (s *gormStore) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
