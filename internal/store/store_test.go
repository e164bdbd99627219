package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/model"
	"table-reservation-backend/internal/slots"
	"table-reservation-backend/internal/testutil"
)

func table(n int) *int { return &n }

func newStore(t *testing.T) (Store, *gorm.DB) {
	gormDB := testutil.NewDB(t)
	return NewGormStore(gormDB, Options{CacheTTL: time.Minute, RetryBaseDelay: time.Millisecond}), gormDB
}

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func seedReservation(t *testing.T, gormDB *gorm.DB, r model.Reservation) {
	t.Helper()
	if r.CustomerName == "" {
		r.CustomerName = "Guest"
	}
	if r.CustomerPhone == "" {
		r.CustomerPhone = "0800000000"
	}
	if r.PartySize == 0 {
		r.PartySize = 2
	}
	require.NoError(t, gormDB.Create(&r).Error)
}

func TestGormStore_ReservationsForDate(t *testing.T) {
	s, gormDB := newStore(t)

	seedReservation(t, gormDB, model.Reservation{ID: "a", ReservationDate: "2025-03-10", ReservationTime: "18:00", TableNumber: table(1), Status: model.StatusConfirmed})
	seedReservation(t, gormDB, model.Reservation{ID: "b", ReservationDate: "2025-03-10", ReservationTime: "19:00", Status: model.StatusPending})
	seedReservation(t, gormDB, model.Reservation{ID: "c", ReservationDate: "2025-03-10", ReservationTime: "18:00", Status: model.StatusCancelled})
	seedReservation(t, gormDB, model.Reservation{ID: "d", ReservationDate: "2025-03-10", ReservationTime: "20:00", Status: model.StatusCompleted})
	seedReservation(t, gormDB, model.Reservation{ID: "e", ReservationDate: "2025-03-11", ReservationTime: "18:00", Status: model.StatusConfirmed})

	rows, err := s.ReservationsForDate(context.Background(), "2025-03-10")
	require.NoError(t, err)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 1, *rows[0].TableNumber)
	assert.Nil(t, rows[1].TableNumber)
}

func TestGormStore_ReservationsForDate_RetriesThenFails(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, Options{Retries: 2, RetryBaseDelay: time.Millisecond})

	boom := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		mock.ExpectQuery(`SELECT .* FROM "reservations"`).WillReturnError(boom)
	}

	_, err := s.ReservationsForDate(context.Background(), "2025-03-10")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ReservationsForDate_RecoversOnRetry(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, Options{Retries: 2, RetryBaseDelay: time.Millisecond})

	mock.ExpectQuery(`SELECT .* FROM "reservations"`).WillReturnError(errors.New("timeout"))
	mock.ExpectQuery(`SELECT .* FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_date", "reservation_time", "table_number", "status", "party_size"}).
			AddRow("a", "2025-03-10", "18:00", 2, "confirmed", 4))

	rows, err := s.ReservationsForDate(context.Background(), "2025-03-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ActiveTableCount(t *testing.T) {
	s, gormDB := newStore(t)

	n, err := s.ActiveTableCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 1; i <= 3; i++ {
		require.NoError(t, gormDB.Create(&model.Table{TableNumber: i, Seats: 4, IsActive: true}).Error)
	}
	require.NoError(t, gormDB.Model(&model.Table{}).Where("table_number = ?", 3).Update("is_active", false).Error)

	n, err = s.ActiveTableCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// writeRawSetting stores a value without validation, as a manual edit would.
func writeRawSetting(t *testing.T, gormDB *gorm.DB, key, value string) {
	t.Helper()
	require.NoError(t, gormDB.Save(&model.Setting{Key: key, Value: []byte(value)}).Error)
}

func TestGormStore_BusinessHours(t *testing.T) {
	s, gormDB := newStore(t)
	ctx := context.Background()

	assert.Equal(t, calendar.DefaultHours(), s.BusinessHours(ctx))

	require.NoError(t, s.PutSetting(ctx, model.SettingBusinessHours, []byte(`{"1":{"open":"17:00","close":"23:00"}}`)))
	hours := s.BusinessHours(ctx)
	assert.Equal(t, calendar.BusinessHours{time.Monday: {Open: "17:00", Close: "23:00"}}, hours)

	writeRawSetting(t, gormDB, model.SettingBusinessHours, `"closed"`)
	// The raw write bypassed invalidation; a later valid write clears the cache.
	require.NoError(t, s.PutSetting(ctx, model.SettingBufferTime, []byte(`15`)))
	assert.Equal(t, calendar.DefaultHours(), s.BusinessHours(ctx))
}

func TestGormStore_BusinessHoursIsCached(t *testing.T) {
	s, gormDB := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSetting(ctx, model.SettingBusinessHours, []byte(`{"1":{"open":"17:00","close":"23:00"}}`)))
	first := s.BusinessHours(ctx)

	// A write that bypasses the store is not seen until the entry expires.
	require.NoError(t, gormDB.Model(&model.Setting{}).
		Where(`"key" = ?`, model.SettingBusinessHours).
		Update("value", []byte(`{"2":{"open":"10:00","close":"12:00"}}`)).Error)
	assert.Equal(t, first, s.BusinessHours(ctx))
}

func TestGormStore_DiningPolicy(t *testing.T) {
	s, gormDB := newStore(t)
	ctx := context.Background()

	assert.Equal(t, slots.Policy{DiningMinutes: 90, BufferMinutes: 15}, s.DiningPolicy(ctx))

	require.NoError(t, s.PutSetting(ctx, model.SettingDiningDuration, []byte(`"120"`)))
	require.NoError(t, s.PutSetting(ctx, model.SettingBufferTime, []byte(`0`)))
	assert.Equal(t, slots.Policy{DiningMinutes: 120, BufferMinutes: 0}, s.DiningPolicy(ctx))

	writeRawSetting(t, gormDB, model.SettingDiningDuration, `"two hours"`)
	require.NoError(t, s.PutSetting(ctx, model.SettingBufferTime, []byte(`0`)))
	assert.Equal(t, slots.Policy{DiningMinutes: 90, BufferMinutes: 0}, s.DiningPolicy(ctx))
}

func TestValidateSetting(t *testing.T) {
	valid := []struct{ key, value string }{
		{model.SettingBusinessHours, `{"0":{"open":"11:00","close":"22:00"},"6":{"open":"17:00","close":"01:00"}}`},
		{model.SettingBusinessHours, `{}`},
		{model.SettingDiningDuration, `120`},
		{model.SettingDiningDuration, `"90"`},
		{model.SettingBufferTime, `0`},
	}
	for _, tc := range valid {
		assert.NoError(t, ValidateSetting(tc.key, []byte(tc.value)), "%s=%s", tc.key, tc.value)
	}

	invalid := []struct{ key, value string }{
		{model.SettingBusinessHours, `"closed"`},
		{model.SettingBusinessHours, `{"7":{"open":"11:00","close":"22:00"}}`},
		{model.SettingBusinessHours, `{"1":{"open":"noon","close":"22:00"}}`},
		{model.SettingDiningDuration, `0`},
		{model.SettingDiningDuration, `"two hours"`},
		{model.SettingBufferTime, `-5`},
		{"theme", `"dark"`},
	}
	for _, tc := range invalid {
		assert.ErrorIs(t, ValidateSetting(tc.key, []byte(tc.value)), ErrInvalidSetting, "%s=%s", tc.key, tc.value)
	}
}

func TestGormStore_PutSettingRejectsInvalid(t *testing.T) {
	s, gormDB := newStore(t)

	err := s.PutSetting(context.Background(), model.SettingDiningDuration, []byte(`-1`))
	assert.ErrorIs(t, err, ErrInvalidSetting)

	var count int64
	require.NoError(t, gormDB.Model(&model.Setting{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormStore_CreateReservation(t *testing.T) {
	check := OverlapCheck{WindowMinutes: 105, TotalTables: 2}

	t.Run("assigns id, status and normalised time", func(t *testing.T) {
		s, _ := newStore(t)
		r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "18:00:00", PartySize: 2, CustomerName: "A", CustomerPhone: "1"}
		require.NoError(t, s.CreateReservation(context.Background(), r, check))

		assert.Len(t, r.ID, 36)
		assert.Equal(t, model.StatusPending, r.Status)
		assert.Equal(t, "18:00", r.ReservationTime)

		got, err := s.GetReservation(context.Background(), r.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.CustomerName)
	})

	t.Run("rejects same table inside the window", func(t *testing.T) {
		s, gormDB := newStore(t)
		seedReservation(t, gormDB, model.Reservation{ID: "x", ReservationDate: "2025-03-10", ReservationTime: "18:00", TableNumber: table(1), Status: model.StatusConfirmed})

		r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "19:30", TableNumber: table(1), PartySize: 2, CustomerName: "B", CustomerPhone: "2"}
		assert.ErrorIs(t, s.CreateReservation(context.Background(), r, check), ErrOverlap)

		r.ReservationTime = "19:45"
		assert.NoError(t, s.CreateReservation(context.Background(), r, check))
	})

	t.Run("other table is free", func(t *testing.T) {
		s, gormDB := newStore(t)
		seedReservation(t, gormDB, model.Reservation{ID: "x", ReservationDate: "2025-03-10", ReservationTime: "18:00", TableNumber: table(1), Status: model.StatusConfirmed})

		r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "18:00", TableNumber: table(2), PartySize: 2, CustomerName: "B", CustomerPhone: "2"}
		assert.NoError(t, s.CreateReservation(context.Background(), r, check))
	})

	t.Run("unassigned rejected when capacity is used", func(t *testing.T) {
		s, gormDB := newStore(t)
		seedReservation(t, gormDB, model.Reservation{ID: "x", ReservationDate: "2025-03-10", ReservationTime: "18:00", TableNumber: table(1), Status: model.StatusConfirmed})
		seedReservation(t, gormDB, model.Reservation{ID: "y", ReservationDate: "2025-03-10", ReservationTime: "18:30", Status: model.StatusPending})
		seedReservation(t, gormDB, model.Reservation{ID: "z", ReservationDate: "2025-03-10", ReservationTime: "18:30", Status: model.StatusCancelled})

		r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "18:15", PartySize: 2, CustomerName: "C", CustomerPhone: "3"}
		assert.ErrorIs(t, s.CreateReservation(context.Background(), r, check), ErrOverlap)

		var count int64
		require.NoError(t, gormDB.Model(&model.Reservation{}).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})

	t.Run("compares times across midnight", func(t *testing.T) {
		s, gormDB := newStore(t)
		seedReservation(t, gormDB, model.Reservation{ID: "x", ReservationDate: "2025-03-10", ReservationTime: "23:30", TableNumber: table(1), Status: model.StatusConfirmed})
		late := OverlapCheck{Window: calendar.Window{Open: 18 * 60, Close: 26 * 60}, WindowMinutes: 105, TotalTables: 1}

		r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "00:00", PartySize: 2, CustomerName: "D", CustomerPhone: "4"}
		assert.ErrorIs(t, s.CreateReservation(context.Background(), r, late), ErrOverlap)

		r.TableNumber = table(1)
		assert.ErrorIs(t, s.CreateReservation(context.Background(), r, late), ErrOverlap)

		r.ReservationTime = "01:15"
		require.NoError(t, s.CreateReservation(context.Background(), r, late))
		assert.Equal(t, "01:15", r.ReservationTime)
	})
}

func TestGormStore_CreateReservation_LocksDateBeforeReading(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, Options{})

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("reservations:2025-03-10").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "reservations" WHERE .*reservation_date = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_date", "reservation_time", "status"}).
			AddRow("a", "2025-03-10", "18:00", "pending"))
	mock.ExpectRollback()

	r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "18:30", PartySize: 2, CustomerName: "E", CustomerPhone: "5"}
	err := s.CreateReservation(context.Background(), r, OverlapCheck{WindowMinutes: 105, TotalTables: 1})
	assert.ErrorIs(t, err, ErrOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateReservation_Concurrent(t *testing.T) {
	s, gormDB := newStore(t)
	check := OverlapCheck{WindowMinutes: 105, TotalTables: 1}

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		overlap int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := &model.Reservation{ReservationDate: "2025-03-10", ReservationTime: "18:00", PartySize: 2, CustomerName: "F", CustomerPhone: "6"}
			err := s.CreateReservation(context.Background(), r, check)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrOverlap):
				overlap++
			default:
				t.Errorf("attempt %d: unexpected error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, overlap)

	var count int64
	require.NoError(t, gormDB.Model(&model.Reservation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormStore_UpdateReservationStatus(t *testing.T) {
	s, gormDB := newStore(t)
	seedReservation(t, gormDB, model.Reservation{ID: "a", ReservationDate: "2025-03-10", ReservationTime: "18:00", Status: model.StatusPending})

	check := OverlapCheck{WindowMinutes: 105, TotalTables: 1}
	r, err := s.UpdateReservationStatus(context.Background(), "a", model.StatusConfirmed, check)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)

	got, err := s.GetReservation(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	_, err = s.UpdateReservationStatus(context.Background(), "missing", model.StatusCancelled, check)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_UpdateReservationStatus_Reactivation(t *testing.T) {
	s, gormDB := newStore(t)
	ctx := context.Background()
	seedReservation(t, gormDB, model.Reservation{ID: "old", ReservationDate: "2025-03-10", ReservationTime: "18:00", Status: model.StatusCancelled})
	seedReservation(t, gormDB, model.Reservation{ID: "new", ReservationDate: "2025-03-10", ReservationTime: "18:30", Status: model.StatusConfirmed})

	full := OverlapCheck{WindowMinutes: 105, TotalTables: 1}
	_, err := s.UpdateReservationStatus(ctx, "old", model.StatusPending, full)
	assert.ErrorIs(t, err, ErrOverlap)

	got, err := s.GetReservation(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	// Moving between inactive statuses never needs capacity.
	_, err = s.UpdateReservationStatus(ctx, "old", model.StatusCompleted, full)
	assert.NoError(t, err)

	// An active reservation is not counted against itself.
	_, err = s.UpdateReservationStatus(ctx, "new", model.StatusPending, full)
	assert.NoError(t, err)

	r, err := s.UpdateReservationStatus(ctx, "old", model.StatusConfirmed, OverlapCheck{WindowMinutes: 105, TotalTables: 2})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
}

func TestGormStore_ListReservations(t *testing.T) {
	s, gormDB := newStore(t)
	seedReservation(t, gormDB, model.Reservation{ID: "late", ReservationDate: "2025-03-10", ReservationTime: "20:00", Status: model.StatusCancelled})
	seedReservation(t, gormDB, model.Reservation{ID: "early", ReservationDate: "2025-03-10", ReservationTime: "12:00", Status: model.StatusConfirmed})

	rows, err := s.ListReservations(context.Background(), "2025-03-10")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "early", rows[0].ID)
	assert.Equal(t, "late", rows[1].ID)
}

func TestGormStore_Subscriptions(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	sub := &model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "k1", Auth: "a1"}
	require.NoError(t, s.UpsertSubscription(ctx, sub))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "k2", Auth: "a2", Label: "front desk"}))

	got, err := s.GetSubscription(ctx, "https://push.example/1")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)
	assert.Equal(t, "front desk", got.Label)

	all, err := s.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push.example/1"))
	require.NoError(t, s.DeleteSubscription(ctx, "https://push.example/1"))
	_, err = s.GetSubscription(ctx, "https://push.example/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, time.Hour, "op", func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_NotFoundIsNotRetried(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, "op", func() error {
		calls++
		return gorm.ErrRecordNotFound
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, 1, calls)
}
