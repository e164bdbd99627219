package db

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"table-reservation-backend/config"
	"table-reservation-backend/internal/calendar"
	"table-reservation-backend/internal/model"
)

// Open connects to Postgres and applies the pool settings.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	return db, nil
}

// Init opens the database, runs migrations and seeds default settings.
func Init(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := Seed(db, &cfg.Schedule); err != nil {
		return nil, err
	}
	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Reservation{},
		&model.Table{},
		&model.Setting{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Seed inserts default settings that are missing and, on an empty table
// inventory, the default number of tables. Existing rows are never changed.
func Seed(db *gorm.DB, sched *config.ScheduleConfig) error {
	hours := make(map[string]calendar.Hours)
	for wd, h := range calendar.DefaultHours() {
		hours[fmt.Sprintf("%d", int(wd))] = h
	}
	hoursJSON, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("failed to encode default business hours: %w", err)
	}

	now := time.Now().UTC()
	defaults := []model.Setting{
		{Key: model.SettingBusinessHours, Value: hoursJSON, UpdatedAt: now},
		{Key: model.SettingDiningDuration, Value: []byte(fmt.Sprintf("%d", sched.DefaultDiningMinutes)), UpdatedAt: now},
		{Key: model.SettingBufferTime, Value: []byte(fmt.Sprintf("%d", sched.BufferMinutes())), UpdatedAt: now},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	var tables int64
	if err := db.Model(&model.Table{}).Count(&tables).Error; err != nil {
		return fmt.Errorf("failed to count tables: %w", err)
	}
	if tables == 0 && sched.DefaultTables > 0 {
		log.Printf("No tables configured; seeding %d default tables", sched.DefaultTables)
		rows := make([]model.Table, sched.DefaultTables)
		for i := range rows {
			rows[i] = model.Table{TableNumber: i + 1, Seats: 4, IsActive: true}
		}
		if err := db.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to seed tables: %w", err)
		}
	}
	return nil
}
