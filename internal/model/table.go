package model

import "time"

// Table is a physical dining table. Only active tables count towards
// inventory.
type Table struct {
	ID          int64     `gorm:"primaryKey"`
	TableNumber int       `gorm:"uniqueIndex;not null"`
	Seats       int       `gorm:"not null;default:4"`
	IsActive    bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
