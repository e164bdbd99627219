package model

import (
	"time"

	"gorm.io/datatypes"
)

// Well-known setting keys.
const (
	SettingBusinessHours  = "business_hours"
	SettingDiningDuration = "dining_duration"
	SettingBufferTime     = "buffer_time"
)

// Setting is a key/value row; the value is stored as JSON.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:64"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}
