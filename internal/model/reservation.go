package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// ActiveStatuses are the statuses that occupy a table.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusConfirmed}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether a reservation in this status occupies a table.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reservation is a customer booking. Date and time are stored in venue
// local form ("2006-01-02" and "15:04").
type Reservation struct {
	ID              string            `gorm:"primaryKey;size:36" json:"id"`
	ReservationDate string            `gorm:"size:10;not null;index:idx_reservation_date_status" json:"reservation_date"`
	ReservationTime string            `gorm:"size:5;not null" json:"reservation_time"`
	TableNumber     *int              `json:"table_number"`
	Status          ReservationStatus `gorm:"size:16;not null;index:idx_reservation_date_status" json:"status"`
	PartySize       int               `gorm:"not null" json:"party_size"`
	CustomerName    string            `gorm:"size:128;not null" json:"customer_name"`
	CustomerPhone   string            `gorm:"size:32;not null" json:"customer_phone"`
	CustomerEmail   string            `gorm:"size:256" json:"customer_email,omitempty"`
	Notes           string            `gorm:"size:1024" json:"notes,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}
