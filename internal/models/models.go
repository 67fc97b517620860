package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Event is the single active event attendees check in to. Importing a new
// event replaces the previous one and clears every check-in.
type Event struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	StartTime  time.Time `json:"startTime"`
	TotalSeats int       `gorm:"not null" json:"totalSeats"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"-"`
}

// CheckIn records that a ticket number was admitted to an event. The unique
// index over (event_id, ticket_number) is what makes RecordCheckIn an atomic
// test-and-set on the postgres store.
type CheckIn struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID      int64     `gorm:"not null;uniqueIndex:idx_event_ticket" json:"eventId"`
	TicketNumber int64     `gorm:"not null;uniqueIndex:idx_event_ticket" json:"ticketNumber"`
	DisplayName  string    `json:"displayName"`
	CheckInTime  time.Time `gorm:"not null;index" json:"checkInTime"`
}

// EventStats summarizes admission progress for the dashboard surface.
type EventStats struct {
	TotalSeats     int     `json:"totalSeats"`
	CheckedIn      int     `json:"checkedIn"`
	SeatsAvailable int     `json:"seatsAvailable"`
	OccupancyRate  float64 `json:"occupancyRate"`
}

// SetupModels runs schema migrations for the postgres-backed store
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&Event{}, &CheckIn{}); err != nil {
		return errors.Wrap(err, "failed to migrate models")
	}
	return nil
}
