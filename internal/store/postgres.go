package store

import (
	"context"
	"time"

	"example.com/swiftcheck/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PostgresStore is a TicketStore that keeps check-ins across restarts. The
// unique index on (event_id, ticket_number) is the test-and-set: a losing
// racer's insert fails with a duplicate-key error, which maps to
// ErrAlreadyCheckedIn. ReplaceEvent runs in a transaction so the swap and
// the check-in wipe are atomic against concurrent inserts.
//
// Requires gorm.Config{TranslateError: true} so duplicate-key violations
// surface as gorm.ErrDuplicatedKey.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore returns a store backed by the given database.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetActiveEvent(ctx context.Context) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load active event")
	}
	return &event, nil
}

func (s *PostgresStore) ReplaceEvent(ctx context.Context, event models.Event) (models.Event, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CheckIn{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear check-ins")
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Event{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear previous event")
		}
		if err := tx.Create(&event).Error; err != nil {
			return errors.Wrap(err, "failed to create event")
		}
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	return event, nil
}

func (s *PostgresStore) RecordCheckIn(ctx context.Context, eventID, ticketNumber int64, displayName string, at time.Time) (models.CheckIn, error) {
	var checkIn models.CheckIn

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveEvent
			}
			return errors.Wrap(err, "failed to load active event")
		}
		if event.ID != eventID {
			return ErrEventMismatch
		}

		checkIn = models.CheckIn{
			EventID:      eventID,
			TicketNumber: ticketNumber,
			DisplayName:  displayName,
			CheckInTime:  at,
		}
		if err := tx.Create(&checkIn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyCheckedIn
			}
			return errors.Wrap(err, "failed to record check-in")
		}
		return nil
	})
	if err != nil {
		return models.CheckIn{}, err
	}
	return checkIn, nil
}

func (s *PostgresStore) ListCheckIns(ctx context.Context, eventID int64) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("check_in_time DESC, id ASC").
		Find(&checkIns).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list check-ins")
	}
	return checkIns, nil
}

func (s *PostgresStore) IsCheckedIn(ctx context.Context, eventID, ticketNumber int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("event_id = ? AND ticket_number = ?", eventID, ticketNumber).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check ticket status")
	}
	return count > 0, nil
}
