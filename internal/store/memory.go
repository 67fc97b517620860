package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/swiftcheck/internal/models"
)

type ticketKey struct {
	eventID      int64
	ticketNumber int64
}

// MemoryStore is the default single-process TicketStore. One mutex guards
// the whole store, so RecordCheckIn's membership check and append are a
// single critical section and ReplaceEvent can never interleave with a
// half-recorded check-in.
type MemoryStore struct {
	mu       sync.Mutex
	event    *models.Event
	checkIns []models.CheckIn
	consumed map[ticketKey]struct{}
	nextID   int64
}

// NewMemoryStore returns an empty in-memory store with no active event.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consumed: make(map[ticketKey]struct{}),
		nextID:   1,
	}
}

func (s *MemoryStore) GetActiveEvent(_ context.Context) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.event == nil {
		return nil, nil
	}
	event := *s.event
	return &event, nil
}

func (s *MemoryStore) ReplaceEvent(_ context.Context, event models.Event) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.event = &event
	s.checkIns = nil
	s.consumed = make(map[ticketKey]struct{})
	s.nextID = 1
	return event, nil
}

func (s *MemoryStore) RecordCheckIn(_ context.Context, eventID, ticketNumber int64, displayName string, at time.Time) (models.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.event == nil {
		return models.CheckIn{}, ErrNoActiveEvent
	}
	if s.event.ID != eventID {
		return models.CheckIn{}, ErrEventMismatch
	}

	key := ticketKey{eventID: eventID, ticketNumber: ticketNumber}
	if _, used := s.consumed[key]; used {
		return models.CheckIn{}, ErrAlreadyCheckedIn
	}

	checkIn := models.CheckIn{
		ID:           s.nextID,
		EventID:      eventID,
		TicketNumber: ticketNumber,
		DisplayName:  displayName,
		CheckInTime:  at,
	}
	s.nextID++
	s.consumed[key] = struct{}{}
	s.checkIns = append(s.checkIns, checkIn)
	return checkIn, nil
}

func (s *MemoryStore) ListCheckIns(_ context.Context, eventID int64) ([]models.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CheckIn, 0, len(s.checkIns))
	for _, checkIn := range s.checkIns {
		if checkIn.EventID == eventID {
			out = append(out, checkIn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckInTime.Equal(out[j].CheckInTime) {
			return out[i].CheckInTime.After(out[j].CheckInTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) IsCheckedIn(_ context.Context, eventID, ticketNumber int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, used := s.consumed[ticketKey{eventID: eventID, ticketNumber: ticketNumber}]
	return used, nil
}
