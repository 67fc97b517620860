package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"example.com/swiftcheck/internal/cache"
	"example.com/swiftcheck/internal/models"
	"example.com/swiftcheck/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventImport is the strictly-typed import payload. Validation happens here,
// at the boundary, so ReplaceEvent only ever sees well-formed events.
type EventImport struct {
	ID         int64     `json:"id" validate:"required,gt=0"`
	Name       string    `json:"name" validate:"required"`
	StartTime  time.Time `json:"startTime" validate:"required"`
	TotalSeats int       `json:"totalSeats" validate:"required,gt=0"`
}

// ErrInvalidEventPayload wraps validation failures of an import payload.
var ErrInvalidEventPayload = errors.New("invalid event payload")

const maxImportBodyBytes = 1 << 20

// ImportService installs a new active event, replacing the previous one and
// clearing all check-ins. It can take an inline payload or fetch one from a
// URL (the server does the fetch so browser clients are not blocked by CORS).
type ImportService struct {
	store      store.TicketStore
	cache      *cache.CheckedInCache
	validate   *validator.Validate
	httpClient *http.Client
}

// NewImportService creates an event importer.
func NewImportService(ticketStore store.TicketStore, checkedInCache *cache.CheckedInCache) *ImportService {
	return &ImportService{
		store:    ticketStore,
		cache:    checkedInCache,
		validate: validator.New(),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Import validates the payload and atomically replaces the active event.
func (s *ImportService) Import(ctx context.Context, payload EventImport) (models.Event, error) {
	if err := s.validate.Struct(payload); err != nil {
		return models.Event{}, errors.Wrap(ErrInvalidEventPayload, err.Error())
	}

	previous, err := s.store.GetActiveEvent(ctx)
	if err != nil {
		return models.Event{}, errors.Wrap(err, "failed to load active event")
	}

	event, err := s.store.ReplaceEvent(ctx, models.Event{
		ID:         payload.ID,
		Name:       payload.Name,
		StartTime:  payload.StartTime,
		TotalSeats: payload.TotalSeats,
	})
	if err != nil {
		return models.Event{}, errors.Wrap(err, "failed to replace event")
	}

	// The store already dropped its check-ins; drop the advisory cache sets
	// too so stale "already checked in" hints cannot outlive the old event.
	for _, id := range []int64{event.ID, previousID(previous)} {
		if id == 0 {
			continue
		}
		if cacheErr := s.cache.Reset(ctx, id); cacheErr != nil && s.cache.Enabled() {
			log.Warn().Err(cacheErr).Int64("event_id", id).Msg("Failed to reset checked-in cache")
		}
	}

	log.Info().
		Int64("event_id", event.ID).
		Str("name", event.Name).
		Int("total_seats", event.TotalSeats).
		Msg("Active event replaced")

	return event, nil
}

// ImportFromURL fetches an event definition and installs it.
func (s *ImportService) ImportFromURL(ctx context.Context, url string) (models.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Event{}, errors.Wrap(err, "invalid event URL")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Event{}, errors.Wrap(err, "failed to fetch event data")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Event{}, errors.Errorf("failed to fetch event data: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImportBodyBytes))
	if err != nil {
		return models.Event{}, errors.Wrap(err, "failed to read event data")
	}

	var payload EventImport
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.Event{}, errors.Wrap(ErrInvalidEventPayload, err.Error())
	}

	return s.Import(ctx, payload)
}

// Stats summarizes admissions against capacity for the active event.
func (s *ImportService) Stats(ctx context.Context) (models.EventStats, error) {
	event, err := s.store.GetActiveEvent(ctx)
	if err != nil {
		return models.EventStats{}, errors.Wrap(err, "failed to load active event")
	}
	if event == nil {
		return models.EventStats{}, store.ErrNoActiveEvent
	}

	checkIns, err := s.store.ListCheckIns(ctx, event.ID)
	if err != nil {
		return models.EventStats{}, err
	}

	stats := models.EventStats{
		TotalSeats:     event.TotalSeats,
		CheckedIn:      len(checkIns),
		SeatsAvailable: event.TotalSeats - len(checkIns),
	}
	if event.TotalSeats > 0 {
		stats.OccupancyRate = float64(stats.CheckedIn) / float64(event.TotalSeats)
	}
	return stats, nil
}

// ActiveEvent returns the active event, or nil when none is set.
func (s *ImportService) ActiveEvent(ctx context.Context) (*models.Event, error) {
	return s.store.GetActiveEvent(ctx)
}

func previousID(event *models.Event) int64 {
	if event == nil {
		return 0
	}
	return event.ID
}
