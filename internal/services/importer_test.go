package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/swiftcheck/config"
	"example.com/swiftcheck/internal/cache"
	"example.com/swiftcheck/internal/store"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestImporter(t *testing.T) (*ImportService, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	disabledCache, err := cache.NewCheckedInCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	return NewImportService(memStore, disabledCache), memStore
}

func validImport() EventImport {
	return EventImport{
		ID:         7,
		Name:       "Launch Party",
		StartTime:  time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC),
		TotalSeats: 250,
	}
}

func TestImportInstallsEvent(t *testing.T) {
	importer, memStore := newTestImporter(t)

	event, err := importer.Import(context.Background(), validImport())
	require.NoError(t, err)
	require.Equal(t, int64(7), event.ID)
	require.Equal(t, "Launch Party", event.Name)

	active, err := memStore.GetActiveEvent(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, int64(7), active.ID)
}

func TestImportValidation(t *testing.T) {
	importer, _ := newTestImporter(t)

	cases := []struct {
		name   string
		mutate func(*EventImport)
	}{
		{"zero id", func(e *EventImport) { e.ID = 0 }},
		{"negative id", func(e *EventImport) { e.ID = -3 }},
		{"missing name", func(e *EventImport) { e.Name = "" }},
		{"zero start time", func(e *EventImport) { e.StartTime = time.Time{} }},
		{"zero seats", func(e *EventImport) { e.TotalSeats = 0 }},
		{"negative seats", func(e *EventImport) { e.TotalSeats = -10 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validImport()
			tc.mutate(&payload)

			_, err := importer.Import(context.Background(), payload)
			require.True(t, errors.Is(err, ErrInvalidEventPayload))
		})
	}
}

func TestImportReplacesEventAndClearsCheckIns(t *testing.T) {
	importer, memStore := newTestImporter(t)
	ctx := context.Background()

	_, err := importer.Import(ctx, validImport())
	require.NoError(t, err)
	for ticket := int64(1); ticket <= 3; ticket++ {
		_, err = memStore.RecordCheckIn(ctx, 7, ticket, "User", time.Now())
		require.NoError(t, err)
	}

	next := validImport()
	next.ID = 8
	next.Name = "Encore Night"
	_, err = importer.Import(ctx, next)
	require.NoError(t, err)

	checkIns, err := memStore.ListCheckIns(ctx, 8)
	require.NoError(t, err)
	require.Empty(t, checkIns)
}

func TestImportFromURL(t *testing.T) {
	importer, memStore := newTestImporter(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 9, "name": "Remote Event", "startTime": "2025-06-01T19:00:00Z", "totalSeats": 500}`))
	}))
	defer server.Close()

	event, err := importer.ImportFromURL(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, int64(9), event.ID)
	require.Equal(t, "Remote Event", event.Name)
	require.Equal(t, 500, event.TotalSeats)

	active, err := memStore.GetActiveEvent(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, int64(9), active.ID)
}

func TestImportFromURLFailures(t *testing.T) {
	importer, _ := newTestImporter(t)

	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := importer.ImportFromURL(context.Background(), server.URL)
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, err := importer.ImportFromURL(context.Background(), server.URL)
		require.True(t, errors.Is(err, ErrInvalidEventPayload))
	})

	t.Run("invalid payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id": 0, "name": "", "totalSeats": 0}`))
		}))
		defer server.Close()

		_, err := importer.ImportFromURL(context.Background(), server.URL)
		require.True(t, errors.Is(err, ErrInvalidEventPayload))
	})
}

func TestStats(t *testing.T) {
	importer, memStore := newTestImporter(t)
	ctx := context.Background()

	_, err := importer.Stats(ctx)
	require.True(t, errors.Is(err, store.ErrNoActiveEvent))

	payload := validImport()
	payload.TotalSeats = 4
	_, err = importer.Import(ctx, payload)
	require.NoError(t, err)

	_, err = memStore.RecordCheckIn(ctx, 7, 1, "User #1", time.Now())
	require.NoError(t, err)

	stats, err := importer.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, stats.TotalSeats)
	require.Equal(t, 1, stats.CheckedIn)
	require.Equal(t, 3, stats.SeatsAvailable)
	require.InDelta(t, 0.25, stats.OccupancyRate, 1e-9)
}
