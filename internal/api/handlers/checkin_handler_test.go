package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/swiftcheck/config"
	"example.com/swiftcheck/internal/cache"
	"example.com/swiftcheck/internal/clock"
	"example.com/swiftcheck/internal/metrics"
	"example.com/swiftcheck/internal/models"
	"example.com/swiftcheck/internal/services"
	"example.com/swiftcheck/internal/store"
	"example.com/swiftcheck/internal/token"
	"example.com/swiftcheck/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	router   *gin.Engine
	store    *store.MemoryStore
	issuance *services.IssuanceService
	signer   *token.Signer
	clock    *clock.Fixed
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fixedClock := clock.NewFixed(time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC))
	signer := token.NewSigner("test-secret")
	memStore := store.NewMemoryStore()

	disabledCache, err := cache.NewCheckedInCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	checkInService := services.NewCheckInService(memStore, signer, fixedClock, disabledCache, metrics.NewMetrics(), tracer)
	issuanceService := services.NewIssuanceService(signer, fixedClock)
	importService := services.NewImportService(memStore, disabledCache)

	router := gin.New()
	NewCheckInHandler(checkInService, tracer).RegisterRoutes(router)
	NewEventHandler(importService).RegisterRoutes(router)
	NewTicketHandler(issuanceService, importService, "http://localhost:8080").RegisterRoutes(router)

	return handlerFixture{
		router:   router,
		store:    memStore,
		issuance: issuanceService,
		signer:   signer,
		clock:    fixedClock,
	}
}

func (f handlerFixture) withActiveEvent(t *testing.T, id int64) {
	t.Helper()
	_, err := f.store.ReplaceEvent(context.Background(), models.Event{
		ID:         id,
		Name:       "Test Event",
		StartTime:  f.clock.Now(),
		TotalSeats: 100,
	})
	require.NoError(t, err)
}

func (f handlerFixture) scan(t *testing.T, data string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ScanRequest{Data: data})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkins/scan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleScanAdmits(t *testing.T) {
	f := newHandlerFixture(t)
	f.withActiveEvent(t, 7)

	tokenString, err := f.issuance.Issue(7, 42)
	require.NoError(t, err)

	rec := f.scan(t, tokenString)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result services.CheckInResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Admitted)
	require.Equal(t, services.KindAdmitted, result.Kind)
	require.Equal(t, int64(42), result.TicketNumber)
}

func TestHandleScanRejections(t *testing.T) {
	f := newHandlerFixture(t)
	f.withActiveEvent(t, 7)

	valid, err := f.issuance.Issue(7, 42)
	require.NoError(t, err)
	foreign, err := f.issuance.Issue(1, 42)
	require.NoError(t, err)

	// Back-dated beyond the TTL, signed correctly.
	staleRaw := token.Encode(7, 43, f.clock.Now().Add(-6*time.Minute).UnixMilli())
	expired := staleRaw + ":" + f.signer.Sign(staleRaw)

	// Flip one signature character of the valid token.
	tampered := valid[:len(valid)-1] + "0"
	if valid[len(valid)-1] == '0' {
		tampered = valid[:len(valid)-1] + "1"
	}

	// First scan consumes ticket 42, the later rescan is a duplicate.
	require.Equal(t, http.StatusCreated, f.scan(t, valid).Code)

	cases := []struct {
		name       string
		data       string
		wantStatus int
		wantKind   services.ResultKind
	}{
		{"malformed", "garbage", http.StatusBadRequest, services.KindMalformedToken},
		{"wrong event", foreign, http.StatusConflict, services.KindEventMismatch},
		{"tampered", tampered, http.StatusUnauthorized, services.KindSignatureMismatch},
		{"expired", expired, http.StatusGone, services.KindTokenExpired},
		{"duplicate", valid, http.StatusConflict, services.KindDuplicateCheckIn},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.scan(t, tc.data)
			require.Equal(t, tc.wantStatus, rec.Code)

			var result services.CheckInResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			require.False(t, result.Admitted)
			require.Equal(t, tc.wantKind, result.Kind)
			require.NotEmpty(t, result.Message)
		})
	}
}

func TestHandleScanMissingBody(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkins/scan", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListCheckIns(t *testing.T) {
	f := newHandlerFixture(t)
	f.withActiveEvent(t, 7)

	for _, ticket := range []int64{1, 2} {
		tokenString, err := f.issuance.Issue(7, ticket)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, f.scan(t, tokenString).Code)
		f.clock.Advance(time.Minute)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkins", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CheckIns []models.CheckIn `json:"checkIns"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, int64(2), resp.CheckIns[0].TicketNumber)
	require.Equal(t, int64(1), resp.CheckIns[1].TicketNumber)
}
