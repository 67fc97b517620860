package services

import (
	"context"
	"fmt"
	"time"

	"example.com/swiftcheck/internal/cache"
	"example.com/swiftcheck/internal/clock"
	"example.com/swiftcheck/internal/metrics"
	"example.com/swiftcheck/internal/models"
	"example.com/swiftcheck/internal/store"
	"example.com/swiftcheck/internal/token"
	"example.com/swiftcheck/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ResultKind distinguishes scan outcomes for callers that render or count
// them. Every kind except Admitted is a rejection; DuplicateCheckIn is the
// one rejection of a genuine token.
type ResultKind string

const (
	KindAdmitted          ResultKind = "admitted"
	KindMalformedToken    ResultKind = "malformed_token"
	KindNoActiveEvent     ResultKind = "no_active_event"
	KindEventMismatch     ResultKind = "event_mismatch"
	KindSignatureMismatch ResultKind = "signature_mismatch"
	KindTokenExpired      ResultKind = "token_expired"
	KindDuplicateCheckIn  ResultKind = "duplicate_check_in"
)

// CheckInResult is the typed outcome of a scan attempt. Rejections are
// values, not errors: the pipeline never raises for a bad token, only for
// infrastructure faults.
type CheckInResult struct {
	ScanID       uuid.UUID       `json:"scanId"`
	Admitted     bool            `json:"admitted"`
	Kind         ResultKind      `json:"kind"`
	Message      string          `json:"message"`
	TicketNumber int64           `json:"ticketNumber,omitempty"`
	CheckIn      *models.CheckIn `json:"checkIn,omitempty"`
}

// CheckInService runs the scan pipeline: decode, event match, signature,
// expiry, then the store's atomic record. Each gate halts the pipeline with
// a typed rejection; nothing is written before the final gate, so an aborted
// scan needs no rollback. The service does not care how the raw token string
// was obtained — live camera, file decode or curl all enter here.
type CheckInService struct {
	store    store.TicketStore
	signer   *token.Signer
	clock    clock.Clock
	cache    *cache.CheckedInCache
	metrics  *metrics.Metrics
	tracer   tracing.Tracer
	tokenTTL time.Duration
}

const defaultTokenTTL = 5 * time.Minute

// NewCheckInService creates the scan pipeline service.
func NewCheckInService(
	ticketStore store.TicketStore,
	signer *token.Signer,
	clk clock.Clock,
	checkedInCache *cache.CheckedInCache,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
	opts ...CheckInOption,
) *CheckInService {
	svc := &CheckInService{
		store:    ticketStore,
		signer:   signer,
		clock:    clk,
		cache:    checkedInCache,
		metrics:  collector,
		tracer:   tracer,
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CheckInOption configures a CheckInService.
type CheckInOption func(*CheckInService)

// WithTokenTTL overrides the default five-minute token expiry window.
func WithTokenTTL(d time.Duration) CheckInOption {
	return func(s *CheckInService) {
		if d > 0 {
			s.tokenTTL = d
		}
	}
}

// AttemptCheckIn validates a presented token and admits the ticket at most
// once. Rejections come back inside the result; the returned error is
// reserved for infrastructure faults (store unreachable), which callers map
// to a retryable server error rather than a scan verdict.
func (s *CheckInService) AttemptCheckIn(ctx context.Context, rawToken string) (CheckInResult, error) {
	txn := s.tracer.StartTransaction("attempt-check-in")
	defer s.tracer.EndTransaction(txn)

	scanID := uuid.New()

	// Gate 1: syntax.
	payload, err := token.Decode(rawToken)
	if err != nil {
		return s.reject(scanID, KindMalformedToken, "Invalid QR code format.", 0), nil
	}
	s.tracer.AddAttribute(txn, "event_id", payload.EventID)
	s.tracer.AddAttribute(txn, "ticket_number", payload.TicketNumber)

	// Gate 2: token must target the active event.
	event, err := s.store.GetActiveEvent(ctx)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return CheckInResult{}, errors.Wrap(err, "failed to load active event")
	}
	if event == nil {
		return s.reject(scanID, KindNoActiveEvent, "No event loaded. Please import an event first.", payload.TicketNumber), nil
	}
	if event.ID != payload.EventID {
		return s.reject(scanID, KindEventMismatch, "QR code is for a different event.", payload.TicketNumber), nil
	}

	// Gate 3: keyed signature over the re-derived payload.
	sigSpan := s.tracer.StartSpan("verify-signature", txn)
	valid := s.signer.Verify(payload.RawPayload(), payload.Signature)
	sigSpan.End()
	if !valid {
		s.metrics.RecordError(metrics.SignatureVerification)
		return s.reject(scanID, KindSignatureMismatch, "Invalid ticket signature.", payload.TicketNumber), nil
	}
	s.metrics.RecordSuccess(metrics.SignatureVerification)

	// Gate 4: issuance age within the TTL window. Age exactly equal to the
	// TTL still admits; strictly older is expired.
	now := s.clock.Now()
	age := now.UnixMilli() - payload.IssuedAt
	if age > s.tokenTTL.Milliseconds() {
		return s.reject(scanID, KindTokenExpired, "QR code has expired. Please regenerate.", payload.TicketNumber), nil
	}

	// Gate 5: the store's atomic test-and-set decides admission. The store
	// re-validates the event under its own lock, so a replace racing this
	// scan maps to an event mismatch rather than a stale record.
	displayName := fmt.Sprintf("User #%d", payload.TicketNumber)
	recordSpan := s.tracer.StartSpan("record-check-in", txn)
	checkIn, err := s.store.RecordCheckIn(ctx, payload.EventID, payload.TicketNumber, displayName, now)
	recordSpan.End()
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyCheckedIn):
			msg := fmt.Sprintf("Ticket #%d has already been checked in.", payload.TicketNumber)
			return s.reject(scanID, KindDuplicateCheckIn, msg, payload.TicketNumber), nil
		case errors.Is(err, store.ErrEventMismatch):
			return s.reject(scanID, KindEventMismatch, "QR code is for a different event.", payload.TicketNumber), nil
		case errors.Is(err, store.ErrNoActiveEvent):
			return s.reject(scanID, KindNoActiveEvent, "No event loaded. Please import an event first.", payload.TicketNumber), nil
		default:
			s.tracer.RecordError(txn, err)
			return CheckInResult{}, errors.Wrap(err, "failed to record check-in")
		}
	}

	if cacheErr := s.cache.MarkCheckedIn(ctx, checkIn.EventID, checkIn.TicketNumber); cacheErr != nil && s.cache.Enabled() {
		log.Debug().Err(cacheErr).Int64("ticket_number", checkIn.TicketNumber).Msg("Failed to update checked-in cache")
	}

	s.metrics.RecordScan(string(KindAdmitted))
	log.Info().
		Str("scan_id", scanID.String()).
		Int64("event_id", checkIn.EventID).
		Int64("ticket_number", checkIn.TicketNumber).
		Msg("Ticket admitted")

	return CheckInResult{
		ScanID:       scanID,
		Admitted:     true,
		Kind:         KindAdmitted,
		Message:      fmt.Sprintf("Ticket #%d checked in successfully!", checkIn.TicketNumber),
		TicketNumber: checkIn.TicketNumber,
		CheckIn:      &checkIn,
	}, nil
}

// IsLikelyCheckedIn answers the advisory pre-scan question from the cache
// when available, falling back to the store. Only a UX short-circuit; the
// pipeline never consults it.
func (s *CheckInService) IsLikelyCheckedIn(ctx context.Context, eventID, ticketNumber int64) (bool, error) {
	if s.cache.Enabled() {
		used, err := s.cache.IsCheckedIn(ctx, eventID, ticketNumber)
		if err == nil {
			return used, nil
		}
		log.Debug().Err(err).Msg("Checked-in cache unavailable, falling back to store")
	}
	return s.store.IsCheckedIn(ctx, eventID, ticketNumber)
}

// ListCheckIns returns the active event's admissions, newest first.
func (s *CheckInService) ListCheckIns(ctx context.Context) ([]models.CheckIn, error) {
	event, err := s.store.GetActiveEvent(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load active event")
	}
	if event == nil {
		return []models.CheckIn{}, nil
	}
	return s.store.ListCheckIns(ctx, event.ID)
}

// TokenTTL exposes the configured expiry window.
func (s *CheckInService) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *CheckInService) reject(scanID uuid.UUID, kind ResultKind, message string, ticketNumber int64) CheckInResult {
	s.metrics.RecordScan(string(kind))
	log.Info().
		Str("scan_id", scanID.String()).
		Str("kind", string(kind)).
		Int64("ticket_number", ticketNumber).
		Msg("Scan rejected")
	return CheckInResult{
		ScanID:       scanID,
		Admitted:     false,
		Kind:         kind,
		Message:      message,
		TicketNumber: ticketNumber,
	}
}
