// Package store owns the active event and its check-ins. All mutation goes
// through ReplaceEvent and RecordCheckIn; no other component holds writable
// references to either collection.
package store

import (
	"context"
	"time"

	"example.com/swiftcheck/internal/models"

	"github.com/pkg/errors"
)

var (
	// ErrNoActiveEvent is returned when no event has been imported yet.
	ErrNoActiveEvent = errors.New("no active event")

	// ErrEventMismatch is returned when a check-in targets an event other
	// than the active one, including an event replaced mid-scan.
	ErrEventMismatch = errors.New("event does not match the active event")

	// ErrAlreadyCheckedIn is returned when the (event, ticket) pair has
	// already been consumed.
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
)

// TicketStore is the ownership boundary for events and check-ins.
//
// RecordCheckIn is the concurrency-critical operation: the membership check
// and the append are a single indivisible step, so two racing callers for the
// same (event, ticket) see exactly one success and one ErrAlreadyCheckedIn.
// ReplaceEvent is mutually exclusive with RecordCheckIn; no check-in recorded
// against a replaced event survives into the new event.
type TicketStore interface {
	// GetActiveEvent returns the active event, or nil when none is set.
	GetActiveEvent(ctx context.Context) (*models.Event, error)

	// ReplaceEvent atomically installs event as the active one and clears
	// all check-ins.
	ReplaceEvent(ctx context.Context, event models.Event) (models.Event, error)

	// RecordCheckIn admits a ticket exactly once. Returns
	// ErrAlreadyCheckedIn on prior use, ErrEventMismatch when eventID is
	// not the active event, ErrNoActiveEvent when nothing is active.
	RecordCheckIn(ctx context.Context, eventID, ticketNumber int64, displayName string, at time.Time) (models.CheckIn, error)

	// ListCheckIns returns the event's check-ins newest first; ties on
	// check-in time break by ascending id.
	ListCheckIns(ctx context.Context, eventID int64) ([]models.CheckIn, error)

	// IsCheckedIn is an advisory fast check. The authoritative decision is
	// RecordCheckIn's test-and-set; a true/false here can be stale by the
	// time a caller acts on it.
	IsCheckedIn(ctx context.Context, eventID, ticketNumber int64) (bool, error)
}
