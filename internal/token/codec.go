// Package token implements the ticket token wire format and its keyed
// signature. A token is the ASCII string
//
//	{eventId}:{ticketNumber}:{issuedAtEpochMs}:{signatureHex}
//
// where the signature is an HMAC-SHA256 over the first three fields. The
// codec here is purely syntactic; signature and expiry checks live with the
// callers that hold the secret and the clock.
package token

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed is returned when a token does not split into exactly four
// non-empty fields or its numeric fields do not parse as integers.
var ErrMalformed = errors.New("malformed token")

const fieldCount = 4

// Payload is a decoded ticket token.
type Payload struct {
	EventID      int64
	TicketNumber int64
	IssuedAt     int64 // Unix milliseconds at issuance
	Signature    string
}

// Encode builds the raw pre-signature payload for the given ticket reference.
func Encode(eventID, ticketNumber, issuedAt int64) string {
	return strconv.FormatInt(eventID, 10) + ":" +
		strconv.FormatInt(ticketNumber, 10) + ":" +
		strconv.FormatInt(issuedAt, 10)
}

// Decode splits a presented token into its fields. It performs no semantic
// validation: a decoded payload may still carry a bad signature, a foreign
// event id or an expired timestamp.
func Decode(raw string) (Payload, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != fieldCount {
		return Payload{}, errors.Wrapf(ErrMalformed, "expected %d fields, got %d", fieldCount, len(parts))
	}
	for _, part := range parts {
		if part == "" {
			return Payload{}, errors.Wrap(ErrMalformed, "empty field")
		}
	}

	eventID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Payload{}, errors.Wrap(ErrMalformed, "event id is not an integer")
	}
	ticketNumber, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Payload{}, errors.Wrap(ErrMalformed, "ticket number is not an integer")
	}
	issuedAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Payload{}, errors.Wrap(ErrMalformed, "timestamp is not an integer")
	}

	return Payload{
		EventID:      eventID,
		TicketNumber: ticketNumber,
		IssuedAt:     issuedAt,
		Signature:    parts[3],
	}, nil
}

// RawPayload re-derives the signed portion of the token.
func (p Payload) RawPayload() string {
	return Encode(p.EventID, p.TicketNumber, p.IssuedAt)
}
