package services

import (
	"example.com/swiftcheck/internal/clock"
	"example.com/swiftcheck/internal/token"

	"github.com/pkg/errors"
)

// ErrInvalidTicketRef is returned when an event id or ticket number is not a
// positive integer.
var ErrInvalidTicketRef = errors.New("event id and ticket number must be positive")

// IssuanceService mints ticket tokens. It holds the same signer as the
// check-in path; tokens are not stored anywhere, only handed out and
// re-verified on presentation. Issuing twice for the same pair yields two
// distinct, independently valid tokens — only check-ins are single-use.
type IssuanceService struct {
	signer *token.Signer
	clock  clock.Clock
}

// NewIssuanceService creates a token issuer.
func NewIssuanceService(signer *token.Signer, clk clock.Clock) *IssuanceService {
	return &IssuanceService{
		signer: signer,
		clock:  clk,
	}
}

// Issue mints a signed token for the given ticket, stamped with the current
// time.
func (s *IssuanceService) Issue(eventID, ticketNumber int64) (string, error) {
	if eventID <= 0 || ticketNumber <= 0 {
		return "", ErrInvalidTicketRef
	}

	rawPayload := token.Encode(eventID, ticketNumber, s.clock.Now().UnixMilli())
	return rawPayload + ":" + s.signer.Sign(rawPayload), nil
}
