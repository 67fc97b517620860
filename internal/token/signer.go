package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureLength is the length of the hex-encoded signature field.
const SignatureLength = sha256.Size * 2

// Signer computes and checks the keyed signature over a raw token payload.
// The secret never leaves this type; callers exchange only payloads and
// signatures, so verification stays stateless and offline.
type Signer struct {
	secret []byte
}

// NewSigner returns a signer for the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA256 of rawPayload.
func (s *Signer) Sign(rawPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(rawPayload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is the exact signature of rawPayload.
// The comparison is constant-time.
func (s *Signer) Verify(rawPayload, candidate string) bool {
	expected := s.Sign(rawPayload)
	return hmac.Equal([]byte(expected), []byte(candidate))
}
