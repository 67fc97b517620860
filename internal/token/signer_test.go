package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignIsDeterministicLowercaseHex(t *testing.T) {
	signer := NewSigner("test-secret")

	sig := signer.Sign("7:42:1700000000000")
	require.Len(t, sig, SignatureLength)
	require.Equal(t, strings.ToLower(sig), sig)
	require.Equal(t, sig, signer.Sign("7:42:1700000000000"))
}

func TestSignDependsOnEveryField(t *testing.T) {
	signer := NewSigner("test-secret")

	base := signer.Sign("7:42:1700000000000")
	require.NotEqual(t, base, signer.Sign("8:42:1700000000000"))
	require.NotEqual(t, base, signer.Sign("7:43:1700000000000"))
	require.NotEqual(t, base, signer.Sign("7:42:1700000000001"))
}

func TestVerify(t *testing.T) {
	signer := NewSigner("test-secret")
	raw := "7:42:1700000000000"
	sig := signer.Sign(raw)

	require.True(t, signer.Verify(raw, sig))
	require.False(t, signer.Verify(raw, ""))
	require.False(t, signer.Verify(raw, sig[:SignatureLength-1]))
	require.False(t, signer.Verify(raw+"x", sig))
}

func TestVerifyRejectsEverySingleCharacterFlip(t *testing.T) {
	signer := NewSigner("test-secret")
	raw := "7:42:1700000000000"
	sig := signer.Sign(raw)

	for i := 0; i < len(sig); i++ {
		tampered := []byte(sig)
		if tampered[i] == 'a' {
			tampered[i] = 'b'
		} else {
			tampered[i] = 'a'
		}
		require.False(t, signer.Verify(raw, string(tampered)), "flip at index %d accepted", i)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw := "7:42:1700000000000"
	sig := NewSigner("issuance-secret").Sign(raw)

	require.False(t, NewSigner("checkin-secret").Verify(raw, sig))
}
