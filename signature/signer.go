// Package signature provides HMAC-SHA256 signing and verification for
// opaque tokens handed to API callers.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer signs and verifies payloads with a fixed secret.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer keyed by secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of payload.
func (s *Signer) Sign(payload []byte) string {
	return Sign(payload, string(s.secret))
}

// Verify reports whether sig is the signature of payload.
func (s *Signer) Verify(payload []byte, sig string) bool {
	return Verify(payload, string(s.secret), sig)
}

// Sign returns the hex-encoded HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig against the HMAC-SHA256 of payload in constant time.
func Verify(payload []byte, secret, sig string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}
