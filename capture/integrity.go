package capture

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the content hash of raw bytes in the stored
// "sha256:<hex>" form.
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Signer produces and verifies content signatures. The signature is an
// HMAC-SHA256 over the content hash string, rendered as "hmac-sha256:<hex>".
// It is a lightweight tamper check, not a substitute for KMS-backed signing.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer with the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the signature for a content hash string.
func (s *Signer) Sign(contentHash string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(contentHash))
	return "hmac-sha256:" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the content hash, in constant time.
func (s *Signer) Verify(contentHash, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(s.Sign(contentHash)), []byte(signature))
}
