// Package webhook receives GitHub issue event deliveries and turns
// them into bus events. Each delivery is an independent unit of work;
// failed deliveries rely on the platform's redelivery for retry.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// signaturePrefix is the scheme GitHub prepends to the HMAC hex digest
// in X-Hub-Signature-256.
const signaturePrefix = "sha256="

// ValidateSignature checks a GitHub webhook payload signature.
// The header value is "sha256=<hex hmac-sha256 of the raw body>".
// Comparison is constant time.
func ValidateSignature(signature string, body, secret []byte) error {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return fmt.Errorf("invalid signature format")
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	h := hmac.New(sha256.New, secret)
	h.Write(body)
	expected := h.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Sign computes the X-Hub-Signature-256 header value for a payload.
// Used by tests and by the dispatch CLI when replaying events.
func Sign(body, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}
