// Package webhook owns the single HTTPS ingress endpoint shared by every
// tenant: signature verification, replay defense, redaction, and the
// WebhookLog idempotency record, before handing off to the dispatcher.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSignature = errors.New("webhook: missing signature header")
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

const signaturePrefix = "sha256="

// VerifySignature checks header against HMAC-SHA256(body, secret), the
// same construction as internal/auth.ValidateTenantHeaders but over the
// raw request body instead of a "{tenant}:{timestamp}" tuple, and with the
// provider's "sha256=<hex>" header framing.
func VerifySignature(body []byte, header, secret string) error {
	if header == "" {
		return ErrMissingSignature
	}
	sig := strings.TrimPrefix(header, signaturePrefix)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}
