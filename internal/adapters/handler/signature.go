package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature validates the X-Hub-Signature-256 header against the raw body.
// An empty secret disables verification and always returns true.
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks#security
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	received := strings.TrimPrefix(header, signaturePrefix)

	// constant-time comparison
	return hmac.Equal([]byte(computed), []byte(received))
}
