// Package webhook exposes the GitHub webhook HTTP endpoint and the HMAC
// signature verifier guarding it.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"

	usecase "github.com/bkyoung/review-pipeline/internal/usecase/webhook"
)

const signaturePrefix = "sha256="

// HMACVerifier verifies X-Hub-Signature-256 values against a shared
// secret using HMAC-SHA256.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks the signature header value against the payload. The
// comparison is constant time and never reveals which byte differed.
func (v *HMACVerifier) Verify(payload []byte, signature string) usecase.ValidationResult {
	if len(payload) == 0 {
		return usecase.InvalidResult("payload is empty")
	}
	if signature == "" {
		return usecase.InvalidResult("signature is empty")
	}
	if len(v.secret) == 0 {
		return usecase.InvalidResult("webhook secret is not configured")
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return usecase.InvalidResult("invalid signature format (missing 'sha256=' prefix)")
	}

	hexPart := signature[len(signaturePrefix):]
	if len(hexPart)%2 != 0 {
		return usecase.InvalidResult("invalid signature format: odd-length hex string")
	}

	received, ok := decodeLowerHex(hexPart)
	if !ok {
		return usecase.InvalidResult("invalid signature format: non-lowercase hex")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, received) {
		return usecase.InvalidResult("signature mismatch")
	}
	return usecase.ValidResult()
}

// decodeLowerHex decodes a hex string, rejecting uppercase digits.
// GitHub emits lowercase only, anything else is a forgery tell.
func decodeLowerHex(s string) ([]byte, bool) {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		hi, ok1 := lowerHexDigit(s[i])
		lo, ok2 := lowerHexDigit(s[i+1])
		if !ok1 || !ok2 {
			return nil, false
		}
		out[i/2] = hi<<4 | lo
	}
	return out, true
}

func lowerHexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
