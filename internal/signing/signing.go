// Package signing computes and checks HMAC-SHA256 signatures over webhook
// payloads.
//
// Signatures are always computed over the exact bytes that go on the wire.
// Callers must never re-serialize a structured value before verifying.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Algorithm is the tag carried in the signature header.
const Algorithm = "sha256"

var (
	ErrNoSecret             = errors.New("no signing secret configured")
	ErrMissingSignature     = errors.New("signature header missing")
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrSignatureMismatch    = errors.New("signature mismatch")
)

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	return hex.EncodeToString(sum(secret, payload))
}

// Verify reports whether signatureHex is the signature of payload under secret.
// A candidate that does not decode to a digest of the expected length is
// rejected before any comparison happens.
func Verify(secret string, payload []byte, signatureHex string) bool {
	provided, err := hex.DecodeString(signatureHex)
	if err != nil || len(provided) != sha256.Size {
		return false
	}
	return hmac.Equal(sum(secret, payload), provided)
}

// FormatHeader renders a signature as "<algorithm>=<hex>".
func FormatHeader(signatureHex string) string {
	return Algorithm + "=" + signatureHex
}

// SignHeader signs payload and formats the result for the signature header.
func SignHeader(secret string, payload []byte) string {
	return FormatHeader(Sign(secret, payload))
}

// CheckHeader validates a "<algorithm>=<hex>" header value for a received
// payload. It fails closed: an absent or malformed header is an error, never
// an implicit pass.
func CheckHeader(secret string, payload []byte, header string) error {
	if secret == "" {
		return ErrNoSecret
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	algo, sig, ok := strings.Cut(header, "=")
	if !ok {
		return ErrMissingSignature
	}
	if !strings.EqualFold(algo, Algorithm) {
		return ErrUnsupportedAlgorithm
	}
	if !Verify(secret, payload, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyHeader is the boolean form of CheckHeader.
func VerifyHeader(secret string, payload []byte, header string) bool {
	return CheckHeader(secret, payload, header) == nil
}

func sum(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
