package crypto

import (
	"encoding/base64"
	"strings"
)

// ToBase64URL encodes bytes to URL-safe base64 without padding.
// Keys, ciphertexts and entry payloads travel over HTTP in this form.
func ToBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromBase64URL decodes URL-safe base64 with or without padding.
func FromBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// ToBase64 encodes bytes to standard base64 with padding.
// Text ciphertexts returned to callers use this form.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes standard base64 (with padding) to bytes.
func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
