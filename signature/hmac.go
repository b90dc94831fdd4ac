// Package signature implements the HMAC-SHA256 primitives shared by the
// provider webhook verifiers. Comparisons are constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

// Compute returns the raw HMAC-SHA256 digest of payload under secret.
func Compute(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

// ComputeHex returns the lowercase hex digest, the form providers embed in
// signature headers.
func ComputeHex(secret string, payload []byte) string {
	return hex.EncodeToString(Compute(secret, payload))
}

// ComputeBase64 returns the standard base64 digest.
func ComputeBase64(secret string, payload []byte) string {
	return base64.StdEncoding.EncodeToString(Compute(secret, payload))
}

// Matches reports whether the encoded signature equals the HMAC of payload
// under secret. Malformed encodings never match.
func Matches(encoded string, encoding Encoding, secret string, payload []byte) bool {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var provided []byte
	var err error
	switch encoding {
	case EncodingBase64:
		provided, err = base64.StdEncoding.DecodeString(encoded)
	default:
		provided, err = hex.DecodeString(strings.ToLower(encoded))
	}
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(provided, Compute(secret, payload)) == 1
}

// HeaderValue does a case-insensitive lookup with trimmed keys and values.
func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
