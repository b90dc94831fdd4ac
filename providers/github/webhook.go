package github

import (
	"strings"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/signature"
)

const (
	SignatureHeader  = "X-Hub-Signature-256"
	EventHeader      = "X-GitHub-Event"
	DeliveryIDHeader = "X-GitHub-Delivery"

	signaturePrefix = "sha256="
)

// WebhookVerifier checks the `sha256=<hex>` HMAC of the raw body against
// X-Hub-Signature-256. Event type and delivery id headers are read
// regardless of the signature outcome.
type WebhookVerifier struct{}

func (WebhookVerifier) Verify(secret string, headers map[string]string, body []byte) core.VerificationResult {
	result := core.VerificationResult{
		EventType:       signature.HeaderValue(headers, EventHeader),
		ProviderEventID: signature.HeaderValue(headers, DeliveryIDHeader),
	}

	provided := signature.HeaderValue(headers, SignatureHeader)
	if provided == "" {
		result.FailureReason = "missing " + SignatureHeader + " header"
		return result
	}
	if !strings.HasPrefix(strings.ToLower(provided), signaturePrefix) {
		result.FailureReason = "missing sha256= prefix"
		return result
	}
	digest := strings.TrimSpace(provided[len(signaturePrefix):])
	if !signature.Matches(digest, signature.EncodingHex, secret, body) {
		result.FailureReason = "signature mismatch"
		return result
	}
	result.SignatureValid = true
	return result
}

var _ core.WebhookVerifier = WebhookVerifier{}
