package shopify

import (
	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/signature"
)

const (
	HMACHeader       = "X-Shopify-Hmac-Sha256"
	TopicHeader      = "X-Shopify-Topic"
	DeliveryIDHeader = "X-Shopify-Webhook-Id"
)

// WebhookVerifier checks the base64 HMAC-SHA256 of the raw body against the
// X-Shopify-Hmac-Sha256 header. The topic and webhook id headers are read
// regardless of the signature outcome.
type WebhookVerifier struct{}

func (WebhookVerifier) Verify(secret string, headers map[string]string, body []byte) core.VerificationResult {
	result := core.VerificationResult{
		EventType:       signature.HeaderValue(headers, TopicHeader),
		ProviderEventID: signature.HeaderValue(headers, DeliveryIDHeader),
	}

	provided := signature.HeaderValue(headers, HMACHeader)
	if provided == "" {
		result.FailureReason = "missing " + HMACHeader + " header"
		return result
	}
	if !signature.Matches(provided, signature.EncodingBase64, secret, body) {
		result.FailureReason = "signature mismatch"
		return result
	}
	result.SignatureValid = true
	return result
}

var _ core.WebhookVerifier = WebhookVerifier{}
