package stripe

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/signature"
)

const SignatureHeader = "Stripe-Signature"

const DefaultTolerance = 300 * time.Second

// WebhookVerifier checks the stripe signature scheme: the header carries
// `t=<unix>,v1=<hex>` pairs and the signed payload is `<t>.<raw body>`.
// Multiple v1 candidates may be present after secret rotation; any match
// passes. Event type and id are read from the JSON body regardless of the
// signature outcome.
type WebhookVerifier struct {
	Tolerance time.Duration
	Now       func() time.Time
}

func (v WebhookVerifier) Verify(secret string, headers map[string]string, body []byte) core.VerificationResult {
	result := envelopeResult(body)

	header := signature.HeaderValue(headers, SignatureHeader)
	if header == "" {
		result.FailureReason = "missing " + SignatureHeader + " header"
		return result
	}

	timestamp, candidates := parseSignatureHeader(header)
	if timestamp == "" {
		result.FailureReason = "missing timestamp element"
		return result
	}
	if len(candidates) == 0 {
		result.FailureReason = "missing v1 signature element"
		return result
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		result.FailureReason = "malformed timestamp element"
		return result
	}

	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	delta := now.Sub(time.Unix(unix, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > tolerance {
		result.FailureReason = "timestamp outside tolerance"
		return result
	}

	signed := append([]byte(timestamp+"."), body...)
	for _, candidate := range candidates {
		if signature.Matches(candidate, signature.EncodingHex, secret, signed) {
			result.SignatureValid = true
			return result
		}
	}
	result.FailureReason = "signature mismatch"
	return result
}

func parseSignatureHeader(header string) (timestamp string, candidates []string) {
	for _, element := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(element), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = strings.TrimSpace(value)
		case "v1":
			if candidate := strings.TrimSpace(value); candidate != "" {
				candidates = append(candidates, candidate)
			}
		}
	}
	return timestamp, candidates
}

func envelopeResult(body []byte) core.VerificationResult {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(body, &envelope)
	return core.VerificationResult{
		EventType:       strings.TrimSpace(envelope.Type),
		ProviderEventID: strings.TrimSpace(envelope.ID),
	}
}

var _ core.WebhookVerifier = WebhookVerifier{}
