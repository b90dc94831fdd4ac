package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestWebhookVerifier_AcceptsValidSignature(t *testing.T) {
	body := []byte(`{"action":"opened","repository":{"full_name":"acme/api"}}`)
	verifier := WebhookVerifier{}

	result := verifier.Verify("gh_secret", map[string]string{
		"X-Hub-Signature-256": "sha256=" + signHex("gh_secret", body),
		"X-GitHub-Event":      "pull_request",
		"X-GitHub-Delivery":   "72d3162e-cc78-11e3",
	}, body)

	if !result.SignatureValid {
		t.Fatalf("expected valid signature, got failure %q", result.FailureReason)
	}
	if result.EventType != "pull_request" {
		t.Fatalf("expected event type pull_request, got %q", result.EventType)
	}
	if result.ProviderEventID != "72d3162e-cc78-11e3" {
		t.Fatalf("expected delivery id extracted, got %q", result.ProviderEventID)
	}
}

func TestWebhookVerifier_RejectsBadSignatures(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	verifier := WebhookVerifier{}

	cases := map[string]map[string]string{
		"missing header": {},
		"missing prefix": {"X-Hub-Signature-256": signHex("gh_secret", body)},
		"wrong secret":   {"X-Hub-Signature-256": "sha256=" + signHex("other", body)},
	}
	for name, headers := range cases {
		headers["X-GitHub-Event"] = "push"
		result := verifier.Verify("gh_secret", headers, body)
		if result.SignatureValid {
			t.Fatalf("%s: expected verification failure", name)
		}
		if result.EventType != "push" {
			t.Fatalf("%s: expected event type extracted despite failure", name)
		}
	}
}

func TestCorrelationKey_RepositoryFullName(t *testing.T) {
	adapter := New()

	key := adapter.CorrelationKey(map[string]any{
		"repository": map[string]any{"full_name": "acme/api"},
	})
	if key != "github:repo:acme/api" {
		t.Fatalf("expected repo correlation key, got %q", key)
	}
	if key := adapter.CorrelationKey(map[string]any{"action": "ping"}); key != "" {
		t.Fatalf("expected empty correlation key, got %q", key)
	}
	if adapter.SupportsReconciliation() {
		t.Fatalf("expected reconciliation to be unsupported")
	}
	if adapter.Reconciler() != nil {
		t.Fatalf("expected nil reconciler")
	}
}

func signHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
