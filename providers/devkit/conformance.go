package devkit

import (
	"fmt"

	"github.com/Mithrandiirr/hookwise/core"
)

// ValidateAdapterConformance checks the structural contract every provider
// adapter must honor: a known provider id, a verifier, and a reconciler
// exactly when reconciliation is advertised.
func ValidateAdapterConformance(adapter core.ProviderAdapter) error {
	if adapter == nil {
		return fmt.Errorf("devkit: provider adapter is required")
	}
	if _, err := core.ParseProvider(string(adapter.ID())); err != nil {
		return fmt.Errorf("devkit: adapter id: %w", err)
	}
	if adapter.Verifier() == nil {
		return fmt.Errorf("devkit: adapter %q has no verifier", adapter.ID())
	}
	if adapter.SupportsReconciliation() && adapter.Reconciler() == nil {
		return fmt.Errorf("devkit: adapter %q advertises reconciliation without a reconciler", adapter.ID())
	}
	if !adapter.SupportsReconciliation() && adapter.Reconciler() != nil {
		return fmt.Errorf("devkit: adapter %q has a reconciler but does not advertise reconciliation", adapter.ID())
	}
	return nil
}

// ValidateVerifierConformance runs the behavior every webhook verifier must
// share: the signed fixture passes, a tampered body fails with a reason,
// and a request without provider headers fails with a reason. Metadata
// extraction must survive signature failure so invalid events remain
// inspectable after storage.
func ValidateVerifierConformance(
	verifier core.WebhookVerifier,
	secret string,
	signedHeaders map[string]string,
	body []byte,
) error {
	if verifier == nil {
		return fmt.Errorf("devkit: webhook verifier is required")
	}

	valid := verifier.Verify(secret, signedHeaders, body)
	if !valid.SignatureValid {
		return fmt.Errorf("devkit: signed fixture did not verify: %s", valid.FailureReason)
	}

	tampered := verifier.Verify(secret, signedHeaders, append([]byte(nil), append(body, '!')...))
	if tampered.SignatureValid {
		return fmt.Errorf("devkit: tampered body verified")
	}
	if tampered.FailureReason == "" {
		return fmt.Errorf("devkit: tampered body failure has no reason")
	}

	missing := verifier.Verify(secret, map[string]string{}, body)
	if missing.SignatureValid {
		return fmt.Errorf("devkit: verification passed without provider headers")
	}
	if missing.FailureReason == "" {
		return fmt.Errorf("devkit: missing-header failure has no reason")
	}
	return nil
}
