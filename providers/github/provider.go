package github

import (
	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers"
)

const ProviderID = core.ProviderGitHub

type Adapter struct {
	verifier WebhookVerifier
}

func New() *Adapter {
	return &Adapter{verifier: WebhookVerifier{}}
}

func (a *Adapter) ID() core.Provider { return ProviderID }

func (a *Adapter) Verifier() core.WebhookVerifier { return a.verifier }

func (a *Adapter) CorrelationKey(payload map[string]any) string {
	if repo := providers.StringField(payload, "repository", "full_name"); repo != "" {
		return "github:repo:" + repo
	}
	return ""
}

// GitHub exposes no event listing API usable for gap detection, so
// reconciliation is unsupported.
func (a *Adapter) SupportsReconciliation() bool { return false }

func (a *Adapter) Reconciler() core.Reconciler { return nil }

var _ core.ProviderAdapter = (*Adapter)(nil)
