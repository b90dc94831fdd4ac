package stripe

import (
	"net/http"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers"
)

const ProviderID = core.ProviderStripe

type Config struct {
	Tolerance  time.Duration
	APIBaseURL string
	PageSize   int
	HTTPClient *http.Client
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Tolerance:  DefaultTolerance,
		APIBaseURL: "https://api.stripe.com",
		PageSize:   100,
	}
}

type Adapter struct {
	verifier   WebhookVerifier
	reconciler *EventsReconciler
}

func New(cfg Config) *Adapter {
	defaults := DefaultConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaults.Tolerance
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	return &Adapter{
		verifier: WebhookVerifier{
			Tolerance: cfg.Tolerance,
			Now:       cfg.Now,
		},
		reconciler: &EventsReconciler{
			BaseURL:  strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"),
			PageSize: cfg.PageSize,
			Client:   cfg.HTTPClient,
		},
	}
}

func (a *Adapter) ID() core.Provider { return ProviderID }

func (a *Adapter) Verifier() core.WebhookVerifier { return a.verifier }

// CorrelationKey groups stripe events by customer when the payload carries
// one, falling back to the primary object id.
func (a *Adapter) CorrelationKey(payload map[string]any) string {
	if customer := providers.StringField(payload, "data", "object", "customer"); customer != "" {
		return "stripe:customer:" + customer
	}
	if id := providers.StringField(payload, "data", "object", "id"); id != "" {
		return "stripe:object:" + id
	}
	return ""
}

func (a *Adapter) SupportsReconciliation() bool { return true }

func (a *Adapter) Reconciler() core.Reconciler { return a.reconciler }

var _ core.ProviderAdapter = (*Adapter)(nil)
