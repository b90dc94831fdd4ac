package shopify

import (
	"net/http"
	"strings"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers"
)

const ProviderID = core.ProviderShopify

type Config struct {
	APIBaseURL string
	APIVersion string
	PageSize   int
	HTTPClient *http.Client
}

func DefaultConfig() Config {
	return Config{
		APIVersion: "2024-01",
		PageSize:   100,
	}
}

type Adapter struct {
	verifier   WebhookVerifier
	reconciler *OrdersReconciler
}

// New builds the shopify adapter. APIBaseURL is the shop admin host, for
// example https://acme.myshopify.com; reconciliation is skipped when it is
// empty.
func New(cfg Config) *Adapter {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = defaults.APIVersion
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	adapter := &Adapter{verifier: WebhookVerifier{}}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"); base != "" {
		adapter.reconciler = &OrdersReconciler{
			BaseURL:    base,
			APIVersion: cfg.APIVersion,
			PageSize:   cfg.PageSize,
			Client:     cfg.HTTPClient,
		}
	}
	return adapter
}

func (a *Adapter) ID() core.Provider { return ProviderID }

func (a *Adapter) Verifier() core.WebhookVerifier { return a.verifier }

// CorrelationKey groups shopify payloads by the order they belong to when
// order_id is present, else by the resource's own id.
func (a *Adapter) CorrelationKey(payload map[string]any) string {
	if orderID := providers.StringField(payload, "order_id"); orderID != "" {
		return "shopify:order:" + orderID
	}
	if id := providers.StringField(payload, "id"); id != "" {
		return "shopify:resource:" + id
	}
	return ""
}

func (a *Adapter) SupportsReconciliation() bool { return a.reconciler != nil }

func (a *Adapter) Reconciler() core.Reconciler {
	if a.reconciler == nil {
		return nil
	}
	return a.reconciler
}

var _ core.ProviderAdapter = (*Adapter)(nil)
