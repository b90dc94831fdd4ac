package hookwise

import (
	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers/github"
	"github.com/Mithrandiirr/hookwise/providers/shopify"
	"github.com/Mithrandiirr/hookwise/providers/stripe"
)

// Built-in adapter constructors, re-exported so host applications can wire
// the standard providers without importing each provider package.

func StripeProvider(cfg stripe.Config) core.ProviderAdapter {
	return stripe.New(cfg)
}

func ShopifyProvider(cfg shopify.Config) core.ProviderAdapter {
	return shopify.New(cfg)
}

func GitHubProvider() core.ProviderAdapter {
	return github.New()
}

// BuiltinAdapterPack bundles the three stock providers with default
// configuration. Hosts that need custom tolerances or API hosts should
// construct adapters individually instead.
func BuiltinAdapterPack() AdapterPack {
	return AdapterPack{
		Name: "hookwise.builtin",
		Adapters: []core.ProviderAdapter{
			StripeProvider(stripe.DefaultConfig()),
			ShopifyProvider(shopify.DefaultConfig()),
			GitHubProvider(),
		},
	}
}
