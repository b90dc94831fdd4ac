// Package providers hosts the built-in provider adapters and the shared
// helpers they use to dig values out of decoded webhook payloads.
//
// Stripe, Shopify, and GitHub live in subpackages named after the provider.
// The devkit subpackage carries fixtures, a scriptable transport, and the
// conformance harness out-of-tree adapters are exercised against.
package providers
