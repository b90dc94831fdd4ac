// Package core contains the canonical webhook intermediation domain:
// integrations, endpoints, events, deliveries, and the engines that ingest,
// deliver, replay, reconcile, and sweep them. Lower-level adapters must
// depend on this package; core must not depend on provider-specific or
// transport-specific adapters.
package core
