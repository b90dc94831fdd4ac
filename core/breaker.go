package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CircuitTransition reports the state edge produced by one breaker update.
// From == To means the sample was absorbed without a transition.
type CircuitTransition struct {
	From CircuitState
	To   CircuitState
}

func (t CircuitTransition) Changed() bool {
	return t.From != t.To
}

func (t CircuitTransition) Opened() bool {
	return t.Changed() && t.To == CircuitOpen
}

func (t CircuitTransition) HalfOpened() bool {
	return t.Changed() && t.To == CircuitHalfOpen
}

func (t CircuitTransition) Closed() bool {
	return t.Changed() && t.To == CircuitClosed
}

// DeliverySample outcome being recorded against a breaker.
type RecordDeliveryInput struct {
	Success        bool
	ResponseTimeMS int64
	// ForceOpen trips the circuit regardless of counters. The classifier
	// sets it for ssl and connection-refused outcomes.
	ForceOpen bool
}

// CircuitBreaker evaluates per-endpoint delivery health. Every update runs
// under the endpoint row lock, so concurrent recorders observe each edge
// exactly once. The sliding window is re-derived from the most recent
// delivery rows on each update rather than carried in memory, which keeps
// the state machine correct across restarts.
type CircuitBreaker struct {
	endpoints EndpointStore
	config    BreakerConfig
	now       func() time.Time
}

func NewCircuitBreaker(endpoints EndpointStore, config BreakerConfig) (*CircuitBreaker, error) {
	if endpoints == nil {
		return nil, fmt.Errorf("core: endpoint store is required")
	}
	defaults := DefaultConfig().Breaker
	if config.WindowSize <= 0 {
		config.WindowSize = defaults.WindowSize
	}
	if config.MinWindow <= 0 {
		config.MinWindow = defaults.MinWindow
	}
	if config.SuccessRateThreshold <= 0 || config.SuccessRateThreshold > 1 {
		config.SuccessRateThreshold = defaults.SuccessRateThreshold
	}
	if config.OpenAfterFailures <= 0 {
		config.OpenAfterFailures = defaults.OpenAfterFailures
	}
	if config.ProbeSuccesses <= 0 {
		config.ProbeSuccesses = defaults.ProbeSuccesses
	}
	if config.HalfOpenCloseAfter <= 0 {
		config.HalfOpenCloseAfter = defaults.HalfOpenCloseAfter
	}
	if config.HalfOpenReopenAfter <= 0 {
		config.HalfOpenReopenAfter = defaults.HalfOpenReopenAfter
	}
	return &CircuitBreaker{
		endpoints: endpoints,
		config:    config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (b *CircuitBreaker) Config() BreakerConfig {
	if b == nil {
		return BreakerConfig{}
	}
	return b.config
}

// RecordDelivery folds one delivery outcome into the endpoint state. The
// delivery row must already be persisted: the window query picks it up as
// the newest sample, so the window covers the incoming outcome plus the
// WindowSize outcomes before it.
func (b *CircuitBreaker) RecordDelivery(ctx context.Context, endpointID string, in RecordDeliveryInput) (CircuitTransition, error) {
	if b == nil || b.endpoints == nil {
		return CircuitTransition{}, fmt.Errorf("core: circuit breaker is not configured")
	}
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return CircuitTransition{}, fmt.Errorf("core: endpoint id is required")
	}

	var transition CircuitTransition
	_, err := b.endpoints.MutateLocked(ctx, endpointID, b.config.WindowSize+1, func(endpoint *Endpoint, window []DeliverySample) error {
		transition = CircuitTransition{From: endpoint.CircuitState, To: endpoint.CircuitState}

		if in.Success {
			endpoint.ConsecutiveSuccesses++
			endpoint.ConsecutiveFailures = 0
		} else {
			endpoint.ConsecutiveFailures++
			endpoint.ConsecutiveSuccesses = 0
		}
		applyWindowStats(endpoint, window)

		next, ok := b.nextStateAfterDelivery(endpoint, window, in)
		if !ok {
			return nil
		}
		if err := endpoint.TransitionTo(next, b.now()); err != nil {
			return err
		}
		transition.To = next
		return nil
	})
	if err != nil {
		return CircuitTransition{}, err
	}
	return transition, nil
}

// RecordHealthCheck folds one probe outcome into the endpoint state. Probes
// only matter while the circuit is OPEN; in any other state the probe is
// absorbed without touching the counters.
func (b *CircuitBreaker) RecordHealthCheck(ctx context.Context, endpointID string, success bool) (CircuitTransition, error) {
	if b == nil || b.endpoints == nil {
		return CircuitTransition{}, fmt.Errorf("core: circuit breaker is not configured")
	}
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return CircuitTransition{}, fmt.Errorf("core: endpoint id is required")
	}

	var transition CircuitTransition
	_, err := b.endpoints.MutateLocked(ctx, endpointID, 0, func(endpoint *Endpoint, _ []DeliverySample) error {
		transition = CircuitTransition{From: endpoint.CircuitState, To: endpoint.CircuitState}
		probedAt := b.now()
		endpoint.LastProbeAt = &probedAt

		if endpoint.CircuitState != CircuitOpen {
			return nil
		}
		if !success {
			endpoint.ConsecutiveProbeSuccesses = 0
			return nil
		}
		endpoint.ConsecutiveProbeSuccesses++
		if endpoint.ConsecutiveProbeSuccesses < b.config.ProbeSuccesses {
			return nil
		}
		if err := endpoint.TransitionTo(CircuitHalfOpen, probedAt); err != nil {
			return err
		}
		transition.To = CircuitHalfOpen
		return nil
	})
	if err != nil {
		return CircuitTransition{}, err
	}
	return transition, nil
}

// EnqueueForReplay appends an event to the endpoint's replay buffer at
// max(position)+1, under the same row lock delivery recording uses.
func (b *CircuitBreaker) EnqueueForReplay(ctx context.Context, in EnqueueReplayInput) (ReplayQueueItem, error) {
	if b == nil || b.endpoints == nil {
		return ReplayQueueItem{}, fmt.Errorf("core: circuit breaker is not configured")
	}
	return b.endpoints.EnqueueReplay(ctx, in)
}

func (b *CircuitBreaker) NextReplayPosition(ctx context.Context, endpointID string) (int64, error) {
	if b == nil || b.endpoints == nil {
		return 0, fmt.Errorf("core: circuit breaker is not configured")
	}
	return b.endpoints.NextReplayPosition(ctx, endpointID)
}

func (b *CircuitBreaker) nextStateAfterDelivery(endpoint *Endpoint, window []DeliverySample, in RecordDeliveryInput) (CircuitState, bool) {
	if in.ForceOpen && endpoint.CircuitState != CircuitOpen {
		return CircuitOpen, true
	}
	switch endpoint.CircuitState {
	case CircuitClosed:
		if endpoint.ConsecutiveFailures >= b.config.OpenAfterFailures {
			return CircuitOpen, true
		}
		if len(window) >= b.config.MinWindow && windowSuccessRate(window) < b.config.SuccessRateThreshold {
			return CircuitOpen, true
		}
	case CircuitHalfOpen:
		if in.Success && endpoint.ConsecutiveSuccesses >= b.config.HalfOpenCloseAfter {
			return CircuitClosed, true
		}
		if !in.Success && endpoint.ConsecutiveFailures >= b.config.HalfOpenReopenAfter {
			return CircuitOpen, true
		}
	}
	return "", false
}

func applyWindowStats(endpoint *Endpoint, window []DeliverySample) {
	if len(window) == 0 {
		return
	}
	endpoint.SuccessRate = windowSuccessRate(window)
	var total int64
	for _, sample := range window {
		total += sample.ResponseTimeMS
	}
	endpoint.AvgResponseMS = float64(total) / float64(len(window))
}

func windowSuccessRate(window []DeliverySample) float64 {
	if len(window) == 0 {
		return 1
	}
	succeeded := 0
	for _, sample := range window {
		if sample.Success {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(window))
}
