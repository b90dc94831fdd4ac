package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type breakerFixture struct {
	hub        *memHub
	endpoints  *memEndpointStore
	deliveries *memDeliveryStore
	breaker    *CircuitBreaker
	endpoint   Endpoint
	clock      *testClock
	seq        int
}

func newBreakerFixture(t *testing.T) *breakerFixture {
	t.Helper()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	hub := newMemHub(clock.Now)
	endpoints := &memEndpointStore{hub: hub}
	breaker, err := NewCircuitBreaker(endpoints, DefaultConfig().Breaker)
	if err != nil {
		t.Fatalf("new circuit breaker: %v", err)
	}
	breaker.now = clock.Now
	endpoint, err := endpoints.Create(context.Background(), "itg_1")
	if err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	return &breakerFixture{
		hub:        hub,
		endpoints:  endpoints,
		deliveries: &memDeliveryStore{hub: hub},
		breaker:    breaker,
		endpoint:   endpoint,
		clock:      clock,
	}
}

// record persists a delivery row and folds it into the breaker, the same
// order the delivery worker uses.
func (f *breakerFixture) record(t *testing.T, in RecordDeliveryInput) CircuitTransition {
	t.Helper()
	f.seq++
	status := DeliveryStatusDelivered
	if !in.Success {
		status = DeliveryStatusFailed
	}
	if _, _, err := f.deliveries.Create(context.Background(), CreateDeliveryInput{
		EventID:        fmt.Sprintf("ev_%d", f.seq),
		EndpointID:     f.endpoint.ID,
		Status:         status,
		StatusCode:     200,
		ResponseTimeMS: in.ResponseTimeMS,
		Attempt:        1,
		AttemptedAt:    f.clock.Now(),
	}); err != nil {
		t.Fatalf("persist delivery row: %v", err)
	}
	transition, err := f.breaker.RecordDelivery(context.Background(), f.endpoint.ID, in)
	if err != nil {
		t.Fatalf("record delivery: %v", err)
	}
	return transition
}

func (f *breakerFixture) state(t *testing.T) Endpoint {
	t.Helper()
	endpoint, err := f.endpoints.Get(context.Background(), f.endpoint.ID)
	if err != nil {
		t.Fatalf("get endpoint: %v", err)
	}
	return endpoint
}

func (f *breakerFixture) force(t *testing.T, state CircuitState) {
	t.Helper()
	_, err := f.endpoints.MutateLocked(context.Background(), f.endpoint.ID, 0, func(endpoint *Endpoint, _ []DeliverySample) error {
		endpoint.CircuitState = state
		endpoint.ConsecutiveFailures = 0
		endpoint.ConsecutiveSuccesses = 0
		endpoint.ConsecutiveProbeSuccesses = 0
		return nil
	})
	if err != nil {
		t.Fatalf("force state: %v", err)
	}
}

func TestCircuitBreaker_ConsecutiveFailuresOpen(t *testing.T) {
	f := newBreakerFixture(t)
	limit := DefaultConfig().Breaker.OpenAfterFailures

	// A healthy history keeps the window rate above the threshold, so only
	// the failure streak can trip the circuit.
	for i := 0; i < 16; i++ {
		f.record(t, RecordDeliveryInput{Success: true, ResponseTimeMS: 10})
	}
	for i := 1; i < limit; i++ {
		transition := f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10})
		if transition.Changed() {
			t.Fatalf("failure %d must not trip the circuit yet, got %+v", i, transition)
		}
	}

	transition := f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10})
	if !transition.Opened() {
		t.Fatalf("expected failure %d to open the circuit, got %+v", limit, transition)
	}
	endpoint := f.state(t)
	if endpoint.CircuitState != CircuitOpen {
		t.Fatalf("expected OPEN, got %s", endpoint.CircuitState)
	}
	if endpoint.SuccessRate < DefaultConfig().Breaker.SuccessRateThreshold {
		t.Fatalf("window rate should still be healthy, got %v", endpoint.SuccessRate)
	}
	if endpoint.ConsecutiveFailures != limit {
		t.Fatalf("the crossing failure count survives the transition, got %d", endpoint.ConsecutiveFailures)
	}
}

func TestCircuitBreaker_WindowSuccessRateOpens(t *testing.T) {
	f := newBreakerFixture(t)

	// Alternate so the failure streak never reaches the consecutive limit.
	// After six samples the window sits at exactly the threshold (3/6);
	// the seventh failure pushes it below.
	outcomes := []bool{true, false, true, false, true, false}
	for i, success := range outcomes {
		transition := f.record(t, RecordDeliveryInput{Success: success, ResponseTimeMS: 10})
		if transition.Changed() {
			t.Fatalf("sample %d must not trip the circuit yet, got %+v", i, transition)
		}
	}

	transition := f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10})
	if !transition.Opened() {
		t.Fatalf("expected the window rate to open the circuit, got %+v", transition)
	}
	endpoint := f.state(t)
	if endpoint.ConsecutiveFailures >= DefaultConfig().Breaker.OpenAfterFailures {
		t.Fatalf("streak rule should not have fired, got %d consecutive failures", endpoint.ConsecutiveFailures)
	}
}

func TestCircuitBreaker_SmallWindowNeverOpensOnRate(t *testing.T) {
	f := newBreakerFixture(t)

	// Fewer samples than min_window: even a 0% rate is not enough signal.
	for i := 0; i < DefaultConfig().Breaker.MinWindow-1; i++ {
		transition := f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10})
		if transition.Changed() {
			t.Fatalf("sample %d opened the circuit prematurely: %+v", i, transition)
		}
	}
}

func TestCircuitBreaker_ForceOpenShortCircuits(t *testing.T) {
	f := newBreakerFixture(t)

	transition := f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10, ForceOpen: true})
	if !transition.Opened() {
		t.Fatalf("expected ForceOpen to trip immediately, got %+v", transition)
	}
	if got := f.state(t).CircuitState; got != CircuitOpen {
		t.Fatalf("expected OPEN, got %s", got)
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessRun(t *testing.T) {
	f := newBreakerFixture(t)
	f.force(t, CircuitHalfOpen)
	needed := DefaultConfig().Breaker.HalfOpenCloseAfter

	for i := 1; i < needed; i++ {
		transition := f.record(t, RecordDeliveryInput{Success: true, ResponseTimeMS: 10})
		if transition.Changed() {
			t.Fatalf("success %d must not close the circuit yet, got %+v", i, transition)
		}
	}
	transition := f.record(t, RecordDeliveryInput{Success: true, ResponseTimeMS: 10})
	if !transition.Closed() {
		t.Fatalf("expected success %d to close the circuit, got %+v", needed, transition)
	}
	endpoint := f.state(t)
	if endpoint.CircuitState != CircuitClosed {
		t.Fatalf("expected CLOSED, got %s", endpoint.CircuitState)
	}
	if endpoint.ConsecutiveFailures != 0 || endpoint.ConsecutiveProbeSuccesses != 0 {
		t.Fatalf("expected counters reset on close, got %+v", endpoint)
	}
}

func TestCircuitBreaker_HalfOpenReopensAfterFailures(t *testing.T) {
	f := newBreakerFixture(t)
	f.force(t, CircuitHalfOpen)

	transition := f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10})
	if transition.Changed() {
		t.Fatalf("one failure is not enough to reopen, got %+v", transition)
	}
	transition = f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 10})
	if !transition.Opened() {
		t.Fatalf("expected the second failure to reopen, got %+v", transition)
	}
}

func TestCircuitBreaker_HealthChecksDriveHalfOpen(t *testing.T) {
	f := newBreakerFixture(t)
	f.force(t, CircuitOpen)
	needed := DefaultConfig().Breaker.ProbeSuccesses

	for i := 1; i < needed; i++ {
		transition, err := f.breaker.RecordHealthCheck(context.Background(), f.endpoint.ID, true)
		if err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
		if transition.Changed() {
			t.Fatalf("probe %d must not transition yet, got %+v", i, transition)
		}
	}
	transition, err := f.breaker.RecordHealthCheck(context.Background(), f.endpoint.ID, true)
	if err != nil {
		t.Fatalf("final probe: %v", err)
	}
	if !transition.HalfOpened() {
		t.Fatalf("expected probe %d to half-open, got %+v", needed, transition)
	}
	if got := f.state(t).LastProbeAt; got == nil {
		t.Fatalf("expected last_probe_at stamped")
	}
}

func TestCircuitBreaker_FailedProbeResetsStreak(t *testing.T) {
	f := newBreakerFixture(t)
	f.force(t, CircuitOpen)

	for _, success := range []bool{true, true, false, true, true} {
		transition, err := f.breaker.RecordHealthCheck(context.Background(), f.endpoint.ID, success)
		if err != nil {
			t.Fatalf("record health check: %v", err)
		}
		if transition.Changed() {
			t.Fatalf("no transition expected, got %+v", transition)
		}
	}
	if got := f.state(t).ConsecutiveProbeSuccesses; got != 2 {
		t.Fatalf("expected streak rebuilt to 2, got %d", got)
	}
}

func TestCircuitBreaker_ProbesIgnoredOutsideOpen(t *testing.T) {
	f := newBreakerFixture(t)

	for i := 0; i < 5; i++ {
		transition, err := f.breaker.RecordHealthCheck(context.Background(), f.endpoint.ID, true)
		if err != nil {
			t.Fatalf("record health check: %v", err)
		}
		if transition.Changed() {
			t.Fatalf("probes must not move a closed circuit, got %+v", transition)
		}
	}
	endpoint := f.state(t)
	if endpoint.ConsecutiveProbeSuccesses != 0 {
		t.Fatalf("closed circuits absorb probes without counting, got %d", endpoint.ConsecutiveProbeSuccesses)
	}
}

func TestCircuitBreaker_WindowStatsTrackEndpointHealth(t *testing.T) {
	f := newBreakerFixture(t)

	f.record(t, RecordDeliveryInput{Success: true, ResponseTimeMS: 30})
	f.record(t, RecordDeliveryInput{Success: true, ResponseTimeMS: 10})
	f.record(t, RecordDeliveryInput{Success: false, ResponseTimeMS: 50})

	endpoint := f.state(t)
	if want := 2.0 / 3.0; endpoint.SuccessRate != want {
		t.Fatalf("expected success rate %v, got %v", want, endpoint.SuccessRate)
	}
	if endpoint.AvgResponseMS != 30 {
		t.Fatalf("expected avg response 30ms, got %v", endpoint.AvgResponseMS)
	}
}

func TestCircuitBreaker_ReplayPositionsAppend(t *testing.T) {
	f := newBreakerFixture(t)

	first, err := f.breaker.EnqueueForReplay(context.Background(), EnqueueReplayInput{
		EndpointID:     f.endpoint.ID,
		EventID:        "ev_1",
		CorrelationKey: "cus_1",
	})
	if err != nil {
		t.Fatalf("enqueue replay: %v", err)
	}
	second, err := f.breaker.EnqueueForReplay(context.Background(), EnqueueReplayInput{
		EndpointID: f.endpoint.ID,
		EventID:    "ev_2",
	})
	if err != nil {
		t.Fatalf("enqueue replay: %v", err)
	}
	if first.Position != 1 || second.Position != 2 {
		t.Fatalf("expected positions 1 and 2, got %d and %d", first.Position, second.Position)
	}
	next, err := f.breaker.NextReplayPosition(context.Background(), f.endpoint.ID)
	if err != nil {
		t.Fatalf("next replay position: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected next position 3, got %d", next)
	}
}
