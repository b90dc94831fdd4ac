package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// testClock is a mutable clock shared by the harness and its fakes.
type testClock struct {
	mu sync.Mutex
	at time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{at: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

// memHub is shared in-memory state behind the fake stores. The fakes mirror
// the SQL stores closely enough for engine tests: delivery windows are
// derived from persisted rows newest first, replay positions are per
// endpoint, and (event, attempt) pairs dedupe.
type memHub struct {
	mu    sync.Mutex
	clock func() time.Time
	seq   int

	integrations map[string]Integration
	endpoints    map[string]Endpoint
	events       map[string]Event
	deliveryRows []Delivery
	replayItems  map[string]ReplayQueueItem
	runs         []ReconciliationRun
}

func newMemHub(clock func() time.Time) *memHub {
	return &memHub{
		clock:        clock,
		integrations: map[string]Integration{},
		endpoints:    map[string]Endpoint{},
		events:       map[string]Event{},
		replayItems:  map[string]ReplayQueueItem{},
	}
}

func (h *memHub) nextID(prefix string) string {
	h.seq++
	return fmt.Sprintf("%s_%d", prefix, h.seq)
}

func (h *memHub) now() time.Time {
	if h.clock != nil {
		return h.clock()
	}
	return time.Now().UTC()
}

// windowFor returns delivery samples for an endpoint, newest first.
func (h *memHub) windowFor(endpointID string, limit int) []DeliverySample {
	if limit <= 0 {
		return nil
	}
	window := make([]DeliverySample, 0, limit)
	for i := len(h.deliveryRows) - 1; i >= 0 && len(window) < limit; i-- {
		row := h.deliveryRows[i]
		if row.EndpointID != endpointID {
			continue
		}
		window = append(window, DeliverySample{
			Success:        row.Status == DeliveryStatusDelivered,
			ResponseTimeMS: row.ResponseTimeMS,
		})
	}
	return window
}

type memIntegrationStore struct{ hub *memHub }

func (s *memIntegrationStore) Create(_ context.Context, in CreateIntegrationInput) (Integration, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	now := s.hub.now()
	integration := Integration{
		ID:               s.hub.nextID("itg"),
		OwnerID:          in.OwnerID,
		Provider:         in.Provider,
		SigningSecret:    in.SigningSecret,
		DestinationURL:   in.DestinationURL,
		Status:           IntegrationStatusActive,
		SealedCredential: in.SealedCredential,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.ForwardInvalid != nil {
		integration.ForwardInvalid = *in.ForwardInvalid
	}
	s.hub.integrations[integration.ID] = integration
	return integration, nil
}

func (s *memIntegrationStore) Get(_ context.Context, id string) (Integration, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	integration, ok := s.hub.integrations[id]
	if !ok {
		return Integration{}, ErrIntegrationNotFound
	}
	return integration, nil
}

func (s *memIntegrationStore) List(_ context.Context, filter IntegrationFilter) ([]Integration, int, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Integration{}
	for _, integration := range s.hub.integrations {
		if filter.OwnerID != "" && integration.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Provider != "" && integration.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && integration.Status != filter.Status {
			continue
		}
		out = append(out, integration)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *memIntegrationStore) Update(_ context.Context, id string, in UpdateIntegrationInput) (Integration, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	integration, ok := s.hub.integrations[id]
	if !ok {
		return Integration{}, ErrIntegrationNotFound
	}
	if in.SigningSecret != nil {
		integration.SigningSecret = *in.SigningSecret
	}
	if in.DestinationURL != nil {
		integration.DestinationURL = *in.DestinationURL
	}
	if in.ForwardInvalid != nil {
		integration.ForwardInvalid = *in.ForwardInvalid
	}
	if in.SealedCredential != nil {
		integration.SealedCredential = *in.SealedCredential
	}
	integration.UpdatedAt = s.hub.now()
	s.hub.integrations[id] = integration
	return integration, nil
}

func (s *memIntegrationStore) UpdateStatus(_ context.Context, id string, status IntegrationStatus, reason string) (Integration, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	integration, ok := s.hub.integrations[id]
	if !ok {
		return Integration{}, ErrIntegrationNotFound
	}
	if err := integration.TransitionTo(status, reason, s.hub.now()); err != nil {
		return Integration{}, err
	}
	s.hub.integrations[id] = integration
	return integration, nil
}

func (s *memIntegrationStore) ListReconcilable(_ context.Context) ([]Integration, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Integration{}
	for _, integration := range s.hub.integrations {
		if integration.Status == IntegrationStatusActive && len(integration.SealedCredential) > 0 {
			out = append(out, integration)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memIntegrationStore) Delete(_ context.Context, id string) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.integrations[id]; !ok {
		return ErrIntegrationNotFound
	}
	delete(s.hub.integrations, id)
	return nil
}

type memEndpointStore struct{ hub *memHub }

func (s *memEndpointStore) Create(_ context.Context, integrationID string) (Endpoint, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	now := s.hub.now()
	endpoint := Endpoint{
		ID:             s.hub.nextID("ep"),
		IntegrationID:  integrationID,
		CircuitState:   CircuitClosed,
		SuccessRate:    1,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.hub.endpoints[endpoint.ID] = endpoint
	return endpoint, nil
}

func (s *memEndpointStore) Get(_ context.Context, id string) (Endpoint, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	endpoint, ok := s.hub.endpoints[id]
	if !ok {
		return Endpoint{}, ErrEndpointNotFound
	}
	return endpoint, nil
}

func (s *memEndpointStore) GetByIntegration(_ context.Context, integrationID string) (Endpoint, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for _, endpoint := range s.hub.endpoints {
		if endpoint.IntegrationID == integrationID {
			return endpoint, nil
		}
	}
	return Endpoint{}, ErrEndpointNotFound
}

func (s *memEndpointStore) ListByState(_ context.Context, state CircuitState) ([]Endpoint, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Endpoint{}
	for _, endpoint := range s.hub.endpoints {
		if endpoint.CircuitState == state {
			out = append(out, endpoint)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memEndpointStore) MutateLocked(_ context.Context, endpointID string, windowLimit int, fn EndpointMutator) (Endpoint, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	endpoint, ok := s.hub.endpoints[endpointID]
	if !ok {
		return Endpoint{}, ErrEndpointNotFound
	}
	window := s.hub.windowFor(endpointID, windowLimit)
	if err := fn(&endpoint, window); err != nil {
		return Endpoint{}, err
	}
	s.hub.endpoints[endpointID] = endpoint
	return endpoint, nil
}

func (s *memEndpointStore) EnqueueReplay(_ context.Context, in EnqueueReplayInput) (ReplayQueueItem, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	item := ReplayQueueItem{
		ID:             s.hub.nextID("rq"),
		EndpointID:     in.EndpointID,
		EventID:        in.EventID,
		Position:       s.nextPositionLocked(in.EndpointID),
		CorrelationKey: in.CorrelationKey,
		Status:         ReplayStatusPending,
		CreatedAt:      s.hub.now(),
	}
	s.hub.replayItems[item.ID] = item
	return item, nil
}

func (s *memEndpointStore) NextReplayPosition(_ context.Context, endpointID string) (int64, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.nextPositionLocked(endpointID), nil
}

func (s *memEndpointStore) nextPositionLocked(endpointID string) int64 {
	var highest int64
	for _, item := range s.hub.replayItems {
		if item.EndpointID == endpointID && item.Position > highest {
			highest = item.Position
		}
	}
	return highest + 1
}

type memEventStore struct{ hub *memHub }

func (s *memEventStore) Create(_ context.Context, in CreateEventInput) (Event, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	event := Event{
		ID:              s.hub.nextID("ev"),
		IntegrationID:   in.IntegrationID,
		EventType:       in.EventType,
		Payload:         in.Payload,
		Headers:         in.Headers,
		ReceivedAt:      in.ReceivedAt,
		SignatureValid:  in.SignatureValid,
		ProviderEventID: in.ProviderEventID,
		Source:          in.Source,
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = s.hub.now()
	}
	s.hub.events[event.ID] = event
	return event, nil
}

func (s *memEventStore) Get(_ context.Context, id string) (Event, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	event, ok := s.hub.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return event, nil
}

func (s *memEventStore) List(_ context.Context, filter EventFilter) ([]Event, int, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Event{}
	for _, event := range s.hub.events {
		if filter.IntegrationID != "" && event.IntegrationID != filter.IntegrationID {
			continue
		}
		if filter.EventType != "" && event.EventType != filter.EventType {
			continue
		}
		if filter.Source != "" && event.Source != filter.Source {
			continue
		}
		if filter.SignatureValid != nil && event.SignatureValid != *filter.SignatureValid {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *memEventStore) ProviderEventIDs(_ context.Context, integrationID string, since time.Time) (map[string]struct{}, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	ids := map[string]struct{}{}
	for _, event := range s.hub.events {
		if event.IntegrationID != integrationID || event.ProviderEventID == "" {
			continue
		}
		if event.ReceivedAt.Before(since) {
			continue
		}
		ids[event.ProviderEventID] = struct{}{}
	}
	return ids, nil
}

func (s *memEventStore) ListUndelivered(_ context.Context, cutoff time.Time, limit int) ([]Event, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Event{}
	for _, event := range s.hub.events {
		if !event.ReceivedAt.Before(cutoff) {
			continue
		}
		if s.hub.hasDeliveryLocked(event.ID) || s.hub.hasLiveReplayLocked(event.ID) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *memHub) hasDeliveryLocked(eventID string) bool {
	for _, row := range h.deliveryRows {
		if row.EventID == eventID {
			return true
		}
	}
	return false
}

func (h *memHub) hasLiveReplayLocked(eventID string) bool {
	for _, item := range h.replayItems {
		if item.EventID != eventID {
			continue
		}
		if item.Status == ReplayStatusPending || item.Status == ReplayStatusDelivering {
			return true
		}
	}
	return false
}

type memDeliveryStore struct{ hub *memHub }

func (s *memDeliveryStore) Create(_ context.Context, in CreateDeliveryInput) (Delivery, bool, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for _, row := range s.hub.deliveryRows {
		if row.EventID == in.EventID && row.Attempt == in.Attempt {
			return row, true, nil
		}
	}
	row := Delivery{
		ID:             s.hub.nextID("dl"),
		EventID:        in.EventID,
		EndpointID:     in.EndpointID,
		Status:         in.Status,
		StatusCode:     in.StatusCode,
		ResponseTimeMS: in.ResponseTimeMS,
		ResponseBody:   in.ResponseBody,
		ErrorType:      in.ErrorType,
		Attempt:        in.Attempt,
		AttemptedAt:    in.AttemptedAt,
		NextRetryAt:    in.NextRetryAt,
	}
	s.hub.deliveryRows = append(s.hub.deliveryRows, row)
	return row, false, nil
}

func (s *memDeliveryStore) Get(_ context.Context, id string) (Delivery, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for _, row := range s.hub.deliveryRows {
		if row.ID == id {
			return row, nil
		}
	}
	return Delivery{}, ErrDeliveryNotFound
}

func (s *memDeliveryStore) List(_ context.Context, filter DeliveryFilter) ([]Delivery, int, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Delivery{}
	for _, row := range s.hub.deliveryRows {
		if filter.EventID != "" && row.EventID != filter.EventID {
			continue
		}
		if filter.EndpointID != "" && row.EndpointID != filter.EndpointID {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		out = append(out, row)
	}
	return out, len(out), nil
}

func (s *memDeliveryStore) ListByEvent(_ context.Context, eventID string) ([]Delivery, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []Delivery{}
	for _, row := range s.hub.deliveryRows {
		if row.EventID == eventID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

func (s *memDeliveryStore) MarkStatus(_ context.Context, id string, status DeliveryStatus) (Delivery, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for i, row := range s.hub.deliveryRows {
		if row.ID != id {
			continue
		}
		if err := row.TransitionTo(status); err != nil {
			return Delivery{}, err
		}
		s.hub.deliveryRows[i] = row
		return row, nil
	}
	return Delivery{}, ErrDeliveryNotFound
}

func (s *memDeliveryStore) HasDeliveredProviderEvent(_ context.Context, integrationID, providerEventID, excludeEventID string) (bool, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for _, event := range s.hub.events {
		if event.IntegrationID != integrationID || event.ProviderEventID != providerEventID {
			continue
		}
		if event.ID == excludeEventID {
			continue
		}
		for _, row := range s.hub.deliveryRows {
			if row.EventID == event.ID && row.Status == DeliveryStatusDelivered {
				return true, nil
			}
		}
	}
	return false, nil
}

type memReplayQueueStore struct{ hub *memHub }

func (s *memReplayQueueStore) PendingBatch(_ context.Context, endpointID string, limit int) ([]ReplayQueueItem, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []ReplayQueueItem{}
	for _, item := range s.hub.replayItems {
		if item.EndpointID == endpointID && item.Status == ReplayStatusPending {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memReplayQueueStore) MarkDelivering(_ context.Context, id string) (ReplayQueueItem, bool, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	item, ok := s.hub.replayItems[id]
	if !ok {
		return ReplayQueueItem{}, false, ErrReplayItemNotFound
	}
	if item.Status != ReplayStatusPending {
		return item, false, nil
	}
	item.Status = ReplayStatusDelivering
	item.Attempts++
	s.hub.replayItems[id] = item
	return item, true, nil
}

func (s *memReplayQueueStore) MarkDelivered(_ context.Context, id string, at time.Time) error {
	return s.transition(id, ReplayStatusDelivered, &at)
}

func (s *memReplayQueueStore) MarkSkipped(_ context.Context, id string) error {
	return s.transition(id, ReplayStatusSkipped, nil)
}

func (s *memReplayQueueStore) MarkFailed(_ context.Context, id string) error {
	return s.transition(id, ReplayStatusFailed, nil)
}

func (s *memReplayQueueStore) Requeue(_ context.Context, id string) error {
	return s.transition(id, ReplayStatusPending, nil)
}

func (s *memReplayQueueStore) transition(id string, status ReplayStatus, deliveredAt *time.Time) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	item, ok := s.hub.replayItems[id]
	if !ok {
		return ErrReplayItemNotFound
	}
	if err := item.TransitionTo(status); err != nil {
		return err
	}
	if deliveredAt != nil {
		item.DeliveredAt = deliveredAt
	}
	s.hub.replayItems[id] = item
	return nil
}

func (s *memReplayQueueStore) Get(_ context.Context, id string) (ReplayQueueItem, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	item, ok := s.hub.replayItems[id]
	if !ok {
		return ReplayQueueItem{}, ErrReplayItemNotFound
	}
	return item, nil
}

func (s *memReplayQueueStore) CountPending(_ context.Context, endpointID string) (int, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	count := 0
	for _, item := range s.hub.replayItems {
		if item.EndpointID == endpointID && item.Status == ReplayStatusPending {
			count++
		}
	}
	return count, nil
}

type memReconciliationRunStore struct{ hub *memHub }

func (s *memReconciliationRunStore) Create(_ context.Context, in CreateReconciliationRunInput) (ReconciliationRun, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	run := ReconciliationRun{
		ID:                  s.hub.nextID("rr"),
		IntegrationID:       in.IntegrationID,
		ProviderEventsFound: in.ProviderEventsFound,
		LocalEventsFound:    in.LocalEventsFound,
		GapsDetected:        in.GapsDetected,
		GapsResolved:        in.GapsResolved,
		RanAt:               in.RanAt,
	}
	s.hub.runs = append(s.hub.runs, run)
	return run, nil
}

func (s *memReconciliationRunStore) List(_ context.Context, integrationID string, limit int) ([]ReconciliationRun, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	out := []ReconciliationRun{}
	for i := len(s.hub.runs) - 1; i >= 0; i-- {
		run := s.hub.runs[i]
		if integrationID != "" && run.IntegrationID != integrationID {
			continue
		}
		out = append(out, run)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// scriptedTransport replays canned results in order; the last result
// repeats once the script runs out.
type scriptedTransport struct {
	mu       sync.Mutex
	results  []DeliveryResult
	err      error
	requests []DeliveryRequest
}

func (t *scriptedTransport) Deliver(_ context.Context, req DeliveryRequest) (DeliveryResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.err != nil {
		return DeliveryResult{}, t.err
	}
	if len(t.results) == 0 {
		return DeliveryResult{StatusCode: 200, ResponseTimeMS: 5}, nil
	}
	result := t.results[0]
	if len(t.results) > 1 {
		t.results = t.results[1:]
	}
	return result, nil
}

func (t *scriptedTransport) Requests() []DeliveryRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DeliveryRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

type scriptedProbe struct {
	mu      sync.Mutex
	results []ProbeResult
	calls   []string
}

func (p *scriptedProbe) Probe(_ context.Context, url string) ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	if len(p.results) == 0 {
		return ProbeResult{Success: true, StatusCode: 200}
	}
	result := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return result
}

// captureQueue records enqueued task messages for assertions.
type captureQueue struct {
	mu   sync.Mutex
	msgs []*JobExecutionMessage
	err  error
}

func (q *captureQueue) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *captureQueue) byTopic(topic string) []*JobExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := []*JobExecutionMessage{}
	for _, msg := range q.msgs {
		if msg != nil && msg.JobID == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (q *captureQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

type stubVerifier struct {
	result VerificationResult
}

func (v stubVerifier) Verify(_ string, _ map[string]string, _ []byte) VerificationResult {
	return v.result
}

type stubReconciler struct {
	mu     sync.Mutex
	events []ProviderEvent
	err    error
	calls  []reconcileCall
}

type reconcileCall struct {
	credential string
	since      time.Time
	until      time.Time
}

func (r *stubReconciler) FetchEvents(_ context.Context, credential string, since, until time.Time) ([]ProviderEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, reconcileCall{credential: credential, since: since, until: until})
	if r.err != nil {
		return nil, r.err
	}
	return r.events, nil
}

type stubAdapter struct {
	id         Provider
	verifier   WebhookVerifier
	correlate  func(map[string]any) string
	reconciler Reconciler
}

func (a stubAdapter) ID() Provider { return a.id }

func (a stubAdapter) Verifier() WebhookVerifier {
	if a.verifier != nil {
		return a.verifier
	}
	return stubVerifier{result: VerificationResult{SignatureValid: true}}
}

func (a stubAdapter) CorrelationKey(payload map[string]any) string {
	if a.correlate != nil {
		return a.correlate(payload)
	}
	if payload != nil {
		if key, ok := payload["correlation"].(string); ok {
			return key
		}
	}
	return ""
}

func (a stubAdapter) SupportsReconciliation() bool { return a.reconciler != nil }

func (a stubAdapter) Reconciler() Reconciler { return a.reconciler }

// staticSealer is a reversible stand-in for the AES sealer.
type staticSealer struct{}

func (staticSealer) Seal(plaintext string) ([]byte, error) {
	return []byte("sealed:" + plaintext), nil
}

func (staticSealer) Open(sealed []byte) (string, error) {
	raw := string(sealed)
	if !strings.HasPrefix(raw, "sealed:") {
		return "", errors.New("sealer: malformed blob")
	}
	return strings.TrimPrefix(raw, "sealed:"), nil
}

// testServiceConfig tunes the defaults so engine tests never sleep: replay
// tiers run faster than MinSleep and the half-open throttle is disabled.
func testServiceConfig() Config {
	cfg := DefaultConfig()
	cfg.Replay.RateTiers = []int{1000, 2000, 5000, 10000}
	cfg.Worker.HalfOpenThrottle = 0
	return cfg
}

// testHarness wires a Service against the in-memory fakes.
type testHarness struct {
	service   *Service
	hub       *memHub
	clock     *testClock
	transport *scriptedTransport
	probe     *scriptedProbe
	queue     *captureQueue
	registry  *ProviderRegistry
}

func newTestHarness(t *testing.T, extra ...Option) *testHarness {
	t.Helper()
	return newTestHarnessConfig(t, testServiceConfig(), extra...)
}

func newTestHarnessConfig(t *testing.T, cfg Config, extra ...Option) *testHarness {
	t.Helper()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	hub := newMemHub(clock.Now)
	transport := &scriptedTransport{}
	probe := &scriptedProbe{}
	queue := &captureQueue{}
	registry := NewProviderRegistry()
	if err := registry.Register(stubAdapter{id: ProviderStripe}); err != nil {
		t.Fatalf("register stub adapter: %v", err)
	}

	options := []Option{
		WithClock(clock.Now),
		WithIntegrationStore(&memIntegrationStore{hub: hub}),
		WithEndpointStore(&memEndpointStore{hub: hub}),
		WithEventStore(&memEventStore{hub: hub}),
		WithDeliveryStore(&memDeliveryStore{hub: hub}),
		WithReplayQueueStore(&memReplayQueueStore{hub: hub}),
		WithReconciliationRunStore(&memReconciliationRunStore{hub: hub}),
		WithDeliveryTransport(transport),
		WithHealthProbe(probe),
		WithJobEnqueuer(queue),
		WithRegistry(registry),
		WithCredentialSealer(staticSealer{}),
	}
	options = append(options, extra...)

	service, err := NewService(cfg, options...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testHarness{
		service:   service,
		hub:       hub,
		clock:     clock,
		transport: transport,
		probe:     probe,
		queue:     queue,
		registry:  registry,
	}
}

// seedIntegration creates an active integration with its endpoint.
func (h *testHarness) seedIntegration(t *testing.T) (Integration, Endpoint) {
	t.Helper()
	ctx := context.Background()
	integration, err := h.service.CreateIntegration(ctx, CreateIntegrationRequest{
		OwnerID:        "owner_1",
		Provider:       string(ProviderStripe),
		SigningSecret:  "whsec_test",
		DestinationURL: "https://destination.example/hooks",
		Credential:     "sk_live_reconcile",
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	endpoint, err := h.service.GetEndpointStatus(ctx, integration.ID)
	if err != nil {
		t.Fatalf("get endpoint: %v", err)
	}
	return integration, endpoint
}

// seedEvent stores an event for the integration.
func (h *testHarness) seedEvent(t *testing.T, integration Integration, providerEventID string) Event {
	t.Helper()
	store := &memEventStore{hub: h.hub}
	event, err := store.Create(context.Background(), CreateEventInput{
		IntegrationID:   integration.ID,
		EventType:       "payment.succeeded",
		Payload:         map[string]any{"id": providerEventID, "correlation": "cus_42"},
		Headers:         map[string]string{"content-type": "application/json"},
		SignatureValid:  true,
		ProviderEventID: providerEventID,
		Source:          EventSourceWebhook,
		ReceivedAt:      h.clock.Now(),
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

// forceCircuitState pushes an endpoint straight into the given state.
func (h *testHarness) forceCircuitState(t *testing.T, endpointID string, state CircuitState) Endpoint {
	t.Helper()
	store := &memEndpointStore{hub: h.hub}
	endpoint, err := store.MutateLocked(context.Background(), endpointID, 0, func(endpoint *Endpoint, _ []DeliverySample) error {
		endpoint.CircuitState = state
		endpoint.StateChangedAt = h.clock.Now()
		endpoint.ConsecutiveFailures = 0
		endpoint.ConsecutiveSuccesses = 0
		endpoint.ConsecutiveProbeSuccesses = 0
		return nil
	})
	if err != nil {
		t.Fatalf("force circuit state: %v", err)
	}
	return endpoint
}
