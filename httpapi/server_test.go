package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/Mithrandiirr/hookwise/core"
)

func TestNew_RequiresService(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestHandleIngest_ForwardsBodyAndHeaders(t *testing.T) {
	var captured core.IngestRequest
	service := &stubService{
		ingestFn: func(_ context.Context, req core.IngestRequest) (core.IngestResult, error) {
			captured = req
			return core.IngestResult{EventID: "evt_1", SignatureValid: true, Enqueued: true}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/ingest/int_1",
		strings.NewReader(`{"id":"evt_provider"}`)), func(r *http.Request) {
		r.Header.Set("Stripe-Signature", "t=1700000000,v1=abc")
		r.Header.Set("Content-Type", "application/json")
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.IntegrationID != "int_1" {
		t.Fatalf("unexpected integration id %q", captured.IntegrationID)
	}
	if string(captured.Body) != `{"id":"evt_provider"}` {
		t.Fatalf("unexpected body %q", captured.Body)
	}
	if captured.Headers["Stripe-Signature"] != "t=1700000000,v1=abc" {
		t.Fatalf("expected flattened signature header, got %#v", captured.Headers)
	}

	var out ingestResponse
	decodeResponse(t, rec, &out)
	if !out.Received || out.EventID != "evt_1" {
		t.Fatalf("unexpected ingest response: %#v", out)
	}
}

func TestHandleIngest_BodyOverLimitReturns413(t *testing.T) {
	service := &stubService{
		ingestFn: func(context.Context, core.IngestRequest) (core.IngestResult, error) {
			t.Fatalf("ingest must not run when the body exceeds the limit")
			return core.IngestResult{}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/ingest/int_1",
		strings.NewReader(strings.Repeat("x", 64))), nil, WithMaxBodyBytes(16))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	var out errorResponse
	decodeResponse(t, rec, &out)
	if out.Error.Code != core.ErrorCodeBadInput {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}
}

func TestHandleIngest_ServiceErrorKeepsEnvelope(t *testing.T) {
	service := &stubService{
		ingestFn: func(context.Context, core.IngestRequest) (core.IngestResult, error) {
			return core.IngestResult{}, goerrors.New("integration not found", goerrors.CategoryNotFound).
				WithCode(http.StatusNotFound).
				WithTextCode(core.ErrorCodeIntegrationNotFound)
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/ingest/missing",
		strings.NewReader(`{}`)), nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var out errorResponse
	decodeResponse(t, rec, &out)
	if out.Error.Code != core.ErrorCodeIntegrationNotFound {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}
}

func TestHandleCreateIntegration_HidesSecretMaterial(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var captured core.CreateIntegrationRequest
	service := &stubService{
		createFn: func(_ context.Context, req core.CreateIntegrationRequest) (core.Integration, error) {
			captured = req
			return core.Integration{
				ID:               "int_1",
				OwnerID:          req.OwnerID,
				Provider:         core.ProviderStripe,
				SigningSecret:    req.SigningSecret,
				DestinationURL:   req.DestinationURL,
				Status:           core.IntegrationStatusActive,
				ForwardInvalid:   true,
				SealedCredential: []byte("sealed"),
				CreatedAt:        createdAt,
				UpdatedAt:        createdAt,
			}, nil
		},
	}

	body := `{"owner_id":"acct_1","provider":"stripe","signing_secret":"whsec_123",` +
		`"destination_url":"https://dest.example.com/hooks","credential":"sk_live_123"}`
	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/api/integrations",
		strings.NewReader(body)), nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Provider != "stripe" || captured.SigningSecret != "whsec_123" || captured.Credential != "sk_live_123" {
		t.Fatalf("unexpected create request: %#v", captured)
	}

	raw := rec.Body.String()
	if strings.Contains(raw, "whsec_123") || strings.Contains(raw, "sk_live_123") || strings.Contains(raw, "sealed") {
		t.Fatalf("secret material leaked into response: %s", raw)
	}
	var out integrationView
	decodeResponse(t, rec, &out)
	if out.ID != "int_1" || !out.HasCredential || out.Status != "active" {
		t.Fatalf("unexpected integration view: %#v", out)
	}
}

func TestHandleCreateIntegration_BadJSONReturns400(t *testing.T) {
	rec := serve(t, &stubService{}, httptest.NewRequest(http.MethodPost, "/api/integrations",
		strings.NewReader(`{"owner_id":`)), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleListIntegrations_ParsesQueryFilter(t *testing.T) {
	var captured core.IntegrationFilter
	service := &stubService{
		listFn: func(_ context.Context, filter core.IntegrationFilter) ([]core.Integration, int, error) {
			captured = filter
			return []core.Integration{{ID: "int_1", Provider: core.ProviderShopify}}, 41, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet,
		"/api/integrations?owner_id=acct_1&provider=shopify&status=active&page=2&per_page=20", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := core.IntegrationFilter{
		OwnerID:  "acct_1",
		Provider: core.ProviderShopify,
		Status:   core.IntegrationStatusActive,
		Page:     2,
		PerPage:  20,
	}
	if captured != want {
		t.Fatalf("unexpected filter: %#v", captured)
	}
	var out listResponse[integrationView]
	decodeResponse(t, rec, &out)
	if len(out.Items) != 1 || out.Total != 41 {
		t.Fatalf("unexpected list response: %#v", out)
	}
}

func TestHandleUpdateIntegration_SendsOnlyProvidedFields(t *testing.T) {
	var captured core.UpdateIntegrationRequest
	service := &stubService{
		updateFn: func(_ context.Context, id string, req core.UpdateIntegrationRequest) (core.Integration, error) {
			if id != "int_1" {
				t.Fatalf("unexpected integration id %q", id)
			}
			captured = req
			return core.Integration{ID: id, Status: core.IntegrationStatusActive}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPatch, "/api/integrations/int_1",
		strings.NewReader(`{"destination_url":"https://new.example.com","forward_invalid":false}`)), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.SigningSecret != nil || captured.Credential != nil {
		t.Fatalf("expected untouched fields to stay nil: %#v", captured)
	}
	if captured.DestinationURL == nil || *captured.DestinationURL != "https://new.example.com" {
		t.Fatalf("expected destination url update: %#v", captured.DestinationURL)
	}
	if captured.ForwardInvalid == nil || *captured.ForwardInvalid {
		t.Fatalf("expected forward_invalid=false: %#v", captured.ForwardInvalid)
	}
}

func TestHandleDeleteIntegration_Returns204(t *testing.T) {
	called := false
	service := &stubService{
		deleteFn: func(_ context.Context, id string) error {
			called = true
			if id != "int_1" {
				t.Fatalf("unexpected integration id %q", id)
			}
			return nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodDelete, "/api/integrations/int_1", nil), nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !called {
		t.Fatalf("expected delete invocation")
	}
}

func TestHandlePauseIntegration_ReasonOptional(t *testing.T) {
	var reasons []string
	service := &stubService{
		pauseFn: func(_ context.Context, id string, reason string) (core.Integration, error) {
			reasons = append(reasons, reason)
			return core.Integration{ID: id, Status: core.IntegrationStatusPaused}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/api/integrations/int_1/pause",
		strings.NewReader(`{"reason":"maintenance window"}`)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with reason, got %d", rec.Code)
	}

	rec = serve(t, service, httptest.NewRequest(http.MethodPost, "/api/integrations/int_1/pause", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with empty body, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(reasons) != 2 || reasons[0] != "maintenance window" || reasons[1] != "" {
		t.Fatalf("unexpected pause reasons: %#v", reasons)
	}
}

func TestHandleResumeIntegration_ReturnsView(t *testing.T) {
	service := &stubService{
		resumeFn: func(_ context.Context, id string) (core.Integration, error) {
			return core.Integration{ID: id, Status: core.IntegrationStatusActive}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/api/integrations/int_1/resume", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out integrationView
	decodeResponse(t, rec, &out)
	if out.ID != "int_1" || out.Status != "active" {
		t.Fatalf("unexpected resume view: %#v", out)
	}
}

func TestHandleEndpointStatus_RendersCircuit(t *testing.T) {
	changedAt := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	service := &stubService{
		endpointFn: func(_ context.Context, integrationID string) (core.Endpoint, error) {
			return core.Endpoint{
				ID:                  "ep_1",
				IntegrationID:       integrationID,
				CircuitState:        core.CircuitOpen,
				SuccessRate:         0.25,
				AvgResponseMS:       812.5,
				ConsecutiveFailures: 5,
				StateChangedAt:      changedAt,
			}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet, "/api/integrations/int_1/endpoint", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out endpointView
	decodeResponse(t, rec, &out)
	if out.CircuitState != "open" || out.ConsecutiveFailures != 5 || out.IntegrationID != "int_1" {
		t.Fatalf("unexpected endpoint view: %#v", out)
	}
}

func TestHandleListReconciliationRuns_PassesLimit(t *testing.T) {
	service := &stubService{
		listRunsFn: func(_ context.Context, integrationID string, limit int) ([]core.ReconciliationRun, error) {
			if integrationID != "int_1" || limit != 5 {
				t.Fatalf("unexpected run query: %q %d", integrationID, limit)
			}
			return []core.ReconciliationRun{{ID: "run_1", IntegrationID: integrationID, GapsDetected: 2, GapsResolved: 2}}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet,
		"/api/integrations/int_1/reconciliations?limit=5", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out listResponse[reconciliationRunView]
	decodeResponse(t, rec, &out)
	if len(out.Items) != 1 || out.Items[0].GapsDetected != 2 {
		t.Fatalf("unexpected runs response: %#v", out)
	}
}

func TestHandleReconcileIntegration_ReturnsRun(t *testing.T) {
	service := &stubService{
		reconcileFn: func(_ context.Context, integrationID string) (core.ReconciliationRun, error) {
			return core.ReconciliationRun{
				ID:                  "run_2",
				IntegrationID:       integrationID,
				ProviderEventsFound: 40,
				LocalEventsFound:    38,
				GapsDetected:        2,
				GapsResolved:        2,
				RanAt:               time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/api/integrations/int_1/reconcile", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out reconciliationRunView
	decodeResponse(t, rec, &out)
	if out.ID != "run_2" || out.ProviderEventsFound != 40 || out.GapsResolved != 2 {
		t.Fatalf("unexpected run view: %#v", out)
	}
}

func TestHandleListEvents_ParsesSignatureValidFilter(t *testing.T) {
	var captured core.EventFilter
	service := &stubService{
		listEventsFn: func(_ context.Context, filter core.EventFilter) ([]core.Event, int, error) {
			captured = filter
			return []core.Event{{ID: "evt_1", Source: core.EventSourceWebhook}}, 1, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet,
		"/api/events?integration_id=int_1&event_type=charge.succeeded&source=webhook&signature_valid=false&per_page=10", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.IntegrationID != "int_1" || captured.EventType != "charge.succeeded" {
		t.Fatalf("unexpected event filter: %#v", captured)
	}
	if captured.Source != core.EventSourceWebhook || captured.PerPage != 10 {
		t.Fatalf("unexpected event filter: %#v", captured)
	}
	if captured.SignatureValid == nil || *captured.SignatureValid {
		t.Fatalf("expected signature_valid=false filter, got %#v", captured.SignatureValid)
	}
}

func TestHandleGetEvent_RendersStoredEvent(t *testing.T) {
	receivedAt := time.Date(2024, 3, 1, 11, 15, 0, 0, time.UTC)
	service := &stubService{
		getEventFn: func(_ context.Context, id string) (core.Event, error) {
			return core.Event{
				ID:            id,
				IntegrationID: "int_1",
				EventType:     "orders/create",
				Payload:       map[string]any{"id": float64(1001)},
				Headers: map[string]string{
					"x-shopify-topic":       "orders/create",
					"x-shopify-hmac-sha256": "c2lnbmVkLWRpZ2VzdA==",
				},
				ReceivedAt:      receivedAt,
				SignatureValid:  true,
				ProviderEventID: "1001",
				Source:          core.EventSourceWebhook,
			}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet, "/api/events/evt_1", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out eventView
	decodeResponse(t, rec, &out)
	if out.ID != "evt_1" || out.EventType != "orders/create" || out.Source != "webhook" {
		t.Fatalf("unexpected event view: %#v", out)
	}
	if !out.SignatureValid || out.ProviderEventID != "1001" {
		t.Fatalf("unexpected event view: %#v", out)
	}
	if out.Headers["x-shopify-topic"] != "orders/create" {
		t.Fatalf("expected topic header to pass through, got %#v", out.Headers)
	}
	if out.Headers["x-shopify-hmac-sha256"] != core.RedactedValue {
		t.Fatalf("expected hmac header to be masked, got %#v", out.Headers)
	}
}

func TestHandleListEventDeliveries_RendersAttempts(t *testing.T) {
	attemptedAt := time.Date(2024, 3, 1, 11, 16, 0, 0, time.UTC)
	service := &stubService{
		deliveriesFn: func(_ context.Context, eventID string) ([]core.Delivery, error) {
			if eventID != "evt_1" {
				t.Fatalf("unexpected event id %q", eventID)
			}
			return []core.Delivery{
				{ID: "del_1", EventID: eventID, Status: core.DeliveryStatusFailed, StatusCode: 503, ErrorType: core.ErrorTypeServerError, Attempt: 1, AttemptedAt: attemptedAt},
				{ID: "del_2", EventID: eventID, Status: core.DeliveryStatusDelivered, StatusCode: 200, Attempt: 2, AttemptedAt: attemptedAt.Add(30 * time.Second)},
			}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet, "/api/events/evt_1/deliveries", nil), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out listResponse[deliveryView]
	decodeResponse(t, rec, &out)
	if len(out.Items) != 2 || out.Total != 2 {
		t.Fatalf("unexpected deliveries response: %#v", out)
	}
	if out.Items[0].ErrorType != "server_error" || out.Items[1].Status != "delivered" {
		t.Fatalf("unexpected delivery views: %#v", out.Items)
	}
}

func TestHandleRequestReplay_ReportsOutcomeBuckets(t *testing.T) {
	service := &stubService{
		replayFn: func(_ context.Context, req core.ReplayRequest) (core.ReplayRequestResult, error) {
			if len(req.EventIDs) != 3 {
				t.Fatalf("unexpected replay request: %#v", req)
			}
			return core.ReplayRequestResult{
				Queued:  []string{"evt_1"},
				Missing: []string{"evt_9"},
				Skipped: []string{"evt_2"},
			}, nil
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodPost, "/api/replay",
		strings.NewReader(`{"event_ids":["evt_1","evt_2","evt_9"]}`)), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out replayResponse
	decodeResponse(t, rec, &out)
	if len(out.Queued) != 1 || len(out.Missing) != 1 || len(out.Skipped) != 1 {
		t.Fatalf("unexpected replay response: %#v", out)
	}
}

func TestHandleRequestReplay_RequiresEventIDs(t *testing.T) {
	rec := serve(t, &stubService{}, httptest.NewRequest(http.MethodPost, "/api/replay",
		strings.NewReader(`{"event_ids":[]}`)), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var out errorResponse
	decodeResponse(t, rec, &out)
	if out.Error.Code != core.ErrorCodeBadInput {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}
}

func TestWriteError_UnmappedErrorFallsBackToInternal(t *testing.T) {
	service := &stubService{
		getFn: func(context.Context, string) (core.Integration, error) {
			return core.Integration{}, fmt.Errorf("boom")
		},
	}

	rec := serve(t, service, httptest.NewRequest(http.MethodGet, "/api/integrations/int_1", nil), nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var out errorResponse
	decodeResponse(t, rec, &out)
	if out.Error.Code != core.ErrorCodeInternal {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}
}

func serve(
	t *testing.T,
	service Service,
	req *http.Request,
	prepare func(*http.Request),
	opts ...Option,
) *httptest.ResponseRecorder {
	t.Helper()
	server, err := New(service, opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if prepare != nil {
		prepare(req)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type stubService struct {
	ingestFn     func(ctx context.Context, req core.IngestRequest) (core.IngestResult, error)
	createFn     func(ctx context.Context, req core.CreateIntegrationRequest) (core.Integration, error)
	updateFn     func(ctx context.Context, id string, req core.UpdateIntegrationRequest) (core.Integration, error)
	pauseFn      func(ctx context.Context, id string, reason string) (core.Integration, error)
	resumeFn     func(ctx context.Context, id string) (core.Integration, error)
	deleteFn     func(ctx context.Context, id string) error
	replayFn     func(ctx context.Context, req core.ReplayRequest) (core.ReplayRequestResult, error)
	reconcileFn  func(ctx context.Context, integrationID string) (core.ReconciliationRun, error)
	getFn        func(ctx context.Context, id string) (core.Integration, error)
	listFn       func(ctx context.Context, filter core.IntegrationFilter) ([]core.Integration, int, error)
	endpointFn   func(ctx context.Context, integrationID string) (core.Endpoint, error)
	getEventFn   func(ctx context.Context, id string) (core.Event, error)
	listEventsFn func(ctx context.Context, filter core.EventFilter) ([]core.Event, int, error)
	deliveriesFn func(ctx context.Context, eventID string) ([]core.Delivery, error)
	listRunsFn   func(ctx context.Context, integrationID string, limit int) ([]core.ReconciliationRun, error)
}

func (s *stubService) IngestWebhook(ctx context.Context, req core.IngestRequest) (core.IngestResult, error) {
	if s.ingestFn == nil {
		return core.IngestResult{}, fmt.Errorf("ingest not configured")
	}
	return s.ingestFn(ctx, req)
}

func (s *stubService) CreateIntegration(ctx context.Context, req core.CreateIntegrationRequest) (core.Integration, error) {
	if s.createFn == nil {
		return core.Integration{}, fmt.Errorf("create not configured")
	}
	return s.createFn(ctx, req)
}

func (s *stubService) UpdateIntegration(ctx context.Context, id string, req core.UpdateIntegrationRequest) (core.Integration, error) {
	if s.updateFn == nil {
		return core.Integration{}, fmt.Errorf("update not configured")
	}
	return s.updateFn(ctx, id, req)
}

func (s *stubService) PauseIntegration(ctx context.Context, id string, reason string) (core.Integration, error) {
	if s.pauseFn == nil {
		return core.Integration{}, fmt.Errorf("pause not configured")
	}
	return s.pauseFn(ctx, id, reason)
}

func (s *stubService) ResumeIntegration(ctx context.Context, id string) (core.Integration, error) {
	if s.resumeFn == nil {
		return core.Integration{}, fmt.Errorf("resume not configured")
	}
	return s.resumeFn(ctx, id)
}

func (s *stubService) DeleteIntegration(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return fmt.Errorf("delete not configured")
	}
	return s.deleteFn(ctx, id)
}

func (s *stubService) RequestReplay(ctx context.Context, req core.ReplayRequest) (core.ReplayRequestResult, error) {
	if s.replayFn == nil {
		return core.ReplayRequestResult{}, fmt.Errorf("replay not configured")
	}
	return s.replayFn(ctx, req)
}

func (s *stubService) ReconcileIntegration(ctx context.Context, integrationID string) (core.ReconciliationRun, error) {
	if s.reconcileFn == nil {
		return core.ReconciliationRun{}, fmt.Errorf("reconcile not configured")
	}
	return s.reconcileFn(ctx, integrationID)
}

func (s *stubService) GetIntegration(ctx context.Context, id string) (core.Integration, error) {
	if s.getFn == nil {
		return core.Integration{}, fmt.Errorf("get integration not configured")
	}
	return s.getFn(ctx, id)
}

func (s *stubService) ListIntegrations(ctx context.Context, filter core.IntegrationFilter) ([]core.Integration, int, error) {
	if s.listFn == nil {
		return nil, 0, fmt.Errorf("list integrations not configured")
	}
	return s.listFn(ctx, filter)
}

func (s *stubService) GetEndpointStatus(ctx context.Context, integrationID string) (core.Endpoint, error) {
	if s.endpointFn == nil {
		return core.Endpoint{}, fmt.Errorf("endpoint status not configured")
	}
	return s.endpointFn(ctx, integrationID)
}

func (s *stubService) GetEvent(ctx context.Context, id string) (core.Event, error) {
	if s.getEventFn == nil {
		return core.Event{}, fmt.Errorf("get event not configured")
	}
	return s.getEventFn(ctx, id)
}

func (s *stubService) ListEvents(ctx context.Context, filter core.EventFilter) ([]core.Event, int, error) {
	if s.listEventsFn == nil {
		return nil, 0, fmt.Errorf("list events not configured")
	}
	return s.listEventsFn(ctx, filter)
}

func (s *stubService) ListEventDeliveries(ctx context.Context, eventID string) ([]core.Delivery, error) {
	if s.deliveriesFn == nil {
		return nil, fmt.Errorf("list deliveries not configured")
	}
	return s.deliveriesFn(ctx, eventID)
}

func (s *stubService) ListReconciliationRuns(ctx context.Context, integrationID string, limit int) ([]core.ReconciliationRun, error) {
	if s.listRunsFn == nil {
		return nil, fmt.Errorf("list reconciliation runs not configured")
	}
	return s.listRunsFn(ctx, integrationID, limit)
}

var _ Service = (*stubService)(nil)
