package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/go-chi/chi/v5"
)

type createIntegrationPayload struct {
	OwnerID        string `json:"owner_id"`
	Provider       string `json:"provider"`
	SigningSecret  string `json:"signing_secret"`
	DestinationURL string `json:"destination_url"`
	ForwardInvalid *bool  `json:"forward_invalid"`
	Credential     string `json:"credential"`
}

type updateIntegrationPayload struct {
	SigningSecret  *string `json:"signing_secret"`
	DestinationURL *string `json:"destination_url"`
	ForwardInvalid *bool   `json:"forward_invalid"`
	Credential     *string `json:"credential"`
}

type pauseIntegrationPayload struct {
	Reason string `json:"reason"`
}

type replayPayload struct {
	EventIDs []string `json:"event_ids"`
}

// integrationView omits the signing secret and the sealed credential;
// callers only learn whether a credential is on file.
type integrationView struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Provider       string    `json:"provider"`
	DestinationURL string    `json:"destination_url"`
	Status         string    `json:"status"`
	ForwardInvalid bool      `json:"forward_invalid"`
	HasCredential  bool      `json:"has_credential"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type endpointView struct {
	ID                        string     `json:"id"`
	IntegrationID             string     `json:"integration_id"`
	CircuitState              string     `json:"circuit_state"`
	SuccessRate               float64    `json:"success_rate"`
	AvgResponseMS             float64    `json:"avg_response_ms"`
	ConsecutiveFailures       int        `json:"consecutive_failures"`
	ConsecutiveSuccesses      int        `json:"consecutive_successes"`
	ConsecutiveProbeSuccesses int        `json:"consecutive_probe_successes"`
	LastProbeAt               *time.Time `json:"last_probe_at,omitempty"`
	StateChangedAt            time.Time  `json:"state_changed_at"`
}

type eventView struct {
	ID              string            `json:"id"`
	IntegrationID   string            `json:"integration_id"`
	EventType       string            `json:"event_type"`
	Payload         map[string]any    `json:"payload,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
	SignatureValid  bool              `json:"signature_valid"`
	ProviderEventID string            `json:"provider_event_id,omitempty"`
	Source          string            `json:"source"`
}

type deliveryView struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	EndpointID     string     `json:"endpoint_id"`
	Status         string     `json:"status"`
	StatusCode     int        `json:"status_code,omitempty"`
	ResponseTimeMS int64      `json:"response_time_ms"`
	ResponseBody   string     `json:"response_body,omitempty"`
	ErrorType      string     `json:"error_type,omitempty"`
	Attempt        int        `json:"attempt"`
	AttemptedAt    time.Time  `json:"attempted_at"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
}

type reconciliationRunView struct {
	ID                  string    `json:"id"`
	IntegrationID       string    `json:"integration_id"`
	ProviderEventsFound int       `json:"provider_events_found"`
	LocalEventsFound    int       `json:"local_events_found"`
	GapsDetected        int       `json:"gaps_detected"`
	GapsResolved        int       `json:"gaps_resolved"`
	RanAt               time.Time `json:"ran_at"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type ingestResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
}

type replayResponse struct {
	Queued  []string `json:"queued"`
	Missing []string `json:"missing"`
	Skipped []string `json:"skipped"`
}

// handleIngest accepts the provider-facing webhook POST. The body is read
// whole; verification and enqueueing happen in core, and a failed signature
// still gets a 200 so providers do not retry storms at us.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	integrationID := chi.URLParam(r, "integrationID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: errorBody{
				Code:    core.ErrorCodeBadInput,
				Message: "webhook body exceeds the configured limit",
			}})
			return
		}
		s.writeBadRequest(w, "unable to read webhook body")
		return
	}

	result, err := s.service.IngestWebhook(r.Context(), core.IngestRequest{
		IntegrationID: integrationID,
		Headers:       flattenHeaders(r.Header),
		Body:          body,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ingestResponse{Received: true, EventID: result.EventID})
}

func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var payload createIntegrationPayload
	if err := decodeBody(r, &payload); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	integration, err := s.service.CreateIntegration(r.Context(), core.CreateIntegrationRequest{
		OwnerID:        payload.OwnerID,
		Provider:       payload.Provider,
		SigningSecret:  payload.SigningSecret,
		DestinationURL: payload.DestinationURL,
		ForwardInvalid: payload.ForwardInvalid,
		Credential:     payload.Credential,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, renderIntegration(integration))
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	filter := core.IntegrationFilter{
		OwnerID:  strings.TrimSpace(r.URL.Query().Get("owner_id")),
		Provider: core.Provider(strings.TrimSpace(r.URL.Query().Get("provider"))),
		Status:   core.IntegrationStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Page:     queryInt(r, "page"),
		PerPage:  queryInt(r, "per_page"),
	}

	items, total, err := s.service.ListIntegrations(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]integrationView, 0, len(items))
	for _, item := range items {
		views = append(views, renderIntegration(item))
	}
	s.writeJSON(w, http.StatusOK, listResponse[integrationView]{Items: views, Total: total})
}

func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	integration, err := s.service.GetIntegration(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderIntegration(integration))
}

func (s *Server) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	var payload updateIntegrationPayload
	if err := decodeBody(r, &payload); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	integration, err := s.service.UpdateIntegration(r.Context(), chi.URLParam(r, "integrationID"), core.UpdateIntegrationRequest{
		SigningSecret:  payload.SigningSecret,
		DestinationURL: payload.DestinationURL,
		ForwardInvalid: payload.ForwardInvalid,
		Credential:     payload.Credential,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderIntegration(integration))
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteIntegration(r.Context(), chi.URLParam(r, "integrationID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePauseIntegration(w http.ResponseWriter, r *http.Request) {
	var payload pauseIntegrationPayload
	if err := decodeBody(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	integration, err := s.service.PauseIntegration(r.Context(), chi.URLParam(r, "integrationID"), payload.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderIntegration(integration))
}

func (s *Server) handleResumeIntegration(w http.ResponseWriter, r *http.Request) {
	integration, err := s.service.ResumeIntegration(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderIntegration(integration))
}

func (s *Server) handleEndpointStatus(w http.ResponseWriter, r *http.Request) {
	endpoint, err := s.service.GetEndpointStatus(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderEndpoint(endpoint))
}

func (s *Server) handleListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListReconciliationRuns(r.Context(), chi.URLParam(r, "integrationID"), queryInt(r, "limit"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]reconciliationRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, renderReconciliationRun(run))
	}
	s.writeJSON(w, http.StatusOK, listResponse[reconciliationRunView]{Items: views, Total: len(views)})
}

func (s *Server) handleReconcileIntegration(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.ReconcileIntegration(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderReconciliationRun(run))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := core.EventFilter{
		IntegrationID:  strings.TrimSpace(r.URL.Query().Get("integration_id")),
		EventType:      strings.TrimSpace(r.URL.Query().Get("event_type")),
		Source:         core.EventSource(strings.TrimSpace(r.URL.Query().Get("source"))),
		SignatureValid: queryBoolPtr(r, "signature_valid"),
		Page:           queryInt(r, "page"),
		PerPage:        queryInt(r, "per_page"),
	}

	items, total, err := s.service.ListEvents(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]eventView, 0, len(items))
	for _, item := range items {
		views = append(views, renderEvent(item))
	}
	s.writeJSON(w, http.StatusOK, listResponse[eventView]{Items: views, Total: total})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.service.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderEvent(event))
}

func (s *Server) handleListEventDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.service.ListEventDeliveries(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]deliveryView, 0, len(deliveries))
	for _, delivery := range deliveries {
		views = append(views, renderDelivery(delivery))
	}
	s.writeJSON(w, http.StatusOK, listResponse[deliveryView]{Items: views, Total: len(views)})
}

func (s *Server) handleRequestReplay(w http.ResponseWriter, r *http.Request) {
	var payload replayPayload
	if err := decodeBody(r, &payload); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	if len(payload.EventIDs) == 0 {
		s.writeBadRequest(w, "event_ids is required")
		return
	}

	result, err := s.service.RequestReplay(r.Context(), core.ReplayRequest{EventIDs: payload.EventIDs})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, replayResponse{
		Queued:  stringsOrEmpty(result.Queued),
		Missing: stringsOrEmpty(result.Missing),
		Skipped: stringsOrEmpty(result.Skipped),
	})
}

func decodeBody(r *http.Request, target any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(r.Body).Decode(target)
}

func renderIntegration(integration core.Integration) integrationView {
	return integrationView{
		ID:             integration.ID,
		OwnerID:        integration.OwnerID,
		Provider:       string(integration.Provider),
		DestinationURL: integration.DestinationURL,
		Status:         string(integration.Status),
		ForwardInvalid: integration.ForwardInvalid,
		HasCredential:  len(integration.SealedCredential) > 0,
		LastError:      integration.LastError,
		CreatedAt:      integration.CreatedAt,
		UpdatedAt:      integration.UpdatedAt,
	}
}

func renderEndpoint(endpoint core.Endpoint) endpointView {
	return endpointView{
		ID:                        endpoint.ID,
		IntegrationID:             endpoint.IntegrationID,
		CircuitState:              string(endpoint.CircuitState),
		SuccessRate:               endpoint.SuccessRate,
		AvgResponseMS:             endpoint.AvgResponseMS,
		ConsecutiveFailures:       endpoint.ConsecutiveFailures,
		ConsecutiveSuccesses:      endpoint.ConsecutiveSuccesses,
		ConsecutiveProbeSuccesses: endpoint.ConsecutiveProbeSuccesses,
		LastProbeAt:               endpoint.LastProbeAt,
		StateChangedAt:            endpoint.StateChangedAt,
	}
}

// renderEvent masks signature and credential headers; the stored capture
// keeps them for verification audits, the API does not return them.
func renderEvent(event core.Event) eventView {
	return eventView{
		ID:              event.ID,
		IntegrationID:   event.IntegrationID,
		EventType:       event.EventType,
		Payload:         event.Payload,
		Headers:         core.RedactHeaders(event.Headers),
		ReceivedAt:      event.ReceivedAt,
		SignatureValid:  event.SignatureValid,
		ProviderEventID: event.ProviderEventID,
		Source:          string(event.Source),
	}
}

func renderDelivery(delivery core.Delivery) deliveryView {
	return deliveryView{
		ID:             delivery.ID,
		EventID:        delivery.EventID,
		EndpointID:     delivery.EndpointID,
		Status:         string(delivery.Status),
		StatusCode:     delivery.StatusCode,
		ResponseTimeMS: delivery.ResponseTimeMS,
		ResponseBody:   delivery.ResponseBody,
		ErrorType:      string(delivery.ErrorType),
		Attempt:        delivery.Attempt,
		AttemptedAt:    delivery.AttemptedAt,
		NextRetryAt:    delivery.NextRetryAt,
	}
}

func renderReconciliationRun(run core.ReconciliationRun) reconciliationRunView {
	return reconciliationRunView{
		ID:                  run.ID,
		IntegrationID:       run.IntegrationID,
		ProviderEventsFound: run.ProviderEventsFound,
		LocalEventsFound:    run.LocalEventsFound,
		GapsDetected:        run.GapsDetected,
		GapsResolved:        run.GapsResolved,
		RanAt:               run.RanAt,
	}
}

func stringsOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
