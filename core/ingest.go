package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type IngestRequest struct {
	IntegrationID string
	Headers       map[string]string
	Body          []byte
	// ReceivedAt overrides the ingest timestamp; zero means now.
	ReceivedAt time.Time
}

type IngestResult struct {
	EventID        string
	IntegrationID  string
	EventType      string
	SignatureValid bool
	Enqueued       bool
}

// IngestWebhook stores one inbound webhook and hands it to the delivery
// pipeline. A failed signature check never rejects the request: the event
// is stored with signature_valid=false so the payload stays inspectable.
// Enqueueing is best effort; a queue failure is logged and the response
// still succeeds, because the orphan sweeper re-emits stored events that
// never reached a worker.
func (s *Service) IngestWebhook(ctx context.Context, req IngestRequest) (result IngestResult, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"integration_id": strings.TrimSpace(req.IntegrationID),
	}
	defer func() {
		if result.EventID != "" {
			fields["event_id"] = result.EventID
			fields["signature_valid"] = result.SignatureValid
		}
		s.observeOperation(ctx, startedAt, "webhook_ingest", err, fields)
	}()

	if s == nil || s.integrationStore == nil || s.eventStore == nil {
		err = s.mapError(fmt.Errorf("core: integration and event stores are required"))
		return IngestResult{}, err
	}
	integrationID := strings.TrimSpace(req.IntegrationID)
	if integrationID == "" {
		err = s.mapError(fmt.Errorf("core: integration id is required"))
		return IngestResult{}, err
	}

	integration, getErr := s.integrationStore.Get(ctx, integrationID)
	if getErr != nil {
		err = s.mapError(getErr)
		return IngestResult{}, err
	}
	fields["provider"] = string(integration.Provider)
	if integration.Status != IntegrationStatusActive {
		err = s.mapError(fmt.Errorf("%w: integration %s is %s", ErrIntegrationNotActive, integration.ID, integration.Status))
		return IngestResult{}, err
	}

	adapter, ok := s.registryGet(integration.Provider)
	if !ok {
		err = s.mapError(s.errorFactory(
			fmt.Sprintf("core: no adapter registered for provider %s", integration.Provider),
			goerrors.CategoryInternal,
		))
		return IngestResult{}, err
	}

	headers := lowercaseHeaders(req.Headers)
	verification := adapter.Verifier().Verify(integration.SigningSecret, headers, req.Body)
	if !verification.SignatureValid {
		s.logInfo(ctx, "webhook signature verification failed", map[string]any{
			"integration_id": integration.ID,
			"provider":       string(integration.Provider),
			"reason":         verification.FailureReason,
		})
	}

	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	event, createErr := s.eventStore.Create(ctx, CreateEventInput{
		IntegrationID:   integration.ID,
		EventType:       verification.EventType,
		Payload:         decodePayload(req.Body),
		Headers:         headers,
		SignatureValid:  verification.SignatureValid,
		ProviderEventID: verification.ProviderEventID,
		Source:          EventSourceWebhook,
		ReceivedAt:      receivedAt,
	})
	if createErr != nil {
		err = s.mapError(createErr)
		return IngestResult{}, err
	}

	result = IngestResult{
		EventID:        event.ID,
		IntegrationID:  integration.ID,
		EventType:      event.EventType,
		SignatureValid: event.SignatureValid,
	}

	if !event.SignatureValid && !integration.ForwardInvalid {
		return result, nil
	}
	if s.enqueuer == nil {
		return result, nil
	}
	task := WebhookReceivedTask{
		EventID:        event.ID,
		IntegrationID:  integration.ID,
		DestinationURL: integration.DestinationURL,
	}
	if enqueueErr := s.enqueuer.Enqueue(ctx, task.Message()); enqueueErr != nil {
		s.logError(ctx, "webhook enqueue failed, sweeper will redrive", map[string]any{
			"integration_id": integration.ID,
			"event_id":       event.ID,
			"error":          enqueueErr.Error(),
		})
		return result, nil
	}
	result.Enqueued = true
	return result, nil
}

func (s *Service) registryGet(provider Provider) (ProviderAdapter, bool) {
	if s == nil || s.registry == nil {
		return nil, false
	}
	adapter, ok := s.registry.Get(provider)
	if !ok || adapter == nil || adapter.Verifier() == nil {
		return nil, false
	}
	return adapter, true
}

// decodePayload parses the raw body as a JSON object; anything else is
// wrapped so the original bytes survive as {"raw": "<body>"}.
func decodePayload(body []byte) map[string]any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload != nil {
			return payload
		}
	}
	return map[string]any{"raw": string(body)}
}

func lowercaseHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return out
}
