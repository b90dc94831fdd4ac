package sqlstore

import (
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
)

func newIntegrationRecord(in core.CreateIntegrationInput, now time.Time) *integrationRecord {
	record := &integrationRecord{
		OwnerID:          strings.TrimSpace(in.OwnerID),
		Provider:         string(in.Provider),
		SigningSecret:    in.SigningSecret,
		DestinationURL:   strings.TrimSpace(in.DestinationURL),
		Status:           string(core.IntegrationStatusActive),
		ForwardInvalid:   true,
		SealedCredential: append([]byte(nil), in.SealedCredential...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.ForwardInvalid != nil {
		record.ForwardInvalid = *in.ForwardInvalid
	}
	return record
}

func (r *integrationRecord) toDomain() core.Integration {
	if r == nil {
		return core.Integration{}
	}
	return core.Integration{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Provider:         core.Provider(r.Provider),
		SigningSecret:    r.SigningSecret,
		DestinationURL:   r.DestinationURL,
		Status:           core.IntegrationStatus(r.Status),
		ForwardInvalid:   r.ForwardInvalid,
		SealedCredential: append([]byte(nil), r.SealedCredential...),
		LastError:        r.LastError,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newEndpointRecord(integrationID string, now time.Time) *endpointRecord {
	return &endpointRecord{
		IntegrationID:  strings.TrimSpace(integrationID),
		CircuitState:   string(core.CircuitClosed),
		SuccessRate:    1,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *endpointRecord) toDomain() core.Endpoint {
	if r == nil {
		return core.Endpoint{}
	}
	endpoint := core.Endpoint{
		ID:                        r.ID,
		IntegrationID:             r.IntegrationID,
		CircuitState:              core.CircuitState(r.CircuitState),
		SuccessRate:               r.SuccessRate,
		AvgResponseMS:             r.AvgResponseMS,
		ConsecutiveFailures:       r.ConsecutiveFailures,
		ConsecutiveSuccesses:      r.ConsecutiveSuccesses,
		ConsecutiveProbeSuccesses: r.ConsecutiveProbeSuccesses,
		StateChangedAt:            r.StateChangedAt,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}
	if r.LastProbeAt != nil {
		probedAt := *r.LastProbeAt
		endpoint.LastProbeAt = &probedAt
	}
	return endpoint
}

func (r *endpointRecord) applyDomain(endpoint core.Endpoint, now time.Time) {
	if r == nil {
		return
	}
	r.CircuitState = string(endpoint.CircuitState)
	r.SuccessRate = endpoint.SuccessRate
	r.AvgResponseMS = endpoint.AvgResponseMS
	r.ConsecutiveFailures = endpoint.ConsecutiveFailures
	r.ConsecutiveSuccesses = endpoint.ConsecutiveSuccesses
	r.ConsecutiveProbeSuccesses = endpoint.ConsecutiveProbeSuccesses
	r.StateChangedAt = endpoint.StateChangedAt
	r.LastProbeAt = nil
	if endpoint.LastProbeAt != nil {
		probedAt := *endpoint.LastProbeAt
		r.LastProbeAt = &probedAt
	}
	r.UpdatedAt = now
}

func newEventRecord(in core.CreateEventInput, now time.Time) *eventRecord {
	receivedAt := in.ReceivedAt.UTC()
	if receivedAt.IsZero() {
		receivedAt = now
	}
	source := in.Source
	if source == "" {
		source = core.EventSourceWebhook
	}
	return &eventRecord{
		IntegrationID:   strings.TrimSpace(in.IntegrationID),
		EventType:       strings.TrimSpace(in.EventType),
		Payload:         copyAnyMap(in.Payload),
		Headers:         copyStringMap(in.Headers),
		ReceivedAt:      receivedAt,
		SignatureValid:  in.SignatureValid,
		ProviderEventID: strings.TrimSpace(in.ProviderEventID),
		Source:          string(source),
		CreatedAt:       now,
	}
}

func (r *eventRecord) toDomain() core.Event {
	if r == nil {
		return core.Event{}
	}
	return core.Event{
		ID:              r.ID,
		IntegrationID:   r.IntegrationID,
		EventType:       r.EventType,
		Payload:         copyAnyMap(r.Payload),
		Headers:         copyStringMap(r.Headers),
		ReceivedAt:      r.ReceivedAt,
		SignatureValid:  r.SignatureValid,
		ProviderEventID: r.ProviderEventID,
		Source:          core.EventSource(r.Source),
	}
}

func newDeliveryRecord(in core.CreateDeliveryInput, now time.Time) *deliveryRecord {
	attemptedAt := in.AttemptedAt.UTC()
	if attemptedAt.IsZero() {
		attemptedAt = now
	}
	status := in.Status
	if status == "" {
		status = core.DeliveryStatusPending
	}
	record := &deliveryRecord{
		EventID:        strings.TrimSpace(in.EventID),
		EndpointID:     strings.TrimSpace(in.EndpointID),
		Status:         string(status),
		StatusCode:     in.StatusCode,
		ResponseTimeMS: in.ResponseTimeMS,
		ResponseBody:   in.ResponseBody,
		ErrorType:      string(in.ErrorType),
		Attempt:        in.Attempt,
		AttemptedAt:    attemptedAt,
		CreatedAt:      now,
	}
	if in.NextRetryAt != nil {
		retryAt := in.NextRetryAt.UTC()
		record.NextRetryAt = &retryAt
	}
	return record
}

func (r *deliveryRecord) toDomain() core.Delivery {
	if r == nil {
		return core.Delivery{}
	}
	delivery := core.Delivery{
		ID:             r.ID,
		EventID:        r.EventID,
		EndpointID:     r.EndpointID,
		Status:         core.DeliveryStatus(r.Status),
		StatusCode:     r.StatusCode,
		ResponseTimeMS: r.ResponseTimeMS,
		ResponseBody:   r.ResponseBody,
		ErrorType:      core.ErrorType(r.ErrorType),
		Attempt:        r.Attempt,
		AttemptedAt:    r.AttemptedAt,
	}
	if r.NextRetryAt != nil {
		retryAt := *r.NextRetryAt
		delivery.NextRetryAt = &retryAt
	}
	return delivery
}

func (r *replayItemRecord) toDomain() core.ReplayQueueItem {
	if r == nil {
		return core.ReplayQueueItem{}
	}
	item := core.ReplayQueueItem{
		ID:             r.ID,
		EndpointID:     r.EndpointID,
		EventID:        r.EventID,
		Position:       r.Position,
		CorrelationKey: r.CorrelationKey,
		Status:         core.ReplayStatus(r.Status),
		Attempts:       r.Attempts,
		CreatedAt:      r.CreatedAt,
	}
	if r.DeliveredAt != nil {
		deliveredAt := *r.DeliveredAt
		item.DeliveredAt = &deliveredAt
	}
	return item
}

func newReconciliationRunRecord(in core.CreateReconciliationRunInput, now time.Time) *reconciliationRunRecord {
	ranAt := in.RanAt.UTC()
	if ranAt.IsZero() {
		ranAt = now
	}
	return &reconciliationRunRecord{
		IntegrationID:       strings.TrimSpace(in.IntegrationID),
		ProviderEventsFound: in.ProviderEventsFound,
		LocalEventsFound:    in.LocalEventsFound,
		GapsDetected:        in.GapsDetected,
		GapsResolved:        in.GapsResolved,
		RanAt:               ranAt,
		CreatedAt:           now,
	}
}

func (r *reconciliationRunRecord) toDomain() core.ReconciliationRun {
	if r == nil {
		return core.ReconciliationRun{}
	}
	return core.ReconciliationRun{
		ID:                  r.ID,
		IntegrationID:       r.IntegrationID,
		ProviderEventsFound: r.ProviderEventsFound,
		LocalEventsFound:    r.LocalEventsFound,
		GapsDetected:        r.GapsDetected,
		GapsResolved:        r.GapsResolved,
		RanAt:               r.RanAt,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
