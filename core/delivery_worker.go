package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// HandleWebhookReceived consumes one webhook/received task: it loads the
// stored event, routes it through the endpoint's circuit state, and makes
// the first delivery attempt. Failed attempts fan out at most one
// webhook/retry task, chosen by the error classifier.
func (s *Service) HandleWebhookReceived(ctx context.Context, task WebhookReceivedTask) (err error) {
	startedAt := s.now()
	fields := map[string]any{
		"event_id":       task.EventID,
		"integration_id": task.IntegrationID,
		"attempt":        1,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "webhook_deliver", err, fields)
	}()

	if validateErr := s.requireDeliveryDeps(); validateErr != nil {
		err = s.mapError(validateErr)
		return err
	}

	event, getErr := s.eventStore.Get(ctx, task.EventID)
	if getErr != nil {
		err = s.mapError(getErr)
		return err
	}
	integration, intErr := s.integrationStore.Get(ctx, event.IntegrationID)
	if intErr != nil {
		err = s.mapError(intErr)
		return err
	}
	if integration.Status != IntegrationStatusActive {
		fields["outcome"] = "integration_inactive"
		return nil
	}

	destination := task.DestinationURL
	if destination == "" {
		destination = integration.DestinationURL
	}

	endpoint, hasEndpoint, endpointErr := s.resolveEndpoint(ctx, "", integration.ID)
	if endpointErr != nil {
		err = s.mapError(endpointErr)
		return err
	}
	if hasEndpoint {
		fields["endpoint_id"] = endpoint.ID
		if endpoint.CircuitState == CircuitOpen {
			queued, queueErr := s.parkForReplay(ctx, endpoint, integration, event)
			if queueErr != nil {
				err = s.mapError(queueErr)
				return err
			}
			fields["outcome"] = "queued_for_replay"
			fields["replay_position"] = queued.Position
			return nil
		}
		if throttleErr := s.throttleHalfOpen(ctx, endpoint); throttleErr != nil {
			err = s.mapError(throttleErr)
			return err
		}
	}

	// Replayed events resume their delivery history instead of colliding
	// with the idempotent (event, attempt) pair from the first pass.
	attempt, attemptErr := s.nextDeliveryAttempt(ctx, event.ID)
	if attemptErr != nil {
		err = s.mapError(attemptErr)
		return err
	}
	fields["attempt"] = attempt

	outcome, runErr := s.runDeliveryAttempt(ctx, deliveryRun{
		event:       event,
		integration: integration,
		endpoint:    endpoint,
		hasEndpoint: hasEndpoint,
		destination: destination,
		attempt:     attempt,
		timeout:     s.config.Transport.Timeout,
		fanOut:      true,
	})
	if runErr != nil {
		err = s.mapError(runErr)
		return err
	}
	fields["outcome"] = outcome.label
	fields["status_code"] = outcome.statusCode
	if outcome.errorType != "" {
		fields["error_type"] = string(outcome.errorType)
	}
	return nil
}

// HandleWebhookRetry consumes one webhook/retry task. A retry never fans out
// another retry: when it fails the delivery is recorded as dead_letter and
// the event waits for replay or manual intervention.
func (s *Service) HandleWebhookRetry(ctx context.Context, task WebhookRetryTask) (err error) {
	startedAt := s.now()
	fields := map[string]any{
		"event_id":       task.EventID,
		"integration_id": task.IntegrationID,
		"attempt":        task.Attempt,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "webhook_retry", err, fields)
	}()

	if validateErr := s.requireDeliveryDeps(); validateErr != nil {
		err = s.mapError(validateErr)
		return err
	}
	if task.Attempt < 2 {
		err = s.mapError(fmt.Errorf("core: retry attempt must be >= 2, got %d", task.Attempt))
		return err
	}

	event, getErr := s.eventStore.Get(ctx, task.EventID)
	if getErr != nil {
		err = s.mapError(getErr)
		return err
	}
	integration, intErr := s.integrationStore.Get(ctx, event.IntegrationID)
	if intErr != nil {
		err = s.mapError(intErr)
		return err
	}
	if integration.Status != IntegrationStatusActive {
		fields["outcome"] = "integration_inactive"
		return nil
	}

	endpoint, hasEndpoint, endpointErr := s.resolveEndpoint(ctx, task.EndpointID, integration.ID)
	if endpointErr != nil {
		err = s.mapError(endpointErr)
		return err
	}
	if hasEndpoint {
		fields["endpoint_id"] = endpoint.ID
		// The circuit may have opened between fan-out and execution.
		if endpoint.CircuitState == CircuitOpen {
			queued, queueErr := s.parkForReplay(ctx, endpoint, integration, event)
			if queueErr != nil {
				err = s.mapError(queueErr)
				return err
			}
			fields["outcome"] = "queued_for_replay"
			fields["replay_position"] = queued.Position
			return nil
		}
		if throttleErr := s.throttleHalfOpen(ctx, endpoint); throttleErr != nil {
			err = s.mapError(throttleErr)
			return err
		}
	}

	if wait := task.NotBefore.Sub(s.now()); wait > 0 {
		if waitErr := waitWithContext(ctx, wait); waitErr != nil {
			err = s.mapError(waitErr)
			return err
		}
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = s.config.Transport.Timeout
	}

	outcome, runErr := s.runDeliveryAttempt(ctx, deliveryRun{
		event:       event,
		integration: integration,
		endpoint:    endpoint,
		hasEndpoint: hasEndpoint,
		destination: integration.DestinationURL,
		attempt:     task.Attempt,
		timeout:     timeout,
		fanOut:      false,
	})
	if runErr != nil {
		err = s.mapError(runErr)
		return err
	}
	fields["outcome"] = outcome.label
	fields["status_code"] = outcome.statusCode
	if outcome.errorType != "" {
		fields["error_type"] = string(outcome.errorType)
	}
	return nil
}

// deliveryRun carries one attempt through the transport, the delivery log,
// the breaker, and the retry fan-out.
type deliveryRun struct {
	event       Event
	integration Integration
	endpoint    Endpoint
	hasEndpoint bool
	destination string
	attempt     int
	timeout     time.Duration
	replay      bool
	fanOut      bool
}

type deliveryOutcome struct {
	label      string
	statusCode int
	errorType  ErrorType
	delivery   Delivery
	transition CircuitTransition
}

func (s *Service) runDeliveryAttempt(ctx context.Context, run deliveryRun) (deliveryOutcome, error) {
	body, marshalErr := deliveryBody(run.event)
	if marshalErr != nil {
		return deliveryOutcome{}, marshalErr
	}

	result, deliverErr := s.transport.Deliver(ctx, DeliveryRequest{
		URL:           run.destination,
		Body:          body,
		EventID:       run.event.ID,
		IntegrationID: run.integration.ID,
		Timeout:       run.timeout,
		RetryCount:    run.attempt - 1,
		Replay:        run.replay,
	})
	if deliverErr != nil {
		return deliveryOutcome{}, deliverErr
	}

	if deliverySucceeded(result) {
		return s.recordDeliverySuccess(ctx, run, result)
	}
	return s.recordDeliveryFailure(ctx, run, result)
}

func (s *Service) recordDeliverySuccess(ctx context.Context, run deliveryRun, result DeliveryResult) (deliveryOutcome, error) {
	delivery, deduped, createErr := s.deliveryStore.Create(ctx, CreateDeliveryInput{
		EventID:        run.event.ID,
		EndpointID:     run.endpoint.ID,
		Status:         DeliveryStatusDelivered,
		StatusCode:     result.StatusCode,
		ResponseTimeMS: result.ResponseTimeMS,
		ResponseBody:   result.Body,
		Attempt:        run.attempt,
		AttemptedAt:    s.now(),
	})
	if createErr != nil {
		return deliveryOutcome{}, createErr
	}
	outcome := deliveryOutcome{label: "delivered", statusCode: result.StatusCode, delivery: delivery}
	if deduped {
		outcome.label = "deduped"
		return outcome, nil
	}

	if run.hasEndpoint {
		transition, recordErr := s.breaker.RecordDelivery(ctx, run.endpoint.ID, RecordDeliveryInput{
			Success:        true,
			ResponseTimeMS: result.ResponseTimeMS,
		})
		if recordErr != nil {
			return deliveryOutcome{}, recordErr
		}
		outcome.transition = transition
		if transition.Closed() {
			s.halfOpenPacer().Forget(run.endpoint.ID)
			s.logInfo(ctx, "circuit closed after recovery", map[string]any{
				"endpoint_id":    run.endpoint.ID,
				"integration_id": run.integration.ID,
			})
		}
	}

	s.emitStepCompleted(ctx, run)
	return outcome, nil
}

func (s *Service) recordDeliveryFailure(ctx context.Context, run deliveryRun, result DeliveryResult) (deliveryOutcome, error) {
	classification := s.classifier().Classify(result.StatusCode, result.ErrMessage, result.RetryAfter)

	status := DeliveryStatusFailed
	if !classification.Retry || !run.fanOut {
		status = DeliveryStatusDeadLetter
	}
	var nextRetryAt *time.Time
	if classification.Retry && run.fanOut {
		at := s.now()
		if classification.RetryDelay != nil {
			at = at.Add(*classification.RetryDelay)
		}
		nextRetryAt = &at
	}

	responseBody := result.Body
	if responseBody == "" {
		responseBody = result.ErrMessage
	}
	delivery, deduped, createErr := s.deliveryStore.Create(ctx, CreateDeliveryInput{
		EventID:        run.event.ID,
		EndpointID:     run.endpoint.ID,
		Status:         status,
		StatusCode:     result.StatusCode,
		ResponseTimeMS: result.ResponseTimeMS,
		ResponseBody:   responseBody,
		ErrorType:      classification.ErrorType,
		Attempt:        run.attempt,
		AttemptedAt:    s.now(),
		NextRetryAt:    nextRetryAt,
	})
	if createErr != nil {
		return deliveryOutcome{}, createErr
	}
	outcome := deliveryOutcome{
		label:      string(status),
		statusCode: result.StatusCode,
		errorType:  classification.ErrorType,
		delivery:   delivery,
	}
	if deduped {
		outcome.label = "deduped"
		return outcome, nil
	}

	if run.hasEndpoint {
		transition, recordErr := s.breaker.RecordDelivery(ctx, run.endpoint.ID, RecordDeliveryInput{
			Success:        false,
			ResponseTimeMS: result.ResponseTimeMS,
			ForceOpen:      classification.OpenCircuit,
		})
		if recordErr != nil {
			return deliveryOutcome{}, recordErr
		}
		outcome.transition = transition
		if transition.Opened() {
			s.halfOpenPacer().Forget(run.endpoint.ID)
			s.emitCircuitOpened(ctx, run.endpoint.ID, run.integration.ID)
		}
	}

	if classification.Retry && run.fanOut {
		retry := WebhookRetryTask{
			EventID:       run.event.ID,
			IntegrationID: run.integration.ID,
			EndpointID:    run.endpoint.ID,
			Attempt:       run.attempt + 1,
			Timeout:       s.retryTimeout(classification, run.timeout),
		}
		if nextRetryAt != nil && classification.RetryDelay != nil {
			retry.NotBefore = *nextRetryAt
		}
		if enqueueErr := s.enqueuer.Enqueue(ctx, retry.Message()); enqueueErr != nil {
			return deliveryOutcome{}, enqueueErr
		}
		outcome.label = "retry_scheduled"
	}
	return outcome, nil
}

// retryTimeout doubles the per-request deadline after a timeout so slow
// destinations get one slower chance; other error types keep the deadline
// they failed with.
func (s *Service) retryTimeout(classification Classification, current time.Duration) time.Duration {
	if classification.ErrorType != ErrorTypeTimeout {
		return current
	}
	if s.config.Transport.RetryTimeout > 0 {
		return s.config.Transport.RetryTimeout
	}
	return current * 2
}

func (s *Service) parkForReplay(ctx context.Context, endpoint Endpoint, integration Integration, event Event) (ReplayQueueItem, error) {
	item, err := s.breaker.EnqueueForReplay(ctx, EnqueueReplayInput{
		EndpointID:     endpoint.ID,
		EventID:        event.ID,
		CorrelationKey: s.correlationKeyFor(integration.Provider, event.Payload),
	})
	if err != nil {
		return ReplayQueueItem{}, err
	}
	s.logInfo(ctx, "event queued for replay", map[string]any{
		"event_id":       event.ID,
		"endpoint_id":    endpoint.ID,
		"integration_id": integration.ID,
		"position":       item.Position,
	})
	return item, nil
}

// throttleHalfOpen spaces HALF_OPEN deliveries at least one throttle gap
// apart per endpoint, so a recovering destination is not flooded.
func (s *Service) throttleHalfOpen(ctx context.Context, endpoint Endpoint) error {
	if endpoint.CircuitState != CircuitHalfOpen {
		return nil
	}
	wait := s.halfOpenPacer().Reserve(endpoint.ID)
	if wait <= 0 {
		return nil
	}
	return waitWithContext(ctx, wait)
}

func (s *Service) resolveEndpoint(ctx context.Context, endpointID, integrationID string) (Endpoint, bool, error) {
	if endpointID != "" {
		endpoint, err := s.endpointStore.Get(ctx, endpointID)
		if err != nil {
			if errors.Is(err, ErrEndpointNotFound) {
				return Endpoint{}, false, nil
			}
			return Endpoint{}, false, err
		}
		return endpoint, true, nil
	}
	endpoint, err := s.endpointStore.GetByIntegration(ctx, integrationID)
	if err != nil {
		if errors.Is(err, ErrEndpointNotFound) {
			return Endpoint{}, false, nil
		}
		return Endpoint{}, false, err
	}
	return endpoint, true, nil
}

func (s *Service) nextDeliveryAttempt(ctx context.Context, eventID string) (int, error) {
	deliveries, err := s.deliveryStore.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, delivery := range deliveries {
		if delivery.Attempt > highest {
			highest = delivery.Attempt
		}
	}
	return highest + 1, nil
}

func (s *Service) correlationKeyFor(provider Provider, payload map[string]any) string {
	if s == nil || s.registry == nil {
		return ""
	}
	adapter, ok := s.registry.Get(provider)
	if !ok || adapter == nil {
		return ""
	}
	return adapter.CorrelationKey(payload)
}

func (s *Service) emitCircuitOpened(ctx context.Context, endpointID, integrationID string) {
	task := CircuitOpenedTask{EndpointID: endpointID, IntegrationID: integrationID}
	if err := s.enqueuer.Enqueue(ctx, task.Message()); err != nil {
		s.logError(ctx, "circuit opened task enqueue failed", map[string]any{
			"endpoint_id":    endpointID,
			"integration_id": integrationID,
			"error":          err.Error(),
		})
		return
	}
	s.logInfo(ctx, "circuit opened", map[string]any{
		"endpoint_id":    endpointID,
		"integration_id": integrationID,
	})
}

// emitStepCompleted is best effort: downstream flow tooling listens for it,
// but a full queue never fails the delivery that already happened.
func (s *Service) emitStepCompleted(ctx context.Context, run deliveryRun) {
	task := StepCompletedTask{
		EventID:       run.event.ID,
		IntegrationID: run.integration.ID,
		Step:          "delivery",
		Attempt:       run.attempt,
	}
	if err := s.enqueuer.Enqueue(ctx, task.Message()); err != nil {
		s.logError(ctx, "step completed task enqueue failed", map[string]any{
			"event_id": run.event.ID,
			"error":    err.Error(),
		})
	}
}

func (s *Service) requireDeliveryDeps() error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if s.eventStore == nil || s.integrationStore == nil || s.endpointStore == nil || s.deliveryStore == nil {
		return fmt.Errorf("core: delivery requires event, integration, endpoint, and delivery stores")
	}
	if s.transport == nil {
		return fmt.Errorf("core: delivery transport is required")
	}
	if s.breaker == nil {
		return fmt.Errorf("core: circuit breaker is required")
	}
	if s.enqueuer == nil {
		return fmt.Errorf("core: job enqueuer is required")
	}
	return nil
}

func (s *Service) classifier() DeliveryClassifier {
	return DeliveryClassifier{
		RateLimitFallback:   s.config.Worker.RateLimitFallback,
		ServiceUnavailDelay: s.config.Worker.ServiceUnavailDelay,
		Now:                 s.clock,
	}
}

func deliveryBody(event Event) ([]byte, error) {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: marshal event %s payload: %w", event.ID, err)
	}
	return body, nil
}

func deliverySucceeded(result DeliveryResult) bool {
	return result.ErrMessage == "" && result.StatusCode >= 200 && result.StatusCode < 300
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
