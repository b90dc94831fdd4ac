package core

import (
	"context"
	"fmt"

	"github.com/Mithrandiirr/hookwise/ratelimit"
)

// ReplayStats summarizes one drain of an endpoint's replay queue.
type ReplayStats struct {
	Delivered int
	Deduped   int
	Skipped   int
	Failed    int
	// Aborted is set when the circuit reopened mid-drain; the remaining
	// items stay queued for the next HALF_OPEN window.
	Aborted bool
}

func (s ReplayStats) Total() int {
	return s.Delivered + s.Deduped + s.Skipped + s.Failed
}

// HandleReplayStarted consumes one endpoint/replay-started task and drains
// the endpoint's replay queue in buffered order.
func (s *Service) HandleReplayStarted(ctx context.Context, task ReplayStartedTask) (err error) {
	startedAt := s.now()
	fields := map[string]any{
		"endpoint_id":    task.EndpointID,
		"integration_id": task.IntegrationID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "replay_drain", err, fields)
	}()

	stats, drainErr := s.DrainReplayQueue(ctx, task.EndpointID)
	fields["delivered"] = stats.Delivered
	fields["deduped"] = stats.Deduped
	fields["skipped"] = stats.Skipped
	fields["failed"] = stats.Failed
	fields["aborted"] = stats.Aborted
	if drainErr != nil {
		err = s.mapError(drainErr)
		return err
	}
	return nil
}

// DrainReplayQueue replays buffered events for one endpoint, oldest
// position first. Delivery is paced by the rate tier ladder: each run of
// consecutive successes advances one tier, any failure drops back to the
// first. Items that have already burned their attempt budget are skipped,
// and events whose provider event id already reached the destination are
// marked delivered without another POST. The drain stops when the queue is
// empty or the circuit reopens.
func (s *Service) DrainReplayQueue(ctx context.Context, endpointID string) (ReplayStats, error) {
	stats := ReplayStats{}
	if err := s.requireReplayDeps(); err != nil {
		return stats, err
	}

	endpoint, err := s.endpointStore.Get(ctx, endpointID)
	if err != nil {
		return stats, err
	}
	if endpoint.CircuitState == CircuitOpen {
		stats.Aborted = true
		return stats, nil
	}
	integration, err := s.integrationStore.Get(ctx, endpoint.IntegrationID)
	if err != nil {
		return stats, err
	}
	if integration.Status != IntegrationStatusActive {
		stats.Aborted = true
		return stats, nil
	}

	policy := ratelimit.NewTierPolicy(s.config.Replay.RateTiers, s.config.Replay.TierAdvanceAfter)
	batchSize := s.config.Replay.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().Replay.BatchSize
	}

	for {
		if ctx != nil && ctx.Err() != nil {
			return stats, ctx.Err()
		}
		batch, batchErr := s.replayQueueStore.PendingBatch(ctx, endpoint.ID, batchSize)
		if batchErr != nil {
			return stats, batchErr
		}
		if len(batch) == 0 {
			return stats, nil
		}

		progressed := 0
		for _, item := range batch {
			if ctx != nil && ctx.Err() != nil {
				return stats, ctx.Err()
			}
			outcome, itemErr := s.replayItem(ctx, endpoint, integration, item, policy)
			if itemErr != nil {
				return stats, itemErr
			}
			switch outcome {
			case replayOutcomeDelivered:
				stats.Delivered++
				progressed++
			case replayOutcomeDeduped:
				stats.Deduped++
				progressed++
			case replayOutcomeSkipped:
				stats.Skipped++
				progressed++
			case replayOutcomeFailed:
				stats.Failed++
				progressed++
			case replayOutcomeAborted:
				stats.Failed++
				stats.Aborted = true
				return stats, nil
			case replayOutcomeUnclaimed:
			}
		}
		// A pass with no progress means another drainer owns the batch.
		if progressed == 0 {
			return stats, nil
		}
	}
}

type replayOutcome int

const (
	replayOutcomeUnclaimed replayOutcome = iota
	replayOutcomeDelivered
	replayOutcomeDeduped
	replayOutcomeSkipped
	replayOutcomeFailed
	replayOutcomeAborted
)

func (s *Service) replayItem(
	ctx context.Context,
	endpoint Endpoint,
	integration Integration,
	item ReplayQueueItem,
	policy *ratelimit.TierPolicy,
) (replayOutcome, error) {
	if s.config.Replay.SkipAfterAttempt > 0 && item.Attempts >= s.config.Replay.SkipAfterAttempt {
		if err := s.replayQueueStore.MarkSkipped(ctx, item.ID); err != nil {
			return replayOutcomeUnclaimed, err
		}
		s.emitReplaySkipped(ctx, endpoint, integration, item)
		return replayOutcomeSkipped, nil
	}

	event, err := s.eventStore.Get(ctx, item.EventID)
	if err != nil {
		return replayOutcomeUnclaimed, err
	}

	if event.ProviderEventID != "" {
		already, dupErr := s.deliveryStore.HasDeliveredProviderEvent(ctx, integration.ID, event.ProviderEventID, event.ID)
		if dupErr != nil {
			return replayOutcomeUnclaimed, dupErr
		}
		if already {
			if err := s.replayQueueStore.MarkDelivered(ctx, item.ID, s.now()); err != nil {
				return replayOutcomeUnclaimed, err
			}
			return replayOutcomeDeduped, nil
		}
	}

	claimedItem, claimed, claimErr := s.replayQueueStore.MarkDelivering(ctx, item.ID)
	if claimErr != nil {
		return replayOutcomeUnclaimed, claimErr
	}
	if !claimed {
		return replayOutcomeUnclaimed, nil
	}

	if wait := policy.Interval(); wait >= s.config.Replay.MinSleep {
		if waitErr := waitWithContext(ctx, wait); waitErr != nil {
			// Leave the claim requeued so a later drain picks it up.
			_ = s.replayQueueStore.Requeue(ctx, claimedItem.ID)
			return replayOutcomeUnclaimed, waitErr
		}
	}

	attempt, attemptErr := s.nextDeliveryAttempt(ctx, event.ID)
	if attemptErr != nil {
		return replayOutcomeUnclaimed, attemptErr
	}

	body, bodyErr := deliveryBody(event)
	if bodyErr != nil {
		return replayOutcomeUnclaimed, bodyErr
	}
	result, deliverErr := s.transport.Deliver(ctx, DeliveryRequest{
		URL:           integration.DestinationURL,
		Body:          body,
		EventID:       event.ID,
		IntegrationID: integration.ID,
		Timeout:       s.config.Transport.Timeout,
		RetryCount:    attempt - 1,
		Replay:        true,
	})
	if deliverErr != nil {
		_ = s.replayQueueStore.Requeue(ctx, claimedItem.ID)
		return replayOutcomeUnclaimed, deliverErr
	}

	if deliverySucceeded(result) {
		if _, _, createErr := s.deliveryStore.Create(ctx, CreateDeliveryInput{
			EventID:        event.ID,
			EndpointID:     endpoint.ID,
			Status:         DeliveryStatusDelivered,
			StatusCode:     result.StatusCode,
			ResponseTimeMS: result.ResponseTimeMS,
			ResponseBody:   result.Body,
			Attempt:        attempt,
			AttemptedAt:    s.now(),
		}); createErr != nil {
			return replayOutcomeUnclaimed, createErr
		}
		if err := s.replayQueueStore.MarkDelivered(ctx, claimedItem.ID, s.now()); err != nil {
			return replayOutcomeUnclaimed, err
		}
		policy.RecordSuccess()
		transition, recordErr := s.breaker.RecordDelivery(ctx, endpoint.ID, RecordDeliveryInput{
			Success:        true,
			ResponseTimeMS: result.ResponseTimeMS,
		})
		if recordErr != nil {
			return replayOutcomeUnclaimed, recordErr
		}
		if transition.Closed() {
			s.halfOpenPacer().Forget(endpoint.ID)
			s.logInfo(ctx, "circuit closed during replay", map[string]any{
				"endpoint_id":    endpoint.ID,
				"integration_id": integration.ID,
			})
		}
		return replayOutcomeDelivered, nil
	}

	classification := s.classifier().Classify(result.StatusCode, result.ErrMessage, result.RetryAfter)
	responseBody := result.Body
	if responseBody == "" {
		responseBody = result.ErrMessage
	}
	if _, _, createErr := s.deliveryStore.Create(ctx, CreateDeliveryInput{
		EventID:        event.ID,
		EndpointID:     endpoint.ID,
		Status:         DeliveryStatusFailed,
		StatusCode:     result.StatusCode,
		ResponseTimeMS: result.ResponseTimeMS,
		ResponseBody:   responseBody,
		ErrorType:      classification.ErrorType,
		Attempt:        attempt,
		AttemptedAt:    s.now(),
	}); createErr != nil {
		return replayOutcomeUnclaimed, createErr
	}
	if err := s.replayQueueStore.Requeue(ctx, claimedItem.ID); err != nil {
		return replayOutcomeUnclaimed, err
	}
	policy.RecordFailure()

	transition, recordErr := s.breaker.RecordDelivery(ctx, endpoint.ID, RecordDeliveryInput{
		Success:        false,
		ResponseTimeMS: result.ResponseTimeMS,
		ForceOpen:      classification.OpenCircuit,
	})
	if recordErr != nil {
		return replayOutcomeUnclaimed, recordErr
	}
	if transition.Opened() {
		s.halfOpenPacer().Forget(endpoint.ID)
		s.emitCircuitOpened(ctx, endpoint.ID, integration.ID)
		return replayOutcomeAborted, nil
	}
	return replayOutcomeFailed, nil
}

// emitReplaySkipped flags the skipped event so operators can replay it by
// hand once the destination recovers for real.
func (s *Service) emitReplaySkipped(ctx context.Context, endpoint Endpoint, integration Integration, item ReplayQueueItem) {
	task := AnomalyDetectedTask{
		IntegrationID: integration.ID,
		EndpointID:    endpoint.ID,
		Kind:          "replay_skipped",
		Detail:        fmt.Sprintf("event %s exhausted %d replay attempts", item.EventID, item.Attempts),
		Count:         1,
	}
	if err := s.enqueuer.Enqueue(ctx, task.Message()); err != nil {
		s.logError(ctx, "replay skipped task enqueue failed", map[string]any{
			"event_id": item.EventID,
			"error":    err.Error(),
		})
	}
}

func (s *Service) requireReplayDeps() error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if s.replayQueueStore == nil {
		return fmt.Errorf("core: replay queue store is required")
	}
	if s.eventStore == nil || s.integrationStore == nil || s.endpointStore == nil || s.deliveryStore == nil {
		return fmt.Errorf("core: replay requires event, integration, endpoint, and delivery stores")
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
