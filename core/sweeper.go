package core

import (
	"context"
	"fmt"
)

// SweepStats summarizes one orphan sweep.
type SweepStats struct {
	Scanned  int
	Requeued int
	Skipped  int
}

// SweepOrphans re-emits webhook/received for events that were stored but
// never picked up by the delivery worker, typically because the enqueue
// after the ingest write failed or the process died between the two. Only
// events older than the orphan age are considered, so in-flight events are
// never double-queued.
func (s *Service) SweepOrphans(ctx context.Context) (stats SweepStats, err error) {
	startedAt := s.now()
	fields := map[string]any{}
	defer func() {
		fields["scanned"] = stats.Scanned
		fields["requeued"] = stats.Requeued
		fields["skipped"] = stats.Skipped
		s.observeOperation(ctx, startedAt, "orphan_sweep", err, fields)
	}()

	if validateErr := s.requireSweeperDeps(); validateErr != nil {
		err = s.mapError(validateErr)
		return stats, err
	}

	orphanAge := s.config.Sweeper.OrphanAge
	if orphanAge <= 0 {
		orphanAge = DefaultConfig().Sweeper.OrphanAge
	}
	batchSize := s.config.Sweeper.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().Sweeper.BatchSize
	}
	cutoff := s.now().Add(-orphanAge)

	events, listErr := s.eventStore.ListUndelivered(ctx, cutoff, batchSize)
	if listErr != nil {
		err = s.mapError(listErr)
		return stats, err
	}

	for _, event := range events {
		if ctx != nil && ctx.Err() != nil {
			err = s.mapError(ctx.Err())
			return stats, err
		}
		stats.Scanned++

		integration, getErr := s.integrationStore.Get(ctx, event.IntegrationID)
		if getErr != nil {
			stats.Skipped++
			s.logError(ctx, "orphan skipped, integration lookup failed", map[string]any{
				"event_id": event.ID,
				"error":    getErr.Error(),
			})
			continue
		}
		if integration.Status != IntegrationStatusActive {
			stats.Skipped++
			continue
		}
		// Invalid-signature events without the forward toggle were stored
		// for inspection only; they are not orphans.
		if !event.SignatureValid && !integration.ForwardInvalid {
			stats.Skipped++
			continue
		}

		task := WebhookReceivedTask{
			EventID:        event.ID,
			IntegrationID:  integration.ID,
			DestinationURL: integration.DestinationURL,
		}
		if enqueueErr := s.enqueuer.Enqueue(ctx, task.Message()); enqueueErr != nil {
			stats.Skipped++
			s.logError(ctx, "orphan requeue failed", map[string]any{
				"event_id": event.ID,
				"error":    enqueueErr.Error(),
			})
			continue
		}
		stats.Requeued++
	}

	if stats.Requeued > 0 {
		s.emitOrphansDetected(ctx, stats.Requeued)
	}
	return stats, nil
}

func (s *Service) emitOrphansDetected(ctx context.Context, count int) {
	task := AnomalyDetectedTask{
		Kind:   "orphaned_events",
		Detail: fmt.Sprintf("%d stored events had no delivery attempt", count),
		Count:  count,
	}
	if err := s.enqueuer.Enqueue(ctx, task.Message()); err != nil {
		s.logError(ctx, "orphan anomaly task enqueue failed", map[string]any{"error": err.Error()})
	}
}

// RunSweeper loops SweepOrphans on the configured interval until the
// context is cancelled.
func (s *Service) RunSweeper(ctx context.Context) error {
	if err := s.requireSweeperDeps(); err != nil {
		return s.mapError(err)
	}
	interval := s.config.Sweeper.Interval
	if interval <= 0 {
		interval = DefaultConfig().Sweeper.Interval
	}
	for {
		if err := waitWithContext(ctx, interval); err != nil {
			return err
		}
		if _, err := s.SweepOrphans(ctx); err != nil {
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			s.logError(ctx, "orphan sweep failed", map[string]any{"error": err.Error()})
		}
	}
}

func (s *Service) requireSweeperDeps() error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if s.eventStore == nil || s.integrationStore == nil {
		return fmt.Errorf("core: sweeper requires event and integration stores")
	}
	if s.enqueuer == nil {
		return fmt.Errorf("core: job enqueuer is required")
	}
	return nil
}
