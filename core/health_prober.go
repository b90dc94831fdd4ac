package core

import (
	"context"
	"fmt"
)

// ProbeStats summarizes one prober pass over the OPEN endpoints.
type ProbeStats struct {
	Probed     int
	Healthy    int
	HalfOpened int
}

// RunHealthProbes checks every OPEN endpoint once. Three consecutive
// healthy probes move an endpoint to HALF_OPEN; that edge wakes the replay
// engine exactly once via endpoint/replay-started.
func (s *Service) RunHealthProbes(ctx context.Context) (stats ProbeStats, err error) {
	startedAt := s.now()
	fields := map[string]any{}
	defer func() {
		fields["probed"] = stats.Probed
		fields["healthy"] = stats.Healthy
		fields["half_opened"] = stats.HalfOpened
		s.observeOperation(ctx, startedAt, "health_probe", err, fields)
	}()

	if validateErr := s.requireProberDeps(); validateErr != nil {
		err = s.mapError(validateErr)
		return stats, err
	}

	endpoints, listErr := s.endpointStore.ListByState(ctx, CircuitOpen)
	if listErr != nil {
		err = s.mapError(listErr)
		return stats, err
	}

	for _, endpoint := range endpoints {
		if ctx != nil && ctx.Err() != nil {
			err = s.mapError(ctx.Err())
			return stats, err
		}
		integration, getErr := s.integrationStore.Get(ctx, endpoint.IntegrationID)
		if getErr != nil {
			s.logError(ctx, "probe skipped, integration lookup failed", map[string]any{
				"endpoint_id": endpoint.ID,
				"error":       getErr.Error(),
			})
			continue
		}
		if integration.Status != IntegrationStatusActive {
			continue
		}

		stats.Probed++
		result := s.probeDestination(ctx, integration.DestinationURL)
		if result.Success {
			stats.Healthy++
		}

		transition, recordErr := s.breaker.RecordHealthCheck(ctx, endpoint.ID, result.Success)
		if recordErr != nil {
			s.logError(ctx, "probe result not recorded", map[string]any{
				"endpoint_id": endpoint.ID,
				"error":       recordErr.Error(),
			})
			continue
		}
		if transition.HalfOpened() {
			stats.HalfOpened++
			s.emitReplayStarted(ctx, endpoint.ID, integration.ID)
		}
	}
	return stats, nil
}

func (s *Service) probeDestination(ctx context.Context, url string) ProbeResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := s.config.Prober.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.healthProbe.Probe(ctx, url)
}

// RunProber loops RunHealthProbes on the configured interval until the
// context is cancelled. Pass failures are logged and the loop keeps going.
func (s *Service) RunProber(ctx context.Context) error {
	if err := s.requireProberDeps(); err != nil {
		return s.mapError(err)
	}
	interval := s.config.Prober.Interval
	if interval <= 0 {
		interval = DefaultConfig().Prober.Interval
	}
	for {
		if err := waitWithContext(ctx, interval); err != nil {
			return err
		}
		if _, err := s.RunHealthProbes(ctx); err != nil {
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			s.logError(ctx, "health probe pass failed", map[string]any{"error": err.Error()})
		}
	}
}

func (s *Service) emitReplayStarted(ctx context.Context, endpointID, integrationID string) {
	task := ReplayStartedTask{EndpointID: endpointID, IntegrationID: integrationID}
	if err := s.enqueuer.Enqueue(ctx, task.Message()); err != nil {
		s.logError(ctx, "replay started task enqueue failed", map[string]any{
			"endpoint_id":    endpointID,
			"integration_id": integrationID,
			"error":          err.Error(),
		})
		return
	}
	s.logInfo(ctx, "circuit half-open, replay scheduled", map[string]any{
		"endpoint_id":    endpointID,
		"integration_id": integrationID,
	})
}

func (s *Service) requireProberDeps() error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if s.endpointStore == nil || s.integrationStore == nil {
		return fmt.Errorf("core: prober requires endpoint and integration stores")
	}
	if s.healthProbe == nil {
		return fmt.Errorf("core: health probe is required")
	}
	if s.breaker == nil {
		return fmt.Errorf("core: circuit breaker is required")
	}
	if s.enqueuer == nil {
		return fmt.Errorf("core: job enqueuer is required")
	}
	return nil
}
