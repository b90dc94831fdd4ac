package core

import (
	"context"
	"fmt"
)

// ReconcileStats summarizes one reconciliation pass across integrations.
type ReconcileStats struct {
	Integrations int
	GapsDetected int
	GapsResolved int
	Failures     int
}

// RunReconciliation walks every reconcilable integration once, comparing
// the provider's event history against locally stored events and
// re-ingesting anything the webhook path missed. Per-integration failures
// are counted and logged without stopping the pass.
func (s *Service) RunReconciliation(ctx context.Context) (stats ReconcileStats, err error) {
	startedAt := s.now()
	fields := map[string]any{}
	defer func() {
		fields["integrations"] = stats.Integrations
		fields["gaps_detected"] = stats.GapsDetected
		fields["gaps_resolved"] = stats.GapsResolved
		fields["failures"] = stats.Failures
		s.observeOperation(ctx, startedAt, "reconciliation_pass", err, fields)
	}()

	if validateErr := s.requireReconcilerDeps(); validateErr != nil {
		err = s.mapError(validateErr)
		return stats, err
	}

	integrations, listErr := s.integrationStore.ListReconcilable(ctx)
	if listErr != nil {
		err = s.mapError(listErr)
		return stats, err
	}

	for _, integration := range integrations {
		if ctx != nil && ctx.Err() != nil {
			err = s.mapError(ctx.Err())
			return stats, err
		}
		run, runErr := s.ReconcileIntegration(ctx, integration.ID)
		if runErr != nil {
			stats.Failures++
			s.logError(ctx, "reconciliation failed", map[string]any{
				"integration_id": integration.ID,
				"provider":       string(integration.Provider),
				"error":          runErr.Error(),
			})
			continue
		}
		stats.Integrations++
		stats.GapsDetected += run.GapsDetected
		stats.GapsResolved += run.GapsResolved
	}
	return stats, nil
}

// ReconcileIntegration fetches the provider's recent event history and
// back-fills events the webhook path never received. Recovered events are
// stored with source=reconciliation and a valid signature flag, then follow
// the normal delivery path. A run row is recorded for every successful
// provider fetch, gap or no gap.
func (s *Service) ReconcileIntegration(ctx context.Context, integrationID string) (run ReconciliationRun, err error) {
	startedAt := s.now()
	fields := map[string]any{"integration_id": integrationID}
	defer func() {
		s.observeOperation(ctx, startedAt, "reconciliation_run", err, fields)
	}()

	if validateErr := s.requireReconcilerDeps(); validateErr != nil {
		err = s.mapError(validateErr)
		return ReconciliationRun{}, err
	}

	integration, getErr := s.integrationStore.Get(ctx, integrationID)
	if getErr != nil {
		err = s.mapError(getErr)
		return ReconciliationRun{}, err
	}
	fields["provider"] = string(integration.Provider)

	adapter, ok := s.registry.Get(integration.Provider)
	if !ok || adapter == nil {
		err = s.mapError(fmt.Errorf("%w: %s has no registered adapter", ErrUnknownProvider, integration.Provider))
		return ReconciliationRun{}, err
	}
	if !adapter.SupportsReconciliation() || adapter.Reconciler() == nil {
		err = s.mapError(fmt.Errorf("core: provider %s does not support reconciliation", integration.Provider))
		return ReconciliationRun{}, err
	}

	credential, credErr := s.openCredential(integration.SealedCredential)
	if credErr != nil {
		err = s.mapError(credErr)
		return ReconciliationRun{}, err
	}

	until := s.now()
	lookback := s.config.Reconcile.Lookback
	if lookback <= 0 {
		lookback = DefaultConfig().Reconcile.Lookback
	}
	since := until.Add(-lookback)

	providerEvents, fetchErr := adapter.Reconciler().FetchEvents(ctx, credential, since, until)
	if fetchErr != nil {
		err = s.mapError(fmt.Errorf("core: fetch provider events: %w", fetchErr))
		return ReconciliationRun{}, err
	}

	localIDs, localErr := s.eventStore.ProviderEventIDs(ctx, integration.ID, since)
	if localErr != nil {
		err = s.mapError(localErr)
		return ReconciliationRun{}, err
	}

	gaps := make([]ProviderEvent, 0)
	for _, providerEvent := range providerEvents {
		if providerEvent.ID == "" {
			continue
		}
		if _, seen := localIDs[providerEvent.ID]; seen {
			continue
		}
		gaps = append(gaps, providerEvent)
	}

	resolved := 0
	for _, gap := range gaps {
		if resolveErr := s.resolveGap(ctx, integration, gap); resolveErr != nil {
			s.logError(ctx, "reconciliation gap not resolved", map[string]any{
				"integration_id":    integration.ID,
				"provider_event_id": gap.ID,
				"error":             resolveErr.Error(),
			})
			continue
		}
		resolved++
	}

	run, createErr := s.reconciliationRunStore.Create(ctx, CreateReconciliationRunInput{
		IntegrationID:       integration.ID,
		ProviderEventsFound: len(providerEvents),
		LocalEventsFound:    len(localIDs),
		GapsDetected:        len(gaps),
		GapsResolved:        resolved,
		RanAt:               s.now(),
	})
	if createErr != nil {
		err = s.mapError(createErr)
		return ReconciliationRun{}, err
	}

	fields["gaps_detected"] = run.GapsDetected
	fields["gaps_resolved"] = run.GapsResolved
	if len(gaps) > 0 {
		s.emitReconciliationGap(ctx, integration, len(gaps))
	}
	return run, nil
}

// resolveGap stores a missed event and pushes it onto the normal delivery
// path. Reconciled events came from the provider's API over an
// authenticated call, so they carry signature_valid=true and no headers.
func (s *Service) resolveGap(ctx context.Context, integration Integration, gap ProviderEvent) error {
	event, createErr := s.eventStore.Create(ctx, CreateEventInput{
		IntegrationID:   integration.ID,
		EventType:       gap.EventType,
		Payload:         gap.Payload,
		Headers:         map[string]string{},
		SignatureValid:  true,
		ProviderEventID: gap.ID,
		Source:          EventSourceReconciliation,
		ReceivedAt:      s.now(),
	})
	if createErr != nil {
		return createErr
	}
	task := WebhookReceivedTask{
		EventID:        event.ID,
		IntegrationID:  integration.ID,
		DestinationURL: integration.DestinationURL,
	}
	return s.enqueuer.Enqueue(ctx, task.Message())
}

func (s *Service) emitReconciliationGap(ctx context.Context, integration Integration, count int) {
	task := AnomalyDetectedTask{
		IntegrationID: integration.ID,
		Kind:          "reconciliation_gap",
		Detail:        fmt.Sprintf("%d provider events missing from local history", count),
		Count:         count,
	}
	if err := s.enqueuer.Enqueue(ctx, task.Message()); err != nil {
		s.logError(ctx, "reconciliation gap task enqueue failed", map[string]any{
			"integration_id": integration.ID,
			"error":          err.Error(),
		})
	}
}

// RunReconciler loops RunReconciliation on the configured interval until
// the context is cancelled.
func (s *Service) RunReconciler(ctx context.Context) error {
	if err := s.requireReconcilerDeps(); err != nil {
		return s.mapError(err)
	}
	interval := s.config.Reconcile.Interval
	if interval <= 0 {
		interval = DefaultConfig().Reconcile.Interval
	}
	for {
		if err := waitWithContext(ctx, interval); err != nil {
			return err
		}
		if _, err := s.RunReconciliation(ctx); err != nil {
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			s.logError(ctx, "reconciliation pass failed", map[string]any{"error": err.Error()})
		}
	}
}

func (s *Service) requireReconcilerDeps() error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if s.integrationStore == nil || s.eventStore == nil {
		return fmt.Errorf("core: reconciler requires integration and event stores")
	}
	if s.reconciliationRunStore == nil {
		return fmt.Errorf("core: reconciliation run store is required")
	}
	if s.registry == nil {
		return fmt.Errorf("core: provider registry is required")
	}
	if s.enqueuer == nil {
		return fmt.Errorf("core: job enqueuer is required")
	}
	return nil
}
