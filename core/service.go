package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/ratelimit"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the webhook intermediation engine: it verifies and stores
// inbound events, forwards them to destinations, and owns the management
// surface the command/query layer exposes.
type Service struct {
	config                 Config
	logger                 Logger
	loggerProvider         LoggerProvider
	metricsRecorder        MetricsRecorder
	errorFactory           ErrorFactory
	errorMapper            ErrorMapper
	persistenceClient      any
	repositoryFactory      any
	configProvider         ConfigProvider
	optionsResolver        OptionsResolver
	registry               Registry
	integrationStore       IntegrationStore
	endpointStore          EndpointStore
	eventStore             EventStore
	deliveryStore          DeliveryStore
	replayQueueStore       ReplayQueueStore
	reconciliationRunStore ReconciliationRunStore
	transport              DeliveryTransport
	healthProbe            HealthProbe
	enqueuer               JobEnqueuer
	sealer                 CredentialSealer
	breaker                *CircuitBreaker
	halfOpenThrottle       *ratelimit.Throttle
	clock                  func() time.Time
}

type ServiceDependencies struct {
	Logger                 Logger
	LoggerProvider         LoggerProvider
	MetricsRecorder        MetricsRecorder
	ErrorFactory           ErrorFactory
	ErrorMapper            ErrorMapper
	PersistenceClient      any
	RepositoryFactory      any
	ConfigProvider         ConfigProvider
	OptionsResolver        OptionsResolver
	Registry               Registry
	IntegrationStore       IntegrationStore
	EndpointStore          EndpointStore
	EventStore             EventStore
	DeliveryStore          DeliveryStore
	ReplayQueueStore       ReplayQueueStore
	ReconciliationRunStore ReconciliationRunStore
	Transport              DeliveryTransport
	HealthProbe            HealthProbe
	Enqueuer               JobEnqueuer
	Sealer                 CredentialSealer
	Breaker                *CircuitBreaker
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("hookwise", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("hookwise"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.enqueuer == nil {
		builder.enqueuer = NewMemoryQueue(0)
	}
	if builder.clock == nil {
		builder.clock = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.missingStores() && builder.repositoryFactory != nil {
		var storeProvider StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
			storeProvider = direct
		}
		if storeProvider != nil {
			builder.adoptStores(storeProvider)
		}
	}

	breaker := builder.breakerFromStores(finalConfig.Breaker)
	halfOpenThrottle := ratelimit.NewThrottle(finalConfig.Worker.HalfOpenThrottle)
	halfOpenThrottle.Now = builder.clock

	return &Service{
		config:                 finalConfig,
		logger:                 logger,
		loggerProvider:         provider,
		metricsRecorder:        builder.metricsRecorder,
		errorFactory:           builder.errorFactory,
		errorMapper:            builder.errorMapper,
		persistenceClient:      builder.persistenceClient,
		repositoryFactory:      builder.repositoryFactory,
		configProvider:         builder.configProvider,
		optionsResolver:        builder.optionsResolver,
		registry:               builder.registry,
		integrationStore:       builder.integrationStore,
		endpointStore:          builder.endpointStore,
		eventStore:             builder.eventStore,
		deliveryStore:          builder.deliveryStore,
		replayQueueStore:       builder.replayQueueStore,
		reconciliationRunStore: builder.reconciliationRunStore,
		transport:              builder.transport,
		healthProbe:            builder.healthProbe,
		enqueuer:               builder.enqueuer,
		sealer:                 builder.sealer,
		breaker:                breaker,
		halfOpenThrottle:       halfOpenThrottle,
		clock:                  builder.clock,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func (b *serviceBuilder) missingStores() bool {
	return b.integrationStore == nil ||
		b.endpointStore == nil ||
		b.eventStore == nil ||
		b.deliveryStore == nil ||
		b.replayQueueStore == nil ||
		b.reconciliationRunStore == nil
}

func (b *serviceBuilder) adoptStores(provider StoreProvider) {
	if b.integrationStore == nil {
		b.integrationStore = provider.Integrations()
	}
	if b.endpointStore == nil {
		b.endpointStore = provider.Endpoints()
	}
	if b.eventStore == nil {
		b.eventStore = provider.Events()
	}
	if b.deliveryStore == nil {
		b.deliveryStore = provider.Deliveries()
	}
	if b.replayQueueStore == nil {
		b.replayQueueStore = provider.ReplayQueue()
	}
	if b.reconciliationRunStore == nil {
		b.reconciliationRunStore = provider.ReconciliationRuns()
	}
}

func (b *serviceBuilder) breakerFromStores(cfg BreakerConfig) *CircuitBreaker {
	if b.endpointStore == nil {
		return nil
	}
	breaker, err := NewCircuitBreaker(b.endpointStore, cfg)
	if err != nil {
		return nil
	}
	if b.clock != nil {
		breaker.now = b.clock
	}
	return breaker
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Breaker() *CircuitBreaker {
	if s == nil {
		return nil
	}
	return s.breaker
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Enqueuer() JobEnqueuer {
	if s == nil {
		return nil
	}
	return s.enqueuer
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:                 s.logger,
		LoggerProvider:         s.loggerProvider,
		MetricsRecorder:        s.metricsRecorder,
		ErrorFactory:           s.errorFactory,
		ErrorMapper:            s.errorMapper,
		PersistenceClient:      s.persistenceClient,
		RepositoryFactory:      s.repositoryFactory,
		ConfigProvider:         s.configProvider,
		OptionsResolver:        s.optionsResolver,
		Registry:               s.registry,
		IntegrationStore:       s.integrationStore,
		EndpointStore:          s.endpointStore,
		EventStore:             s.eventStore,
		DeliveryStore:          s.deliveryStore,
		ReplayQueueStore:       s.replayQueueStore,
		ReconciliationRunStore: s.reconciliationRunStore,
		Transport:              s.transport,
		HealthProbe:            s.healthProbe,
		Enqueuer:               s.enqueuer,
		Sealer:                 s.sealer,
		Breaker:                s.breaker,
	}
}

type CreateIntegrationRequest struct {
	OwnerID        string
	Provider       string
	SigningSecret  string
	DestinationURL string
	ForwardInvalid *bool
	// Credential is the provider API credential used for reconciliation.
	// It is sealed before it reaches storage and never logged.
	Credential string
}

func (s *Service) CreateIntegration(ctx context.Context, req CreateIntegrationRequest) (integration Integration, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"provider": req.Provider,
		"owner_id": req.OwnerID,
	}
	defer func() {
		if integration.ID != "" {
			fields["integration_id"] = integration.ID
		}
		s.observeOperation(ctx, startedAt, "integration_create", err, fields)
	}()

	if s == nil || s.integrationStore == nil || s.endpointStore == nil {
		err = s.mapError(fmt.Errorf("core: integration and endpoint stores are required"))
		return Integration{}, err
	}
	providerID, parseErr := ParseProvider(req.Provider)
	if parseErr != nil {
		err = s.mapError(parseErr)
		return Integration{}, err
	}
	if s.registry != nil {
		if _, ok := s.registry.Get(providerID); !ok {
			err = s.mapError(fmt.Errorf("%w: %s has no registered adapter", ErrUnknownProvider, providerID))
			return Integration{}, err
		}
	}

	sealed, sealErr := s.sealCredential(req.Credential)
	if sealErr != nil {
		err = s.mapError(sealErr)
		return Integration{}, err
	}

	created, createErr := s.integrationStore.Create(ctx, CreateIntegrationInput{
		OwnerID:          req.OwnerID,
		Provider:         providerID,
		SigningSecret:    req.SigningSecret,
		DestinationURL:   req.DestinationURL,
		ForwardInvalid:   req.ForwardInvalid,
		SealedCredential: sealed,
	})
	if createErr != nil {
		err = s.mapError(createErr)
		return Integration{}, err
	}

	if _, endpointErr := s.endpointStore.Create(ctx, created.ID); endpointErr != nil {
		_ = s.integrationStore.Delete(ctx, created.ID)
		err = s.mapError(endpointErr)
		return Integration{}, err
	}

	return created, nil
}

func (s *Service) GetIntegration(ctx context.Context, id string) (Integration, error) {
	if s == nil || s.integrationStore == nil {
		return Integration{}, s.mapError(fmt.Errorf("core: integration store is required"))
	}
	integration, err := s.integrationStore.Get(ctx, id)
	if err != nil {
		return Integration{}, s.mapError(err)
	}
	return integration, nil
}

func (s *Service) ListIntegrations(ctx context.Context, filter IntegrationFilter) ([]Integration, int, error) {
	if s == nil || s.integrationStore == nil {
		return nil, 0, s.mapError(fmt.Errorf("core: integration store is required"))
	}
	integrations, total, err := s.integrationStore.List(ctx, filter)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return integrations, total, nil
}

type UpdateIntegrationRequest struct {
	SigningSecret  *string
	DestinationURL *string
	ForwardInvalid *bool
	// Credential replaces the sealed reconciliation credential. An empty
	// non-nil value clears it.
	Credential *string
}

func (s *Service) UpdateIntegration(ctx context.Context, id string, req UpdateIntegrationRequest) (integration Integration, err error) {
	startedAt := s.now()
	fields := map[string]any{"integration_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "integration_update", err, fields)
	}()

	if s == nil || s.integrationStore == nil {
		err = s.mapError(fmt.Errorf("core: integration store is required"))
		return Integration{}, err
	}

	update := UpdateIntegrationInput{
		SigningSecret:  req.SigningSecret,
		DestinationURL: req.DestinationURL,
		ForwardInvalid: req.ForwardInvalid,
	}
	if req.Credential != nil {
		if strings.TrimSpace(*req.Credential) == "" {
			empty := []byte(nil)
			update.SealedCredential = &empty
		} else {
			sealed, sealErr := s.sealCredential(*req.Credential)
			if sealErr != nil {
				err = s.mapError(sealErr)
				return Integration{}, err
			}
			update.SealedCredential = &sealed
		}
	}

	updated, updateErr := s.integrationStore.Update(ctx, id, update)
	if updateErr != nil {
		err = s.mapError(updateErr)
		return Integration{}, err
	}
	return updated, nil
}

func (s *Service) PauseIntegration(ctx context.Context, id, reason string) (Integration, error) {
	return s.transitionIntegration(ctx, id, IntegrationStatusPaused, reason, "integration_pause")
}

func (s *Service) ResumeIntegration(ctx context.Context, id string) (Integration, error) {
	return s.transitionIntegration(ctx, id, IntegrationStatusActive, "", "integration_resume")
}

func (s *Service) transitionIntegration(ctx context.Context, id string, status IntegrationStatus, reason, operation string) (integration Integration, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"integration_id": id,
		"target_status":  string(status),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, operation, err, fields)
	}()

	if s == nil || s.integrationStore == nil {
		err = s.mapError(fmt.Errorf("core: integration store is required"))
		return Integration{}, err
	}
	updated, updateErr := s.integrationStore.UpdateStatus(ctx, id, status, reason)
	if updateErr != nil {
		err = s.mapError(updateErr)
		return Integration{}, err
	}
	return updated, nil
}

// DeleteIntegration refuses to drop an integration that still has stored
// events; pause it instead and let retention expire the history first.
func (s *Service) DeleteIntegration(ctx context.Context, id string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"integration_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "integration_delete", err, fields)
	}()

	if s == nil || s.integrationStore == nil || s.eventStore == nil {
		err = s.mapError(fmt.Errorf("core: integration and event stores are required"))
		return err
	}

	_, total, listErr := s.eventStore.List(ctx, EventFilter{IntegrationID: id, Page: 1, PerPage: 1})
	if listErr != nil {
		err = s.mapError(listErr)
		return err
	}
	if total > 0 {
		err = s.mapError(s.errorFactory(
			fmt.Sprintf("core: integration %s still has %d stored events", strings.TrimSpace(id), total),
			goerrors.CategoryConflict,
		).WithTextCode(ErrorCodeConflict))
		return err
	}
	if deleteErr := s.integrationStore.Delete(ctx, id); deleteErr != nil {
		err = s.mapError(deleteErr)
		return err
	}
	return nil
}

func (s *Service) GetEndpointStatus(ctx context.Context, integrationID string) (Endpoint, error) {
	if s == nil || s.endpointStore == nil {
		return Endpoint{}, s.mapError(fmt.Errorf("core: endpoint store is required"))
	}
	endpoint, err := s.endpointStore.GetByIntegration(ctx, integrationID)
	if err != nil {
		return Endpoint{}, s.mapError(err)
	}
	return endpoint, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (Event, error) {
	if s == nil || s.eventStore == nil {
		return Event{}, s.mapError(fmt.Errorf("core: event store is required"))
	}
	event, err := s.eventStore.Get(ctx, id)
	if err != nil {
		return Event{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, filter EventFilter) ([]Event, int, error) {
	if s == nil || s.eventStore == nil {
		return nil, 0, s.mapError(fmt.Errorf("core: event store is required"))
	}
	events, total, err := s.eventStore.List(ctx, filter)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	return events, total, nil
}

func (s *Service) ListEventDeliveries(ctx context.Context, eventID string) ([]Delivery, error) {
	if s == nil || s.deliveryStore == nil {
		return nil, s.mapError(fmt.Errorf("core: delivery store is required"))
	}
	if s.eventStore != nil {
		if _, err := s.eventStore.Get(ctx, eventID); err != nil {
			return nil, s.mapError(err)
		}
	}
	deliveries, err := s.deliveryStore.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return deliveries, nil
}

func (s *Service) ListReconciliationRuns(ctx context.Context, integrationID string, limit int) ([]ReconciliationRun, error) {
	if s == nil || s.reconciliationRunStore == nil {
		return nil, s.mapError(fmt.Errorf("core: reconciliation run store is required"))
	}
	runs, err := s.reconciliationRunStore.List(ctx, integrationID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return runs, nil
}

type ReplayRequest struct {
	EventIDs []string
}

type ReplayRequestResult struct {
	Queued  []string
	Missing []string
	Skipped []string
}

// RequestReplay re-emits webhook/received for the given events. Events
// whose integration is not active are reported as skipped; unknown ids as
// missing. The delivery worker assigns the next attempt number, so a
// replayed event keeps its full delivery history.
func (s *Service) RequestReplay(ctx context.Context, req ReplayRequest) (result ReplayRequestResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"requested": len(req.EventIDs)}
	defer func() {
		fields["queued"] = len(result.Queued)
		fields["missing"] = len(result.Missing)
		fields["skipped"] = len(result.Skipped)
		s.observeOperation(ctx, startedAt, "replay_request", err, fields)
	}()

	if s == nil || s.eventStore == nil || s.integrationStore == nil {
		err = s.mapError(fmt.Errorf("core: event and integration stores are required"))
		return ReplayRequestResult{}, err
	}
	if s.enqueuer == nil {
		err = s.mapError(fmt.Errorf("core: job enqueuer is required"))
		return ReplayRequestResult{}, err
	}
	if len(req.EventIDs) == 0 {
		err = s.mapError(fmt.Errorf("core: at least one event id is required"))
		return ReplayRequestResult{}, err
	}

	for _, rawID := range req.EventIDs {
		eventID := strings.TrimSpace(rawID)
		if eventID == "" {
			continue
		}
		event, getErr := s.eventStore.Get(ctx, eventID)
		if getErr != nil {
			if errors.Is(getErr, ErrEventNotFound) {
				result.Missing = append(result.Missing, eventID)
				continue
			}
			err = s.mapError(getErr)
			return ReplayRequestResult{}, err
		}
		integration, intErr := s.integrationStore.Get(ctx, event.IntegrationID)
		if intErr != nil {
			result.Skipped = append(result.Skipped, eventID)
			continue
		}
		if integration.Status != IntegrationStatusActive {
			result.Skipped = append(result.Skipped, eventID)
			continue
		}
		task := WebhookReceivedTask{
			EventID:        event.ID,
			IntegrationID:  integration.ID,
			DestinationURL: integration.DestinationURL,
		}
		if enqueueErr := s.enqueuer.Enqueue(ctx, task.Message()); enqueueErr != nil {
			err = s.mapError(enqueueErr)
			return ReplayRequestResult{}, err
		}
		result.Queued = append(result.Queued, event.ID)
	}
	return result, nil
}

func (s *Service) sealCredential(credential string) ([]byte, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, nil
	}
	if s == nil || s.sealer == nil {
		return nil, fmt.Errorf("core: credential sealer is not configured")
	}
	return s.sealer.Seal(credential)
}

func (s *Service) openCredential(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", fmt.Errorf("core: integration has no reconciliation credential")
	}
	if s == nil || s.sealer == nil {
		return "", fmt.Errorf("core: credential sealer is not configured")
	}
	return s.sealer.Open(sealed)
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock()
}

func (s *Service) halfOpenPacer() *ratelimit.Throttle {
	if s == nil {
		return nil
	}
	return s.halfOpenThrottle
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
