package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig          Config
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
	clock                  func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRegistry(registry Registry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithIntegrationStore(store IntegrationStore) Option {
	return func(b *serviceBuilder) {
		b.integrationStore = store
	}
}

func WithEndpointStore(store EndpointStore) Option {
	return func(b *serviceBuilder) {
		b.endpointStore = store
	}
}

func WithEventStore(store EventStore) Option {
	return func(b *serviceBuilder) {
		b.eventStore = store
	}
}

func WithDeliveryStore(store DeliveryStore) Option {
	return func(b *serviceBuilder) {
		b.deliveryStore = store
	}
}

func WithReplayQueueStore(store ReplayQueueStore) Option {
	return func(b *serviceBuilder) {
		b.replayQueueStore = store
	}
}

func WithReconciliationRunStore(store ReconciliationRunStore) Option {
	return func(b *serviceBuilder) {
		b.reconciliationRunStore = store
	}
}

func WithDeliveryTransport(transport DeliveryTransport) Option {
	return func(b *serviceBuilder) {
		b.transport = transport
	}
}

func WithHealthProbe(probe HealthProbe) Option {
	return func(b *serviceBuilder) {
		b.healthProbe = probe
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.enqueuer = enqueuer
	}
}

func WithCredentialSealer(sealer CredentialSealer) Option {
	return func(b *serviceBuilder) {
		b.sealer = sealer
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("hookwise", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		registry:        NewProviderRegistry(),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	putSection(layer, "ingest", sectionMap(includeZero, map[string]any{
		"max_body_bytes":   cfg.Ingest.MaxBodyBytes,
		"stripe_tolerance": cfg.Ingest.StripeTolerance,
	}))
	putSection(layer, "breaker", sectionMap(includeZero, map[string]any{
		"window_size":            cfg.Breaker.WindowSize,
		"min_window":             cfg.Breaker.MinWindow,
		"success_rate_threshold": cfg.Breaker.SuccessRateThreshold,
		"open_after_failures":    cfg.Breaker.OpenAfterFailures,
		"probe_successes":        cfg.Breaker.ProbeSuccesses,
		"half_open_close_after":  cfg.Breaker.HalfOpenCloseAfter,
		"half_open_reopen_after": cfg.Breaker.HalfOpenReopenAfter,
	}))
	putSection(layer, "transport", sectionMap(includeZero, map[string]any{
		"timeout":          cfg.Transport.Timeout,
		"retry_timeout":    cfg.Transport.RetryTimeout,
		"max_body_capture": cfg.Transport.MaxBodyCapture,
		"user_agent":       cfg.Transport.UserAgent,
	}))
	putSection(layer, "worker", sectionMap(includeZero, map[string]any{
		"half_open_throttle":        cfg.Worker.HalfOpenThrottle,
		"rate_limit_fallback":       cfg.Worker.RateLimitFallback,
		"service_unavailable_delay": cfg.Worker.ServiceUnavailDelay,
	}))
	putSection(layer, "prober", sectionMap(includeZero, map[string]any{
		"interval": cfg.Prober.Interval,
		"timeout":  cfg.Prober.Timeout,
	}))
	replaySection := sectionMap(includeZero, map[string]any{
		"batch_size":         cfg.Replay.BatchSize,
		"tier_advance_after": cfg.Replay.TierAdvanceAfter,
		"skip_after_attempt": cfg.Replay.SkipAfterAttempt,
		"min_sleep":          cfg.Replay.MinSleep,
	})
	if includeZero || len(cfg.Replay.RateTiers) > 0 {
		replaySection["rate_tiers"] = append([]int(nil), cfg.Replay.RateTiers...)
	}
	putSection(layer, "replay", replaySection)
	putSection(layer, "reconcile", sectionMap(includeZero, map[string]any{
		"interval":  cfg.Reconcile.Interval,
		"lookback":  cfg.Reconcile.Lookback,
		"page_size": cfg.Reconcile.PageSize,
	}))
	putSection(layer, "sweeper", sectionMap(includeZero, map[string]any{
		"interval":   cfg.Sweeper.Interval,
		"orphan_age": cfg.Sweeper.OrphanAge,
		"batch_size": cfg.Sweeper.BatchSize,
	}))
	putSection(layer, "security", sectionMap(includeZero, map[string]any{
		"credential_key": cfg.Security.CredentialKey,
	}))
	return layer
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) == 0 {
		return
	}
	layer[key] = section
}

func sectionMap(includeZero bool, values map[string]any) map[string]any {
	section := map[string]any{}
	for key, value := range values {
		if includeZero || !isZeroLayerValue(value) {
			section[key] = value
		}
	}
	return section
}

func isZeroLayerValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case int:
		return typed == 0
	case int64:
		return typed == 0
	case float64:
		return typed == 0
	case time.Duration:
		return typed == 0
	case bool:
		return !typed
	default:
		return false
	}
}
