package hookwise

import "github.com/Mithrandiirr/hookwise/core"

type Config = core.Config

type BreakerConfig = core.BreakerConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type IntegrationStore = core.IntegrationStore
type EndpointStore = core.EndpointStore
type EventStore = core.EventStore
type DeliveryStore = core.DeliveryStore
type ReplayQueueStore = core.ReplayQueueStore
type ReconciliationRunStore = core.ReconciliationRunStore
type DeliveryTransport = core.DeliveryTransport
type HealthProbe = core.HealthProbe
type JobEnqueuer = core.JobEnqueuer
type CredentialSealer = core.CredentialSealer

type CreateIntegrationRequest = core.CreateIntegrationRequest
type UpdateIntegrationRequest = core.UpdateIntegrationRequest

type IngestRequest = core.IngestRequest
type IngestResult = core.IngestResult

type ReplayRequest = core.ReplayRequest
type ReplayRequestResult = core.ReplayRequestResult

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorFactory           = core.WithErrorFactory
	WithErrorMapper            = core.WithErrorMapper
	WithPersistenceClient      = core.WithPersistenceClient
	WithRepositoryFactory      = core.WithRepositoryFactory
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithRegistry               = core.WithRegistry
	WithIntegrationStore       = core.WithIntegrationStore
	WithEndpointStore          = core.WithEndpointStore
	WithEventStore             = core.WithEventStore
	WithDeliveryStore          = core.WithDeliveryStore
	WithReplayQueueStore       = core.WithReplayQueueStore
	WithReconciliationRunStore = core.WithReconciliationRunStore
	WithDeliveryTransport      = core.WithDeliveryTransport
	WithHealthProbe            = core.WithHealthProbe
	WithJobEnqueuer            = core.WithJobEnqueuer
	WithCredentialSealer       = core.WithCredentialSealer
	WithClock                  = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
