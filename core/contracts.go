package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Task topics published through the job queue. Payload schemas live in
// tasks.go next to the enqueue helpers.
const (
	TopicWebhookReceived = "webhook/received"
	TopicWebhookRetry    = "webhook/retry"
	TopicCircuitOpened   = "endpoint/circuit-opened"
	TopicReplayStarted   = "endpoint/replay-started"
	TopicStepCompleted   = "flow/step-completed"
	TopicAnomalyDetected = "anomaly/detected"
)

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// VerificationResult is what a provider verifier extracts from one inbound
// webhook request. EventType and ProviderEventID are populated on a best
// effort basis even when the signature check fails, so invalid events can
// still be stored for inspection.
type VerificationResult struct {
	SignatureValid  bool
	EventType       string
	ProviderEventID string
	FailureReason   string
}

// WebhookVerifier validates a raw webhook body against provider headers.
// Header keys are expected in canonical lowercase form.
type WebhookVerifier interface {
	Verify(secret string, headers map[string]string, body []byte) VerificationResult
}

// ProviderEvent is one event fetched from a provider's API during
// reconciliation, normalized across providers.
type ProviderEvent struct {
	ID        string
	EventType string
	CreatedAt time.Time
	Payload   map[string]any
}

// Reconciler pages through a provider's event history so missed webhooks can
// be detected. Providers without a usable listing API return false from
// SupportsReconciliation on their adapter and never reach this interface.
type Reconciler interface {
	FetchEvents(ctx context.Context, credential string, since, until time.Time) ([]ProviderEvent, error)
}

// ProviderAdapter bundles everything HookWise knows about one upstream
// provider: signature verification, payload correlation, and the optional
// reconciliation client.
type ProviderAdapter interface {
	ID() Provider
	Verifier() WebhookVerifier
	CorrelationKey(payload map[string]any) string
	SupportsReconciliation() bool
	Reconciler() Reconciler
}

type CreateIntegrationInput struct {
	OwnerID          string
	Provider         Provider
	SigningSecret    string
	DestinationURL   string
	ForwardInvalid   *bool
	SealedCredential []byte
}

type UpdateIntegrationInput struct {
	SigningSecret    *string
	DestinationURL   *string
	ForwardInvalid   *bool
	SealedCredential *[]byte
}

type IntegrationFilter struct {
	OwnerID  string
	Provider Provider
	Status   IntegrationStatus
	Page     int
	PerPage  int
}

type IntegrationStore interface {
	Create(ctx context.Context, in CreateIntegrationInput) (Integration, error)
	Get(ctx context.Context, id string) (Integration, error)
	List(ctx context.Context, filter IntegrationFilter) ([]Integration, int, error)
	Update(ctx context.Context, id string, in UpdateIntegrationInput) (Integration, error)
	UpdateStatus(ctx context.Context, id string, status IntegrationStatus, reason string) (Integration, error)
	ListReconcilable(ctx context.Context) ([]Integration, error)
	Delete(ctx context.Context, id string) error
}

// DeliverySample is one delivery outcome inside the breaker's sliding
// window, newest first.
type DeliverySample struct {
	Success        bool
	ResponseTimeMS int64
}

// EndpointMutator runs inside the endpoint row lock. Mutations applied to
// endpoint are persisted when the callback returns nil.
type EndpointMutator func(endpoint *Endpoint, window []DeliverySample) error

type EnqueueReplayInput struct {
	EndpointID     string
	EventID        string
	CorrelationKey string
}

// EndpointStore persists per-endpoint circuit health. MutateLocked and
// EnqueueReplay both take the endpoint row lock so concurrent recorders
// serialize; windowLimit controls how many recent delivery samples are
// loaded for the callback (0 skips the window query).
type EndpointStore interface {
	Create(ctx context.Context, integrationID string) (Endpoint, error)
	Get(ctx context.Context, id string) (Endpoint, error)
	GetByIntegration(ctx context.Context, integrationID string) (Endpoint, error)
	ListByState(ctx context.Context, state CircuitState) ([]Endpoint, error)
	MutateLocked(ctx context.Context, endpointID string, windowLimit int, fn EndpointMutator) (Endpoint, error)
	EnqueueReplay(ctx context.Context, in EnqueueReplayInput) (ReplayQueueItem, error)
	NextReplayPosition(ctx context.Context, endpointID string) (int64, error)
}

type CreateEventInput struct {
	IntegrationID   string
	EventType       string
	Payload         map[string]any
	Headers         map[string]string
	SignatureValid  bool
	ProviderEventID string
	Source          EventSource
	ReceivedAt      time.Time
}

type EventFilter struct {
	IntegrationID  string
	EventType      string
	Source         EventSource
	SignatureValid *bool
	Page           int
	PerPage        int
}

type EventStore interface {
	Create(ctx context.Context, in CreateEventInput) (Event, error)
	Get(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, filter EventFilter) ([]Event, int, error)
	// ProviderEventIDs returns the set of provider event IDs received for an
	// integration since the given instant, webhook and reconciliation
	// sources alike.
	ProviderEventIDs(ctx context.Context, integrationID string, since time.Time) (map[string]struct{}, error)
	// ListUndelivered returns events received before the cutoff that have no
	// delivery row and are not waiting in a replay queue, oldest first.
	ListUndelivered(ctx context.Context, cutoff time.Time, limit int) ([]Event, error)
}

type CreateDeliveryInput struct {
	EventID        string
	EndpointID     string
	Status         DeliveryStatus
	StatusCode     int
	ResponseTimeMS int64
	ResponseBody   string
	ErrorType      ErrorType
	Attempt        int
	AttemptedAt    time.Time
	NextRetryAt    *time.Time
}

type DeliveryFilter struct {
	EventID    string
	EndpointID string
	Status     DeliveryStatus
	Page       int
	PerPage    int
}

// DeliveryStore records delivery attempts. Create is idempotent on
// (event_id, attempt): replaying the same attempt returns the existing row
// with deduped set.
type DeliveryStore interface {
	Create(ctx context.Context, in CreateDeliveryInput) (rec Delivery, deduped bool, err error)
	Get(ctx context.Context, id string) (Delivery, error)
	List(ctx context.Context, filter DeliveryFilter) ([]Delivery, int, error)
	ListByEvent(ctx context.Context, eventID string) ([]Delivery, error)
	MarkStatus(ctx context.Context, id string, status DeliveryStatus) (Delivery, error)
	// HasDeliveredProviderEvent reports whether any event carrying the same
	// provider event ID already has a delivered delivery, excluding the
	// event being considered.
	HasDeliveredProviderEvent(ctx context.Context, integrationID, providerEventID, excludeEventID string) (bool, error)
}

type ReplayQueueStore interface {
	PendingBatch(ctx context.Context, endpointID string, limit int) ([]ReplayQueueItem, error)
	// MarkDelivering flips a pending item to delivering and increments its
	// attempt count. claimed is false when another drainer got there first.
	MarkDelivering(ctx context.Context, id string) (item ReplayQueueItem, claimed bool, err error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkSkipped(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	Requeue(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (ReplayQueueItem, error)
	CountPending(ctx context.Context, endpointID string) (int, error)
}

type CreateReconciliationRunInput struct {
	IntegrationID       string
	ProviderEventsFound int
	LocalEventsFound    int
	GapsDetected        int
	GapsResolved        int
	RanAt               time.Time
}

type ReconciliationRunStore interface {
	Create(ctx context.Context, in CreateReconciliationRunInput) (ReconciliationRun, error)
	List(ctx context.Context, integrationID string, limit int) ([]ReconciliationRun, error)
}

type StoreProvider interface {
	Integrations() IntegrationStore
	Endpoints() EndpointStore
	Events() EventStore
	Deliveries() DeliveryStore
	ReplayQueue() ReplayQueueStore
	ReconciliationRuns() ReconciliationRunStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// DeliveryRequest describes one forward attempt to a destination endpoint.
// RetryCount is the number of prior attempts for the event, zero on the
// first delivery; the transport only stamps the retry header when it is
// positive.
type DeliveryRequest struct {
	URL           string
	Body          []byte
	EventID       string
	IntegrationID string
	Timeout       time.Duration
	RetryCount    int
	Replay        bool
}

// DeliveryResult captures the outcome of a forward attempt. Transport level
// failures (refused connections, TLS errors, timeouts) are reported through
// ErrMessage with a zero StatusCode rather than an error return, so the
// classifier sees every outcome the same way.
type DeliveryResult struct {
	StatusCode     int
	Body           string
	ResponseTimeMS int64
	RetryAfter     string
	ErrMessage     string
}

type DeliveryTransport interface {
	Deliver(ctx context.Context, req DeliveryRequest) (DeliveryResult, error)
}

type ProbeResult struct {
	Success    bool
	StatusCode int
	ErrMessage string
}

// HealthProbe checks whether a destination endpoint is reachable, without
// delivering a payload.
type HealthProbe interface {
	Probe(ctx context.Context, url string) ProbeResult
}

// CredentialSealer protects provider API credentials at rest.
type CredentialSealer interface {
	Seal(plaintext string) ([]byte, error)
	Open(sealed []byte) (string, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}
