package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownProvider                    = errors.New("core: unknown provider")
	ErrInvalidIntegrationStatusTransition = errors.New("core: invalid integration status transition")
	ErrInvalidCircuitStateTransition      = errors.New("core: invalid circuit state transition")
	ErrInvalidReplayStatusTransition      = errors.New("core: invalid replay status transition")
	ErrInvalidDeliveryStatusTransition    = errors.New("core: invalid delivery status transition")
	ErrIntegrationNotFound                = errors.New("core: integration not found")
	ErrIntegrationNotActive               = errors.New("core: integration is not active")
	ErrEndpointNotFound                   = errors.New("core: endpoint not found")
	ErrEventNotFound                      = errors.New("core: event not found")
	ErrDeliveryNotFound                   = errors.New("core: delivery not found")
	ErrReplayItemNotFound                 = errors.New("core: replay item not found")
)

type Provider string

const (
	ProviderStripe  Provider = "stripe"
	ProviderShopify Provider = "shopify"
	ProviderGitHub  Provider = "github"
)

func ParseProvider(value string) (Provider, error) {
	switch Provider(strings.TrimSpace(strings.ToLower(value))) {
	case ProviderStripe:
		return ProviderStripe, nil
	case ProviderShopify:
		return ProviderShopify, nil
	case ProviderGitHub:
		return ProviderGitHub, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, value)
	}
}

type IntegrationStatus string

const (
	IntegrationStatusActive IntegrationStatus = "active"
	IntegrationStatusPaused IntegrationStatus = "paused"
	IntegrationStatusError  IntegrationStatus = "error"
)

type Integration struct {
	ID               string
	OwnerID          string
	Provider         Provider
	SigningSecret    string
	DestinationURL   string
	Status           IntegrationStatus
	ForwardInvalid   bool
	SealedCredential []byte
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (i *Integration) TransitionTo(status IntegrationStatus, reason string, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == status {
		i.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			i.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !integrationTransitionAllowed(i.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidIntegrationStatusTransition, i.Status, status)
	}
	i.Status = status
	i.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		i.LastError = strings.TrimSpace(reason)
	}
	if status == IntegrationStatusActive {
		i.LastError = ""
	}
	return nil
}

func integrationTransitionAllowed(current, next IntegrationStatus) bool {
	allowed := map[IntegrationStatus]map[IntegrationStatus]struct{}{
		IntegrationStatusActive: {
			IntegrationStatusPaused: {},
			IntegrationStatusError:  {},
		},
		IntegrationStatusPaused: {
			IntegrationStatusActive: {},
			IntegrationStatusError:  {},
		},
		IntegrationStatusError: {
			IntegrationStatusActive: {},
			IntegrationStatusPaused: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitHalfOpen CircuitState = "half_open"
	CircuitOpen     CircuitState = "open"
)

func (s CircuitState) Valid() bool {
	switch s {
	case CircuitClosed, CircuitHalfOpen, CircuitOpen:
		return true
	default:
		return false
	}
}

// Endpoint carries the mutable delivery-health state for one integration.
// Counter and state mutations happen under the endpoint row lock; see the
// EndpointStore contract.
type Endpoint struct {
	ID                        string
	IntegrationID             string
	CircuitState              CircuitState
	SuccessRate               float64
	AvgResponseMS             float64
	ConsecutiveFailures       int
	ConsecutiveSuccesses      int
	ConsecutiveProbeSuccesses int
	LastProbeAt               *time.Time
	StateChangedAt            time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// TransitionTo moves the circuit to next, stamps state_changed_at, and resets
// the counters that have no meaning in the new state. The consecutive-failure
// count survives a trip to OPEN so the crossing value stays observable.
func (e *Endpoint) TransitionTo(next CircuitState, now time.Time) error {
	if e == nil {
		return nil
	}
	if e.CircuitState == next {
		e.UpdatedAt = now
		return nil
	}
	if !circuitTransitionAllowed(e.CircuitState, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidCircuitStateTransition, e.CircuitState, next)
	}
	e.CircuitState = next
	e.StateChangedAt = now
	e.UpdatedAt = now
	switch next {
	case CircuitOpen:
		e.ConsecutiveSuccesses = 0
		e.ConsecutiveProbeSuccesses = 0
	case CircuitHalfOpen:
		e.ConsecutiveFailures = 0
		e.ConsecutiveSuccesses = 0
		e.ConsecutiveProbeSuccesses = 0
	case CircuitClosed:
		e.ConsecutiveFailures = 0
		e.ConsecutiveProbeSuccesses = 0
	}
	return nil
}

func circuitTransitionAllowed(current, next CircuitState) bool {
	allowed := map[CircuitState]map[CircuitState]struct{}{
		CircuitClosed: {
			CircuitOpen: {},
		},
		CircuitOpen: {
			CircuitHalfOpen: {},
		},
		CircuitHalfOpen: {
			CircuitClosed: {},
			CircuitOpen:   {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type EventSource string

const (
	EventSourceWebhook        EventSource = "webhook"
	EventSourceReconciliation EventSource = "reconciliation"
)

// Event is immutable once inserted; the raw payload is the canonical body the
// destination receives, byte-for-byte.
type Event struct {
	ID              string
	IntegrationID   string
	EventType       string
	Payload         map[string]any
	Headers         map[string]string
	ReceivedAt      time.Time
	SignatureValid  bool
	ProviderEventID string
	Source          EventSource
}

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusDeadLetter DeliveryStatus = "dead_letter"
)

func deliveryTransitionAllowed(current, next DeliveryStatus) bool {
	allowed := map[DeliveryStatus]map[DeliveryStatus]struct{}{
		DeliveryStatusPending: {
			DeliveryStatusDelivered:  {},
			DeliveryStatusFailed:     {},
			DeliveryStatusDeadLetter: {},
		},
		DeliveryStatusFailed: {
			DeliveryStatusDeadLetter: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type ErrorType string

const (
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeSSL               ErrorType = "ssl"
	ErrorTypeConnectionRefused ErrorType = "connection_refused"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Delivery records one attempt against the destination. Attempt numbers are
// 1-based and totally order the attempts for an event.
type Delivery struct {
	ID             string
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

func (d *Delivery) TransitionTo(next DeliveryStatus) error {
	if d == nil {
		return nil
	}
	if d.Status == next {
		return nil
	}
	if !deliveryTransitionAllowed(d.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryStatusTransition, d.Status, next)
	}
	d.Status = next
	return nil
}

type ReplayStatus string

const (
	ReplayStatusPending    ReplayStatus = "pending"
	ReplayStatusDelivering ReplayStatus = "delivering"
	ReplayStatusDelivered  ReplayStatus = "delivered"
	ReplayStatusFailed     ReplayStatus = "failed"
	ReplayStatusSkipped    ReplayStatus = "skipped"
)

// ReplayQueueItem is one per-endpoint ordered buffer slot. Position strictly
// increases per endpoint and equals arrival order.
type ReplayQueueItem struct {
	ID             string
	EndpointID     string
	EventID        string
	Position       int64
	CorrelationKey string
	Status         ReplayStatus
	Attempts       int
	CreatedAt      time.Time
	DeliveredAt    *time.Time
}

func (r *ReplayQueueItem) TransitionTo(next ReplayStatus) error {
	if r == nil {
		return nil
	}
	if r.Status == next {
		return nil
	}
	if !replayTransitionAllowed(r.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidReplayStatusTransition, r.Status, next)
	}
	r.Status = next
	return nil
}

func replayTransitionAllowed(current, next ReplayStatus) bool {
	allowed := map[ReplayStatus]map[ReplayStatus]struct{}{
		ReplayStatusPending: {
			ReplayStatusDelivering: {},
			ReplayStatusDelivered:  {},
			ReplayStatusSkipped:    {},
		},
		ReplayStatusDelivering: {
			ReplayStatusDelivered: {},
			ReplayStatusPending:   {},
			ReplayStatusFailed:    {},
			ReplayStatusSkipped:   {},
		},
		ReplayStatusFailed: {
			ReplayStatusPending: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// ReconciliationRun is the immutable audit record of one pull cycle.
type ReconciliationRun struct {
	ID                  string
	IntegrationID       string
	ProviderEventsFound int
	LocalEventsFound    int
	GapsDetected        int
	GapsResolved        int
	RanAt               time.Time
}
