package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type integrationRecord struct {
	bun.BaseModel `bun:"table:integrations,alias:itg"`

	ID               string     `bun:"id,pk"`
	OwnerID          string     `bun:"owner_id,notnull"`
	Provider         string     `bun:"provider,notnull"`
	SigningSecret    string     `bun:"signing_secret,notnull"`
	DestinationURL   string     `bun:"destination_url,notnull"`
	Status           string     `bun:"status,notnull"`
	ForwardInvalid   bool       `bun:"forward_invalid,notnull"`
	SealedCredential []byte     `bun:"sealed_credential"`
	LastError        string     `bun:"last_error"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt        *time.Time `bun:"deleted_at,soft_delete"`
}

type endpointRecord struct {
	bun.BaseModel `bun:"table:endpoints,alias:ep"`

	ID                        string     `bun:"id,pk"`
	IntegrationID             string     `bun:"integration_id,notnull"`
	CircuitState              string     `bun:"circuit_state,notnull"`
	SuccessRate               float64    `bun:"success_rate,notnull"`
	AvgResponseMS             float64    `bun:"avg_response_ms,notnull"`
	ConsecutiveFailures       int        `bun:"consecutive_failures,notnull"`
	ConsecutiveSuccesses      int        `bun:"consecutive_successes,notnull"`
	ConsecutiveProbeSuccesses int        `bun:"consecutive_probe_successes,notnull"`
	LastProbeAt               *time.Time `bun:"last_probe_at,nullzero"`
	StateChangedAt            time.Time  `bun:"state_changed_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt                 time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                 time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type eventRecord struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID              string            `bun:"id,pk"`
	IntegrationID   string            `bun:"integration_id,notnull"`
	EventType       string            `bun:"event_type,notnull"`
	Payload         map[string]any    `bun:"payload,type:jsonb,notnull"`
	Headers         map[string]string `bun:"headers,type:jsonb,notnull"`
	ReceivedAt      time.Time         `bun:"received_at,nullzero,notnull"`
	SignatureValid  bool              `bun:"signature_valid,notnull"`
	ProviderEventID string            `bun:"provider_event_id"`
	Source          string            `bun:"source,notnull"`
	CreatedAt       time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:deliveries,alias:dl"`

	ID             string     `bun:"id,pk"`
	EventID        string     `bun:"event_id,notnull"`
	EndpointID     string     `bun:"endpoint_id,notnull"`
	Status         string     `bun:"status,notnull"`
	StatusCode     int        `bun:"status_code"`
	ResponseTimeMS int64      `bun:"response_time_ms"`
	ResponseBody   string     `bun:"response_body"`
	ErrorType      string     `bun:"error_type"`
	Attempt        int        `bun:"attempt,notnull"`
	AttemptedAt    time.Time  `bun:"attempted_at,nullzero,notnull"`
	NextRetryAt    *time.Time `bun:"next_retry_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type replayItemRecord struct {
	bun.BaseModel `bun:"table:replay_queue,alias:rq"`

	ID             string     `bun:"id,pk"`
	EndpointID     string     `bun:"endpoint_id,notnull"`
	EventID        string     `bun:"event_id,notnull"`
	Position       int64      `bun:"position,notnull"`
	CorrelationKey string     `bun:"correlation_key"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	DeliveredAt    *time.Time `bun:"delivered_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type reconciliationRunRecord struct {
	bun.BaseModel `bun:"table:reconciliation_runs,alias:rr"`

	ID                  string    `bun:"id,pk"`
	IntegrationID       string    `bun:"integration_id,notnull"`
	ProviderEventsFound int       `bun:"provider_events_found,notnull"`
	LocalEventsFound    int       `bun:"local_events_found,notnull"`
	GapsDetected        int       `bun:"gaps_detected,notnull"`
	GapsResolved        int       `bun:"gaps_resolved,notnull"`
	RanAt               time.Time `bun:"ran_at,nullzero,notnull"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
