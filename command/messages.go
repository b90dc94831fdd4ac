package command

import (
	"strings"

	"github.com/Mithrandiirr/hookwise/core"
)

const (
	TypeIngestWebhook        = "hookwise.command.webhook.ingest"
	TypeCreateIntegration    = "hookwise.command.integration.create"
	TypeUpdateIntegration    = "hookwise.command.integration.update"
	TypePauseIntegration     = "hookwise.command.integration.pause"
	TypeResumeIntegration    = "hookwise.command.integration.resume"
	TypeDeleteIntegration    = "hookwise.command.integration.delete"
	TypeRequestReplay        = "hookwise.command.replay.request"
	TypeReconcileIntegration = "hookwise.command.reconciliation.run"
)

type IngestWebhookMessage struct {
	Request core.IngestRequest
}

func (IngestWebhookMessage) Type() string { return TypeIngestWebhook }

func (m IngestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Request.IntegrationID) == "" {
		return commandValidationError("integration_id", "integration id is required")
	}
	if len(m.Request.Body) == 0 {
		return commandValidationError("body", "webhook body is required")
	}
	return nil
}

type CreateIntegrationMessage struct {
	Request core.CreateIntegrationRequest
}

func (CreateIntegrationMessage) Type() string { return TypeCreateIntegration }

func (m CreateIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.Request.OwnerID) == "" {
		return commandValidationError("owner_id", "owner id is required")
	}
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.SigningSecret) == "" {
		return commandValidationError("signing_secret", "signing secret is required")
	}
	if strings.TrimSpace(m.Request.DestinationURL) == "" {
		return commandValidationError("destination_url", "destination url is required")
	}
	return nil
}

type UpdateIntegrationMessage struct {
	ID      string
	Request core.UpdateIntegrationRequest
}

func (UpdateIntegrationMessage) Type() string { return TypeUpdateIntegration }

func (m UpdateIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "integration id is required")
	}
	if m.Request.SigningSecret == nil &&
		m.Request.DestinationURL == nil &&
		m.Request.ForwardInvalid == nil &&
		m.Request.Credential == nil {
		return commandValidationError("request", "at least one field must be set")
	}
	return nil
}

type PauseIntegrationMessage struct {
	ID     string
	Reason string
}

func (PauseIntegrationMessage) Type() string { return TypePauseIntegration }

func (m PauseIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "integration id is required")
	}
	return nil
}

type ResumeIntegrationMessage struct {
	ID string
}

func (ResumeIntegrationMessage) Type() string { return TypeResumeIntegration }

func (m ResumeIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "integration id is required")
	}
	return nil
}

type DeleteIntegrationMessage struct {
	ID string
}

func (DeleteIntegrationMessage) Type() string { return TypeDeleteIntegration }

func (m DeleteIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "integration id is required")
	}
	return nil
}

type RequestReplayMessage struct {
	Request core.ReplayRequest
}

func (RequestReplayMessage) Type() string { return TypeRequestReplay }

func (m RequestReplayMessage) Validate() error {
	if len(m.Request.EventIDs) == 0 {
		return commandValidationError("event_ids", "at least one event id is required")
	}
	for _, id := range m.Request.EventIDs {
		if strings.TrimSpace(id) == "" {
			return commandValidationError("event_ids", "event ids must not be blank")
		}
	}
	return nil
}

type ReconcileIntegrationMessage struct {
	IntegrationID string
}

func (ReconcileIntegrationMessage) Type() string { return TypeReconcileIntegration }

func (m ReconcileIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationID) == "" {
		return commandValidationError("integration_id", "integration id is required")
	}
	return nil
}
