package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/Mithrandiirr/hookwise/core"
)

type MutatingService interface {
	IngestWebhook(ctx context.Context, req core.IngestRequest) (core.IngestResult, error)
	CreateIntegration(ctx context.Context, req core.CreateIntegrationRequest) (core.Integration, error)
	UpdateIntegration(ctx context.Context, id string, req core.UpdateIntegrationRequest) (core.Integration, error)
	PauseIntegration(ctx context.Context, id string, reason string) (core.Integration, error)
	ResumeIntegration(ctx context.Context, id string) (core.Integration, error)
	DeleteIntegration(ctx context.Context, id string) error
	RequestReplay(ctx context.Context, req core.ReplayRequest) (core.ReplayRequestResult, error)
	ReconcileIntegration(ctx context.Context, integrationID string) (core.ReconciliationRun, error)
}

type IngestWebhookCommand struct {
	service MutatingService
}

func NewIngestWebhookCommand(service MutatingService) *IngestWebhookCommand {
	return &IngestWebhookCommand{service: service}
}

func (c *IngestWebhookCommand) Execute(ctx context.Context, msg IngestWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	out, err := c.service.IngestWebhook(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateIntegrationCommand struct {
	service MutatingService
}

func NewCreateIntegrationCommand(service MutatingService) *CreateIntegrationCommand {
	return &CreateIntegrationCommand{service: service}
}

func (c *CreateIntegrationCommand) Execute(ctx context.Context, msg CreateIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: integration service is required")
	}
	out, err := c.service.CreateIntegration(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateIntegrationCommand struct {
	service MutatingService
}

func NewUpdateIntegrationCommand(service MutatingService) *UpdateIntegrationCommand {
	return &UpdateIntegrationCommand{service: service}
}

func (c *UpdateIntegrationCommand) Execute(ctx context.Context, msg UpdateIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: integration service is required")
	}
	out, err := c.service.UpdateIntegration(ctx, msg.ID, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PauseIntegrationCommand struct {
	service MutatingService
}

func NewPauseIntegrationCommand(service MutatingService) *PauseIntegrationCommand {
	return &PauseIntegrationCommand{service: service}
}

func (c *PauseIntegrationCommand) Execute(ctx context.Context, msg PauseIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: integration service is required")
	}
	out, err := c.service.PauseIntegration(ctx, msg.ID, msg.Reason)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ResumeIntegrationCommand struct {
	service MutatingService
}

func NewResumeIntegrationCommand(service MutatingService) *ResumeIntegrationCommand {
	return &ResumeIntegrationCommand{service: service}
}

func (c *ResumeIntegrationCommand) Execute(ctx context.Context, msg ResumeIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: integration service is required")
	}
	out, err := c.service.ResumeIntegration(ctx, msg.ID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteIntegrationCommand struct {
	service MutatingService
}

func NewDeleteIntegrationCommand(service MutatingService) *DeleteIntegrationCommand {
	return &DeleteIntegrationCommand{service: service}
}

func (c *DeleteIntegrationCommand) Execute(ctx context.Context, msg DeleteIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: integration service is required")
	}
	return c.service.DeleteIntegration(ctx, msg.ID)
}

type RequestReplayCommand struct {
	service MutatingService
}

func NewRequestReplayCommand(service MutatingService) *RequestReplayCommand {
	return &RequestReplayCommand{service: service}
}

func (c *RequestReplayCommand) Execute(ctx context.Context, msg RequestReplayMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: replay service is required")
	}
	out, err := c.service.RequestReplay(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReconcileIntegrationCommand struct {
	service MutatingService
}

func NewReconcileIntegrationCommand(service MutatingService) *ReconcileIntegrationCommand {
	return &ReconcileIntegrationCommand{service: service}
}

func (c *ReconcileIntegrationCommand) Execute(ctx context.Context, msg ReconcileIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconciliation service is required")
	}
	out, err := c.service.ReconcileIntegration(ctx, msg.IntegrationID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
