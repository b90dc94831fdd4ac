package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[IngestWebhookMessage]        = (*IngestWebhookCommand)(nil)
	_ gocmd.Commander[CreateIntegrationMessage]    = (*CreateIntegrationCommand)(nil)
	_ gocmd.Commander[UpdateIntegrationMessage]    = (*UpdateIntegrationCommand)(nil)
	_ gocmd.Commander[PauseIntegrationMessage]     = (*PauseIntegrationCommand)(nil)
	_ gocmd.Commander[ResumeIntegrationMessage]    = (*ResumeIntegrationCommand)(nil)
	_ gocmd.Commander[DeleteIntegrationMessage]    = (*DeleteIntegrationCommand)(nil)
	_ gocmd.Commander[RequestReplayMessage]        = (*RequestReplayCommand)(nil)
	_ gocmd.Commander[ReconcileIntegrationMessage] = (*ReconcileIntegrationCommand)(nil)
)
