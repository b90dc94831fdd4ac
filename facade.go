package hookwise

import (
	"fmt"

	hookwisecommand "github.com/Mithrandiirr/hookwise/command"
	hookwisequery "github.com/Mithrandiirr/hookwise/query"
)

// CommandQueryService is the surface the facade wires handlers against.
// *core.Service satisfies it; callers may substitute a decorated service
// as long as both the mutating and reader halves stay intact.
type CommandQueryService interface {
	hookwisecommand.MutatingService
	hookwisequery.IntegrationReader
	hookwisequery.EventReader
	hookwisequery.ReconciliationReader
}

type Commands struct {
	IngestWebhook        *hookwisecommand.IngestWebhookCommand
	CreateIntegration    *hookwisecommand.CreateIntegrationCommand
	UpdateIntegration    *hookwisecommand.UpdateIntegrationCommand
	PauseIntegration     *hookwisecommand.PauseIntegrationCommand
	ResumeIntegration    *hookwisecommand.ResumeIntegrationCommand
	DeleteIntegration    *hookwisecommand.DeleteIntegrationCommand
	RequestReplay        *hookwisecommand.RequestReplayCommand
	ReconcileIntegration *hookwisecommand.ReconcileIntegrationCommand
}

type Queries struct {
	GetIntegration         *hookwisequery.GetIntegrationQuery
	ListIntegrations       *hookwisequery.ListIntegrationsQuery
	GetEndpointStatus      *hookwisequery.GetEndpointStatusQuery
	GetEvent               *hookwisequery.GetEventQuery
	ListEvents             *hookwisequery.ListEventsQuery
	ListEventDeliveries    *hookwisequery.ListEventDeliveriesQuery
	ListReconciliationRuns *hookwisequery.ListReconciliationRunsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	eventReader hookwisequery.EventReader
}

// WithEventReader points the event queries at a dedicated reader, for
// example a read replica, instead of the service itself.
func WithEventReader(reader hookwisequery.EventReader) FacadeOption {
	return func(options *facadeOptions) {
		options.eventReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("hookwise: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	events := cfg.eventReader
	if events == nil {
		events = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		IngestWebhook:        hookwisecommand.NewIngestWebhookCommand(service),
		CreateIntegration:    hookwisecommand.NewCreateIntegrationCommand(service),
		UpdateIntegration:    hookwisecommand.NewUpdateIntegrationCommand(service),
		PauseIntegration:     hookwisecommand.NewPauseIntegrationCommand(service),
		ResumeIntegration:    hookwisecommand.NewResumeIntegrationCommand(service),
		DeleteIntegration:    hookwisecommand.NewDeleteIntegrationCommand(service),
		RequestReplay:        hookwisecommand.NewRequestReplayCommand(service),
		ReconcileIntegration: hookwisecommand.NewReconcileIntegrationCommand(service),
	}
	facade.queries = Queries{
		GetIntegration:         hookwisequery.NewGetIntegrationQuery(service),
		ListIntegrations:       hookwisequery.NewListIntegrationsQuery(service),
		GetEndpointStatus:      hookwisequery.NewGetEndpointStatusQuery(service),
		GetEvent:               hookwisequery.NewGetEventQuery(events),
		ListEvents:             hookwisequery.NewListEventsQuery(events),
		ListEventDeliveries:    hookwisequery.NewListEventDeliveriesQuery(events),
		ListReconciliationRuns: hookwisequery.NewListReconciliationRunsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
