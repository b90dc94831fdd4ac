package query

import (
	"context"

	"github.com/Mithrandiirr/hookwise/core"
)

type IntegrationReader interface {
	GetIntegration(ctx context.Context, id string) (core.Integration, error)
	ListIntegrations(ctx context.Context, filter core.IntegrationFilter) ([]core.Integration, int, error)
	GetEndpointStatus(ctx context.Context, integrationID string) (core.Endpoint, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (core.Event, error)
	ListEvents(ctx context.Context, filter core.EventFilter) ([]core.Event, int, error)
	ListEventDeliveries(ctx context.Context, eventID string) ([]core.Delivery, error)
}

type ReconciliationReader interface {
	ListReconciliationRuns(ctx context.Context, integrationID string, limit int) ([]core.ReconciliationRun, error)
}

// IntegrationPage is the list result shape handed to transports: the
// filtered slice plus the unpaginated total.
type IntegrationPage struct {
	Items []core.Integration
	Total int
}

type EventPage struct {
	Items []core.Event
	Total int
}

type GetIntegrationQuery struct {
	reader IntegrationReader
}

func NewGetIntegrationQuery(reader IntegrationReader) *GetIntegrationQuery {
	return &GetIntegrationQuery{reader: reader}
}

func (q *GetIntegrationQuery) Query(ctx context.Context, msg GetIntegrationMessage) (core.Integration, error) {
	if q == nil || q.reader == nil {
		return core.Integration{}, queryDependencyError("query: integration reader is required")
	}
	return q.reader.GetIntegration(ctx, msg.ID)
}

type ListIntegrationsQuery struct {
	reader IntegrationReader
}

func NewListIntegrationsQuery(reader IntegrationReader) *ListIntegrationsQuery {
	return &ListIntegrationsQuery{reader: reader}
}

func (q *ListIntegrationsQuery) Query(ctx context.Context, msg ListIntegrationsMessage) (IntegrationPage, error) {
	if q == nil || q.reader == nil {
		return IntegrationPage{}, queryDependencyError("query: integration reader is required")
	}
	items, total, err := q.reader.ListIntegrations(ctx, msg.Filter)
	if err != nil {
		return IntegrationPage{}, err
	}
	return IntegrationPage{Items: items, Total: total}, nil
}

type GetEndpointStatusQuery struct {
	reader IntegrationReader
}

func NewGetEndpointStatusQuery(reader IntegrationReader) *GetEndpointStatusQuery {
	return &GetEndpointStatusQuery{reader: reader}
}

func (q *GetEndpointStatusQuery) Query(ctx context.Context, msg GetEndpointStatusMessage) (core.Endpoint, error) {
	if q == nil || q.reader == nil {
		return core.Endpoint{}, queryDependencyError("query: integration reader is required")
	}
	return q.reader.GetEndpointStatus(ctx, msg.IntegrationID)
}

type GetEventQuery struct {
	reader EventReader
}

func NewGetEventQuery(reader EventReader) *GetEventQuery {
	return &GetEventQuery{reader: reader}
}

func (q *GetEventQuery) Query(ctx context.Context, msg GetEventMessage) (core.Event, error) {
	if q == nil || q.reader == nil {
		return core.Event{}, queryDependencyError("query: event reader is required")
	}
	return q.reader.GetEvent(ctx, msg.ID)
}

type ListEventsQuery struct {
	reader EventReader
}

func NewListEventsQuery(reader EventReader) *ListEventsQuery {
	return &ListEventsQuery{reader: reader}
}

func (q *ListEventsQuery) Query(ctx context.Context, msg ListEventsMessage) (EventPage, error) {
	if q == nil || q.reader == nil {
		return EventPage{}, queryDependencyError("query: event reader is required")
	}
	items, total, err := q.reader.ListEvents(ctx, msg.Filter)
	if err != nil {
		return EventPage{}, err
	}
	return EventPage{Items: items, Total: total}, nil
}

type ListEventDeliveriesQuery struct {
	reader EventReader
}

func NewListEventDeliveriesQuery(reader EventReader) *ListEventDeliveriesQuery {
	return &ListEventDeliveriesQuery{reader: reader}
}

func (q *ListEventDeliveriesQuery) Query(ctx context.Context, msg ListEventDeliveriesMessage) ([]core.Delivery, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: event reader is required")
	}
	return q.reader.ListEventDeliveries(ctx, msg.EventID)
}

type ListReconciliationRunsQuery struct {
	reader ReconciliationReader
}

func NewListReconciliationRunsQuery(reader ReconciliationReader) *ListReconciliationRunsQuery {
	return &ListReconciliationRunsQuery{reader: reader}
}

func (q *ListReconciliationRunsQuery) Query(
	ctx context.Context,
	msg ListReconciliationRunsMessage,
) ([]core.ReconciliationRun, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: reconciliation reader is required")
	}
	return q.reader.ListReconciliationRuns(ctx, msg.IntegrationID, msg.Limit)
}
