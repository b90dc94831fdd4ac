package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/Mithrandiirr/hookwise/core"
)

var (
	_ gocmd.Querier[GetIntegrationMessage, core.Integration]                 = (*GetIntegrationQuery)(nil)
	_ gocmd.Querier[ListIntegrationsMessage, IntegrationPage]                = (*ListIntegrationsQuery)(nil)
	_ gocmd.Querier[GetEndpointStatusMessage, core.Endpoint]                 = (*GetEndpointStatusQuery)(nil)
	_ gocmd.Querier[GetEventMessage, core.Event]                             = (*GetEventQuery)(nil)
	_ gocmd.Querier[ListEventsMessage, EventPage]                            = (*ListEventsQuery)(nil)
	_ gocmd.Querier[ListEventDeliveriesMessage, []core.Delivery]             = (*ListEventDeliveriesQuery)(nil)
	_ gocmd.Querier[ListReconciliationRunsMessage, []core.ReconciliationRun] = (*ListReconciliationRunsQuery)(nil)
)
