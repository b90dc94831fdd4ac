package query

import (
	"strings"

	"github.com/Mithrandiirr/hookwise/core"
)

const (
	TypeGetIntegration         = "hookwise.query.integration.get"
	TypeListIntegrations       = "hookwise.query.integration.list"
	TypeGetEndpointStatus      = "hookwise.query.endpoint.status"
	TypeGetEvent               = "hookwise.query.event.get"
	TypeListEvents             = "hookwise.query.event.list"
	TypeListEventDeliveries    = "hookwise.query.event.deliveries"
	TypeListReconciliationRuns = "hookwise.query.reconciliation.list"
)

type GetIntegrationMessage struct {
	ID string
}

func (GetIntegrationMessage) Type() string { return TypeGetIntegration }

func (m GetIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return queryValidationError("id", "integration id is required")
	}
	return nil
}

type ListIntegrationsMessage struct {
	Filter core.IntegrationFilter
}

func (ListIntegrationsMessage) Type() string { return TypeListIntegrations }

func (m ListIntegrationsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type GetEndpointStatusMessage struct {
	IntegrationID string
}

func (GetEndpointStatusMessage) Type() string { return TypeGetEndpointStatus }

func (m GetEndpointStatusMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationID) == "" {
		return queryValidationError("integration_id", "integration id is required")
	}
	return nil
}

type GetEventMessage struct {
	ID string
}

func (GetEventMessage) Type() string { return TypeGetEvent }

func (m GetEventMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return queryValidationError("id", "event id is required")
	}
	return nil
}

type ListEventsMessage struct {
	Filter core.EventFilter
}

func (ListEventsMessage) Type() string { return TypeListEvents }

func (m ListEventsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type ListEventDeliveriesMessage struct {
	EventID string
}

func (ListEventDeliveriesMessage) Type() string { return TypeListEventDeliveries }

func (m ListEventDeliveriesMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

type ListReconciliationRunsMessage struct {
	IntegrationID string
	Limit         int
}

func (ListReconciliationRunsMessage) Type() string { return TypeListReconciliationRuns }

func (m ListReconciliationRunsMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationID) == "" {
		return queryValidationError("integration_id", "integration id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
