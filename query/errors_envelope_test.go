package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/Mithrandiirr/hookwise/core"
)

func TestGetIntegrationMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetIntegrationMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorCodeBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorCodeBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 {
		t.Fatalf("expected validation errors in envelope")
	}
	if validation[0].Field != "id" {
		t.Fatalf("expected id validation field, got %q", validation[0].Field)
	}
}

func TestQueryValidationFieldsPerMessage(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
	}{
		{"endpoint status missing integration", (GetEndpointStatusMessage{}).Validate(), "integration_id"},
		{"event deliveries missing event", (ListEventDeliveriesMessage{}).Validate(), "event_id"},
		{"events negative page", (ListEventsMessage{Filter: core.EventFilter{Page: -1}}).Validate(), "page"},
		{
			"reconciliation negative limit",
			(ListReconciliationRunsMessage{IntegrationID: "int_1", Limit: -2}).Validate(),
			"limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rich *goerrors.Error
			if !goerrors.As(tt.err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", tt.err)
			}
			validation := rich.AllValidationErrors()
			if len(validation) == 0 {
				t.Fatalf("expected validation errors in envelope")
			}
			if validation[0].Field != tt.wantField {
				t.Fatalf("expected %q validation field, got %q", tt.wantField, validation[0].Field)
			}
		})
	}
}

func TestGetIntegrationQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetIntegrationQuery
	_, err := q.Query(context.Background(), GetIntegrationMessage{ID: "int_1"})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorCodeInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorCodeInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}
