package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type failingEndpointStore struct {
	EndpointStore
	err error
}

func (s failingEndpointStore) Create(context.Context, string) (Endpoint, error) {
	return Endpoint{}, s.err
}

func TestCreateIntegration_SealsCredentialAndProvisionsEndpoint(t *testing.T) {
	h := newTestHarness(t)

	integration, err := h.service.CreateIntegration(context.Background(), CreateIntegrationRequest{
		OwnerID:        "owner_1",
		Provider:       "stripe",
		SigningSecret:  "whsec_test",
		DestinationURL: "https://destination.example/hooks",
		Credential:     "sk_live_secret",
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	if integration.Status != IntegrationStatusActive {
		t.Fatalf("expected active integration, got %s", integration.Status)
	}
	if string(integration.SealedCredential) != "sealed:sk_live_secret" {
		t.Fatalf("expected sealed credential, got %q", integration.SealedCredential)
	}

	endpoint, err := h.service.GetEndpointStatus(context.Background(), integration.ID)
	if err != nil {
		t.Fatalf("get endpoint status: %v", err)
	}
	if endpoint.CircuitState != CircuitClosed {
		t.Fatalf("new endpoints start closed, got %s", endpoint.CircuitState)
	}
	if endpoint.SuccessRate != 1 {
		t.Fatalf("new endpoints start healthy, got %v", endpoint.SuccessRate)
	}
}

func TestCreateIntegration_NoCredentialStaysUnsealed(t *testing.T) {
	h := newTestHarness(t)

	integration, err := h.service.CreateIntegration(context.Background(), CreateIntegrationRequest{
		OwnerID:        "owner_1",
		Provider:       "stripe",
		SigningSecret:  "whsec_test",
		DestinationURL: "https://destination.example/hooks",
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	if len(integration.SealedCredential) != 0 {
		t.Fatalf("expected no sealed credential, got %q", integration.SealedCredential)
	}
}

func TestCreateIntegration_RejectsUnknownProviders(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.CreateIntegration(context.Background(), CreateIntegrationRequest{
		OwnerID:        "owner_1",
		Provider:       "acme",
		DestinationURL: "https://destination.example/hooks",
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorCodeProviderUnknown {
		t.Fatalf("expected %s for an unparseable name, got %v", ErrorCodeProviderUnknown, err)
	}

	// github parses, but the test registry only carries a stripe adapter.
	_, err = h.service.CreateIntegration(context.Background(), CreateIntegrationRequest{
		OwnerID:        "owner_1",
		Provider:       "github",
		DestinationURL: "https://destination.example/hooks",
	})
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorCodeProviderUnknown {
		t.Fatalf("expected %s without an adapter, got %v", ErrorCodeProviderUnknown, err)
	}
}

func TestCreateIntegration_EndpointFailureRollsBack(t *testing.T) {
	h := newTestHarness(t, WithEndpointStore(failingEndpointStore{err: errors.New("endpoint store down")}))

	_, err := h.service.CreateIntegration(context.Background(), CreateIntegrationRequest{
		OwnerID:        "owner_1",
		Provider:       "stripe",
		DestinationURL: "https://destination.example/hooks",
	})
	if err == nil {
		t.Fatalf("expected creation to fail with the endpoint store down")
	}

	_, total, listErr := h.service.ListIntegrations(context.Background(), IntegrationFilter{})
	if listErr != nil {
		t.Fatalf("list integrations: %v", listErr)
	}
	if total != 0 {
		t.Fatalf("expected the integration row rolled back, found %d", total)
	}
}

func TestUpdateIntegration_RotatesCredentialAndDestination(t *testing.T) {
	h := newTestHarness(t)
	integration, _ := h.seedIntegration(t)

	destination := "https://destination.example/v2/hooks"
	credential := "sk_live_rotated"
	updated, err := h.service.UpdateIntegration(context.Background(), integration.ID, UpdateIntegrationRequest{
		DestinationURL: &destination,
		Credential:     &credential,
	})
	if err != nil {
		t.Fatalf("update integration: %v", err)
	}
	if updated.DestinationURL != destination {
		t.Fatalf("expected destination %q, got %q", destination, updated.DestinationURL)
	}
	if string(updated.SealedCredential) != "sealed:sk_live_rotated" {
		t.Fatalf("expected rotated credential, got %q", updated.SealedCredential)
	}
	if updated.SigningSecret != integration.SigningSecret {
		t.Fatalf("untouched fields must survive the update")
	}
}

func TestUpdateIntegration_EmptyCredentialClears(t *testing.T) {
	h := newTestHarness(t)
	integration, _ := h.seedIntegration(t)

	empty := ""
	updated, err := h.service.UpdateIntegration(context.Background(), integration.ID, UpdateIntegrationRequest{
		Credential: &empty,
	})
	if err != nil {
		t.Fatalf("update integration: %v", err)
	}
	if len(updated.SealedCredential) != 0 {
		t.Fatalf("expected credential cleared, got %q", updated.SealedCredential)
	}
}

func TestPauseResumeIntegration(t *testing.T) {
	h := newTestHarness(t)
	integration, _ := h.seedIntegration(t)

	paused, err := h.service.PauseIntegration(context.Background(), integration.ID, "destination maintenance")
	if err != nil {
		t.Fatalf("pause integration: %v", err)
	}
	if paused.Status != IntegrationStatusPaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}
	if paused.LastError != "destination maintenance" {
		t.Fatalf("expected the pause reason recorded, got %q", paused.LastError)
	}

	resumed, err := h.service.ResumeIntegration(context.Background(), integration.ID)
	if err != nil {
		t.Fatalf("resume integration: %v", err)
	}
	if resumed.Status != IntegrationStatusActive {
		t.Fatalf("expected active, got %s", resumed.Status)
	}
	if resumed.LastError != "" {
		t.Fatalf("resuming clears the recorded reason, got %q", resumed.LastError)
	}
}

func TestDeleteIntegration_RefusesWhileEventsRemain(t *testing.T) {
	h := newTestHarness(t)
	integration, _ := h.seedIntegration(t)
	h.seedEvent(t, integration, "evt_1")

	if err := h.service.DeleteIntegration(context.Background(), integration.ID); err == nil {
		t.Fatalf("expected deletion refused while events remain")
	}
	if _, err := h.service.GetIntegration(context.Background(), integration.ID); err != nil {
		t.Fatalf("the integration must survive a refused delete: %v", err)
	}
}

func TestDeleteIntegration_RemovesEmptyIntegration(t *testing.T) {
	h := newTestHarness(t)
	integration, _ := h.seedIntegration(t)

	if err := h.service.DeleteIntegration(context.Background(), integration.ID); err != nil {
		t.Fatalf("delete integration: %v", err)
	}
	_, err := h.service.GetIntegration(context.Background(), integration.ID)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorCodeIntegrationNotFound {
		t.Fatalf("expected %s after delete, got %v", ErrorCodeIntegrationNotFound, err)
	}
}

func TestRequestReplay_PartitionsOutcomes(t *testing.T) {
	h := newTestHarness(t)
	active, _ := h.seedIntegration(t)
	queuedEvent := h.seedEvent(t, active, "evt_active")

	paused, _ := h.seedIntegration(t)
	skippedEvent := h.seedEvent(t, paused, "evt_paused")
	if _, err := h.service.PauseIntegration(context.Background(), paused.ID, "maintenance"); err != nil {
		t.Fatalf("pause integration: %v", err)
	}

	result, err := h.service.RequestReplay(context.Background(), ReplayRequest{
		EventIDs: []string{queuedEvent.ID, "ev_missing", skippedEvent.ID},
	})
	if err != nil {
		t.Fatalf("request replay: %v", err)
	}
	if len(result.Queued) != 1 || result.Queued[0] != queuedEvent.ID {
		t.Fatalf("unexpected queued set %v", result.Queued)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "ev_missing" {
		t.Fatalf("unexpected missing set %v", result.Missing)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != skippedEvent.ID {
		t.Fatalf("unexpected skipped set %v", result.Skipped)
	}

	msgs := h.queue.byTopic(TopicWebhookReceived)
	if len(msgs) != 1 {
		t.Fatalf("expected one received task, got %d", len(msgs))
	}
	task, err := ParseWebhookReceivedTask(msgs[0])
	if err != nil {
		t.Fatalf("parse received task: %v", err)
	}
	if task.EventID != queuedEvent.ID || task.DestinationURL != active.DestinationURL {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestRequestReplay_RequiresEventIDs(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.service.RequestReplay(context.Background(), ReplayRequest{}); err == nil {
		t.Fatalf("expected an empty replay request rejected")
	}
}

func TestGetEndpointStatus_UnknownIntegration(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.service.GetEndpointStatus(context.Background(), "itg_missing")
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorCodeEndpointNotFound {
		t.Fatalf("expected %s, got %v", ErrorCodeEndpointNotFound, err)
	}
}

func TestListEventDeliveries_RequiresStoredEvent(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.service.ListEventDeliveries(context.Background(), "ev_missing")
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorCodeEventNotFound {
		t.Fatalf("expected %s, got %v", ErrorCodeEventNotFound, err)
	}
}

func TestListEventDeliveries_SortedByAttempt(t *testing.T) {
	h := newTestHarness(t)
	integration, endpoint := h.seedIntegration(t)
	event := h.seedEvent(t, integration, "evt_1")

	deliveries := &memDeliveryStore{hub: h.hub}
	for _, attempt := range []int{2, 1} {
		if _, _, err := deliveries.Create(context.Background(), CreateDeliveryInput{
			EventID:     event.ID,
			EndpointID:  endpoint.ID,
			Status:      DeliveryStatusFailed,
			StatusCode:  500,
			Attempt:     attempt,
			AttemptedAt: h.clock.Now(),
		}); err != nil {
			t.Fatalf("seed delivery: %v", err)
		}
	}

	rows, err := h.service.ListEventDeliveries(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(rows) != 2 || rows[0].Attempt != 1 || rows[1].Attempt != 2 {
		t.Fatalf("expected attempts ordered 1,2, got %+v", rows)
	}
}
