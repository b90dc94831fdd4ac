package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers"
)

// EventsReconciler pages /v1/events with the created window and a
// starting_after cursor, so missed webhooks can be detected against the
// provider's own event log.
type EventsReconciler struct {
	BaseURL  string
	PageSize int
	Client   *http.Client
}

func (r *EventsReconciler) FetchEvents(ctx context.Context, credential string, since, until time.Time) ([]core.ProviderEvent, error) {
	if r == nil {
		return nil, fmt.Errorf("providers/stripe: reconciler is not configured")
	}

	var out []core.ProviderEvent
	cursor := ""
	for {
		page, lastID, hasMore, err := r.fetchPage(ctx, credential, since, until, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if !hasMore || lastID == "" || lastID == cursor {
			return out, nil
		}
		cursor = lastID
	}
}

func (r *EventsReconciler) fetchPage(
	ctx context.Context,
	credential string,
	since, until time.Time,
	cursor string,
) ([]core.ProviderEvent, string, bool, error) {
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	query := url.Values{}
	query.Set("created[gte]", strconv.FormatInt(since.Unix(), 10))
	query.Set("created[lte]", strconv.FormatInt(until.Unix(), 10))
	query.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		query.Set("starting_after", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/v1/events?"+query.Encode(), nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("providers/stripe: build events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("providers/stripe: list events: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", false, fmt.Errorf("providers/stripe: list events: unexpected status %d", res.StatusCode)
	}

	var payload struct {
		Data    []map[string]any `json:"data"`
		HasMore bool             `json:"has_more"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, "", false, fmt.Errorf("providers/stripe: decode events page: %w", err)
	}

	events := make([]core.ProviderEvent, 0, len(payload.Data))
	lastID := ""
	for _, item := range payload.Data {
		id := providers.StringField(item, "id")
		if id == "" {
			continue
		}
		lastID = id
		createdAt := until
		if created, ok := providers.Field(item, "created"); ok {
			if unix, ok := created.(float64); ok {
				createdAt = time.Unix(int64(unix), 0).UTC()
			}
		}
		events = append(events, core.ProviderEvent{
			ID:        id,
			EventType: providers.StringField(item, "type"),
			CreatedAt: createdAt,
			Payload:   item,
		})
	}
	return events, lastID, payload.HasMore, nil
}

var _ core.Reconciler = (*EventsReconciler)(nil)
