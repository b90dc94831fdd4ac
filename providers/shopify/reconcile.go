package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers"
)

// OrdersReconciler pages the admin orders listing through the Link header
// cursor. Shopify has no public event log, so orders stand in for missed
// webhooks: each order synthesises id `shopify:order:<id>` with type
// `orders/create`.
type OrdersReconciler struct {
	BaseURL    string
	APIVersion string
	PageSize   int
	Client     *http.Client
}

func (r *OrdersReconciler) FetchEvents(ctx context.Context, credential string, since, until time.Time) ([]core.ProviderEvent, error) {
	if r == nil {
		return nil, fmt.Errorf("providers/shopify: reconciler is not configured")
	}

	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	query := url.Values{}
	query.Set("status", "any")
	query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	query.Set("updated_at_max", until.UTC().Format(time.RFC3339))
	query.Set("limit", strconv.Itoa(pageSize))

	next := fmt.Sprintf("%s/admin/api/%s/orders.json?%s", r.BaseURL, r.APIVersion, query.Encode())

	var out []core.ProviderEvent
	for next != "" {
		orders, nextLink, pace, err := r.fetchPage(ctx, credential, next)
		if err != nil {
			return nil, err
		}
		for _, order := range orders {
			id := providers.StringField(order, "id")
			if id == "" {
				continue
			}
			createdAt := until
			if raw := providers.StringField(order, "created_at"); raw != "" {
				if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
					createdAt = parsed.UTC()
				}
			}
			out = append(out, core.ProviderEvent{
				ID:        "shopify:order:" + id,
				EventType: "orders/create",
				CreatedAt: createdAt,
				Payload:   order,
			})
		}
		if nextLink == next {
			break
		}
		next = nextLink
		if next != "" {
			if err := sleepContext(ctx, pace); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// fetchPage requests one orders page, waiting out throttled responses until
// the retry budget runs dry.
func (r *OrdersReconciler) fetchPage(ctx context.Context, credential, pageURL string) ([]map[string]any, string, time.Duration, error) {
	for attempt := 0; ; attempt++ {
		orders, nextLink, pace, err := r.requestPage(ctx, credential, pageURL)
		var throttled throttledError
		switch {
		case err == nil:
			return orders, nextLink, pace, nil
		case errors.As(err, &throttled):
			if attempt+1 >= maxThrottleRetries {
				return nil, "", 0, fmt.Errorf("%w: %s", ErrThrottleBudgetExhausted, pageURL)
			}
			if err := sleepContext(ctx, throttled.wait); err != nil {
				return nil, "", 0, err
			}
		default:
			return nil, "", 0, err
		}
	}
}

func (r *OrdersReconciler) requestPage(ctx context.Context, credential, pageURL string) ([]map[string]any, string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("providers/shopify: build orders request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", credential)
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("providers/shopify: list orders: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, res.Body)
		return nil, "", 0, throttledError{wait: retryAfterDelay(res.Header)}
	}
	if res.StatusCode != http.StatusOK {
		return nil, "", 0, fmt.Errorf("providers/shopify: list orders: unexpected status %d", res.StatusCode)
	}

	var payload struct {
		Orders []map[string]any `json:"orders"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, "", 0, fmt.Errorf("providers/shopify: decode orders page: %w", err)
	}
	return payload.Orders, parseNextLink(res.Header.Get("Link")), pageDelay(res.Header), nil
}

// parseNextLink extracts the rel="next" target from a Link header of the
// form `<url>; rel="previous", <url>; rel="next"`.
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			if strings.EqualFold(strings.TrimSpace(param), `rel="next"`) {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}

var _ core.Reconciler = (*OrdersReconciler)(nil)
