package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// The admin API throttles with a leaky bucket advertised through
// X-Shopify-Shop-Api-Call-Limit ("39/40") and answers throttled calls with
// 429 plus Retry-After. The orders reconciler honours both so paging a large
// backlog does not starve the bucket the shop's other traffic drains from.
const (
	callLimitHeader = "X-Shopify-Shop-Api-Call-Limit"

	// defaultRetryAfter429 stands in when a throttled response omits
	// Retry-After.
	defaultRetryAfter429 = 2 * time.Second

	// pacingDelay separates page requests once the bucket has at most
	// pacingFloor calls left.
	pacingDelay = 500 * time.Millisecond
	pacingFloor = 4

	maxThrottleRetries = 5
)

// throttledError reports a 429 page response and how long the provider asked
// us to wait before retrying.
type throttledError struct {
	wait time.Duration
}

func (e throttledError) Error() string {
	return fmt.Sprintf("providers/shopify: admin api throttled, retry in %s", e.wait)
}

// parseCallLimit splits the "used/limit" bucket header.
func parseCallLimit(value string) (used int, limit int, ok bool) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || used < 0 {
		return 0, 0, false
	}
	limit, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || limit <= 0 {
		return 0, 0, false
	}
	return used, limit, true
}

// retryAfterDelay reads Retry-After from a throttled response. Shopify sends
// fractional seconds ("2.0"); absent or malformed values fall back to the
// default.
func retryAfterDelay(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return defaultRetryAfter429
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter429
	}
	return time.Duration(seconds * float64(time.Second))
}

// pageDelay returns how long to pause before following the next page link,
// zero while the bucket has headroom.
func pageDelay(header http.Header) time.Duration {
	used, limit, ok := parseCallLimit(header.Get(callLimitHeader))
	if !ok {
		return 0
	}
	if limit-used <= pacingFloor {
		return pacingDelay
	}
	return 0
}

// sleepContext waits for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
