package shopify

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestParseCallLimit(t *testing.T) {
	tests := []struct {
		name  string
		value string
		used  int
		limit int
		ok    bool
	}{
		{"standard", "39/40", 39, 40, true},
		{"padded", " 1 / 80 ", 1, 80, true},
		{"empty", "", 0, 0, false},
		{"missing limit", "39", 0, 0, false},
		{"zero limit", "39/0", 0, 0, false},
		{"negative used", "-1/40", 0, 0, false},
		{"garbage", "a/b", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, limit, ok := parseCallLimit(tt.value)
			if used != tt.used || limit != tt.limit || ok != tt.ok {
				t.Fatalf("parseCallLimit(%q) = %d, %d, %v", tt.value, used, limit, ok)
			}
		})
	}
}

func TestRetryAfterDelay(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "2.0")
	if got := retryAfterDelay(header); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}

	header.Set("Retry-After", "0.5")
	if got := retryAfterDelay(header); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", got)
	}

	header.Set("Retry-After", "soon")
	if got := retryAfterDelay(header); got != defaultRetryAfter429 {
		t.Fatalf("expected default delay for malformed header, got %s", got)
	}

	if got := retryAfterDelay(http.Header{}); got != defaultRetryAfter429 {
		t.Fatalf("expected default delay for missing header, got %s", got)
	}
}

func TestPageDelay(t *testing.T) {
	header := http.Header{}
	header.Set(callLimitHeader, "10/40")
	if got := pageDelay(header); got != 0 {
		t.Fatalf("expected no pacing with headroom, got %s", got)
	}

	header.Set(callLimitHeader, "38/40")
	if got := pageDelay(header); got != pacingDelay {
		t.Fatalf("expected pacing delay near the bucket edge, got %s", got)
	}

	if got := pageDelay(http.Header{}); got != 0 {
		t.Fatalf("expected no pacing without the bucket header, got %s", got)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Minute); err == nil {
		t.Fatalf("expected context error from cancelled sleep")
	}

	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("expected immediate return for zero delay: %v", err)
	}
}
