package ratelimit

import (
	"testing"
	"time"
)

func TestParseRetryAfter_IntegerSeconds(t *testing.T) {
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

	wait, ok := ParseRetryAfter("120", now)
	if !ok || wait != 2*time.Minute {
		t.Fatalf("expected 2m wait, got %v ok=%v", wait, ok)
	}
	if _, ok := ParseRetryAfter("0", now); ok {
		t.Fatalf("expected zero seconds to report absent")
	}
	if _, ok := ParseRetryAfter("-5", now); ok {
		t.Fatalf("expected negative seconds to report absent")
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

	wait, ok := ParseRetryAfter(now.Add(90*time.Second).Format(time.RFC1123), now)
	if !ok || wait != 90*time.Second {
		t.Fatalf("expected 90s wait from http-date, got %v ok=%v", wait, ok)
	}
	if _, ok := ParseRetryAfter(now.Add(-time.Minute).Format(time.RFC1123), now); ok {
		t.Fatalf("expected past http-date to report absent")
	}
}

func TestParseRetryAfter_Malformed(t *testing.T) {
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	for _, raw := range []string{"", "  ", "soon", "12.5"} {
		if _, ok := ParseRetryAfter(raw, now); ok {
			t.Fatalf("expected %q to report absent", raw)
		}
	}
}
