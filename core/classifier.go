package core

import (
	"net/http"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/ratelimit"
)

// Classification is the delivery worker's verdict on one failed attempt.
// A nil RetryDelay means retry immediately; OpenCircuit short-circuits the
// breaker regardless of the sliding window.
type Classification struct {
	ErrorType   ErrorType
	Retry       bool
	RetryDelay  *time.Duration
	OpenCircuit bool
}

// DeliveryClassifier maps a delivery outcome to an error type and retry
// decision. Rules apply first-match: transport-level messages before HTTP
// status codes.
type DeliveryClassifier struct {
	RateLimitFallback   time.Duration
	ServiceUnavailDelay time.Duration
	Now                 func() time.Time
}

var (
	timeoutMarkers = []string{"timeout", "timed out", "abort", "deadline exceeded"}
	sslMarkers     = []string{"ssl", "tls", "certificate"}
	refusedMarkers = []string{"econnrefused", "connection refused", "enotfound", "no such host"}
)

func (c DeliveryClassifier) Classify(statusCode int, errMessage, retryAfter string) Classification {
	message := strings.ToLower(strings.TrimSpace(errMessage))

	switch {
	case containsAny(message, timeoutMarkers):
		return Classification{ErrorType: ErrorTypeTimeout, Retry: true}
	case containsAny(message, sslMarkers):
		return Classification{ErrorType: ErrorTypeSSL, OpenCircuit: true}
	case containsAny(message, refusedMarkers):
		return Classification{ErrorType: ErrorTypeConnectionRefused, OpenCircuit: true}
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		delay := c.rateLimitDelay(retryAfter)
		return Classification{ErrorType: ErrorTypeRateLimit, Retry: true, RetryDelay: &delay}
	case statusCode == http.StatusServiceUnavailable:
		delay := c.ServiceUnavailDelay
		if delay <= 0 {
			delay = 30 * time.Second
		}
		return Classification{ErrorType: ErrorTypeServerError, Retry: true, RetryDelay: &delay}
	case statusCode >= http.StatusInternalServerError:
		return Classification{ErrorType: ErrorTypeServerError, Retry: true}
	}

	return Classification{ErrorType: ErrorTypeUnknown, Retry: true}
}

func (c DeliveryClassifier) rateLimitDelay(retryAfter string) time.Duration {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	if wait, ok := ratelimit.ParseRetryAfter(retryAfter, now); ok {
		return wait
	}
	if c.RateLimitFallback > 0 {
		return c.RateLimitFallback
	}
	return 60 * time.Second
}

func containsAny(message string, markers []string) bool {
	if message == "" {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
