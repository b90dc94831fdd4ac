package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
)

const (
	HeaderEventID       = "X-HookWise-Event-ID"
	HeaderTimestamp     = "X-HookWise-Timestamp"
	HeaderIntegrationID = "X-HookWise-Integration-ID"
	HeaderRetryCount    = "X-HookWise-Retry-Count"
	HeaderReplay        = "X-HookWise-Replay"
)

const (
	defaultDeliveryTimeout     = 5 * time.Second
	defaultResponseCaptureSize = int64(1024)
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DeliveryAdapter forwards stored webhook payloads to destination
// endpoints. Transport failures are folded into the result's ErrMessage so
// the caller classifies every outcome through one path; only an
// unbuildable request returns an error.
type DeliveryAdapter struct {
	Client         HTTPDoer
	DefaultTimeout time.Duration
	MaxBodyCapture int64
	UserAgent      string
	Now            func() time.Time
}

func NewDeliveryAdapter(client HTTPDoer) *DeliveryAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &DeliveryAdapter{
		Client:         client,
		DefaultTimeout: defaultDeliveryTimeout,
		MaxBodyCapture: defaultResponseCaptureSize,
	}
}

func (a *DeliveryAdapter) Deliver(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResult, error) {
	if a == nil || a.Client == nil {
		return core.DeliveryResult{}, deliveryError("transport: delivery adapter requires an http client")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	targetURL := strings.TrimSpace(req.URL)
	if targetURL == "" {
		return core.DeliveryResult{}, deliveryError("transport: destination url is required")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = a.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, targetURL, bytes.NewReader(req.Body))
	if err != nil {
		return core.DeliveryResult{}, deliveryWrapError(err, "transport: create delivery request")
	}

	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now().UTC()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderEventID, req.EventID)
	httpReq.Header.Set(HeaderTimestamp, now.Format(time.RFC3339))
	httpReq.Header.Set(HeaderIntegrationID, req.IntegrationID)
	if req.RetryCount > 0 {
		httpReq.Header.Set(HeaderRetryCount, strconv.Itoa(req.RetryCount))
	}
	if req.Replay {
		httpReq.Header.Set(HeaderReplay, "true")
	}
	if ua := strings.TrimSpace(a.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	elapsed := time.Since(startedAt).Milliseconds()
	if err != nil {
		return core.DeliveryResult{
			ResponseTimeMS: elapsed,
			ErrMessage:     err.Error(),
		}, nil
	}
	defer httpRes.Body.Close()

	capture := a.MaxBodyCapture
	if capture <= 0 {
		capture = defaultResponseCaptureSize
	}
	body, readErr := io.ReadAll(io.LimitReader(httpRes.Body, capture))
	_, _ = io.Copy(io.Discard, httpRes.Body)
	elapsed = time.Since(startedAt).Milliseconds()

	result := core.DeliveryResult{
		StatusCode:     httpRes.StatusCode,
		Body:           string(body),
		ResponseTimeMS: elapsed,
		RetryAfter:     strings.TrimSpace(httpRes.Header.Get("Retry-After")),
	}
	if readErr != nil {
		result.ErrMessage = readErr.Error()
	}
	return result, nil
}

var _ core.DeliveryTransport = (*DeliveryAdapter)(nil)
