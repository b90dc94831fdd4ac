package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
)

const defaultProbeTimeout = 5 * time.Second

// ProbeAdapter checks destination reachability with a HEAD request,
// falling back to GET when the endpoint rejects HEAD. Any 2xx counts as
// healthy.
type ProbeAdapter struct {
	Client  HTTPDoer
	Timeout time.Duration
}

func NewProbeAdapter(client HTTPDoer) *ProbeAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &ProbeAdapter{
		Client:  client,
		Timeout: defaultProbeTimeout,
	}
}

func (a *ProbeAdapter) Probe(ctx context.Context, url string) core.ProbeResult {
	if a == nil || a.Client == nil {
		return core.ProbeResult{ErrMessage: "transport: probe adapter requires an http client"}
	}
	if strings.TrimSpace(url) == "" {
		return core.ProbeResult{ErrMessage: "transport: probe url is required"}
	}

	result := a.request(ctx, http.MethodHead, url)
	if result.Success {
		return result
	}
	return a.request(ctx, http.MethodGet, url)
}

func (a *ProbeAdapter) request(ctx context.Context, method, url string) core.ProbeResult {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, method, strings.TrimSpace(url), nil)
	if err != nil {
		return core.ProbeResult{ErrMessage: err.Error()}
	}
	res, err := a.Client.Do(req)
	if err != nil {
		return core.ProbeResult{ErrMessage: err.Error()}
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))

	return core.ProbeResult{
		Success:    res.StatusCode >= 200 && res.StatusCode < 300,
		StatusCode: res.StatusCode,
	}
}

var _ core.HealthProbe = (*ProbeAdapter)(nil)
