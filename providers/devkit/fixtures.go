package devkit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Mithrandiirr/hookwise/core"
	"github.com/Mithrandiirr/hookwise/providers/github"
	"github.com/Mithrandiirr/hookwise/providers/shopify"
	"github.com/Mithrandiirr/hookwise/providers/stripe"
	"github.com/Mithrandiirr/hookwise/signature"
)

// FakeHealthProbe replays scripted probe results and records the probed
// URLs. Like the delivery transport fake, the last script entry repeats.
type FakeHealthProbe struct {
	mu      sync.Mutex
	scripts []core.ProbeResult
	urls    []string
}

func NewFakeHealthProbe(scripts ...core.ProbeResult) *FakeHealthProbe {
	return &FakeHealthProbe{scripts: append([]core.ProbeResult(nil), scripts...)}
}

func (p *FakeHealthProbe) Probe(_ context.Context, url string) core.ProbeResult {
	if p == nil {
		return core.ProbeResult{ErrMessage: "devkit: fake health probe is nil"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.urls = append(p.urls, url)
	index := len(p.urls) - 1
	if index < len(p.scripts) {
		return p.scripts[index]
	}
	if len(p.scripts) > 0 {
		return p.scripts[len(p.scripts)-1]
	}
	return core.ProbeResult{Success: true, StatusCode: 200}
}

func (p *FakeHealthProbe) ProbedURLs() []string {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

// SignedStripeHeaders builds a Stripe-Signature header for body, signed at
// the given time. Feed the same clock to the verifier under test so the
// tolerance check sees a fresh timestamp.
func SignedStripeHeaders(secret string, at time.Time, body []byte) map[string]string {
	timestamp := strconv.FormatInt(at.UTC().Unix(), 10)
	signed := append([]byte(timestamp+"."), body...)
	return map[string]string{
		stripe.SignatureHeader: fmt.Sprintf("t=%s,v1=%s", timestamp, signature.ComputeHex(secret, signed)),
	}
}

func SignedShopifyHeaders(secret string, topic string, webhookID string, body []byte) map[string]string {
	return map[string]string{
		shopify.HMACHeader:       signature.ComputeBase64(secret, body),
		shopify.TopicHeader:      topic,
		shopify.DeliveryIDHeader: webhookID,
	}
}

func SignedGitHubHeaders(secret string, event string, deliveryID string, body []byte) map[string]string {
	return map[string]string{
		github.SignatureHeader:  "sha256=" + signature.ComputeHex(secret, body),
		github.EventHeader:      event,
		github.DeliveryIDHeader: deliveryID,
	}
}

var _ core.HealthProbe = (*FakeHealthProbe)(nil)
