package devkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mithrandiirr/hookwise/core"
)

type DeliveryScript struct {
	Result core.DeliveryResult
	Err    error
}

// FakeDeliveryTransport replays scripted results in request order and keeps
// a copy of every request it saw. Once the script runs out the last entry
// repeats, so a single success script models a permanently healthy endpoint.
type FakeDeliveryTransport struct {
	mu       sync.Mutex
	scripts  []DeliveryScript
	requests []core.DeliveryRequest
}

func NewFakeDeliveryTransport(scripts ...DeliveryScript) *FakeDeliveryTransport {
	return &FakeDeliveryTransport{
		scripts: append([]DeliveryScript(nil), scripts...),
	}
}

func (t *FakeDeliveryTransport) Deliver(_ context.Context, req core.DeliveryRequest) (core.DeliveryResult, error) {
	if t == nil {
		return core.DeliveryResult{}, fmt.Errorf("devkit: fake delivery transport is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, cloneDeliveryRequest(req))
	index := len(t.requests) - 1
	if index < len(t.scripts) {
		script := t.scripts[index]
		return script.Result, script.Err
	}
	if len(t.scripts) > 0 {
		last := t.scripts[len(t.scripts)-1]
		return last.Result, last.Err
	}
	return core.DeliveryResult{StatusCode: 200, ResponseTimeMS: 1}, nil
}

func (t *FakeDeliveryTransport) Requests() []core.DeliveryRequest {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]core.DeliveryRequest, 0, len(t.requests))
	for _, item := range t.requests {
		out = append(out, cloneDeliveryRequest(item))
	}
	return out
}

func cloneDeliveryRequest(in core.DeliveryRequest) core.DeliveryRequest {
	out := in
	out.Body = append([]byte(nil), in.Body...)
	return out
}

var _ core.DeliveryTransport = (*FakeDeliveryTransport)(nil)
