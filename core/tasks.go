package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// WebhookReceivedTask asks the delivery worker to forward a stored event to
// its destination for the first time.
type WebhookReceivedTask struct {
	EventID        string
	IntegrationID  string
	DestinationURL string
}

// WebhookRetryTask repeats a failed delivery. Attempt carries the next
// attempt number, Timeout the per-request deadline the classifier chose,
// and NotBefore the earliest instant the attempt may run (zero means now).
type WebhookRetryTask struct {
	EventID       string
	IntegrationID string
	EndpointID    string
	Attempt       int
	Timeout       time.Duration
	NotBefore     time.Time
}

// CircuitOpenedTask announces a CLOSED/HALF_OPEN -> OPEN transition.
type CircuitOpenedTask struct {
	EndpointID    string
	IntegrationID string
}

// ReplayStartedTask announces an OPEN -> HALF_OPEN transition and wakes the
// replay engine for that endpoint.
type ReplayStartedTask struct {
	EndpointID    string
	IntegrationID string
}

// StepCompletedTask is the best-effort success signal consumed by
// downstream flow tooling.
type StepCompletedTask struct {
	EventID       string
	IntegrationID string
	Step          string
	Attempt       int
}

// AnomalyDetectedTask flags conditions a human should look at: orphaned
// events, reconciliation gaps.
type AnomalyDetectedTask struct {
	IntegrationID string
	EndpointID    string
	Kind          string
	Detail        string
	Count         int
}

func (t WebhookReceivedTask) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: TopicWebhookReceived,
		Parameters: map[string]any{
			"event_id":        strings.TrimSpace(t.EventID),
			"integration_id":  strings.TrimSpace(t.IntegrationID),
			"destination_url": strings.TrimSpace(t.DestinationURL),
		},
		IdempotencyKey: TopicWebhookReceived + "::" + strings.TrimSpace(t.EventID),
	}
}

func (t WebhookRetryTask) Message() *JobExecutionMessage {
	params := map[string]any{
		"event_id":       strings.TrimSpace(t.EventID),
		"integration_id": strings.TrimSpace(t.IntegrationID),
		"endpoint_id":    strings.TrimSpace(t.EndpointID),
		"attempt":        t.Attempt,
		"timeout_ms":     t.Timeout.Milliseconds(),
	}
	if !t.NotBefore.IsZero() {
		params["not_before"] = t.NotBefore.UTC().Format(time.RFC3339Nano)
	}
	return &JobExecutionMessage{
		JobID:          TopicWebhookRetry,
		Parameters:     params,
		IdempotencyKey: fmt.Sprintf("%s::%s::%d", TopicWebhookRetry, strings.TrimSpace(t.EventID), t.Attempt),
	}
}

func (t CircuitOpenedTask) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: TopicCircuitOpened,
		Parameters: map[string]any{
			"endpoint_id":    strings.TrimSpace(t.EndpointID),
			"integration_id": strings.TrimSpace(t.IntegrationID),
		},
	}
}

func (t ReplayStartedTask) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: TopicReplayStarted,
		Parameters: map[string]any{
			"endpoint_id":    strings.TrimSpace(t.EndpointID),
			"integration_id": strings.TrimSpace(t.IntegrationID),
		},
	}
}

func (t StepCompletedTask) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: TopicStepCompleted,
		Parameters: map[string]any{
			"event_id":       strings.TrimSpace(t.EventID),
			"integration_id": strings.TrimSpace(t.IntegrationID),
			"step":           strings.TrimSpace(t.Step),
			"attempt":        t.Attempt,
		},
	}
}

func (t AnomalyDetectedTask) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: TopicAnomalyDetected,
		Parameters: map[string]any{
			"integration_id": strings.TrimSpace(t.IntegrationID),
			"endpoint_id":    strings.TrimSpace(t.EndpointID),
			"kind":           strings.TrimSpace(t.Kind),
			"detail":         strings.TrimSpace(t.Detail),
			"count":          t.Count,
		},
	}
}

func ParseWebhookReceivedTask(msg *JobExecutionMessage) (WebhookReceivedTask, error) {
	if msg == nil {
		return WebhookReceivedTask{}, fmt.Errorf("core: task message is nil")
	}
	task := WebhookReceivedTask{
		EventID:        paramString(msg.Parameters, "event_id"),
		IntegrationID:  paramString(msg.Parameters, "integration_id"),
		DestinationURL: paramString(msg.Parameters, "destination_url"),
	}
	if task.EventID == "" {
		return WebhookReceivedTask{}, fmt.Errorf("core: %s task requires event_id", TopicWebhookReceived)
	}
	return task, nil
}

func ParseWebhookRetryTask(msg *JobExecutionMessage) (WebhookRetryTask, error) {
	if msg == nil {
		return WebhookRetryTask{}, fmt.Errorf("core: task message is nil")
	}
	task := WebhookRetryTask{
		EventID:       paramString(msg.Parameters, "event_id"),
		IntegrationID: paramString(msg.Parameters, "integration_id"),
		EndpointID:    paramString(msg.Parameters, "endpoint_id"),
		Attempt:       paramInt(msg.Parameters, "attempt"),
		Timeout:       time.Duration(paramInt64(msg.Parameters, "timeout_ms")) * time.Millisecond,
	}
	if raw := paramString(msg.Parameters, "not_before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return WebhookRetryTask{}, fmt.Errorf("core: invalid not_before %q: %w", raw, err)
		}
		task.NotBefore = parsed
	}
	if task.EventID == "" {
		return WebhookRetryTask{}, fmt.Errorf("core: %s task requires event_id", TopicWebhookRetry)
	}
	if task.Attempt < 2 {
		return WebhookRetryTask{}, fmt.Errorf("core: %s task attempt must be >= 2, got %d", TopicWebhookRetry, task.Attempt)
	}
	return task, nil
}

func ParseReplayStartedTask(msg *JobExecutionMessage) (ReplayStartedTask, error) {
	if msg == nil {
		return ReplayStartedTask{}, fmt.Errorf("core: task message is nil")
	}
	task := ReplayStartedTask{
		EndpointID:    paramString(msg.Parameters, "endpoint_id"),
		IntegrationID: paramString(msg.Parameters, "integration_id"),
	}
	if task.EndpointID == "" {
		return ReplayStartedTask{}, fmt.Errorf("core: %s task requires endpoint_id", TopicReplayStarted)
	}
	return task, nil
}

func paramString(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	raw, ok := params[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func paramInt(params map[string]any, key string) int {
	return int(paramInt64(params, key))
}

func paramInt64(params map[string]any, key string) int64 {
	if len(params) == 0 {
		return 0
	}
	switch typed := params[key].(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

const defaultMemoryQueueCapacity = 1024

// MemoryQueue is an in-process JobEnqueuer/JobDequeuer pair so the engine
// runs without external queue infrastructure. Nack with Requeue re-enqueues
// after the requested delay; dead-lettered messages are retained for
// inspection.
type MemoryQueue struct {
	mu         sync.Mutex
	buffer     chan *JobExecutionMessage
	deadLetter []*JobExecutionMessage
	closed     bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultMemoryQueueCapacity
	}
	return &MemoryQueue{buffer: make(chan *JobExecutionMessage, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *JobExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("core: memory queue is not configured")
	}
	if msg == nil {
		return fmt.Errorf("core: task message is required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("core: memory queue is closed")
	}
	q.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case q.buffer <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("core: memory queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (JobDelivery, error) {
	if q == nil {
		return nil, fmt.Errorf("core: memory queue is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case msg, ok := <-q.buffer:
		if !ok {
			return nil, fmt.Errorf("core: memory queue is closed")
		}
		return &memoryDelivery{queue: q, message: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new messages. In-flight deliveries can still ack.
func (q *MemoryQueue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.buffer)
}

// Len reports buffered, not-yet-dequeued messages.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.buffer)
}

// DeadLetters returns messages parked by Nack with DeadLetter set.
func (q *MemoryQueue) DeadLetters() []*JobExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*JobExecutionMessage, len(q.deadLetter))
	copy(out, q.deadLetter)
	return out
}

func (q *MemoryQueue) requeueLater(msg *JobExecutionMessage, delay time.Duration) {
	if delay <= 0 {
		_ = q.Enqueue(context.Background(), msg)
		return
	}
	time.AfterFunc(delay, func() {
		_ = q.Enqueue(context.Background(), msg)
	})
}

type memoryDelivery struct {
	queue   *MemoryQueue
	message *JobExecutionMessage
	once    sync.Once
}

func (d *memoryDelivery) Message() *JobExecutionMessage {
	if d == nil {
		return nil
	}
	return d.message
}

func (d *memoryDelivery) Ack(context.Context) error {
	if d == nil {
		return fmt.Errorf("core: delivery is not configured")
	}
	d.once.Do(func() {})
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("core: delivery is not configured")
	}
	d.once.Do(func() {
		if opts.DeadLetter {
			d.queue.mu.Lock()
			d.queue.deadLetter = append(d.queue.deadLetter, d.message)
			d.queue.mu.Unlock()
			return
		}
		if opts.Requeue {
			d.queue.requeueLater(d.message, opts.Delay)
		}
	})
	return nil
}

var (
	_ JobEnqueuer = (*MemoryQueue)(nil)
	_ JobDequeuer = (*MemoryQueue)(nil)
	_ JobDelivery = (*memoryDelivery)(nil)
)
