package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// workerRequeueDelay spaces out retries of handler failures that are not
// the destination's fault: store outages, queue hiccups.
const workerRequeueDelay = 5 * time.Second

// HandleTask routes one queued task to its topic handler. Unknown topics
// and malformed payloads return an error marked permanent so the worker
// loop dead-letters instead of retrying them forever.
func (s *Service) HandleTask(ctx context.Context, msg *JobExecutionMessage) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if msg == nil {
		return permanentTaskError{fmt.Errorf("core: task message is nil")}
	}

	switch msg.JobID {
	case TopicWebhookReceived:
		task, err := ParseWebhookReceivedTask(msg)
		if err != nil {
			return permanentTaskError{err}
		}
		return s.HandleWebhookReceived(ctx, task)
	case TopicWebhookRetry:
		task, err := ParseWebhookRetryTask(msg)
		if err != nil {
			return permanentTaskError{err}
		}
		return s.HandleWebhookRetry(ctx, task)
	case TopicReplayStarted:
		task, err := ParseReplayStartedTask(msg)
		if err != nil {
			return permanentTaskError{err}
		}
		return s.HandleReplayStarted(ctx, task)
	case TopicCircuitOpened, TopicStepCompleted, TopicAnomalyDetected:
		// Notification topics exist for downstream consumers; when hookwise
		// workers share the queue they absorb them.
		s.logInfo(ctx, "notification task absorbed", map[string]any{
			"topic":      msg.JobID,
			"parameters": RedactSensitiveMap(msg.Parameters),
		})
		return nil
	default:
		return permanentTaskError{fmt.Errorf("core: unknown task topic %q", msg.JobID)}
	}
}

// permanentTaskError marks failures retrying cannot fix.
type permanentTaskError struct {
	err error
}

func (e permanentTaskError) Error() string {
	if e.err == nil {
		return "core: permanent task error"
	}
	return e.err.Error()
}

func (e permanentTaskError) Unwrap() error {
	return e.err
}

// IsPermanentTaskError reports whether err came from a task that must not
// be retried.
func IsPermanentTaskError(err error) bool {
	for err != nil {
		if _, ok := err.(permanentTaskError); ok {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// RunWorker consumes tasks from the dequeuer until the context is
// cancelled. Failed tasks are requeued with a fixed delay; permanent
// failures are dead-lettered.
func (s *Service) RunWorker(ctx context.Context, dequeuer JobDequeuer) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if dequeuer == nil {
		return fmt.Errorf("core: job dequeuer is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		delivery, err := dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.processTaskDelivery(ctx, delivery)
	}
}

// RunWorkers starts count worker goroutines over the same dequeuer and
// blocks until all of them stop.
func (s *Service) RunWorkers(ctx context.Context, dequeuer JobDequeuer, count int) error {
	if count <= 0 {
		count = 1
	}
	var wg sync.WaitGroup
	errs := make([]error, count)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			errs[slot] = s.RunWorker(ctx, dequeuer)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil && err != context.Canceled {
			return err
		}
	}
	return ctx.Err()
}

func (s *Service) processTaskDelivery(ctx context.Context, delivery JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	err := s.HandleTask(ctx, msg)
	if err == nil {
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			s.logError(ctx, "task ack failed", map[string]any{"error": ackErr.Error()})
		}
		return
	}

	topic := ""
	if msg != nil {
		topic = msg.JobID
	}
	if IsPermanentTaskError(err) {
		s.logError(ctx, "task dead-lettered", map[string]any{
			"topic": topic,
			"error": err.Error(),
		})
		_ = delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: err.Error()})
		return
	}
	s.logError(ctx, "task failed, requeueing", map[string]any{
		"topic": topic,
		"error": err.Error(),
	})
	_ = delivery.Nack(ctx, JobNackOptions{
		Requeue: true,
		Delay:   workerRequeueDelay,
		Reason:  err.Error(),
	})
}
