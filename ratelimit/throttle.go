package ratelimit

import (
	"sync"
	"time"
)

// Throttle enforces a minimum gap between attempts sharing a key. Reserve
// hands out send slots in order: a caller that must wait gets the duration
// to sleep before proceeding, and the slot is held either way.
type Throttle struct {
	mu   sync.Mutex
	gap  time.Duration
	next map[string]time.Time

	Now func() time.Time
}

func NewThrottle(gap time.Duration) *Throttle {
	return &Throttle{
		gap:  gap,
		next: map[string]time.Time{},
	}
}

func (t *Throttle) Reserve(key string) time.Duration {
	if t == nil || t.gap <= 0 {
		return 0
	}
	now := time.Now()
	if t.Now != nil {
		now = t.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	earliest, ok := t.next[key]
	if !ok || !earliest.After(now) {
		t.next[key] = now.Add(t.gap)
		return 0
	}
	t.next[key] = earliest.Add(t.gap)
	return earliest.Sub(now)
}

// Forget drops the key's reservation, so a state change resets pacing.
func (t *Throttle) Forget(key string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.next, key)
}
