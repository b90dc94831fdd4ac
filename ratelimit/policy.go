// Package ratelimit paces outbound delivery traffic: replay drains ramp
// through rate tiers, half-open endpoints get a minimum gap between
// attempts, and Retry-After responses translate into waits.
package ratelimit

import (
	"math"
	"time"
)

// TierPolicy walks a ladder of per-second delivery rates. The drain starts
// at the lowest tier, advances one tier after a run of consecutive
// successes, and drops back to the start on any failure. Not safe for
// concurrent use; each drain owns its policy.
type TierPolicy struct {
	tiers        []int
	advanceAfter int
	index        int
	streak       int
}

func NewTierPolicy(tiers []int, advanceAfter int) *TierPolicy {
	if len(tiers) == 0 {
		tiers = []int{1}
	}
	cleaned := make([]int, 0, len(tiers))
	for _, tier := range tiers {
		if tier > 0 {
			cleaned = append(cleaned, tier)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []int{1}
	}
	if advanceAfter <= 0 {
		advanceAfter = 5
	}
	return &TierPolicy{tiers: cleaned, advanceAfter: advanceAfter}
}

// Rate returns the current tier in events per second.
func (p *TierPolicy) Rate() int {
	if p == nil || len(p.tiers) == 0 {
		return 1
	}
	return p.tiers[p.index]
}

// Interval returns the pause between sends at the current tier, rounded up
// to whole milliseconds.
func (p *TierPolicy) Interval() time.Duration {
	rate := p.Rate()
	ms := int64(math.Ceil(1000 / float64(rate)))
	return time.Duration(ms) * time.Millisecond
}

func (p *TierPolicy) RecordSuccess() {
	if p == nil {
		return
	}
	p.streak++
	if p.streak >= p.advanceAfter && p.index < len(p.tiers)-1 {
		p.index++
		p.streak = 0
	}
}

// RecordFailure drops back to the first tier and clears the streak.
func (p *TierPolicy) RecordFailure() {
	if p == nil {
		return
	}
	p.index = 0
	p.streak = 0
}
