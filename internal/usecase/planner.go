package usecase

import (
	"math/rand"
	"time"

	"SocialPoster/internal/config"
)

// Slot is a computed publication time. Immediate marks the bootstrap-now
// case, which the orchestrator publishes within the same invocation.
type Slot struct {
	At        time.Time
	Immediate bool
}

// Planner computes the next publication timestamp from the last successful
// publish plus a fixed interval and bounded random jitter.
type Planner struct {
	interval       time.Duration
	jitter         time.Duration
	bootstrap      string
	bootstrapDelay time.Duration

	now  func() time.Time
	rand *rand.Rand
}

// NewPlanner builds a planner from schedule configuration.
func NewPlanner(cfg config.ScheduleConfig) *Planner {
	return &Planner{
		interval:       cfg.Interval.Std(),
		jitter:         cfg.Jitter.Std(),
		bootstrap:      cfg.Bootstrap,
		bootstrapDelay: cfg.BootstrapDelay.Std(),
		now:            time.Now,
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextSlot returns the target publish time anchored on lastPublishedAt, or a
// bootstrap slot when no publication ever happened. The returned time is
// never in the past relative to the time of computation.
func (p *Planner) NextSlot(lastPublishedAt *time.Time) Slot {
	now := p.now()

	if lastPublishedAt == nil {
		if p.bootstrap == "immediate" {
			return Slot{At: now, Immediate: true}
		}
		return Slot{At: now.Add(p.bootstrapDelay + p.forwardJitter())}
	}

	at := lastPublishedAt.Add(p.interval + p.symmetricJitter())
	if at.Before(now) {
		// The anchor is stale (the previous post happened long ago); clamp
		// forward so the slot is never retroactively in the past.
		at = now.Add(p.bootstrapDelay + p.forwardJitter())
	}
	return Slot{At: at}
}

// symmetricJitter returns a uniform offset in [-jitter, +jitter].
func (p *Planner) symmetricJitter() time.Duration {
	if p.jitter <= 0 {
		return 0
	}
	return time.Duration(p.rand.Int63n(int64(2*p.jitter)+1)) - p.jitter
}

// forwardJitter returns a uniform offset in [0, jitter].
func (p *Planner) forwardJitter() time.Duration {
	if p.jitter <= 0 {
		return 0
	}
	return time.Duration(p.rand.Int63n(int64(p.jitter) + 1))
}
