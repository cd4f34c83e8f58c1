package command

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards every command.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects commands with [ErrCircuitOpen] until the reset
	// timeout elapses.
	BreakerOpen

	// BreakerHalfOpen lets a limited number of probe commands through. One
	// failed probe re-opens the breaker; enough successful probes close it.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults.
type BreakerConfig struct {
	// Name labels log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probes needed to close again. Default: 1.
	HalfOpenMax int
}

// Breaker stops calling a failing sink for a while. While it is open,
// commands are rejected at once instead of each waiting for the sink's
// timeout.
type Breaker struct {
	next         Handler
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu         sync.Mutex
	state      BreakerState
	failures   int
	openedAt   time.Time
	probeOKs   int
	probeInUse int
}

// NewBreaker wraps next.
func NewBreaker(next Handler, cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &Breaker{
		next:         next,
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          time.Now,
	}
}

// HandleCommand forwards cmd unless the breaker is open.
func (b *Breaker) HandleCommand(ctx context.Context, cmd Command) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = b.next.HandleCommand(ctx, cmd)
	// A cancelled caller says nothing about the sink's health.
	if err != nil && ctx.Err() != nil {
		b.release(probe)
		return err
	}
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probeOKs, b.probeInUse = 0, 0
		slog.Info("command sink breaker half-open", "sink", b.name)
	}
	if b.state == BreakerHalfOpen {
		if b.probeInUse >= b.halfOpenMax-b.probeOKs {
			return false, ErrCircuitOpen
		}
		b.probeInUse++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.probeInUse--
	}
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe && b.state == BreakerHalfOpen {
		b.probeInUse--
		if err != nil {
			b.trip()
			return
		}
		b.probeOKs++
		if b.probeOKs >= b.halfOpenMax {
			b.state = BreakerClosed
			b.failures = 0
			slog.Info("command sink breaker closed", "sink", b.name)
		}
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == BreakerClosed && b.failures >= b.maxFailures {
		b.trip()
	}
}

// trip opens the breaker. b.mu must be held.
func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	slog.Warn("command sink breaker open", "sink", b.name, "consecutive_failures", b.failures, "retry_in", b.resetTimeout)
}

// State returns the current state. An open breaker whose timeout has elapsed
// reports half-open; the transition itself happens on the next command.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures, b.probeOKs, b.probeInUse = 0, 0, 0
}
