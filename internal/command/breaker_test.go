package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errSink = errors.New("sink unavailable")

// flakySink fails while fail is set and counts calls.
type flakySink struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (s *flakySink) HandleCommand(context.Context, Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return errSink
	}
	return nil
}

func (s *flakySink) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

// fakeClock is a manually advanced clock for breaker tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(next Handler, cfg BreakerConfig) (*Breaker, *fakeClock) {
	b := NewBreaker(next, cfg)
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b.now = clk.now
	return b, clk
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(&flakySink{}, BreakerConfig{})
	if b.maxFailures != 5 || b.resetTimeout != 30*time.Second || b.halfOpenMax != 1 {
		t.Errorf("defaults = %d/%s/%d", b.maxFailures, b.resetTimeout, b.halfOpenMax)
	}
	if b.State() != BreakerClosed {
		t.Errorf("initial state = %v", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	sink := &flakySink{fail: true}
	b, _ := newTestBreaker(sink, BreakerConfig{Name: "webhook", MaxFailures: 3})
	ctx := context.Background()

	for range 3 {
		if err := b.HandleCommand(ctx, Command{}); !errors.Is(err, errSink) {
			t.Fatalf("err = %v, want sink error", err)
		}
	}
	if b.State() != BreakerOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.HandleCommand(ctx, Command{}); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if sink.calls != 3 {
		t.Errorf("sink called %d times, want 3", sink.calls)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	sink := &flakySink{fail: true}
	b, _ := newTestBreaker(sink, BreakerConfig{MaxFailures: 2})
	ctx := context.Background()

	_ = b.HandleCommand(ctx, Command{})
	sink.setFail(false)
	_ = b.HandleCommand(ctx, Command{})
	sink.setFail(true)
	_ = b.HandleCommand(ctx, Command{})

	if b.State() != BreakerClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probeFail bool
		want      BreakerState
	}{
		{"probe succeeds", false, BreakerClosed},
		{"probe fails", true, BreakerOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &flakySink{fail: true}
			b, clk := newTestBreaker(sink, BreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
			ctx := context.Background()

			_ = b.HandleCommand(ctx, Command{})
			if b.State() != BreakerOpen {
				t.Fatalf("state = %v, want open", b.State())
			}
			clk.advance(time.Minute)
			if b.State() != BreakerHalfOpen {
				t.Fatalf("state after timeout = %v, want half-open", b.State())
			}

			sink.setFail(tt.probeFail)
			_ = b.HandleCommand(ctx, Command{})
			if got := b.State(); got != tt.want {
				t.Errorf("state after probe = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBreaker_CancelledCallerDoesNotCount(t *testing.T) {
	b, _ := newTestBreaker(HandlerFunc(func(ctx context.Context, _ Command) error {
		return ctx.Err()
	}), BreakerConfig{MaxFailures: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.HandleCommand(ctx, Command{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(&flakySink{fail: true}, BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	_ = b.HandleCommand(context.Background(), Command{})
	b.Reset()
	if b.State() != BreakerClosed {
		t.Errorf("state after Reset = %v, want closed", b.State())
	}
}

func TestBreakerState_String(t *testing.T) {
	for s, want := range map[BreakerState]string{
		BreakerClosed:    "closed",
		BreakerOpen:      "open",
		BreakerHalfOpen:  "half-open",
		BreakerState(42): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
