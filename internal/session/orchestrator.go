// Package session runs the listening loop: one recognizer session per
// utterance, rebuilt back to back over a shared frame queue and overlap
// window, with transcripts driving the dialog state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/jarvis/internal/command"
	"github.com/MrWong99/jarvis/internal/dialog"
	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

// DefaultDeadline bounds the lifetime of one recognizer session: three times
// the service's 60 s streaming limit plus margin.
const DefaultDeadline = 185 * time.Second

// Config configures an [Orchestrator].
type Config struct {
	// Recognizer opens one stream per session. Required.
	Recognizer stt.Recognizer

	// Stream is the handshake sent at the start of every session. Defaults
	// to [stt.DefaultStreamConfig] when zero.
	Stream stt.StreamConfig

	// Deadline is the hard lifetime of a session. Defaults to 185s if zero.
	Deadline time.Duration

	// OverlapFrames is the overlap window capacity in frames. Zero disables
	// overlap replay.
	OverlapFrames int

	// Queue is the frame queue shared with the capture source. A fresh queue
	// is created when nil.
	Queue *audio.FrameQueue

	// Dialog consumes partial and final transcripts. Required.
	Dialog *dialog.Machine

	// Commands receives every completed command. May be nil.
	Commands command.Handler

	// Metrics records session telemetry. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Orchestrator owns the reconnect loop. Each cycle builds a fresh
// [audio.Aggregator] over the shared queue and window, opens a recognizer
// stream and runs a send flow and a receive flow until the stream ends.
//
// Run must be called at most once at a time.
type Orchestrator struct {
	rec      stt.Recognizer
	stream   stt.StreamConfig
	deadline time.Duration
	queue    *audio.FrameQueue
	window   *audio.OverlapWindow
	dialog   *dialog.Machine
	commands command.Handler
	metrics  *observe.Metrics

	seq atomic.Uint64

	mu      sync.Mutex
	opened  bool
	lastErr error
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Recognizer == nil {
		return nil, errors.New("session: recognizer is required")
	}
	if cfg.Dialog == nil {
		return nil, errors.New("session: dialog machine is required")
	}
	if cfg.Stream == (stt.StreamConfig{}) {
		cfg.Stream = stt.DefaultStreamConfig()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.Queue == nil {
		cfg.Queue = audio.NewFrameQueue()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		rec:      cfg.Recognizer,
		stream:   cfg.Stream,
		deadline: cfg.Deadline,
		queue:    cfg.Queue,
		window:   audio.NewOverlapWindow(cfg.OverlapFrames),
		dialog:   cfg.Dialog,
		commands: cfg.Commands,
		metrics:  cfg.Metrics,
	}, nil
}

// Queue returns the frame queue capture sources push into.
func (o *Orchestrator) Queue() *audio.FrameQueue { return o.queue }

// Dialog returns the dialog state machine.
func (o *Orchestrator) Dialog() *dialog.Machine { return o.dialog }

// Sessions returns the number of sessions started so far.
func (o *Orchestrator) Sessions() uint64 { return o.seq.Load() }

// Ready reports nil once a session has been opened and the most recent open
// attempt succeeded.
func (o *Orchestrator) Ready(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastErr != nil {
		return o.lastErr
	}
	if !o.opened {
		return ErrNoSession
	}
	return nil
}

func (o *Orchestrator) setOpenResult(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = err
	if err == nil {
		o.opened = true
	}
}

// Run cycles recognizer sessions until ctx is cancelled or a session fails.
//
// It returns nil when ctx is cancelled or the frame queue is closed; the
// transport closure caused by cancellation is not an error. Any other failure
// (non-OK service status, session deadline, transport error) ends the loop
// and is returned; no further session is attempted.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := o.runSession(ctx)
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil, errors.Is(err, audio.ErrQueueClosed):
			return nil
		default:
			return err
		}
	}
}

// runSession runs one recognizer session to completion.
func (o *Orchestrator) runSession(parent context.Context) error {
	seq := o.seq.Add(1)
	ctx, span := observe.StartSessionSpan(parent, seq)
	defer span.End()
	log := observe.Logger(ctx).With("session", seq)

	sctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()
	g, gctx := errgroup.WithContext(sctx)

	stream, err := o.rec.Open(gctx, o.stream)
	if err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		o.setOpenResult(err)
		o.metrics.RecordSessionError(ctx, "open")
		span.RecordError(err)
		return fmt.Errorf("session %d: open: %w", seq, err)
	}
	defer stream.Cancel()
	o.setOpenResult(nil)

	start := time.Now()
	o.metrics.SessionsStarted.Add(ctx, 1)
	o.metrics.ActiveSessions.Add(ctx, 1)
	defer func() {
		o.metrics.ActiveSessions.Add(ctx, -1)
		o.metrics.SessionDuration.Record(ctx, time.Since(start).Seconds())
	}()
	log.Debug("recognizer session opened", "overlap_frames", o.window.Len())

	agg := audio.NewAggregator(o.queue, o.window)
	agg.OnOverlap = func(n int) {
		o.metrics.OverlapBytes.Add(ctx, int64(n))
		log.Debug("replaying overlap", "bytes", n)
	}

	var closeRequested atomic.Bool
	requestClose := func(reason string) {
		if !closeRequested.CompareAndSwap(false, true) {
			log.Debug("close already requested", "reason", reason)
			return
		}
		if !o.queue.PushSentinel() {
			log.Debug("sentinel already pending", "reason", reason)
			return
		}
		log.Debug("close requested", "reason", reason)
	}

	scope := &sessionScope{seq: seq, run: ctx, bounded: sctx, log: log}
	g.Go(func() error {
		return o.send(gctx, scope, stream, agg)
	})
	g.Go(func() error {
		return o.receive(gctx, scope, stream, requestClose)
	})

	err = g.Wait()
	if err != nil && parent.Err() == nil {
		span.RecordError(err)
	}
	log.Debug("recognizer session ended", "duration", time.Since(start), "err", err)
	return err
}

// sessionScope carries the contexts of one session by role. ctx arguments
// passed alongside it are the errgroup context shared by both flows.
type sessionScope struct {
	seq uint64
	// run is the caller's context carrying the session span. It is done only
	// on shutdown.
	run context.Context
	// bounded is run limited by the session deadline.
	bounded context.Context
	log     *slog.Logger
}

// send forwards aggregator chunks into stream until the close sentinel is
// consumed. After a failed Send it keeps draining, so the sentinel protocol
// completes and undelivered audio still lands in the overlap window.
func (o *Orchestrator) send(ctx context.Context, s *sessionScope, stream stt.Stream, agg *audio.Aggregator) error {
	log := s.log
	failed := false
	for {
		chunk, err := agg.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			if !failed {
				if err := stream.CloseSend(); err != nil {
					log.Debug("close send failed", "err", err)
				}
			}
			return nil
		case errors.Is(err, audio.ErrQueueClosed):
			return err
		case err != nil:
			// Cancelled with the session; receive reports the cause.
			return nil
		}
		if failed {
			continue
		}
		if err := stream.Send(chunk); err != nil {
			failed = true
			log.Warn("sending audio failed, draining until session closes", "err", err)
			continue
		}
		o.metrics.RecordChunk(s.run, len(chunk))
	}
}

// receive reads responses until the recognizer closes the stream, driving the
// dialog and the close protocol.
func (o *Orchestrator) receive(ctx context.Context, s *sessionScope, stream stt.Stream, requestClose func(string)) error {
	log, seq := s.log, s.seq
	for {
		resp, err := stream.Recv()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				requestClose("remote closed")
				return nil
			case s.run.Err() != nil:
				return nil
			case errors.Is(err, stt.ErrDeadlineExceeded) || errors.Is(s.bounded.Err(), context.DeadlineExceeded):
				o.metrics.RecordSessionError(s.run, "deadline")
				log.Error("recognizer session hit its deadline without an utterance boundary",
					"deadline", o.deadline)
				return fmt.Errorf("session %d: %w", seq, ErrSessionDeadline)
			case ctx.Err() != nil:
				return nil
			default:
				o.metrics.RecordSessionError(s.run, "transport")
				return fmt.Errorf("session %d: receive: %w", seq, err)
			}
		}

		ev, ok := Classify(resp)
		if !ok {
			continue
		}
		o.metrics.RecordTranscriptEvent(s.run, ev.Kind.String())

		switch ev.Kind {
		case KindError:
			o.metrics.RecordSessionError(s.run, "service")
			log.Error("recognizer reported an error", "code", ev.Code, "message", ev.Message)
			return &ServiceError{Code: ev.Code, Message: ev.Message}
		case KindEndOfUtterance:
			requestClose("end of utterance")
		case KindPartial, KindFinal:
			o.handleTranscript(s.run, seq, ev, log)
		}
	}
}

func (o *Orchestrator) handleTranscript(ctx context.Context, seq uint64, ev Event, log *slog.Logger) {
	before := o.dialog.State()
	text, ok := o.dialog.Feed(ctx, dialog.Input{Text: ev.Text, Final: ev.Kind == KindFinal})
	if before == dialog.AwaitingWakeWord && o.dialog.State() != dialog.AwaitingWakeWord {
		o.metrics.WakeDetections.Add(ctx, 1)
		log.Info("wake word detected", "text", ev.Text)
	}
	if !ok {
		return
	}
	log.Info("command ready", "text", text)
	if o.commands == nil {
		return
	}
	cmd := command.Command{Text: text, At: time.Now(), Session: seq}
	if err := o.commands.HandleCommand(ctx, cmd); err != nil {
		log.Error("command delivery failed", "text", text, "err", err)
	}
}
