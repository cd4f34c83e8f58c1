// Package app wires the listener subsystems into a running application.
//
// New builds the dialog machine, the command sinks and the session
// orchestrator from the config. Run starts capture and the reconnect loop,
// Shutdown tears everything down in order. Providers come from cmd/jarvis
// via the config registry; tests inject mocks through [Providers] and the
// functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/jarvis/internal/command"
	"github.com/MrWong99/jarvis/internal/config"
	"github.com/MrWong99/jarvis/internal/dialog"
	"github.com/MrWong99/jarvis/internal/health"
	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

// Providers holds the two pluggable endpoints of the pipeline.
type Providers struct {
	Recognizer stt.Recognizer
	Capture    audio.Capture
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	level    *slog.LevelVar
	extra    []command.Sink
	origins  []string
	queue    *audio.FrameQueue
	dialog   *dialog.Machine
	orch     *session.Orchestrator
	async    *command.Async
	hub      *command.Broadcaster
	health   *health.Handler
	captured bool

	mu       sync.Mutex
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the telemetry instruments. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the log level at runtime.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithCommandSink adds a sink next to the configured ones.
func WithCommandSink(name string, h command.Handler) Option {
	return func(a *App) { a.extra = append(a.extra, command.Sink{Name: name, Handler: h}) }
}

// WithOriginPatterns sets the origins accepted by the /commands websocket.
func WithOriginPatterns(patterns ...string) Option {
	return func(a *App) { a.origins = patterns }
}

// New creates an App. Both providers are required.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Recognizer == nil {
		return nil, errors.New("app: recognizer provider is required")
	}
	if providers.Capture == nil {
		return nil, errors.New("app: capture provider is required")
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.dialog = dialog.NewMachine(NewMatcher(cfg.Listen), dialog.WithNotifier(dialog.LogNotifier{}))

	sinks, err := a.buildSinks()
	if err != nil {
		return nil, fmt.Errorf("app: init commands: %w", err)
	}
	a.async = command.NewAsync(command.NewMulti(a.metrics, sinks...), cfg.Commands.QueueSize)

	l := cfg.Listen
	frameSamples := int(int64(l.SampleRate) * l.FrameDuration.Nanoseconds() / 1e9)
	a.queue = audio.NewFrameQueue()
	a.orch, err = session.New(session.Config{
		Recognizer: providers.Recognizer,
		Stream: stt.StreamConfig{
			Encoding:        stt.LINEAR16,
			SampleRate:      l.SampleRate,
			Language:        l.Language,
			InterimResults:  l.Interim(),
			SingleUtterance: true,
			Model:           cfg.Providers.Recognizer.Model,
		},
		Deadline:      l.SessionDeadline,
		OverlapFrames: audio.OverlapFrames(l.Overlap, l.SampleRate, frameSamples),
		Queue:         a.queue,
		Dialog:        a.dialog,
		Commands:      a.async,
		Metrics:       a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init session: %w", err)
	}

	checkers := []health.Checker{health.RecognizerReady(a.orch)}
	if r, ok := providers.Capture.(health.Runner); ok {
		checkers = append(checkers, health.CaptureRunning(r))
	}
	a.health = health.New(checkers, health.WithInfo(
		health.Info{Name: "dialog_state", Value: func() string { return a.dialog.State().String() }},
		health.Info{Name: "sessions", Value: func() string { return fmt.Sprint(a.orch.Sessions()) }},
	))
	return a, nil
}

func (a *App) buildSinks() ([]command.Sink, error) {
	c := a.cfg.Commands
	var sinks []command.Sink
	if c.LogEnabled() {
		sinks = append(sinks, command.Sink{Name: "log", Handler: command.LogHandler{}})
	}
	if c.WebhookURL != "" {
		wh, err := command.NewWebhook(c.WebhookURL, command.WithTimeout(c.WebhookTimeout))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, command.Sink{Name: "webhook", Handler: command.NewBreaker(wh, command.BreakerConfig{Name: "webhook"})})
	}
	if c.WebSocket {
		a.hub = command.NewBroadcaster(a.origins...)
		sinks = append(sinks, command.Sink{Name: "websocket", Handler: a.hub})
	}
	return append(sinks, a.extra...), nil
}

// NewMatcher builds the wake-word matcher selected by l.
func NewMatcher(l config.ListenConfig) dialog.Matcher {
	if !l.Phonetic {
		return dialog.NewWordMatcher(l.WakeWord)
	}
	var opts []dialog.PhoneticOption
	if l.PhoneticThreshold > 0 {
		opts = append(opts, dialog.WithPhoneticThreshold(l.PhoneticThreshold))
	}
	return dialog.NewPhoneticMatcher(l.WakeWord, opts...)
}

// Dialog returns the dialog state machine.
func (a *App) Dialog() *dialog.Machine { return a.dialog }

// Orchestrator returns the session orchestrator.
func (a *App) Orchestrator() *session.Orchestrator { return a.orch }

// Register mounts the health probes and, when enabled, the /commands
// websocket on mux.
func (a *App) Register(mux *http.ServeMux) {
	a.health.Register(mux)
	if a.hub != nil {
		mux.Handle("GET /commands", a.hub)
	}
}

// Run starts capture and blocks in the session loop until ctx is cancelled
// or a session fails fatally. Capture is stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	sink := countingSink{queue: a.queue, metrics: a.metrics, ctx: ctx}
	if err := a.providers.Capture.Start(ctx, sink); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}
	a.mu.Lock()
	a.captured = true
	a.mu.Unlock()
	slog.Info("listening", "wake_word", a.cfg.Listen.WakeWord, "phonetic", a.cfg.Listen.Phonetic)

	err := a.orch.Run(ctx)
	a.stopCapture()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

func (a *App) stopCapture() {
	a.mu.Lock()
	started := a.captured
	a.captured = false
	a.mu.Unlock()
	if !started {
		return
	}
	if err := a.providers.Capture.Stop(); err != nil {
		slog.Warn("capture stop error", "err", err)
	}
}

// ApplyConfig applies the hot-reloadable part of a config change and logs
// the fields that need a restart. It is meant as a config.Watcher callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(LogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.WakeWordChanged {
		a.dialog.SetMatcher(NewMatcher(new.Listen))
		slog.Info("wake word matcher updated", "wake_word", new.Listen.WakeWord, "phonetic", new.Listen.Phonetic)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "fields", d.RestartRequired)
	}
}

// Shutdown stops capture, closes the frame queue, flushes pending commands
// and closes the recognizer. Remaining steps are skipped once ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		a.stopCapture()
		a.queue.Close()

		if err := a.async.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush commands: %w", err))
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			return
		}
		if c, ok := a.providers.Recognizer.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close recognizer: %w", err))
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}

// LogLevel maps a config level to its slog level.
func LogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// countingSink forwards captured frames into the queue and counts them.
type countingSink struct {
	queue   *audio.FrameQueue
	metrics *observe.Metrics
	ctx     context.Context
}

func (s countingSink) Push(f audio.AudioFrame) bool {
	if !s.queue.Push(f) {
		return false
	}
	s.metrics.FramesCaptured.Add(s.ctx, 1)
	return true
}
