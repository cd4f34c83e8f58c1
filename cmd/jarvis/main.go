// Command jarvis listens to a microphone, waits for the wake word and hands
// the next utterance to the configured command sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"

	"github.com/MrWong99/jarvis/internal/app"
	"github.com/MrWong99/jarvis/internal/config"
	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/audio/portaudio"
	"github.com/MrWong99/jarvis/pkg/audio/wavfile"
	"github.com/MrWong99/jarvis/pkg/provider/stt"
	"github.com/MrWong99/jarvis/pkg/provider/stt/google"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "jarvis.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "jarvis: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "jarvis: %v\n", err)
		}
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(app.LogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("jarvis starting",
		"version", version,
		"config", *configPath,
		"wake_word", cfg.Listen.WakeWord,
		"recognizer", cfg.Providers.Recognizer.Name,
		"capture", cfg.Providers.Capture.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Registry:       promReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(cfg, providers, app.WithMetrics(metrics), app.WithLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig,
		config.WithWatcherLogger(slog.Default().With("component", "config")))
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	mux := http.NewServeMux()
	application.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler(promReg))
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	serveErr := startServer(srv, stop)

	code := 0
	if err := application.Run(ctx); err != nil {
		slog.Error("listener stopped", "err", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("stopping")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := <-serveErr; err != nil {
		code = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	slog.Info("goodbye")
	return code
}

// startServer serves srv in the background. A serve failure other than a
// graceful shutdown cancels the run through stop and is delivered on the
// returned channel, which is closed once the server has stopped.
func startServer(srv *http.Server, stop context.CancelFunc) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			errc <- err
			stop()
		}
	}()
	return errc
}

// registerBuiltinProviders wires the built-in recognizer and capture
// factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterRecognizer("google", func(ctx context.Context, entry config.ProviderEntry) (stt.Recognizer, error) {
		var opts []google.Option
		if f := entry.StringOption("credentials_file", ""); f != "" {
			opts = append(opts, google.WithCredentialsFile(f))
		}
		if entry.BaseURL != "" {
			opts = append(opts, google.WithEndpoint(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, google.WithModel(entry.Model))
		}
		if q := entry.StringOption("quota_project", ""); q != "" {
			opts = append(opts, google.WithClientOptions(option.WithQuotaProject(q)))
		}
		return google.New(ctx, opts...)
	})

	reg.RegisterCapture("portaudio", func(entry config.ProviderEntry, l config.ListenConfig) (audio.Capture, error) {
		return portaudio.New(
			portaudio.WithDevice(entry.StringOption("device", "")),
			portaudio.WithSampleRate(l.SampleRate),
			portaudio.WithFrameDuration(l.FrameDuration),
		), nil
	})

	reg.RegisterCapture("wavfile", func(entry config.ProviderEntry, l config.ListenConfig) (audio.Capture, error) {
		path := entry.StringOption("path", "")
		if path == "" {
			return nil, errors.New("wavfile: options.path is required")
		}
		return wavfile.New(path,
			wavfile.WithRealtime(entry.BoolOption("realtime", true)),
			wavfile.WithSampleRate(l.SampleRate),
			wavfile.WithFrameDuration(l.FrameDuration),
		), nil
	})

	for _, kind := range []string{"recognizer", "capture"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates the recognizer and capture named in cfg.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	rec, err := reg.CreateRecognizer(ctx, cfg.Providers.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("create recognizer %q: %w", cfg.Providers.Recognizer.Name, err)
	}
	slog.Info("provider created", "kind", "recognizer", "name", cfg.Providers.Recognizer.Name)

	capture, err := reg.CreateCapture(cfg.Providers.Capture, cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("create capture %q: %w", cfg.Providers.Capture.Name, err)
	}
	slog.Info("provider created", "kind", "capture", "name", cfg.Providers.Capture.Name)

	return &app.Providers{Recognizer: rec, Capture: capture}, nil
}
