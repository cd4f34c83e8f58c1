package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/jarvis/internal/dialog"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":9090"
	DefaultLanguage        = "en-US"
	DefaultSampleRate      = 16000
	DefaultFrameDuration   = 100 * time.Millisecond
	DefaultOverlap         = time.Second
	DefaultSessionDeadline = 185 * time.Second
	DefaultWebhookTimeout  = 10 * time.Second
	DefaultQueueSize       = 16
	DefaultRecognizer      = "google"
	DefaultCapture         = "portaudio"
)

// ValidProviderNames lists the built-in provider names per kind. [Validate]
// warns about names outside this list.
var ValidProviderNames = map[string][]string{
	"recognizer": {"google"},
	"capture":    {"portaudio", "wavfile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	l := &cfg.Listen
	if l.Language == "" {
		l.Language = DefaultLanguage
	}
	if l.SampleRate == 0 {
		l.SampleRate = DefaultSampleRate
	}
	if l.FrameDuration == 0 {
		l.FrameDuration = DefaultFrameDuration
	}
	if l.Overlap == 0 {
		l.Overlap = DefaultOverlap
	}
	if l.SessionDeadline == 0 {
		l.SessionDeadline = DefaultSessionDeadline
	}

	if cfg.Providers.Recognizer.Name == "" {
		cfg.Providers.Recognizer.Name = DefaultRecognizer
	}
	if cfg.Providers.Capture.Name == "" {
		cfg.Providers.Capture.Name = DefaultCapture
	}

	if cfg.Commands.WebhookTimeout == 0 {
		cfg.Commands.WebhookTimeout = DefaultWebhookTimeout
	}
	if cfg.Commands.QueueSize == 0 {
		cfg.Commands.QueueSize = DefaultQueueSize
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	l := cfg.Listen
	switch {
	case strings.TrimSpace(l.WakeWord) == "":
		errs = append(errs, errors.New("listen.wake_word is required"))
	case dialog.NewWordMatcher(l.WakeWord).Phrase() == "":
		errs = append(errs, fmt.Errorf("listen.wake_word %q contains no letters or digits and can never match", l.WakeWord))
	}
	if l.PhoneticThreshold < 0 || l.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("listen.phonetic_threshold %.2f is out of range [0, 1]", l.PhoneticThreshold))
	}
	if l.PhoneticThreshold != 0 && !l.Phonetic {
		slog.Warn("listen.phonetic_threshold has no effect unless listen.phonetic is enabled")
	}
	if l.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("listen.sample_rate %d must be positive", l.SampleRate))
	}
	if l.FrameDuration < 0 {
		errs = append(errs, fmt.Errorf("listen.frame_duration %s must be positive", l.FrameDuration))
	}
	if l.Overlap < 0 {
		errs = append(errs, fmt.Errorf("listen.overlap %s must not be negative", l.Overlap))
	}
	if l.SessionDeadline < 0 {
		errs = append(errs, fmt.Errorf("listen.session_deadline %s must be positive", l.SessionDeadline))
	}
	if l.SessionDeadline > 0 && l.Overlap >= l.SessionDeadline {
		errs = append(errs, fmt.Errorf("listen.overlap %s must be shorter than listen.session_deadline %s", l.Overlap, l.SessionDeadline))
	}

	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("capture", cfg.Providers.Capture.Name)
	if cfg.Providers.Capture.Name == "wavfile" && cfg.Providers.Capture.StringOption("path", "") == "" {
		errs = append(errs, errors.New("providers.capture.options.path is required for the wavfile capture"))
	}

	c := cfg.Commands
	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "http://") && !strings.HasPrefix(c.WebhookURL, "https://") {
		errs = append(errs, fmt.Errorf("commands.webhook_url %q must be an http or https URL", c.WebhookURL))
	}
	if c.WebhookTimeout < 0 {
		errs = append(errs, fmt.Errorf("commands.webhook_timeout %s must be positive", c.WebhookTimeout))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("commands.queue_size %d must be positive", c.QueueSize))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of the
// built-in names for kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
