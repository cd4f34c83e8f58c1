// Package config provides the configuration schema, loader, watcher and
// provider registry for the jarvis listener.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Listen    ListenConfig    `yaml:"listen"`
	Providers ProvidersConfig `yaml:"providers"`
	Commands  CommandsConfig  `yaml:"commands"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr serves /healthz, /readyz, /metrics and /commands.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// ListenConfig tunes the listening loop.
type ListenConfig struct {
	// WakeWord is one or more words that arm the assistant. Required.
	WakeWord string `yaml:"wake_word"`

	// Phonetic enables Double Metaphone fuzzy matching of the wake word.
	Phonetic bool `yaml:"phonetic"`

	// PhoneticThreshold is the minimum Jaro-Winkler similarity for a phonetic
	// match. Zero selects the matcher default.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`

	FrameDuration time.Duration `yaml:"frame_duration"`

	// Overlap is how much recent audio is replayed at the start of the next
	// recognizer session.
	Overlap time.Duration `yaml:"overlap"`

	// SessionDeadline is the hard lifetime of one recognizer session.
	SessionDeadline time.Duration `yaml:"session_deadline"`

	// InterimResults requests partial transcripts. A nil value means true.
	InterimResults *bool `yaml:"interim_results"`
}

// Interim reports the effective interim-results setting.
func (l ListenConfig) Interim() bool {
	return l.InterimResults == nil || *l.InterimResults
}

// ProvidersConfig selects the recognizer and capture implementations. Each
// entry names a constructor registered in the [Registry].
type ProvidersConfig struct {
	Recognizer ProviderEntry `yaml:"recognizer"`
	Capture    ProviderEntry `yaml:"capture"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "google", "portaudio").
	Name string `yaml:"name"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a provider-specific model.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] as a string, or def when absent or not a
// string.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// BoolOption returns Options[key] as a bool, or def when absent or not a bool.
func (e ProviderEntry) BoolOption(key string, def bool) bool {
	if v, ok := e.Options[key].(bool); ok {
		return v
	}
	return def
}

// CommandsConfig selects where recognised commands are delivered.
type CommandsConfig struct {
	// Log writes every command to the structured log. A nil value means true.
	Log *bool `yaml:"log"`

	// WebhookURL, when set, receives every command as a JSON POST.
	WebhookURL     string        `yaml:"webhook_url"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`

	// WebSocket broadcasts commands to subscribers of GET /commands.
	WebSocket bool `yaml:"websocket"`

	// QueueSize bounds the number of commands waiting for delivery.
	QueueSize int `yaml:"queue_size"`
}

// LogEnabled reports the effective log-sink setting.
func (c CommandsConfig) LogEnabled() bool {
	return c.Log == nil || *c.Log
}
