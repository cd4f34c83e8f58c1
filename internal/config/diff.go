package config

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// Hot-applicable changes.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// WakeWordChanged is set when the wake word, the phonetic flag or the
	// phonetic threshold changed; the matcher is rebuilt in place.
	WakeWordChanged bool

	// RestartRequired lists the dotted paths of changed fields that only
	// take effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.WakeWordChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and classifies every change as hot
// applicable or restart-required.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	ol, nl := old.Listen, new.Listen
	if ol.WakeWord != nl.WakeWord || ol.Phonetic != nl.Phonetic || ol.PhoneticThreshold != nl.PhoneticThreshold {
		d.WakeWordChanged = true
	}

	restart := func(path string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, path)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("listen.language", ol.Language != nl.Language)
	restart("listen.sample_rate", ol.SampleRate != nl.SampleRate)
	restart("listen.frame_duration", ol.FrameDuration != nl.FrameDuration)
	restart("listen.overlap", ol.Overlap != nl.Overlap)
	restart("listen.session_deadline", ol.SessionDeadline != nl.SessionDeadline)
	restart("listen.interim_results", ol.Interim() != nl.Interim())
	restart("providers.recognizer", !entryEqual(old.Providers.Recognizer, new.Providers.Recognizer))
	restart("providers.capture", !entryEqual(old.Providers.Capture, new.Providers.Capture))
	restart("commands", !commandsEqual(old.Commands, new.Commands))

	return d
}

func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.BaseURL != b.BaseURL || a.Model != b.Model || len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		w, ok := b.Options[k]
		if !ok || !scalarEqual(v, w) {
			return false
		}
	}
	return true
}

// scalarEqual compares decoded YAML option values. Nested maps and lists are
// treated as changed.
func scalarEqual(a, b any) bool {
	switch a.(type) {
	case string, bool, int, float64:
		return a == b
	}
	return false
}

func commandsEqual(a, b CommandsConfig) bool {
	return a.LogEnabled() == b.LogEnabled() &&
		a.WebhookURL == b.WebhookURL &&
		a.WebhookTimeout == b.WebhookTimeout &&
		a.WebSocket == b.WebSocket &&
		a.QueueSize == b.QueueSize
}
