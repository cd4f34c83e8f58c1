package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/jarvis/internal/config"
)

const baseListenYAML = `
server:
  log_level: info
listen:
  wake_word: jarvis
  sample_rate: 16000
`

// lockedBuffer is a bytes.Buffer safe for the watcher goroutine to log into
// while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// reloadRecorder collects the configs passed to a watcher callback.
type reloadRecorder struct {
	mu    sync.Mutex
	pairs [][2]*config.Config
	fired chan struct{}
}

func newReloadRecorder() *reloadRecorder {
	return &reloadRecorder{fired: make(chan struct{}, 8)}
}

func (r *reloadRecorder) onChange(old, new *config.Config) {
	r.mu.Lock()
	r.pairs = append(r.pairs, [2]*config.Config{old, new})
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

func (r *reloadRecorder) wait(t *testing.T) (old, new *config.Config) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report a reload")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last := r.pairs[len(r.pairs)-1]
	return last[0], last[1]
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// rewrite atomically replaces the file content and moves its mtime forward
// so the change is visible even on filesystems with coarse timestamps.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	writeFile(t, tmp, content)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename %q: %v", tmp, err)
	}
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

func startWatcher(t *testing.T, content string, onChange func(old, new *config.Config), opts ...config.WatcherOption) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	writeFile(t, path, content)
	opts = append([]config.WatcherOption{config.WithInterval(20 * time.Millisecond)}, opts...)
	w, err := config.NewWatcher(path, onChange, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func TestWatcher_InitialLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, "listen:\n  wake_word: jarvis\n", nil)

	cfg := w.Current()
	if cfg.Listen.WakeWord != "jarvis" {
		t.Errorf("wake_word = %q, want jarvis", cfg.Listen.WakeWord)
	}
	if cfg.Listen.SessionDeadline != config.DefaultSessionDeadline {
		t.Errorf("session_deadline = %s, want %s", cfg.Listen.SessionDeadline, config.DefaultSessionDeadline)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestWatcher_ReloadClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		updated     string
		wantWake    string
		wakeChanged bool
		restart     []string
	}{
		{
			name:        "wake word is hot",
			updated:     strings.Replace(baseListenYAML, "wake_word: jarvis", "wake_word: computer", 1),
			wantWake:    "computer",
			wakeChanged: true,
		},
		{
			name:     "sample rate needs restart",
			updated:  strings.Replace(baseListenYAML, "sample_rate: 16000", "sample_rate: 8000", 1),
			wantWake: "jarvis",
			restart:  []string{"listen.sample_rate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := newReloadRecorder()
			w, path := startWatcher(t, baseListenYAML, rec.onChange)

			rewrite(t, path, tt.updated)
			old, cur := rec.wait(t)

			if old.Listen.WakeWord != "jarvis" || cur.Listen.WakeWord != tt.wantWake {
				t.Errorf("wake word %q -> %q, want jarvis -> %q", old.Listen.WakeWord, cur.Listen.WakeWord, tt.wantWake)
			}
			if w.Current() != cur {
				t.Error("Current() is not the config passed to onChange")
			}
			d := config.Diff(old, cur)
			if d.WakeWordChanged != tt.wakeChanged || d.LogLevelChanged {
				t.Errorf("Diff = %+v, want WakeWordChanged=%v and no log level change", d, tt.wakeChanged)
			}
			if !slices.Equal(d.RestartRequired, tt.restart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.restart)
			}
		})
	}
}

func TestWatcher_InvalidEditLogsAndKeepsPrevious(t *testing.T) {
	t.Parallel()
	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := newReloadRecorder()
	w, path := startWatcher(t, baseListenYAML, rec.onChange, config.WithWatcherLogger(logger))
	before := w.Current()

	rewrite(t, path, "listen:\n  wake_word: \"!!!\"\n")

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "keeping previous config") {
		if time.Now().After(deadline) {
			t.Fatalf("no warning logged for the invalid edit; log:\n%s", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "listen.wake_word") {
		t.Errorf("warning does not carry the level and the validation error:\n%s", out)
	}
	if rec.count() != 0 {
		t.Errorf("onChange called %d times for an invalid edit, want 0", rec.count())
	}
	if w.Current() != before {
		t.Error("Current() changed after an invalid edit")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	rec := newReloadRecorder()
	_, path := startWatcher(t, baseListenYAML, rec.onChange, config.WithWatcherLogger(logger))

	rewrite(t, path, baseListenYAML)
	time.Sleep(200 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("onChange called %d times for a touch, want 0", rec.count())
	}
	if strings.Contains(logs.String(), "configuration reloaded") {
		t.Errorf("touch logged a reload:\n%s", logs.String())
	}
}

func TestWatcher_StopWaitsForCallback(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	var returned sync.WaitGroup
	returned.Add(1)

	w, path := startWatcher(t, baseListenYAML, func(_, _ *config.Config) {
		close(entered)
		<-release
		returned.Done()
	})

	rewrite(t, path, strings.Replace(baseListenYAML, "log_level: info", "log_level: debug", 1))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while onChange was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after onChange finished")
	}
	// onChange has returned by the time Stop does.
	returned.Wait()
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, baseListenYAML, nil)
	w.Stop()
	w.Stop()
}
