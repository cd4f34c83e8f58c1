package command_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/jarvis/internal/command"
)

type recordingHandler struct {
	mu   sync.Mutex
	cmds []command.Command
	err  error
}

func (h *recordingHandler) HandleCommand(_ context.Context, cmd command.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds = append(h.cmds, cmd)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cmds)
}

func TestMulti_DeliversToAll(t *testing.T) {
	t.Parallel()

	a := &recordingHandler{}
	b := &recordingHandler{err: errors.New("boom")}
	c := &recordingHandler{}
	m := command.NewMulti(nil,
		command.Sink{Name: "a", Handler: a},
		command.Sink{Name: "b", Handler: b},
		command.Sink{Name: "c", Handler: c},
	)

	err := m.HandleCommand(context.Background(), command.Command{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "b: boom") {
		t.Errorf("err = %v, want b's error", err)
	}
	if a.count() != 1 || b.count() != 1 || c.count() != 1 {
		t.Errorf("deliveries a=%d b=%d c=%d, want 1 each", a.count(), b.count(), c.count())
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestAsync_DeliversInOrder(t *testing.T) {
	t.Parallel()

	rec := &recordingHandler{}
	a := command.NewAsync(rec, 4)
	for _, text := range []string{"one", "two", "three"} {
		if err := a.HandleCommand(context.Background(), command.Command{Text: text}); err != nil {
			t.Fatalf("HandleCommand(%q): %v", text, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rec.count() != 3 {
		t.Fatalf("delivered %d, want 3", rec.count())
	}
	for i, want := range []string{"one", "two", "three"} {
		if rec.cmds[i].Text != want {
			t.Errorf("cmds[%d] = %q, want %q", i, rec.cmds[i].Text, want)
		}
	}

	if err := a.HandleCommand(context.Background(), command.Command{Text: "late"}); !errors.Is(err, command.ErrClosed) {
		t.Errorf("after Close err = %v, want ErrClosed", err)
	}
}

func TestAsync_QueueFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := command.HandlerFunc(func(context.Context, command.Command) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	a := command.NewAsync(slow, 1)

	_ = a.HandleCommand(context.Background(), command.Command{Text: "busy"})
	<-started
	if err := a.HandleCommand(context.Background(), command.Command{Text: "queued"}); err != nil {
		t.Fatalf("second command: %v", err)
	}
	if err := a.HandleCommand(context.Background(), command.Command{Text: "dropped"}); !errors.Is(err, command.ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLogHandler(t *testing.T) {
	t.Parallel()
	if err := (command.LogHandler{}).HandleCommand(context.Background(), command.Command{Text: "x"}); err != nil {
		t.Errorf("LogHandler returned %v", err)
	}
}
