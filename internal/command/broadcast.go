package command

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const subscriberBuffer = 16

// Broadcaster pushes every command as a JSON text message to all connected
// websocket clients. It is an http.Handler; mount it at GET /commands.
//
// A client that falls behind by more than its buffer loses commands rather
// than slowing the others.
type Broadcaster struct {
	opts *websocket.AcceptOptions

	mu   sync.Mutex
	subs map[chan Command]struct{}
}

// NewBroadcaster returns a Broadcaster. originPatterns lists the hosts
// allowed to connect cross-origin, as in websocket.AcceptOptions.
func NewBroadcaster(originPatterns ...string) *Broadcaster {
	return &Broadcaster{
		opts: &websocket.AcceptOptions{OriginPatterns: originPatterns},
		subs: make(map[chan Command]struct{}),
	}
}

// HandleCommand implements Handler. It never blocks.
func (b *Broadcaster) HandleCommand(_ context.Context, cmd Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- cmd:
		default:
			slog.Warn("command subscriber lagging, dropping command", "text", cmd.Text)
		}
	}
	return nil
}

// Subscribers returns the number of connected clients.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) subscribe() chan Command {
	ch := make(chan Command, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan Command) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// ServeHTTP upgrades the request and streams commands until the client
// disconnects or the request context ends.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, b.opts)
	if err != nil {
		slog.Warn("command feed: accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	// Clients only listen; CloseRead handles their control frames and
	// cancels ctx when they go away.
	ctx := conn.CloseRead(r.Context())
	slog.Debug("command feed: client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case cmd := <-ch:
			if err := wsjson.Write(ctx, conn, cmd); err != nil {
				slog.Debug("command feed: write failed", "err", err)
				return
			}
		}
	}
}
