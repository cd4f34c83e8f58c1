// Package health serves the liveness and readiness probes.
//
//   - /healthz always returns 200 while the process can serve HTTP.
//   - /readyz returns 200 only when every registered [Checker] passes.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail"),
// a "checks" map with the outcome of each checker and an optional "info" map
// of point-in-time facts about the listening loop (dialog state, session
// count).
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// ErrNotRunning is reported by [CaptureRunning] while the capture source is
// stopped.
var ErrNotRunning = errors.New("not running")

// Checker is a named readiness check. Check returns nil when the component is
// ready and must respect ctx.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Info is a named value reported alongside the checks. It never affects the
// readiness verdict.
type Info struct {
	Name  string
	Value func() string
}

// Runner is implemented by capture sources.
type Runner interface {
	Running() bool
}

// Readier is implemented by the session orchestrator.
type Readier interface {
	Ready(ctx context.Context) error
}

// CaptureRunning returns a checker that fails while r is not running.
func CaptureRunning(r Runner) Checker {
	return Checker{Name: "capture", Check: func(context.Context) error {
		if !r.Running() {
			return ErrNotRunning
		}
		return nil
	}}
}

// RecognizerReady returns a checker that fails until r has opened a session
// and while the most recent open attempt failed.
func RecognizerReady(r Readier) Checker {
	return Checker{Name: "recognizer", Check: r.Ready}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Info   map[string]string `json:"info,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
	info     []Info
}

// Option configures a [Handler].
type Option func(*Handler)

// WithInfo adds values reported on /readyz.
func WithInfo(info ...Info) Option {
	return func(h *Handler) { h.info = append(h.info, info...) }
}

// New creates a [Handler] evaluating checkers on each /readyz request.
func New(checkers []Checker, opts ...Option) *Handler {
	h := &Handler{checkers: append([]Checker(nil), checkers...)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under a [checkTimeout] deadline
// derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)
	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
				return nil
			}
			checks[c.Name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	if len(h.info) > 0 {
		res.Info = make(map[string]string, len(h.info))
		for _, i := range h.info {
			res.Info[i.Name] = i.Value()
		}
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
