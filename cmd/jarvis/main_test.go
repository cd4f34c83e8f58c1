package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestStartServer_ListenFailureCancelsRun(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	srv := &http.Server{Addr: busy.Addr().String(), ReadHeaderTimeout: time.Second}

	errc := startServer(srv, stop)
	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("expected a listen error on an occupied port, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("startServer did not report the listen failure")
	}
	if ctx.Err() == nil {
		t.Error("run context was not cancelled after the serve failure")
	}
}

func TestStartServer_GracefulShutdownIsClean(t *testing.T) {
	t.Parallel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	srv := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}

	errc := startServer(srv, stop)
	// Shutdown before or after ListenAndServe starts both end the server
	// with http.ErrServerClosed.
	time.Sleep(50 * time.Millisecond)
	sctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve error after graceful shutdown = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve channel was not closed after Shutdown")
	}
	if ctx.Err() != nil {
		t.Error("graceful shutdown cancelled the run context")
	}
}
