package mcp

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestServeHTTPStopsOnContextCancel(t *testing.T) {
	srv := NewServer("bestrag-test", "0.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.ServeHTTP(ctx, "127.0.0.1:0")
	}()

	// Give the listener a moment to bind before stopping it.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestStdioStopsOnContextCancel(t *testing.T) {
	srv := NewServer("bestrag-test", "0.0.0")

	// A pipe that never delivers input keeps the read loop blocked, so
	// only the canceled context can end the serve call.
	in, _ := io.Pipe()
	defer in.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.serveStreams(ctx, in, io.Discard)
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stdio serve did not stop after context cancellation")
	}
}
