package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jllopis/bestrag/pkg/config"
	"github.com/jllopis/bestrag/pkg/errors"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{
		"--json", "--qdrant", "qdrant.example:6334", "--timeout=5s",
		"search", "--limit", "3", "hello",
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !flags.JSON {
		t.Error("expected JSON output enabled")
	}
	if flags.QdrantAddr != "qdrant.example:6334" {
		t.Errorf("unexpected qdrant addr %q", flags.QdrantAddr)
	}
	if flags.Timeout != 5*time.Second {
		t.Errorf("unexpected timeout %v", flags.Timeout)
	}
	if len(rest) != 4 || rest[0] != "search" {
		t.Errorf("unexpected remaining args %v", rest)
	}
}

func TestParseGlobalFlagsErrors(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--timeout", "bogus"}); err == nil {
		t.Error("expected error for invalid timeout")
	}
	if _, _, err := parseGlobalFlags([]string{"--config"}); err == nil {
		t.Error("expected error for missing config value")
	}
	if _, _, err := parseGlobalFlags([]string{"--nope"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Qdrant.URL = "localhost:6334"
	cfg.Qdrant.Collection = "bestrag"

	applyOverrides(cfg, globalFlags{
		QdrantAddr: "remote:6334",
		Collection: "papers",
		Timeout:    10 * time.Second,
	})

	if cfg.Qdrant.URL != "remote:6334" {
		t.Errorf("url override not applied: %q", cfg.Qdrant.URL)
	}
	if cfg.Qdrant.Collection != "papers" {
		t.Errorf("collection override not applied: %q", cfg.Qdrant.Collection)
	}
	if cfg.Qdrant.Timeout != 10*time.Second {
		t.Errorf("timeout override not applied: %v", cfg.Qdrant.Timeout)
	}
}

// Command helpers report failures as errors so that run's deferred
// cleanup always executes before the process exits.
func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch(context.Background(), "bogus", globalFlags{}, &config.Config{}, slog.Default(), nil)
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRunHistoryRequiresCatalog(t *testing.T) {
	cfg := &config.Config{}
	err := runHistory(context.Background(), globalFlags{}, cfg, nil)
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT when the catalog is disabled, got %v", err)
	}
}

func TestRunIngestRequiresPath(t *testing.T) {
	err := runIngest(context.Background(), globalFlags{}, &config.Config{}, slog.Default(), nil)
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for missing path, got %v", err)
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("short", 80); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	long := "alpha beta gamma delta epsilon"
	if got := truncateMessage(long, 10); got != "alpha b..." {
		t.Errorf("unexpected %q", got)
	}
	if got := truncateMessage("  spaced   out  ", 80); got != "spaced out" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncateMessage("", 80); got != "-" {
		t.Errorf("unexpected %q", got)
	}
}

func TestTruncateMessageKeepsRunesWhole(t *testing.T) {
	accents := "séance séance séance"
	got := truncateMessage(accents, 10)
	if got != "séance ..." {
		t.Errorf("unexpected %q", got)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatalf("truncation split a rune: %q", got)
		}
	}
}
