package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/bestrag/pkg/config"
	"github.com/jllopis/bestrag/pkg/errors"
)

func TestInitWritesCommentedConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bestrag.yaml")
	if err := runInit(globalFlags{}, []string{"-out", out}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read generated config: %v", err)
	}
	if !strings.Contains(string(raw), "#") {
		t.Fatal("expected comments in the generated config")
	}

	cfg, err := config.Load(out)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Embedder.Dimension != 384 {
		t.Fatalf("unexpected dimension in generated config: %d", cfg.Embedder.Dimension)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated config does not validate: %v", err)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bestrag.yaml")
	if err := os.WriteFile(out, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	err := runInit(globalFlags{}, []string{"-out", out})
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for existing file, got %v", err)
	}

	if err := runInit(globalFlags{}, []string{"-out", out, "-overwrite"}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
}
