package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jllopis/bestrag/pkg/errors"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"underscore runs", "foo___bar", "foobar"},
		{"newlines become spaces", "line one\nline two", "line one line two"},
		{"whitespace collapses", "too    many\t spaces", "too many spaces"},
		{"bullets removed", "● first ■ second ○ third", "first second third"},
		{"smart quotes normalized", "“quoted” and ‘single’", `"quoted" and "single"`},
		{"dashes normalized", "range 1–2 and a—b", "range 1-2 and a-b"},
		{"non-ascii stripped", "café résumé", "caf rsum"},
		{"zero width stripped", "a\u200Bb\uFEFFc", "abc"},
		{"trimmed", "  padded  ", "padded"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractPagesMissingFile(t *testing.T) {
	e := NewPDFExtractor()
	_, err := e.ExtractPages(filepath.Join(t.TempDir(), "absent.pdf"))
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestExtractPagesMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	e := NewPDFExtractor()
	_, err := e.ExtractPages(path)
	if !errors.HasCode(err, errors.CodeUnreadableDocument) {
		t.Fatalf("expected UNREADABLE_DOCUMENT, got %v", err)
	}
}

func TestPageHasText(t *testing.T) {
	if (Page{Number: 1, Text: "   "}).HasText() {
		t.Fatal("whitespace-only page should not count as text")
	}
	if !(Page{Number: 1, Text: "hello"}).HasText() {
		t.Fatal("expected page with text")
	}
}
