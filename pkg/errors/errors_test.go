package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(CodeInvalidInput, "query must not be empty", nil)
	want := "[INVALID_INPUT] query must not be empty"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	wrapped := New(CodeConnection, "upsert failed", stderrors.New("dial tcp: refused"))
	if wrapped.Error() != "[CONNECTION_ERROR] upsert failed: dial tcp: refused" {
		t.Fatalf("unexpected wrapped format: %q", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := New(CodeModelUnavailable, "embed failed", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestAsRAGError(t *testing.T) {
	typed := New(CodeSchemaMismatch, "collection schema conflicts", nil)
	wrapped := fmt.Errorf("ensure collection: %w", typed)

	got := AsRAGError(wrapped)
	if got.Code != CodeSchemaMismatch {
		t.Fatalf("expected SCHEMA_MISMATCH, got %s", got.Code)
	}

	untyped := AsRAGError(stderrors.New("boom"))
	if untyped.Code != CodeInternal {
		t.Fatalf("expected INTERNAL_ERROR for untyped errors, got %s", untyped.Code)
	}

	if AsRAGError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("search: %w", New(CodeTimeout, "deadline exceeded", nil))
	if !HasCode(err, CodeTimeout) {
		t.Fatal("expected HasCode to match through wrapping")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("unexpected code match")
	}
}

func TestStatusCodes(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeNotFound:           404,
		CodeUnauthorized:       401,
		CodeInvalidInput:       400,
		CodeUnreadableDocument: 400,
		CodeTimeout:            408,
		CodeSchemaMismatch:     409,
		CodeConnection:         503,
		CodeModelUnavailable:   503,
		CodeInternal:           500,
	}
	for code, want := range cases {
		if got := New(code, "x", nil).StatusCode; got != want {
			t.Fatalf("code %s: expected status %d, got %d", code, want, got)
		}
	}
}

func TestWithContext(t *testing.T) {
	err := New(CodeUnreadableDocument, "cannot parse pdf", nil).
		WithContext("path", "/tmp/sample.pdf").
		WithContext("page", 3)
	if err.Context["path"] != "/tmp/sample.pdf" {
		t.Fatalf("missing path context: %v", err.Context)
	}
	if err.Context["page"] != 3 {
		t.Fatalf("missing page context: %v", err.Context)
	}
}
