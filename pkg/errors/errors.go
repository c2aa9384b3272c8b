// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling for BestRAG. Every error
// that crosses a package boundary carries an ErrorCode so callers can
// branch on failure class instead of string matching.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies BestRAG errors for monitoring and caller branching.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid (empty text,
	// non-positive limit, malformed arguments).
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConnection indicates the vector database endpoint is unreachable.
	CodeConnection ErrorCode = "CONNECTION_ERROR"

	// CodeUnauthorized indicates the API key was rejected.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeSchemaMismatch indicates an existing collection's vector schema
	// conflicts with the one this client requires.
	CodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// CodeModelUnavailable indicates an embedding backend could not be
	// reached or failed to produce a vector.
	CodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"

	// CodeUnreadableDocument indicates a document could not be parsed.
	CodeUnreadableDocument ErrorCode = "UNREADABLE_DOCUMENT"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource (file, collection) was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// RAGError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type RAGError struct {
	Code       ErrorCode
	Message    string
	Err        error
	Context    map[string]interface{}
	StatusCode int // HTTP-ish status for surfaces that need one
}

// Error implements the error interface.
func (e *RAGError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *RAGError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *RAGError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Message string                 `json:"message"`
		Code    string                 `json:"code"`
		Err     string                 `json:"error,omitempty"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Message: e.Message,
		Code:    string(e.Code),
		Err:     causeString(e.Err),
		Context: e.Context,
	})
}

func causeString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// New creates a new RAGError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *RAGError {
	return &RAGError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *RAGError) WithContext(key string, value interface{}) *RAGError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// AsRAGError attempts to convert an error to a RAGError.
// Returns the error as RAGError if one is found in the chain, or wraps it
// as CodeInternal otherwise.
func AsRAGError(err error) *RAGError {
	if err == nil {
		return nil
	}
	var re *RAGError
	if stderrors.As(err, &re) {
		return re
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the ErrorCode of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsRAGError(err).Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var re *RAGError
	return stderrors.As(err, &re) && re.Code == code
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeUnauthorized:
		return 401
	case CodeInvalidInput, CodeUnreadableDocument:
		return 400
	case CodeTimeout:
		return 408
	case CodeSchemaMismatch:
		return 409
	case CodeConnection, CodeModelUnavailable:
		return 503
	default:
		return 500
	}
}
