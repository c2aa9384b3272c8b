// SPDX-License-Identifier: Apache-2.0

// Package main implements the bestrag CLI.
package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/jllopis/bestrag/pkg/errors"
)

// CLIError wraps RAGError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.RAGError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(re *errors.RAGError, hint string) *CLIError {
	return &CLIError{
		RAGError: re,
		Hint:     hint,
	}
}

// Unwrap exposes the underlying RAGError so errors.As and HasCode see
// through the CLI wrapper.
func (e *CLIError) Unwrap() error {
	if e.RAGError == nil {
		return nil
	}
	return e.RAGError
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.RAGError == nil {
		return "unknown error"
	}

	msg := e.RAGError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError prints the error with appropriate formatting.
func (e *CLIError) PrintError(json bool) {
	message := e.RAGError.Message
	if e.RAGError.Err != nil {
		message += ": " + e.RAGError.Err.Error()
	}

	if json {
		fmt.Fprintf(os.Stderr, `{"error":{"code":"%s","message":"%s","hint":"%s"}}%s`,
			e.RAGError.Code,
			message,
			e.Hint,
			"\n")
		return
	}

	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", e.RAGError.Code, message)
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

// hintFor maps error codes onto actionable CLI hints.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeConnection:
		return "check that Qdrant is running and --qdrant points at its gRPC port (default 6334)"
	case errors.CodeUnauthorized:
		return "check the qdrant.api_key setting or BESTRAG_QDRANT_API_KEY"
	case errors.CodeSchemaMismatch:
		return "the collection was created with different vector parameters; use a new collection name or drop the old one"
	case errors.CodeModelUnavailable:
		return "check that the embedding server is running at embedder.base_url"
	case errors.CodeUnreadableDocument:
		return "the file is not a readable PDF"
	case errors.CodeTimeout:
		return "try increasing --timeout or check server health"
	case errors.CodeNotFound:
		return "check that the path exists and is readable"
	case errors.CodeInvalidInput:
		return "run 'bestrag help' for usage information"
	default:
		return ""
	}
}

// printCommandError formats any error for the terminal, attaching a hint
// when the error carries a known code. Errors that already are CLIErrors
// keep their original hint.
func printCommandError(err error, json bool) {
	var ce *CLIError
	if stderrors.As(err, &ce) {
		ce.PrintError(json)
		return
	}
	re := errors.AsRAGError(err)
	NewCLIError(re, hintFor(re.Code)).PrintError(json)
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	re := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)

	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(re, hint)
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	re := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(re, "run 'bestrag help' for usage information")
}
