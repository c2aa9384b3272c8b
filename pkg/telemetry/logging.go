// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ConfigureSlog builds the process logger and installs it as the slog
// default. Records emitted inside an active span carry trace_id and
// span_id so log lines can be joined with exported traces.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var base slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		base = slog.NewJSONHandler(output, opts)
	} else {
		base = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(&spanContextHandler{next: base})
	slog.SetDefault(logger)
	return logger
}

// spanContextHandler decorates records with the ambient span identity.
// Attributes already present on the record win over the ambient ones.
type spanContextHandler struct {
	next slog.Handler
}

func (h *spanContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			if !hasAttr(record, "trace_id") {
				record.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
			}
			if !hasAttr(record, "span_id") {
				record.AddAttrs(slog.String("span_id", sc.SpanID().String()))
			}
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *spanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *spanContextHandler) WithGroup(name string) slog.Handler {
	return &spanContextHandler{next: h.next.WithGroup(name)}
}

func hasAttr(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
