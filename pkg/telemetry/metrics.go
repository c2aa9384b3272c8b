// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/bestrag/pkg/errors"
)

// IngestMetrics tracks ingestion and search activity for production
// monitoring. A nil *IngestMetrics is valid and records nothing, so callers
// can pass it through unconditionally.
type IngestMetrics struct {
	// pagesWritten counts point records written per collection
	pagesWritten metric.Int64Counter

	// pagesSkipped counts pages with no extractable text
	pagesSkipped metric.Int64Counter

	// pagesFailed counts pages whose embedding or upsert failed
	pagesFailed metric.Int64Counter

	// searches counts search requests per collection
	searches metric.Int64Counter

	// searchLatency records end-to-end search duration in milliseconds
	searchLatency metric.Float64Histogram

	// errorCounter tracks total errors by code and component
	errorCounter metric.Int64Counter
}

// NewIngestMetrics creates a metrics tracker with OTEL meters.
func NewIngestMetrics() (*IngestMetrics, error) {
	meter := otel.Meter("bestrag")

	pagesWritten, err := meter.Int64Counter(
		"bestrag.ingest.pages.written",
		metric.WithDescription("Point records written, by collection"),
	)
	if err != nil {
		return nil, err
	}

	pagesSkipped, err := meter.Int64Counter(
		"bestrag.ingest.pages.skipped",
		metric.WithDescription("Pages skipped for lack of extractable text"),
	)
	if err != nil {
		return nil, err
	}

	pagesFailed, err := meter.Int64Counter(
		"bestrag.ingest.pages.failed",
		metric.WithDescription("Pages whose embedding or upsert failed"),
	)
	if err != nil {
		return nil, err
	}

	searches, err := meter.Int64Counter(
		"bestrag.search.requests",
		metric.WithDescription("Search requests, by collection"),
	)
	if err != nil {
		return nil, err
	}

	searchLatency, err := meter.Float64Histogram(
		"bestrag.search.duration_ms",
		metric.WithDescription("End-to-end search duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"bestrag.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	return &IngestMetrics{
		pagesWritten:  pagesWritten,
		pagesSkipped:  pagesSkipped,
		pagesFailed:   pagesFailed,
		searches:      searches,
		searchLatency: searchLatency,
		errorCounter:  errorCounter,
	}, nil
}

// RecordPagesWritten adds to the written-pages counter.
func (m *IngestMetrics) RecordPagesWritten(ctx context.Context, collection string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.pagesWritten.Add(ctx, n, metric.WithAttributes(
		attribute.String(AttrCollection, collection),
	))
}

// RecordPageSkipped counts a page with no extractable text.
func (m *IngestMetrics) RecordPageSkipped(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.pagesSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCollection, collection),
	))
}

// RecordPageFailed counts a page whose embedding or upsert failed.
func (m *IngestMetrics) RecordPageFailed(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.pagesFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCollection, collection),
	))
}

// RecordSearch counts a search request and its duration.
func (m *IngestMetrics) RecordSearch(ctx context.Context, collection string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrCollection, collection))
	m.searches.Add(ctx, 1, attrs)
	m.searchLatency.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// RecordError increments the error counter for the given error and component.
func (m *IngestMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
		attribute.String("component", component),
	))
}
