// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration for BestRAG:
// slog configuration, exporter setup, and the semantic attributes used
// on ingestion and search spans.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/jllopis/bestrag/pkg/errors"
)

// Semantic conventions for BestRAG telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Document / ingestion attributes
	AttrDocumentPath  = "bestrag.document.path"
	AttrDocumentPages = "bestrag.document.pages"
	AttrPageNumber    = "bestrag.page.number"
	AttrPointsWritten = "bestrag.ingest.points_written"
	AttrPagesSkipped  = "bestrag.ingest.pages_skipped"
	AttrPagesFailed   = "bestrag.ingest.pages_failed"

	// Collection attributes
	AttrCollection = "bestrag.collection.name"

	// Embedding attributes
	AttrEmbedProvider = "bestrag.embed.provider"
	AttrEmbedModel    = "bestrag.embed.model"
	AttrEmbedKind     = "bestrag.embed.kind" // "dense", "sparse", "late"

	// Search attributes
	AttrQueryLimit   = "bestrag.search.limit"
	AttrResultCount  = "bestrag.search.result_count"
	AttrSearchSource = "bestrag.search.source" // "cli", "mcp"

	// Error attributes
	AttrErrorCode = "bestrag.error.code"
)

// CollectionAttrs returns the span attributes for a collection-scoped call.
func CollectionAttrs(collection string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCollection, collection),
	}
}

// ErrorAttrs returns span attributes describing a typed error.
func ErrorAttrs(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
	}
}
