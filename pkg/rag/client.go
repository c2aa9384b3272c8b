package rag

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/bestrag/pkg/document"
	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/telemetry"
)

// DefaultSearchLimit matches the published client's default.
const DefaultSearchLimit = 10

// defaultPrefetchLimit bounds the dense/sparse candidate sets recalled
// before the late-interaction rerank.
const defaultPrefetchLimit = 20

// IngestRecorder receives a record of every completed ingestion run.
// The catalog package provides a SQLite-backed implementation.
type IngestRecorder interface {
	RecordIngest(ctx context.Context, rec IngestRecord) error
}

// IngestRecord describes one completed ingestion run.
type IngestRecord struct {
	Filename   string
	Checksum   string
	Collection string
	Pages      int
	Written    int
	Skipped    int
	Failed     int
	IngestedAt time.Time
}

// IngestReport is the per-document outcome of StorePDFEmbeddings.
type IngestReport struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Written  int    `json:"written"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// Client orchestrates extraction, embedding, and storage. All connection
// state is immutable after construction, so a Client is safe for
// concurrent use.
type Client struct {
	store      VectorStore
	embedder   *HybridEmbedder
	extractor  document.Extractor
	schema     Schema
	collection string
	workers    int
	batchSize  int
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *telemetry.IngestMetrics
	recorder   IngestRecorder
}

// Option configures a Client.
type Option func(*Client)

// WithWorkers bounds concurrent per-page embedding calls during ingestion.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBatchSize bounds points per upsert request.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches an ingestion metrics tracker.
func WithMetrics(m *telemetry.IngestMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRecorder attaches an ingestion catalog.
func WithRecorder(r IngestRecorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// New creates a Client bound to the given store, embedder, and extractor.
// Collection is the target collection name, used for logging and metric
// attribution; the store itself is already bound to it.
func New(store VectorStore, embedder *HybridEmbedder, extractor document.Extractor, collection string, schema Schema, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New(errors.CodeInvalidInput, "vector store is required", nil)
	}
	if embedder == nil || embedder.Dense == nil || embedder.Sparse == nil || embedder.Late == nil {
		return nil, errors.New(errors.CodeInvalidInput, "all three embedders are required", nil)
	}
	if extractor == nil {
		return nil, errors.New(errors.CodeInvalidInput, "document extractor is required", nil)
	}
	if schema.DenseSize == 0 || schema.LateSize == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "schema dimensions must be positive", nil)
	}

	c := &Client{
		store:      store,
		embedder:   embedder,
		extractor:  extractor,
		schema:     schema,
		collection: collection,
		workers:    4,
		batchSize:  32,
		logger:     slog.Default(),
		tracer:     otel.Tracer("bestrag"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Initialize ensures the target collection exists with the hybrid schema.
// Call once after construction; safe to call again.
func (c *Client) Initialize(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "rag.ensure_collection",
		trace.WithAttributes(telemetry.CollectionAttrs(c.collection)...))
	defer span.End()

	if err := c.store.EnsureCollection(ctx, c.schema); err != nil {
		span.SetAttributes(telemetry.ErrorAttrs(err)...)
		c.metrics.RecordError(ctx, err, "store")
		return err
	}
	return nil
}

// Search embeds the query into all three representations and issues one
// hybrid ranking request. Results are ordered by non-increasing score;
// an empty result set is not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "rag.search",
		trace.WithAttributes(attribute.Int(telemetry.AttrQueryLimit, limit)))
	defer span.End()

	if limit <= 0 {
		return nil, errors.New(errors.CodeInvalidInput, "limit must be positive", nil).
			WithContext("limit", limit)
	}

	start := time.Now()
	vectors, err := c.embedder.Embed(ctx, document.CleanText(query))
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttrs(err)...)
		c.metrics.RecordError(ctx, err, "embedder")
		return nil, err
	}

	results, err := c.store.Query(ctx, HybridQuery{
		Vectors:       vectors,
		Limit:         uint64(limit),
		PrefetchLimit: defaultPrefetchLimit,
	})
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttrs(err)...)
		c.metrics.RecordError(ctx, err, "store")
		return nil, err
	}

	span.SetAttributes(attribute.Int(telemetry.AttrResultCount, len(results)))
	c.metrics.RecordSearch(ctx, c.collection, time.Since(start))
	return results, nil
}

// DeletePDFEmbeddings removes every point previously ingested from the
// named file. Deleting a file that was never ingested is not an error.
func (c *Client) DeletePDFEmbeddings(ctx context.Context, filename string) error {
	ctx, span := c.tracer.Start(ctx, "rag.delete",
		trace.WithAttributes(attribute.String(telemetry.AttrDocumentPath, filename)))
	defer span.End()

	if filename == "" {
		return errors.New(errors.CodeInvalidInput, "filename must not be empty", nil)
	}
	if err := c.store.DeleteByFilename(ctx, filename); err != nil {
		span.SetAttributes(telemetry.ErrorAttrs(err)...)
		c.metrics.RecordError(ctx, err, "store")
		return err
	}
	return nil
}

// Count returns the number of points currently stored.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	return c.store.Count(ctx)
}
