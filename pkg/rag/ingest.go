package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/bestrag/pkg/document"
	"github.com/jllopis/bestrag/pkg/telemetry"
)

// StorePDFEmbeddings extracts the PDF page by page, embeds each page, and
// upserts one point per page. It returns the number of points written.
// Pages without extractable text are skipped; a page whose embedding
// fails is logged and counted, not fatal. Storage errors abort and
// propagate.
func (c *Client) StorePDFEmbeddings(ctx context.Context, path string) (int, error) {
	report, err := c.Ingest(ctx, path)
	if err != nil {
		return 0, err
	}
	return report.Written, nil
}

// Ingest is StorePDFEmbeddings with the full per-document breakdown.
func (c *Client) Ingest(ctx context.Context, path string) (*IngestReport, error) {
	ctx, span := c.tracer.Start(ctx, "rag.ingest",
		trace.WithAttributes(attribute.String(telemetry.AttrDocumentPath, path)))
	defer span.End()

	pages, err := c.extractor.ExtractPages(path)
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttrs(err)...)
		c.metrics.RecordError(ctx, err, "extractor")
		return nil, err
	}

	filename := filepath.Base(path)
	report := &IngestReport{Filename: filename, Pages: len(pages)}

	var embeddable []document.Page
	for _, page := range pages {
		if !page.HasText() {
			c.logger.InfoContext(ctx, "skipping page without extractable text",
				"filename", filename, "page", page.Number)
			c.metrics.RecordPageSkipped(ctx, c.collection)
			report.Skipped++
			continue
		}
		embeddable = append(embeddable, page)
	}

	points := c.embedPages(ctx, filename, embeddable, report)

	for start := 0; start < len(points); start += c.batchSize {
		end := start + c.batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := c.store.Upsert(ctx, points[start:end]); err != nil {
			span.SetAttributes(telemetry.ErrorAttrs(err)...)
			c.metrics.RecordError(ctx, err, "store")
			return nil, err
		}
		report.Written += end - start
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrDocumentPages, report.Pages),
		attribute.Int(telemetry.AttrPointsWritten, report.Written),
		attribute.Int(telemetry.AttrPagesSkipped, report.Skipped),
		attribute.Int(telemetry.AttrPagesFailed, report.Failed),
	)
	c.metrics.RecordPagesWritten(ctx, c.collection, int64(report.Written))
	c.logger.InfoContext(ctx, "document ingested",
		"filename", filename,
		"pages", report.Pages,
		"written", report.Written,
		"skipped", report.Skipped,
		"failed", report.Failed)

	if c.recorder != nil {
		rec := IngestRecord{
			Filename:   filename,
			Checksum:   fileChecksum(path),
			Collection: c.collection,
			Pages:      report.Pages,
			Written:    report.Written,
			Skipped:    report.Skipped,
			Failed:     report.Failed,
			IngestedAt: time.Now().UTC(),
		}
		if err := c.recorder.RecordIngest(ctx, rec); err != nil {
			// The catalog is advisory; the vector store is the source of truth.
			c.logger.WarnContext(ctx, "failed to record ingest in catalog", "error", err)
		}
	}

	return report, nil
}

// fileChecksum returns the hex sha256 of the file, or "" when the file
// cannot be read. The catalog record is advisory, so a missing checksum
// never fails the ingest.
func fileChecksum(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// embedPages embeds pages concurrently on a bounded worker pool. Pages
// have no ordering dependency between them; the returned points are in
// page order. Embedding failures mark the page failed and drop it.
func (c *Client) embedPages(ctx context.Context, filename string, pages []document.Page, report *IngestReport) []Point {
	type outcome struct {
		point Point
		err   error
		page  int
	}

	outcomes := make([]outcome, len(pages))
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for i, page := range pages {
		wg.Add(1)
		go func(i int, page document.Page) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vectors, err := c.embedder.Embed(ctx, page.Text)
			if err == nil {
				err = vectors.Validate(c.schema)
			}
			if err != nil {
				outcomes[i] = outcome{err: err, page: page.Number}
				return
			}
			outcomes[i] = outcome{
				page: page.Number,
				point: Point{
					ID:      PointID(filename, page.Number),
					Vectors: vectors,
					Payload: map[string]interface{}{
						PayloadKeyText:     page.Text,
						PayloadKeyPage:     page.Number,
						PayloadKeyFilename: filename,
					},
				},
			}
		}(i, page)
	}
	wg.Wait()

	points := make([]Point, 0, len(pages))
	for _, out := range outcomes {
		if out.err != nil {
			c.logger.WarnContext(ctx, "failed to embed page",
				"filename", filename, "page", out.page, "error", out.err)
			c.metrics.RecordPageFailed(ctx, c.collection)
			c.metrics.RecordError(ctx, out.err, "embedder")
			report.Failed++
			continue
		}
		points = append(points, out.point)
	}
	return points
}
