package rag_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jllopis/bestrag/pkg/document"
	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/rag"
	"github.com/jllopis/bestrag/pkg/rag/memory"
)

var testSchema = rag.Schema{DenseSize: 3, LateSize: 3}

// stubEmbedder produces deterministic vectors from the text itself so
// tests can reason about similarity. Texts listed in failOn fail with
// MODEL_UNAVAILABLE.
type stubEmbedder struct {
	failOn map[string]bool
}

func (s *stubEmbedder) vector(text string) []float32 {
	v := []float32{0, 0, 0}
	for i, r := range text {
		v[i%3] += float32(r%13) / 13
	}
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return []float32{1, 0, 0}
	}
	return v
}

func (s *stubEmbedder) EmbedDense(_ context.Context, text string) ([]float32, error) {
	if s.failOn[text] {
		return nil, errors.New(errors.CodeModelUnavailable, "dense backend down", nil)
	}
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedSparse(_ context.Context, text string) (rag.SparseVector, error) {
	indices := make(map[uint32]float32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, r := range word {
			h = h*31 + uint32(r)
		}
		indices[h]++
	}
	out := rag.SparseVector{}
	for idx, val := range indices {
		out.Indices = append(out.Indices, idx)
		out.Values = append(out.Values, val)
	}
	// order is irrelevant for the in-memory store's dot product
	return out, nil
}

func (s *stubEmbedder) EmbedLate(_ context.Context, text string) ([][]float32, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		words = []string{text}
	}
	out := make([][]float32, len(words))
	for i, w := range words {
		out[i] = s.vector(w)
	}
	return out, nil
}

// stubExtractor serves canned pages keyed by path.
type stubExtractor struct {
	pages map[string][]document.Page
}

func (s *stubExtractor) ExtractPages(path string) ([]document.Page, error) {
	pages, ok := s.pages[path]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "pdf file not found", nil)
	}
	return pages, nil
}

func newTestClient(t *testing.T, failOn map[string]bool, pages map[string][]document.Page) (*rag.Client, *memory.Store) {
	t.Helper()
	store := memory.New()
	embedder := &stubEmbedder{failOn: failOn}
	client, err := rag.New(
		store,
		&rag.HybridEmbedder{Dense: embedder, Sparse: embedder, Late: embedder},
		&stubExtractor{pages: pages},
		"docs",
		testSchema,
		rag.WithWorkers(2),
		rag.WithBatchSize(2),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return client, store
}

func threePages() map[string][]document.Page {
	return map[string][]document.Page{
		"sample.pdf": {
			{Number: 1, Text: "hybrid retrieval systems"},
			{Number: 2, Text: "dense sparse embeddings"},
			{Number: 3, Text: "late interaction scoring"},
		},
	}
}

func TestStorePDFEmbeddingsWritesAllPages(t *testing.T) {
	client, store := newTestClient(t, nil, threePages())
	ctx := context.Background()

	written, err := client.StorePDFEmbeddings(ctx, "sample.pdf")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if written != 3 {
		t.Fatalf("expected 3 points written, got %d", written)
	}
	count, _ := store.Count(ctx)
	if count != 3 {
		t.Fatalf("expected 3 points stored, got %d", count)
	}
}

func TestIngestSkipsPagesWithoutText(t *testing.T) {
	pages := map[string][]document.Page{
		"sample.pdf": {
			{Number: 1, Text: "real content"},
			{Number: 2, Text: "   "},
			{Number: 3, Text: ""},
		},
	}
	client, _ := newTestClient(t, nil, pages)

	report, err := client.Ingest(context.Background(), "sample.pdf")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.Written != 1 || report.Skipped != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIngestIsBestEffortPerPage(t *testing.T) {
	client, store := newTestClient(t,
		map[string]bool{"dense sparse embeddings": true},
		threePages())
	ctx := context.Background()

	report, err := client.Ingest(ctx, "sample.pdf")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.Written != 2 {
		t.Fatalf("expected 2 written, got %d", report.Written)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", report.Failed)
	}
	count, _ := store.Count(ctx)
	if count != 2 {
		t.Fatalf("expected 2 points stored, got %d", count)
	}
}

func TestReingestIsIdempotent(t *testing.T) {
	client, store := newTestClient(t, nil, threePages())
	ctx := context.Background()

	if _, err := client.StorePDFEmbeddings(ctx, "sample.pdf"); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if _, err := client.StorePDFEmbeddings(ctx, "sample.pdf"); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 3 {
		t.Fatalf("expected point count unchanged at 3, got %d", count)
	}
}

func TestIngestMissingFile(t *testing.T) {
	client, _ := newTestClient(t, nil, threePages())
	if _, err := client.StorePDFEmbeddings(context.Background(), "absent.pdf"); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSearchScenario(t *testing.T) {
	client, _ := newTestClient(t, nil, threePages())
	ctx := context.Background()

	if _, err := client.StorePDFEmbeddings(ctx, "sample.pdf"); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	results, err := client.Search(ctx, "sparse embeddings", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) == 0 || len(results) > 5 {
		t.Fatalf("expected between 1 and 5 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatal("results not in non-increasing score order")
		}
	}
	for _, r := range results {
		if r.Payload[rag.PayloadKeyFilename] != "sample.pdf" {
			t.Fatalf("result from unexpected document: %v", r.Payload)
		}
	}
}

func TestSearchValidatesInput(t *testing.T) {
	client, _ := newTestClient(t, nil, threePages())
	ctx := context.Background()

	if _, err := client.Search(ctx, "", 5); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for empty query, got %v", err)
	}
	if _, err := client.Search(ctx, "   ", 5); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for whitespace query, got %v", err)
	}
	if _, err := client.Search(ctx, "ok", 0); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for zero limit, got %v", err)
	}
	if _, err := client.Search(ctx, "ok", -1); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for negative limit, got %v", err)
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	client, _ := newTestClient(t, nil, threePages())
	results, err := client.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result set, got %d", len(results))
	}
}

func TestDeletePDFEmbeddings(t *testing.T) {
	client, store := newTestClient(t, nil, threePages())
	ctx := context.Background()

	if _, err := client.StorePDFEmbeddings(ctx, "sample.pdf"); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if err := client.DeletePDFEmbeddings(ctx, "sample.pdf"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	count, _ := store.Count(ctx)
	if count != 0 {
		t.Fatalf("expected empty collection, got %d", count)
	}

	if err := client.DeletePDFEmbeddings(ctx, ""); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatal("expected INVALID_INPUT for empty filename")
	}
}

type recorderFunc func(context.Context, rag.IngestRecord) error

func (f recorderFunc) RecordIngest(ctx context.Context, rec rag.IngestRecord) error {
	return f(ctx, rec)
}

func TestIngestNotifiesRecorder(t *testing.T) {
	store := memory.New()
	embedder := &stubEmbedder{}
	var recorded []rag.IngestRecord

	client, err := rag.New(
		store,
		&rag.HybridEmbedder{Dense: embedder, Sparse: embedder, Late: embedder},
		&stubExtractor{pages: threePages()},
		"docs",
		testSchema,
		rag.WithRecorder(recorderFunc(func(_ context.Context, rec rag.IngestRecord) error {
			recorded = append(recorded, rec)
			return nil
		})),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()
	if err := client.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := client.StorePDFEmbeddings(ctx, "sample.pdf"); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(recorded) != 1 {
		t.Fatalf("expected one catalog record, got %d", len(recorded))
	}
	if recorded[0].Filename != "sample.pdf" || recorded[0].Written != 3 {
		t.Fatalf("unexpected record: %+v", recorded[0])
	}
}
