// Package document extracts per-page text from PDF files for ingestion.
package document

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jllopis/bestrag/pkg/errors"
)

// Page is one unit of extractable content. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Extractor turns a file path into an ordered sequence of pages.
// Implementations must return pages in document order.
type Extractor interface {
	ExtractPages(path string) ([]Page, error)
}

// PDFExtractor reads PDF files from the local filesystem.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns the cleaned text of every page, in order. Pages
// whose text cannot be decoded are returned with empty text so the caller
// can decide how to report them.
func (e *PDFExtractor) ExtractPages(path string) (pages []Page, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, errors.New(errors.CodeNotFound, "pdf file not found", statErr).
				WithContext("path", path)
		}
		return nil, errors.New(errors.CodeUnreadableDocument, "pdf file not readable", statErr).
			WithContext("path", path)
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = errors.New(errors.CodeUnreadableDocument, "pdf parser panicked", fmt.Errorf("%v", r)).
				WithContext("path", path)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeUnreadableDocument, "cannot parse pdf", err).
			WithContext("path", path)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, textErr := p.GetPlainText(nil)
		if textErr != nil {
			slog.Warn("failed to extract page text", "path", path, "page", i, "error", textErr)
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: CleanText(text)})
	}
	return pages, nil
}

// HasText reports whether the page yielded any extractable text.
func (p Page) HasText() bool {
	return strings.TrimSpace(p.Text) != ""
}
