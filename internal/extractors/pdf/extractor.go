// Package pdf extracts segments from PDF rulebooks.
//
// Text is read page by page so segments carry printed page numbers.
// Repeated running headers and footers, bare page numbers and words
// hyphenated across line ends are cleaned up before paragraphs are split.
package pdf

import (
	"context"
	"fmt"
	"iter"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/extractors/layout"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles PDF documents.
type Extractor struct {
	// pageOffset is added to the PDF page index to get the printed page.
	pageOffset int
}

// Option configures the PDF extractor.
type Option func(*Extractor)

// WithPageOffset shifts page numbers, for books whose printed page 1 is
// not the first page of the file.
func WithPageOffset(offset int) Option {
	return func(e *Extractor) {
		e.pageOffset = offset
	}
}

// New creates a new PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "pdf"
}

// Extract yields the document's paragraphs and tables.
func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentRef, documentID string,
	cfg domain.ExtractionConfig) iter.Seq2[domain.RawSegment, error] {
	return func(yield func(domain.RawSegment, error) bool) {
		pages, err := e.pages(ctx, doc.URI)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		pages = layout.Clean(pages, cfg)
		layout.Seq(layout.Segments(documentID, layout.Blocks(pages, cfg), cfg), nil)(yield)
	}
}

// pages reads the plain text of every page. The pdf reader panics on
// some malformed files, so panics are reported as extraction errors.
func (e *Extractor) pages(ctx context.Context, path string) (pages []layout.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrExtraction, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	defer f.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", domain.ErrExtraction, i, err)
		}
		pages = append(pages, layout.Page{Number: i + e.pageOffset, Text: text})
	}
	return pages, nil
}
