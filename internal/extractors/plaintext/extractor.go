// Package plaintext extracts segments from plain text rulebooks.
// Form feeds or page marker comments split pages; blank lines split
// paragraphs.
package plaintext

import (
	"context"
	"iter"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/extractors/layout"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "text"
}

// Extract yields the document's paragraphs.
func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentRef, documentID string,
	cfg domain.ExtractionConfig) iter.Seq2[domain.RawSegment, error] {
	return func(yield func(domain.RawSegment, error) bool) {
		data, err := layout.ReadFile(ctx, doc.URI)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		pages := layout.Clean(Pages(string(data)), cfg)
		layout.Seq(layout.Segments(documentID, layout.Blocks(pages, cfg), cfg), nil)(yield)
	}
}

// Pages splits text on form feeds, falling back to page marker comments.
// A document with neither is a single page of unknown number.
func Pages(text string) []layout.Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\f")
	if len(parts) == 1 {
		return layout.SplitMarkedPages(text)
	}
	pages := make([]layout.Page, len(parts))
	for i, p := range parts {
		pages[i] = layout.Page{Number: i + 1, Text: p}
	}
	return pages
}
