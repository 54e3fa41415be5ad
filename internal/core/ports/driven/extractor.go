package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// Extractor turns a document into raw text segments.
//
// The returned sequence is finite and restartable: ranging over it again
// re-reads the document from the start. A non-nil error ends the sequence
// and should wrap domain.ErrExtraction.
type Extractor interface {
	// Name identifies the extractor, e.g. "markdown" or "pdf".
	Name() string

	// Extract yields the document's segments in reading order.
	Extract(ctx context.Context, doc domain.DocumentRef, documentID string,
		cfg domain.ExtractionConfig) iter.Seq2[domain.RawSegment, error]
}

// ExtractorRegistry selects an extractor for a document.
type ExtractorRegistry interface {
	// For returns the extractor for the document's format or file extension.
	For(doc domain.DocumentRef) (Extractor, error)

	// Formats lists the supported formats.
	Formats() []string
}
