package domain

import "fmt"

// Structural hints attached to segments by extractors.
const (
	HintTable     = "table"
	HintHeading   = "heading"
	HintParagraph = "paragraph"
	HintList      = "list"
)

// PageRange is an inclusive span of printed pages.
// A zero range means the page is unknown.
type PageRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// IsZero returns true if no page information is present.
func (p PageRange) IsZero() bool {
	return p.Start == 0 && p.End == 0
}

// Union returns the smallest range covering both p and other.
// Zero ranges are ignored.
func (p PageRange) Union(other PageRange) PageRange {
	if p.IsZero() {
		return other
	}
	if other.IsZero() {
		return p
	}
	out := p
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// String formats the range for citations: "p. 5" or "pp. 5-7".
func (p PageRange) String() string {
	switch {
	case p.IsZero():
		return ""
	case p.End <= p.Start:
		return fmt.Sprintf("p. %d", p.Start)
	default:
		return fmt.Sprintf("pp. %d-%d", p.Start, p.End)
	}
}

// RawSegment is a piece of text produced by an extractor.
// Segments are read-only to the pipeline.
type RawSegment struct {
	// ID identifies the segment within its document, e.g. "doc#000012".
	ID string `json:"id" yaml:"id"`

	// Text is the extracted text.
	Text string `json:"text" yaml:"text"`

	// Pages is where the text appears in the printed book.
	Pages PageRange `json:"pages" yaml:"pages"`

	// DocumentID is the document this segment came from.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Hint is an optional structural hint such as HintTable or HintHeading.
	Hint string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// ClassifiedSegment is a RawSegment tagged with its content type.
type ClassifiedSegment struct {
	RawSegment `yaml:",inline"`

	// Type is the content type assigned by the classifier.
	Type ContentType `json:"type" yaml:"type"`
}

// DocumentRef identifies a rulebook document to ingest.
type DocumentRef struct {
	// URI is the location of the document (a local path for file extractors).
	URI string `json:"uri"`

	// Format overrides extension-based extractor selection (e.g. "pdf", "markdown").
	Format string `json:"format,omitempty"`
}

// DocumentInfo is the citation metadata shared by every chunk of a document.
type DocumentInfo struct {
	// ID is the stable document identifier.
	ID string `json:"id"`

	// GameSystem is the rules system, e.g. "dnd5e".
	GameSystem string `json:"game_system"`

	// Book is the book title used in citations.
	Book string `json:"book"`

	// Version is the edition or printing, e.g. "5.1".
	Version string `json:"version,omitempty"`
}

// Validate checks the fields required for citations.
func (d DocumentInfo) Validate() error {
	if d.GameSystem == "" {
		return fmt.Errorf("%w: game system is required", ErrInvalidInput)
	}
	if d.Book == "" {
		return fmt.Errorf("%w: book name is required", ErrInvalidInput)
	}
	return nil
}
