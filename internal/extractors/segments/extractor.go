// Package segments reads pre-segmented rulebooks from YAML or JSON, for
// books that were split by hand or by an external tool.
//
// The file is either a list of segments or a mapping with a "segments"
// list. Each entry has text and optionally page (or pages with start and
// end) and hint.
package segments

import (
	"context"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/extractors/layout"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Entry is one segment as written in the file.
type Entry struct {
	Text  string           `yaml:"text"`
	Page  int              `yaml:"page"`
	Pages domain.PageRange `yaml:"pages"`
	Hint  string           `yaml:"hint"`
}

type file struct {
	Segments []Entry `yaml:"segments"`
}

// Extractor handles segment files.
type Extractor struct{}

// New creates a new segment file extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "segments"
}

// Extract yields the file's segments in order.
func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentRef, documentID string,
	cfg domain.ExtractionConfig) iter.Seq2[domain.RawSegment, error] {
	return func(yield func(domain.RawSegment, error) bool) {
		data, err := layout.ReadFile(ctx, doc.URI)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		entries, err := Parse(data)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}

		b := layout.NewBuilder(documentID, cfg)
		for _, entry := range entries {
			text := entry.Text
			if cfg.MergeHyphenated {
				text = layout.MergeHyphenated(text)
			}
			pages := entry.Pages
			if pages.IsZero() && entry.Page > 0 {
				pages = domain.PageRange{Start: entry.Page, End: entry.Page}
			}
			seg, ok := b.Segment(text, pages, entry.Hint)
			if !ok {
				continue
			}
			if !yield(seg, nil) {
				return
			}
		}
	}
}

// Parse decodes a segment file.
func Parse(data []byte) ([]Entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var entries []Entry
		if err := node.Decode(&entries); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		return entries, nil
	case yaml.MappingNode:
		var f file
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		return f.Segments, nil
	default:
		return nil, fmt.Errorf("%w: expected a list of segments", domain.ErrExtraction)
	}
}
