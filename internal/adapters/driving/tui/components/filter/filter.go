// Package filter provides the content-type filter used by the search view.
package filter

import (
	"strings"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/tome/internal/core/domain"
)

// ContentFilter cycles through "all" and each searchable content type.
type ContentFilter struct {
	options []domain.ContentType
	current int // 0 means all types
	styles  *styles.Styles
}

// New creates a filter that starts at "all".
func New(s *styles.Styles) *ContentFilter {
	if s == nil {
		s = styles.DefaultStyles()
	}
	var options []domain.ContentType
	for _, ct := range domain.AllContentTypes() {
		if ct != domain.ContentTypeUnclassified {
			options = append(options, ct)
		}
	}
	return &ContentFilter{options: options, styles: s}
}

// Next advances to the next type, wrapping back to "all".
func (f *ContentFilter) Next() {
	f.current = (f.current + 1) % (len(f.options) + 1)
}

// Prev moves to the previous type, wrapping to the last one.
func (f *ContentFilter) Prev() {
	f.current = (f.current + len(f.options)) % (len(f.options) + 1)
}

// Reset returns to "all".
func (f *ContentFilter) Reset() {
	f.current = 0
}

// Selected returns the types to filter by; nil means no restriction.
func (f *ContentFilter) Selected() []domain.ContentType {
	if f.current == 0 {
		return nil
	}
	return []domain.ContentType{f.options[f.current-1]}
}

// Label names the current selection.
func (f *ContentFilter) Label() string {
	if f.current == 0 {
		return "All"
	}
	return f.options[f.current-1].Label()
}

// View renders the filter as a row of options with the current one highlighted.
func (f *ContentFilter) View() string {
	parts := make([]string, 0, len(f.options)+1)
	for i := 0; i <= len(f.options); i++ {
		label := "All"
		if i > 0 {
			label = f.options[i-1].Label()
		}
		if i == f.current {
			parts = append(parts, f.styles.Selected.Render(" "+label+" "))
		} else {
			parts = append(parts, f.styles.Muted.Render(" "+label+" "))
		}
	}
	return f.styles.Muted.Render("Type: ") + strings.Join(parts, "")
}
