package extractors

import (
	"github.com/custodia-labs/tome/internal/extractors/docx"
	"github.com/custodia-labs/tome/internal/extractors/html"
	"github.com/custodia-labs/tome/internal/extractors/markdown"
	"github.com/custodia-labs/tome/internal/extractors/pdf"
	"github.com/custodia-labs/tome/internal/extractors/plaintext"
	"github.com/custodia-labs/tome/internal/extractors/segments"
)

// NewDefaultRegistry creates a registry with all built-in extractors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New(), "pdf")
	r.Register(markdown.New(), "md", "markdown")
	r.Register(plaintext.New(), "txt", "text")
	r.Register(html.New(), "html", "htm", "xhtml")
	r.Register(docx.New(), "docx")
	r.Register(segments.New(), "yaml", "yml", "json")
	return r
}
