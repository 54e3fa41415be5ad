// Package html extracts segments from HTML rulebooks, such as SRD pages
// saved from the web. Scripts, styles and navigation chrome are stripped.
// Tables are rendered as pipe-delimited rows.
package html

import (
	"context"
	"html"
	"iter"
	"regexp"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/extractors/layout"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Pre-compiled regular expressions for HTML parsing performance.
var (
	dropTags      = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg|nav|footer)\b[^>]*>.*?</(?:script|style|noscript|head|svg|nav|footer)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	tableTag      = regexp.MustCompile(`(?is)<table[^>]*>(.*?)</table>`)
	rowTag        = regexp.MustCompile(`(?is)<tr(?:\s[^>]*)?>(.*?)</tr>`)
	cellTag       = regexp.MustCompile(`(?is)<t[dh](?:\s[^>]*)?>(.*?)</t[dh]>`)
	blockElements = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|ul|ol|blockquote|pre|section|article)(\s[^>]*)?>`)
	listItems     = regexp.MustCompile(`(?i)<li[^>]*>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags        = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "html"
}

// Extract yields the document's paragraphs and tables.
func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentRef, documentID string,
	cfg domain.ExtractionConfig) iter.Seq2[domain.RawSegment, error] {
	return func(yield func(domain.RawSegment, error) bool) {
		data, err := layout.ReadFile(ctx, doc.URI)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		var pages []layout.Page
		for _, p := range layout.SplitMarkedPages(string(data)) {
			p.Text = StripHTML(p.Text)
			pages = append(pages, p)
		}
		pages = layout.Clean(pages, cfg)
		layout.Seq(layout.Segments(documentID, layout.Blocks(pages, cfg), cfg), nil)(yield)
	}
}

// StripHTML converts HTML to text with blank lines between blocks.
func StripHTML(content string) string {
	content = dropTags.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = tableTag.ReplaceAllStringFunc(content, func(table string) string {
		return "\n\n" + tableRows(tableTag.FindStringSubmatch(table)[1]) + "\n\n"
	})

	content = blockElements.ReplaceAllString(content, "\n\n")
	content = listItems.ReplaceAllString(content, "\n- ")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = multiNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(content)
}

func tableRows(inner string) string {
	var rows []string
	for _, row := range rowTag.FindAllStringSubmatch(inner, -1) {
		var cells []string
		for _, cell := range cellTag.FindAllStringSubmatch(row[1], -1) {
			text := html.UnescapeString(allTags.ReplaceAllString(cell[1], ""))
			cells = append(cells, strings.Join(strings.Fields(text), " "))
		}
		if len(cells) > 0 {
			rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		}
	}
	return strings.Join(rows, "\n")
}
