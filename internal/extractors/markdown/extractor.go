// Package markdown extracts segments from Markdown rulebooks.
//
// Every heading opens a section that collects the paragraphs, lists and
// code blocks beneath it. GFM tables become their own segments when table
// extraction is on. An HTML comment of the form <!-- page 42 --> sets the
// printed page for the content that follows it.
package markdown

import (
	"context"
	"iter"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/extractors/layout"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles Markdown documents.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{md: goldmark.New(goldmark.WithExtensions(extension.Table))}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "markdown"
}

// Extract yields one segment per heading section and one per table.
func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentRef, documentID string,
	cfg domain.ExtractionConfig) iter.Seq2[domain.RawSegment, error] {
	return func(yield func(domain.RawSegment, error) bool) {
		src, err := layout.ReadFile(ctx, doc.URI)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		layout.Seq(e.Segments(src, documentID, cfg), nil)(yield)
	}
}

// Segments parses Markdown source into segments.
func (e *Extractor) Segments(src []byte, documentID string, cfg domain.ExtractionConfig) []domain.RawSegment {
	w := &walker{
		src: src,
		cfg: cfg,
		b:   layout.NewBuilder(documentID, cfg),
	}
	root := e.md.Parser().Parse(text.NewReader(src))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n)
	}
	w.flush()
	return w.out
}

type walker struct {
	src []byte
	cfg domain.ExtractionConfig
	b   *layout.Builder
	out []domain.RawSegment

	page    int
	section []string
	pages   domain.PageRange
	heading bool
}

func (w *walker) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		w.flush()
		w.heading = true
		w.add(inlineText(n, w.src))
	case *ast.HTMLBlock:
		raw := linesText(n, w.src)
		if n.HasClosure() {
			raw += string(n.ClosureLine.Value(w.src))
		}
		if m := layout.PageMarker.FindStringSubmatch(raw); m != nil {
			w.page, _ = strconv.Atoi(m[1])
		}
	case *east.Table:
		rows := tableRows(n, w.src)
		if !w.cfg.ExtractTables {
			w.add(rows)
			return
		}
		w.flush()
		if seg, ok := w.b.Segment(rows, w.here(), domain.HintTable); ok {
			w.out = append(w.out, seg)
		}
	case *ast.ThematicBreak:
	default:
		w.add(blockText(n, w.src))
	}
}

func (w *walker) here() domain.PageRange {
	return domain.PageRange{Start: w.page, End: w.page}
}

func (w *walker) add(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	w.section = append(w.section, s)
	w.pages = w.pages.Union(w.here())
}

func (w *walker) flush() {
	if len(w.section) == 0 {
		return
	}
	body := strings.Join(w.section, "\n\n")
	if w.cfg.MergeHyphenated {
		body = layout.MergeHyphenated(body)
	}
	hint := ""
	if w.heading && len(w.section) == 1 {
		hint = domain.HintHeading
	}
	if seg, ok := w.b.Segment(body, w.pages, hint); ok {
		w.out = append(w.out, seg)
	}
	w.section = nil
	w.pages = domain.PageRange{}
	w.heading = false
}

func blockText(n ast.Node, src []byte) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return inlineText(n, src)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return strings.TrimRight(linesText(n, src), "\n")
	case *ast.List:
		var items []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			items = append(items, "- "+blockText(c, src))
		}
		return strings.Join(items, "\n")
	default:
		var parts []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if s := blockText(c, src); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
}

// inlineText renders inline content without Markdown markup.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func linesText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// tableRows renders a table as pipe-delimited rows.
func tableRows(n *east.Table, src []byte) string {
	var rows []string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(rows, "\n")
}
