// Package layout holds the text cleanup shared by the page-oriented
// extractors: repeated header and footer removal, hyphenated line-break
// merging, paragraph splitting and segment assembly.
package layout

import (
	"context"
	"fmt"
	"iter"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/tome/internal/core/domain"
)

var (
	hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*(\p{Ll})`)
	blankLines  = regexp.MustCompile(`\n[ \t]*\n\s*`)
	digits      = regexp.MustCompile(`\d+`)
	spaces      = regexp.MustCompile(`\s+`)
	pageNumber  = regexp.MustCompile(`^\s*(?:page\s+)?\d+\s*$`)
	pipeRow     = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	tabRow      = regexp.MustCompile(`\S\t+\S`)

	// PageMarker matches the <!-- page 42 --> comments converters leave
	// in Markdown and HTML exports of printed books.
	PageMarker = regexp.MustCompile(`(?i)<!--\s*page\s+(\d+)\s*-->`)
)

// edgeLines is how many lines at the top and bottom of a page are
// considered header or footer candidates.
const edgeLines = 2

// Page is the text of one printed page. Number is zero when unknown.
type Page struct {
	Number int
	Text   string
}

// Block is a paragraph-level piece of text on one page.
type Block struct {
	Text string
	Page int
	Hint string
}

// ReadFile reads a local document, wrapping failures in domain.ErrExtraction.
func ReadFile(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	return data, nil
}

// SplitMarkedPages splits text on page markers. Text before the first
// marker keeps an unknown page number.
func SplitMarkedPages(text string) []Page {
	locs := PageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []Page{{Text: text}}
	}
	var pages []Page
	if head := text[:locs[0][0]]; strings.TrimSpace(head) != "" {
		pages = append(pages, Page{Text: head})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		pages = append(pages, Page{Number: n, Text: text[loc[1]:end]})
	}
	return pages
}

// MergeHyphenated joins words split across a line break ("fire-\nball").
func MergeHyphenated(text string) string {
	return hyphenBreak.ReplaceAllString(text, "$1$2")
}

// Clean applies the configured page cleanup.
func Clean(pages []Page, cfg domain.ExtractionConfig) []Page {
	out := make([]Page, len(pages))
	copy(out, pages)

	if cfg.CleanHeadersFooters {
		repeated := RepeatedEdgeLines(out)
		for i := range out {
			out[i].Text = stripEdges(out[i].Text, repeated)
		}
	}
	if cfg.MergeHyphenated {
		for i := range out {
			out[i].Text = MergeHyphenated(out[i].Text)
		}
	}
	return out
}

// RepeatedEdgeLines returns the normalised header and footer lines that
// appear on more than half of the pages. Page numbers are normalised away
// so running footers like "Chapter 3 | 112" match across pages.
func RepeatedEdgeLines(pages []Page) map[string]bool {
	repeated := make(map[string]bool)
	if len(pages) < 3 {
		return repeated
	}

	counts := make(map[string]int)
	for _, p := range pages {
		seen := make(map[string]bool)
		for _, line := range edges(p.Text) {
			key := edgeKey(line)
			if key != "" && !seen[key] {
				seen[key] = true
				counts[key]++
			}
		}
	}
	for key, n := range counts {
		if n*2 > len(pages) {
			repeated[key] = true
		}
	}
	return repeated
}

func edges(text string) []string {
	lines := nonBlankLines(text)
	if len(lines) <= 2*edgeLines {
		return lines
	}
	return append(lines[:edgeLines:edgeLines], lines[len(lines)-edgeLines:]...)
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func edgeKey(line string) string {
	line = strings.ToLower(strings.TrimSpace(line))
	line = digits.ReplaceAllString(line, "#")
	return spaces.ReplaceAllString(line, " ")
}

// stripEdges removes repeated lines and bare page numbers from the top and
// bottom of a page. Lines in the middle of the page are left alone.
func stripEdges(text string, repeated map[string]bool) string {
	lines := strings.Split(text, "\n")
	drop := func(line string) bool {
		return repeated[edgeKey(line)] || pageNumber.MatchString(line)
	}

	start, removed := 0, 0
	for start < len(lines) && removed < edgeLines {
		if strings.TrimSpace(lines[start]) == "" {
			start++
			continue
		}
		if !drop(lines[start]) {
			break
		}
		start++
		removed++
	}

	end, removed := len(lines), 0
	for end > start && removed < edgeLines {
		if strings.TrimSpace(lines[end-1]) == "" {
			end--
			continue
		}
		if !drop(lines[end-1]) {
			break
		}
		end--
		removed++
	}
	return strings.Join(lines[start:end], "\n")
}

// Blocks splits pages into paragraphs. With tables enabled, paragraphs
// that look tabular carry domain.HintTable.
func Blocks(pages []Page, cfg domain.ExtractionConfig) []Block {
	var blocks []Block
	for _, p := range pages {
		for _, para := range blankLines.Split(p.Text, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			b := Block{Text: para, Page: p.Number}
			if cfg.ExtractTables && LooksTabular(para) {
				b.Hint = domain.HintTable
			}
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// LooksTabular detects pipe-delimited and tab-separated rows.
func LooksTabular(text string) bool {
	pipes, tabs := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if pipeRow.MatchString(line) {
			pipes++
		}
		if tabRow.MatchString(line) {
			tabs++
		}
	}
	return pipes >= 2 || tabs >= 3
}

// Builder turns text into segments with sequential ids, dropping text
// shorter than the configured minimum.
type Builder struct {
	documentID string
	cfg        domain.ExtractionConfig
	n          int
}

// NewBuilder creates a segment builder for one pass over a document.
func NewBuilder(documentID string, cfg domain.ExtractionConfig) *Builder {
	return &Builder{documentID: documentID, cfg: cfg}
}

// Segment builds the next segment. ok is false when the text is too short
// to keep. Tables are never dropped for length. Text with no known page is
// cited as page 1.
func (b *Builder) Segment(text string, pages domain.PageRange, hint string) (seg domain.RawSegment, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return seg, false
	}
	if pages.IsZero() {
		pages = pageRange(1)
	}
	if hint != domain.HintTable && utf8.RuneCountInString(text) < b.cfg.MinTextLength {
		return seg, false
	}
	b.n++
	return domain.RawSegment{
		ID:         fmt.Sprintf("%s#%06d", b.documentID, b.n),
		Text:       text,
		Pages:      pages,
		DocumentID: b.documentID,
		Hint:       hint,
	}, true
}

// Segments assembles blocks into segments. A short block without closing
// punctuation is taken as a heading and joined to the block after it, so
// a spell name stays with its description.
func Segments(documentID string, blocks []Block, cfg domain.ExtractionConfig) []domain.RawSegment {
	b := NewBuilder(documentID, cfg)

	var (
		out     []domain.RawSegment
		heading *Block
	)
	for i := range blocks {
		blk := blocks[i]
		if blk.Hint == "" && isHeading(blk.Text) {
			if heading != nil {
				heading.Text += "\n" + blk.Text
			} else {
				heading = &blk
			}
			continue
		}

		text, pages := blk.Text, pageRange(blk.Page)
		if heading != nil {
			text = heading.Text + "\n" + text
			pages = pageRange(heading.Page).Union(pages)
			heading = nil
		}
		if seg, ok := b.Segment(text, pages, blk.Hint); ok {
			out = append(out, seg)
		}
	}
	if heading != nil {
		if seg, ok := b.Segment(heading.Text, pageRange(heading.Page), domain.HintHeading); ok {
			out = append(out, seg)
		}
	}
	return out
}

// isHeading reports whether a block reads like a title line.
func isHeading(text string) bool {
	if strings.Contains(text, "\n") || utf8.RuneCountInString(text) > 60 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	return !strings.ContainsRune(".!?:;,", last)
}

func pageRange(n int) domain.PageRange {
	return domain.PageRange{Start: n, End: n}
}

// Seq adapts a segment slice, or a read error, to the extractor sequence.
func Seq(segments []domain.RawSegment, err error) iter.Seq2[domain.RawSegment, error] {
	return func(yield func(domain.RawSegment, error) bool) {
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		for _, seg := range segments {
			if !yield(seg, nil) {
				return
			}
		}
	}
}
