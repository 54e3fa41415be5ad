// Package docx extracts segments from Word (.docx) rulebooks.
//
// The document body is read from word/document.xml. Heading styles start
// new blocks, empty paragraphs end them, and explicit or last-rendered page
// breaks advance the page number.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/extractors/layout"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "docx"
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
		pages, err := Pages(data)
		if err != nil {
			yield(domain.RawSegment{}, err)
			return
		}
		pages = layout.Clean(pages, cfg)
		layout.Seq(layout.Segments(documentID, layout.Blocks(pages, cfg), cfg), nil)(yield)
	}
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Elements []bodyElement `xml:",any"`
	} `xml:"body"`
}

// bodyElement is a paragraph (w:p) or a table (w:tbl).
type bodyElement struct {
	XMLName xml.Name
	paragraph
	Rows []tableRow `xml:"tr"`
}

type paragraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []run `xml:"r"`
}

type run struct {
	Text         []textElement  `xml:"t"`
	Breaks       []breakElement `xml:"br"`
	LastRendered []struct{}     `xml:"lastRenderedPageBreak"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

type breakElement struct {
	Type string `xml:"type,attr"`
}

type tableRow struct {
	Cells []struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"tc"`
}

func (p paragraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func (p paragraph) breaksPage() bool {
	for _, r := range p.Runs {
		if len(r.LastRendered) > 0 {
			return true
		}
		for _, br := range r.Breaks {
			if br.Type == "page" {
				return true
			}
		}
	}
	return false
}

func (p paragraph) isHeading() bool {
	style := strings.ToLower(p.Props.Style.Val)
	return strings.HasPrefix(style, "heading") || style == "title"
}

// Pages reads a DOCX archive into pages of blank-line separated blocks.
func Pages(data []byte) ([]layout.Page, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %w", domain.ErrExtraction, err)
	}

	content, err := readDocumentXML(reader)
	if err != nil {
		return nil, err
	}

	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: word/document.xml: %w", domain.ErrExtraction, err)
	}

	var (
		pages []layout.Page
		cur   []string
		block []string
	)
	endBlock := func() {
		if len(block) > 0 {
			cur = append(cur, strings.Join(block, "\n"))
			block = nil
		}
	}
	endPage := func() {
		endBlock()
		pages = append(pages, layout.Page{Number: len(pages) + 1, Text: strings.Join(cur, "\n\n")})
		cur = nil
	}

	for _, el := range doc.Body.Elements {
		switch el.XMLName.Local {
		case "p":
			if el.breaksPage() && (len(cur) > 0 || len(block) > 0) {
				endPage()
			}
			text := el.text()
			switch {
			case text == "":
				endBlock()
			case el.isHeading():
				endBlock()
				cur = append(cur, text)
			default:
				block = append(block, text)
			}
		case "tbl":
			endBlock()
			if rows := tableRows(el.Rows); rows != "" {
				cur = append(cur, rows)
			}
		}
	}
	endPage()

	if len(pages) == 1 {
		pages[0].Number = 0
	}
	return pages, nil
}

// readDocumentXML extracts word/document.xml from the archive.
func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml not found", domain.ErrExtraction)
}

func tableRows(rows []tableRow) string {
	var out []string
	for _, row := range rows {
		var cells []string
		for _, cell := range row.Cells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if t := p.text(); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if len(cells) > 0 {
			out = append(out, "| "+strings.Join(cells, " | ")+" |")
		}
	}
	return strings.Join(out, "\n")
}
