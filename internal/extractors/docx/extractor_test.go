package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(t *testing.T, body string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if body != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `<w:sectPr/></w:body></w:document>`))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func cell(text string) string {
	return `<w:tc>` + para(text) + `</w:tc>`
}

var spellBody = `<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Fireball</w:t></w:r></w:p>` +
	para("Casting Time: 1 action") +
	`<w:p><w:r><w:t xml:space="preserve">A bright streak </w:t></w:r><w:r><w:t>flashes.</w:t></w:r></w:p>` +
	`<w:p/>` +
	`<w:tbl><w:tr>` + cell("Level") + cell("Damage") + `</w:tr><w:tr>` + cell("3rd") + cell("8d6") + `</w:tr></w:tbl>` +
	`<w:p><w:r><w:br w:type="page"/><w:t>Fly</w:t></w:r></w:p>` +
	para("You touch a willing creature.")

func TestName(t *testing.T) {
	assert.Equal(t, "docx", New().Name())
}

func TestPages(t *testing.T) {
	pages, err := Pages(createTestDOCX(t, spellBody))
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Fireball\n\nCasting Time: 1 action\nA bright streak flashes.\n\n"+
		"| Level | Damage |\n| 3rd | 8d6 |", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "Fly\nYou touch a willing creature.", pages[1].Text)
}

func TestPages_NoBreaksHasUnknownPage(t *testing.T) {
	pages, err := Pages(createTestDOCX(t, para("Only paragraph.")))
	require.NoError(t, err)

	require.Len(t, pages, 1)
	assert.Zero(t, pages[0].Number)
}

func TestPages_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("plain text")},
		{"missing document.xml", createTestDOCX(t, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pages(tt.data)
			assert.ErrorIs(t, err, domain.ErrExtraction)
		})
	}
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spells.docx")
	require.NoError(t, os.WriteFile(path, createTestDOCX(t, spellBody), 0o600))

	var segs []domain.RawSegment
	for seg, err := range New().Extract(context.Background(), domain.DocumentRef{URI: path}, "phb",
		domain.DefaultExtractionConfig()) {
		require.NoError(t, err)
		segs = append(segs, seg)
	}

	require.Len(t, segs, 3)
	assert.Equal(t, "Fireball\nCasting Time: 1 action\nA bright streak flashes.", segs[0].Text)
	assert.Equal(t, domain.PageRange{Start: 1, End: 1}, segs[0].Pages)
	assert.Equal(t, domain.HintTable, segs[1].Hint)
	assert.Equal(t, "Fly\nYou touch a willing creature.", segs[2].Text)
	assert.Equal(t, domain.PageRange{Start: 2, End: 2}, segs[2].Pages)
}
