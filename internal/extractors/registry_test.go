package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

func TestDefaultRegistry_ForExtension(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		uri  string
		want string
	}{
		{"/books/phb.pdf", "pdf"},
		{"/books/PHB.PDF", "pdf"},
		{"/books/srd.md", "markdown"},
		{"/books/notes.txt", "text"},
		{"/books/srd.htm", "html"},
		{"/books/homebrew.docx", "docx"},
		{"/books/srd.yml", "segments"},
		{"/books/srd.json", "segments"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			e, err := r.For(domain.DocumentRef{URI: tt.uri})
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
		})
	}
}

func TestDefaultRegistry_FormatOverridesExtension(t *testing.T) {
	r := NewDefaultRegistry()

	e, err := r.For(domain.DocumentRef{URI: "/books/phb.txt", Format: "Markdown"})
	require.NoError(t, err)
	assert.Equal(t, "markdown", e.Name())

	e, err = r.For(domain.DocumentRef{URI: "/books/phb", Format: ".md"})
	require.NoError(t, err)
	assert.Equal(t, "markdown", e.Name())
}

func TestDefaultRegistry_Unsupported(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []domain.DocumentRef{
		{URI: "/books/phb.epub"},
		{URI: "/books/phb"},
		{URI: "/books/phb.pdf", Format: "epub"},
	}
	for _, ref := range tests {
		_, err := r.For(ref)
		assert.ErrorIs(t, err, domain.ErrUnsupportedType, "ref %+v", ref)
	}
}

func TestRegistry_Formats(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Equal(t, []string{"docx", "html", "markdown", "pdf", "segments", "text"}, r.Formats())
	assert.Contains(t, r.Extensions(), "yaml")
	assert.True(t, r.Supports("/books/phb.PDF"))
	assert.False(t, r.Supports("/books/cover.png"))
}
