package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

func TestNew(t *testing.T) {
	e := New(WithPageOffset(-2))
	assert.Equal(t, "pdf", e.Name())
	assert.Equal(t, -2, e.pageOffset)
}

func TestExtract_Errors(t *testing.T) {
	notPDF := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("this is not a pdf"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "missing.pdf")},
		{"not a pdf", notPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs []error
			for _, err := range New().Extract(context.Background(), domain.DocumentRef{URI: tt.path}, "phb",
				domain.DefaultExtractionConfig()) {
				errs = append(errs, err)
			}
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], domain.ErrExtraction)
		})
	}
}
