package segments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func extract(t *testing.T, path string) []domain.RawSegment {
	t.Helper()
	var segs []domain.RawSegment
	for seg, err := range New().Extract(context.Background(), domain.DocumentRef{URI: path}, "srd",
		domain.DefaultExtractionConfig()) {
		require.NoError(t, err)
		segs = append(segs, seg)
	}
	return segs
}

func TestName(t *testing.T) {
	assert.Equal(t, "segments", New().Name())
}

func TestExtract_YAMLMapping(t *testing.T) {
	path := writeFile(t, "srd.yaml", `segments:
  - text: "Fireball. A bright streak flashes from your finger."
    page: 241
    hint: paragraph
  - text: "| Level | Damage |\n| 3rd | 8d6 |"
    pages: {start: 241, end: 242}
    hint: table
  - text: "tiny"
`)

	segs := extract(t, path)

	require.Len(t, segs, 2)
	assert.Equal(t, "srd#000001", segs[0].ID)
	assert.Equal(t, domain.PageRange{Start: 241, End: 241}, segs[0].Pages)
	assert.Equal(t, domain.HintParagraph, segs[0].Hint)
	assert.Equal(t, domain.PageRange{Start: 241, End: 242}, segs[1].Pages)
	assert.Equal(t, domain.HintTable, segs[1].Hint)
}

func TestExtract_JSONList(t *testing.T) {
	path := writeFile(t, "srd.json", `[
  {"text": "Resistance halves damage of that type.", "page": 197},
  {"text": "Alert grants a bonus to initiative rolls."}
]`)

	segs := extract(t, path)

	require.Len(t, segs, 2)
	assert.Equal(t, 197, segs[0].Pages.Start)
	assert.Equal(t, domain.PageRange{Start: 1, End: 1}, segs[1].Pages)
	assert.Equal(t, "srd#000002", segs[1].ID)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"list", "- text: a\n- text: b\n", 2, false},
		{"mapping", "segments:\n  - text: a\n", 1, false},
		{"scalar", "just a string", 0, true},
		{"invalid", "segments: [unclosed", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse([]byte(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrExtraction)
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}
