package markdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

const spells = `# Spells

<!-- page 241 -->

## Fireball

*3rd-level evocation*

A bright streak flashes from your pointing finger.

- **Range:** 150 feet
- **Duration:** Instantaneous

<!-- page 242 -->

| Level | Damage |
|-------|--------|
| 3rd   | 8d6    |

## Fly

You touch a willing creature.
`

func TestName(t *testing.T) {
	assert.Equal(t, "markdown", New().Name())
}

func TestSegments_SectionsAndTables(t *testing.T) {
	segs := New().Segments([]byte(spells), "phb", domain.DefaultExtractionConfig())

	require.Len(t, segs, 3)

	assert.Equal(t, "phb#000001", segs[0].ID)
	assert.Equal(t, "Fireball\n\n3rd-level evocation\n\n"+
		"A bright streak flashes from your pointing finger.\n\n"+
		"- Range: 150 feet\n- Duration: Instantaneous", segs[0].Text)
	assert.Equal(t, domain.PageRange{Start: 241, End: 241}, segs[0].Pages)
	assert.Empty(t, segs[0].Hint)

	assert.Equal(t, "| Level | Damage |\n| 3rd | 8d6 |", segs[1].Text)
	assert.Equal(t, domain.HintTable, segs[1].Hint)
	assert.Equal(t, domain.PageRange{Start: 242, End: 242}, segs[1].Pages)

	assert.Equal(t, "Fly\n\nYou touch a willing creature.", segs[2].Text)
	assert.Equal(t, 242, segs[2].Pages.Start)
}

func TestSegments_TablesInlineWhenDisabled(t *testing.T) {
	cfg := domain.DefaultExtractionConfig()
	cfg.ExtractTables = false

	segs := New().Segments([]byte(spells), "phb", cfg)

	require.Len(t, segs, 2)
	assert.Contains(t, segs[0].Text, "| 3rd | 8d6 |")
	assert.Equal(t, domain.PageRange{Start: 241, End: 242}, segs[0].Pages)
}

func TestSegments_HeadingOnlySection(t *testing.T) {
	segs := New().Segments([]byte("# Chapter 10: Spellcasting\n"), "phb", domain.DefaultExtractionConfig())

	require.Len(t, segs, 1)
	assert.Equal(t, domain.HintHeading, segs[0].Hint)
	assert.Equal(t, domain.PageRange{Start: 1, End: 1}, segs[0].Pages)
}

func TestSegments_UnmarkedPagesCiteFirstPage(t *testing.T) {
	src := "# Grappling\n\nWhen you want to grab a creature or wrestle with it, you can use the Attack action.\n"

	segs := New().Segments([]byte(src), "phb", domain.DefaultExtractionConfig())

	require.NotEmpty(t, segs)
	for _, seg := range segs {
		assert.Equal(t, domain.PageRange{Start: 1, End: 1}, seg.Pages)
	}
}

func TestSegments_MergesHyphenation(t *testing.T) {
	segs := New().Segments([]byte("The spell deals fire-\nball damage to all.\n"), "phb",
		domain.DefaultExtractionConfig())

	require.Len(t, segs, 1)
	assert.Equal(t, "The spell deals fireball damage to all.", segs[0].Text)
}

func TestExtract_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spells.md")
	require.NoError(t, os.WriteFile(path, []byte(spells), 0o600))

	var ids []string
	for seg, err := range New().Extract(context.Background(), domain.DocumentRef{URI: path}, "phb",
		domain.DefaultExtractionConfig()) {
		require.NoError(t, err)
		ids = append(ids, seg.ID)
	}
	assert.Equal(t, []string{"phb#000001", "phb#000002", "phb#000003"}, ids)
}
