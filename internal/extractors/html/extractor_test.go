package html

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

const srdPage = `<html><head><title>SRD</title><style>p { color: red; }</style></head><body>
<nav>Home | Spells</nav>
<!-- page 241 -->
<h2>Fireball</h2>
<p>A bright streak flashes from your pointing finger &amp; explodes.</p>
<table><tr><th>Level</th><th>Damage</th></tr><tr><td>3rd</td><td><b>8d6</b></td></tr></table>
<!-- page 242 -->
<h2>Fly</h2><p>You touch a <b>willing</b> creature.</p>
<script>alert(1)</script>
</body></html>`

func TestName(t *testing.T) {
	assert.Equal(t, "html", New().Name())
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srd.html")
	require.NoError(t, os.WriteFile(path, []byte(srdPage), 0o600))

	var segs []domain.RawSegment
	for seg, err := range New().Extract(context.Background(), domain.DocumentRef{URI: path}, "srd",
		domain.DefaultExtractionConfig()) {
		require.NoError(t, err)
		segs = append(segs, seg)
	}

	require.Len(t, segs, 3)
	assert.Equal(t, "Fireball\nA bright streak flashes from your pointing finger & explodes.", segs[0].Text)
	assert.Equal(t, domain.PageRange{Start: 241, End: 241}, segs[0].Pages)

	assert.Equal(t, "| Level | Damage |\n| 3rd | 8d6 |", segs[1].Text)
	assert.Equal(t, domain.HintTable, segs[1].Hint)

	assert.Equal(t, "Fly\nYou touch a willing creature.", segs[2].Text)
	assert.Equal(t, 242, segs[2].Pages.Start)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", "<p>One.</p><p>Two.</p>", "One.\n\nTwo."},
		{"entities", "<p>Tom &amp; Jerry &lt;3</p>", "Tom & Jerry <3"},
		{"scripts and styles", "<script>x()</script><style>a{}</style><p>Kept</p>", "Kept"},
		{"header element kept", "<header>Title</header><p>Body</p>", "Title\n\nBody"},
		{"line breaks", "Line one<br>Line two<br/>", "Line one\nLine two"},
		{"list items", "<ul><li>Sword</li><li>Shield</li></ul>", "- Sword\n- Shield"},
		{"spaces collapse", "<p>a    b\t\tc</p>", "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.in))
		})
	}
}
