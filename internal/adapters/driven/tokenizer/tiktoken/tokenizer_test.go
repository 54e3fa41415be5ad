package tiktoken

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := New(DefaultEncoding)
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	return tok
}

func TestTokenize_RoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)

	text := "Fireball\n3rd-level evocation\n\nA bright streak flashes from your pointing finger."
	tokens := tok.Tokenize(text)

	require.NotEmpty(t, tokens)
	assert.Equal(t, text, strings.Join(tokens, ""))
	assert.Equal(t, len(tokens), tok.Count(text))
}

func TestTokenize_MultiByteRunesStayWhole(t *testing.T) {
	tok := newTestTokenizer(t)

	texts := []string{
		"Feuerball: Hervorrufung des 3. Grades, ein glühender Strahl",
		"火球術 第3レベルの力術 呪文",
		"Wyrmling 🐉 breath weapon ⚔️ deals 2d6 fire damage",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			tokens := tok.Tokenize(text)

			require.NotEmpty(t, tokens)
			assert.Equal(t, text, strings.Join(tokens, ""))
			for i, piece := range tokens {
				assert.True(t, utf8.ValidString(piece), "token %d %q is not valid UTF-8", i, piece)
			}
			assert.LessOrEqual(t, len(tokens), tok.Count(text))
		})
	}
}

func TestName(t *testing.T) {
	tok := newTestTokenizer(t)
	assert.Equal(t, "cl100k_base", tok.Name())
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := New("no_such_encoding")
	assert.Error(t, err)
}
