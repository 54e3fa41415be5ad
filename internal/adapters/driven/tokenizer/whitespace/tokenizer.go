// Package whitespace provides the default word tokenizer.
//
// A token is a run of non-space characters plus the whitespace that follows
// it, so joining tokens reproduces the original text byte for byte.
package whitespace

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// Name is the tokenizer identifier.
const Name = "whitespace"

var _ driven.Tokenizer = (*Tokenizer)(nil)

var tokenPattern = regexp.MustCompile(`\S+\s*`)

// Tokenizer splits text on whitespace.
type Tokenizer struct{}

// New creates a whitespace tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

// Name returns "whitespace".
func (t *Tokenizer) Name() string {
	return Name
}

// Tokenize splits text into word tokens. Leading whitespace is attached
// to the first token.
func (t *Tokenizer) Tokenize(text string) []string {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	tokens := make([]string, len(locs))
	for i, loc := range locs {
		start := loc[0]
		if i == 0 {
			start = 0
		}
		tokens[i] = text[start:loc[1]]
	}
	return tokens
}

// Count returns the number of word tokens.
func (t *Tokenizer) Count(text string) int {
	return len(tokenPattern.FindAllStringIndex(text, -1))
}

// IsSentenceEnd reports whether the token's word ends with terminal
// punctuation, allowing closing quotes and brackets after it.
func (t *Tokenizer) IsSentenceEnd(token string) bool {
	word := strings.TrimRightFunc(token, unicode.IsSpace)
	word = strings.TrimRight(word, `"')]”’`)
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

// IsParagraphEnd reports whether the token is followed by a blank line.
func (t *Tokenizer) IsParagraphEnd(token string) bool {
	trailing := token[len(strings.TrimRightFunc(token, unicode.IsSpace)):]
	return strings.Count(trailing, "\n") >= 2
}
