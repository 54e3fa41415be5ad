// Package tiktoken counts tokens with OpenAI's BPE encodings.
//
// Use it when chunk budgets must line up with the token limits of an
// OpenAI embedding model. The encoding files are fetched and cached by
// tiktoken-go on first use.
package tiktoken

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	tk "github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// DefaultEncoding is the encoding used by text-embedding-3 models.
const DefaultEncoding = "cl100k_base"

var _ driven.Tokenizer = (*Tokenizer)(nil)

// Tokenizer splits text into BPE pieces.
type Tokenizer struct {
	encoding string
	enc      *tk.Tiktoken
}

// New loads the named encoding.
func New(encoding string) (*Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tk.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: tiktoken encoding %q: %w", domain.ErrUnsupportedType, encoding, err)
	}
	return &Tokenizer{encoding: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (t *Tokenizer) Name() string {
	return t.encoding
}

// Tokenize returns the decoded text of each BPE token. Byte-level tokens
// that hold part of a multi-byte rune are merged with the tokens that
// complete it, so every piece is valid UTF-8 and a cut between pieces
// always lands on a rune boundary.
func (t *Tokenizer) Tokenize(text string) []string {
	ids := t.enc.Encode(text, nil, nil)
	tokens := make([]string, 0, len(ids))
	var pending []byte
	for _, id := range ids {
		pending = append(pending, t.enc.Decode([]int{id})...)
		if !utf8.Valid(pending) {
			continue
		}
		tokens = append(tokens, string(pending))
		pending = pending[:0]
	}
	if len(pending) > 0 {
		tokens = append(tokens, string(pending))
	}
	return tokens
}

// Count returns the number of BPE tokens in text. It can exceed
// len(Tokenize(text)) when text holds runes split across tokens.
func (t *Tokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// IsSentenceEnd reports whether the piece ends with terminal punctuation.
func (t *Tokenizer) IsSentenceEnd(token string) bool {
	trimmed := strings.TrimRightFunc(token, unicode.IsSpace)
	return strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?")
}

// IsParagraphEnd reports whether the piece contains a blank line.
func (t *Tokenizer) IsParagraphEnd(token string) bool {
	return strings.Contains(token, "\n\n")
}
