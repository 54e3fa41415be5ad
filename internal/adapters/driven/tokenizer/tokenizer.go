// Package tokenizer builds the configured driven.Tokenizer.
package tokenizer

import (
	"fmt"

	"github.com/custodia-labs/tome/internal/adapters/driven/tokenizer/tiktoken"
	"github.com/custodia-labs/tome/internal/adapters/driven/tokenizer/whitespace"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// New returns the tokenizer with the given name. An empty name selects
// the whitespace tokenizer; any other name is treated as a tiktoken encoding.
func New(name string) (driven.Tokenizer, error) {
	switch name {
	case "", whitespace.Name:
		return whitespace.New(), nil
	case "cl100k_base", "o200k_base", "p50k_base", "r50k_base":
		return tiktoken.New(name)
	default:
		return nil, fmt.Errorf("%w: tokenizer %q", domain.ErrUnsupportedType, name)
	}
}
