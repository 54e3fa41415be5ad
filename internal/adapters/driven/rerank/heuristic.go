// Package rerank provides rerankers that rescore fused search candidates.
package rerank

import (
	"context"
	"slices"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/textutil"
)

// Ensure Heuristic implements the interface.
var _ driven.Reranker = (*Heuristic)(nil)

// HeuristicName is the registered name of the heuristic reranker.
const HeuristicName = "heuristic"

// Boost factors.
const (
	phraseBoost = 1.5
	typeBoost   = 1.3
	tableBoost  = 1.2
)

// typeWords maps query words to the content type they ask for.
var typeWords = map[string]domain.ContentType{
	"spell":  domain.ContentTypeSpell,
	"spells": domain.ContentTypeSpell,
	"feat":   domain.ContentTypeFeat,
	"feats":  domain.ContentTypeFeat,
}

// Heuristic rescales fused scores with lexical evidence: the exact query
// phrase, a content type named in the query, and query term coverage.
type Heuristic struct{}

// NewHeuristic creates a heuristic reranker.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Name returns the reranker name.
func (h *Heuristic) Name() string {
	return HeuristicName
}

// Rerank returns one score per candidate, in candidate order.
func (h *Heuristic) Rerank(ctx context.Context, query string, candidates []domain.SearchResult) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phrase := collapse(query)
	terms := textutil.UniqueTerms(query)

	var wanted []domain.ContentType
	wantsTable := false
	for _, t := range terms {
		if ct, ok := typeWords[t]; ok {
			wanted = append(wanted, ct)
		}
		if t == "table" || t == "tables" {
			wantsTable = true
		}
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		text := collapse(c.Chunk.Text)

		score := c.FusedScore
		if phrase != "" && strings.Contains(text, phrase) {
			score *= phraseBoost
		}
		if slices.Contains(wanted, c.Chunk.Type) {
			score *= typeBoost
		}
		if wantsTable && c.Chunk.Type == domain.ContentTypeTable {
			score *= tableBoost
		}
		score *= 0.5 + 0.5*coverage(terms, textutil.Terms(c.Chunk.Text))
		scores[i] = score
	}
	return scores, nil
}

// coverage is the fraction of query terms present in the chunk terms.
func coverage(query, chunk []string) float64 {
	if len(query) == 0 {
		return 1
	}
	present := make(map[string]struct{}, len(chunk))
	for _, t := range chunk {
		present[t] = struct{}{}
	}
	n := 0
	for _, t := range query {
		if _, ok := present[t]; ok {
			n++
		}
	}
	return float64(n) / float64(len(query))
}

func collapse(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
