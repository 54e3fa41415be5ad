package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

func candidate(id, text string, typ domain.ContentType, fused float64) domain.SearchResult {
	return domain.SearchResult{
		Chunk:      domain.Chunk{ID: id, Text: text, Type: typ},
		FusedScore: fused,
	}
}

func TestHeuristic_Boosts(t *testing.T) {
	h := NewHeuristic()
	assert.Equal(t, HeuristicName, h.Name())

	tests := []struct {
		name  string
		query string
		cand  domain.SearchResult
		want  float64
	}{
		{
			name:  "full coverage without phrase",
			query: "fire damage",
			cand:  candidate("a", "Damage from fire.", domain.ContentTypeRule, 0.5),
			want:  0.5,
		},
		{
			name:  "exact phrase",
			query: "fire damage",
			cand:  candidate("a", "Takes 8d6 fire   damage.", domain.ContentTypeRule, 0.5),
			want:  0.75,
		},
		{
			name:  "spell named in query",
			query: "spell fireball",
			cand:  candidate("a", "Fireball is a spell", domain.ContentTypeSpell, 0.5),
			want:  0.5 * 1.3,
		},
		{
			name:  "table named in query",
			query: "weapon table",
			cand:  candidate("a", "Table: weapon costs", domain.ContentTypeTable, 0.5),
			want:  0.5 * 1.2,
		},
		{
			name:  "half coverage",
			query: "fire cold",
			cand:  candidate("a", "fire only", domain.ContentTypeRule, 0.8),
			want:  0.8 * 0.75,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := h.Rerank(context.Background(), tt.query, []domain.SearchResult{tt.cand})
			require.NoError(t, err)
			require.Len(t, scores, 1)
			assert.InDelta(t, tt.want, scores[0], 1e-9)
		})
	}
}

func TestHeuristic_PromotesExactPhrase(t *testing.T) {
	h := NewHeuristic()
	cands := []domain.SearchResult{
		candidate("loose", "Damage of any kind, including fire.", domain.ContentTypeRule, 0.6),
		candidate("exact", "The target takes fire damage.", domain.ContentTypeRule, 0.5),
	}
	scores, err := h.Rerank(context.Background(), "fire damage", cands)
	require.NoError(t, err)
	assert.Greater(t, scores[1], scores[0])
}

func TestHeuristic_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Rerank(ctx, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
