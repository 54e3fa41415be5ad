package services

import (
	"math"
	"sort"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// fusion combines the vector and keyword legs of a hybrid query.
type fusion struct {
	strategy      domain.FusionStrategy
	vectorWeight  float64
	keywordWeight float64
	rrfK          int
}

func newFusion(s domain.SearchSettings) fusion {
	f := fusion{
		strategy:      s.Fusion,
		vectorWeight:  s.VectorWeight,
		keywordWeight: s.KeywordWeight,
		rrfK:          s.RRFK,
	}
	if !f.strategy.IsValid() {
		f.strategy = domain.FusionWeighted
	}
	if f.vectorWeight < 0 || f.keywordWeight < 0 || f.vectorWeight+f.keywordWeight == 0 {
		f.vectorWeight, f.keywordWeight = 0.7, 0.3
	}
	if f.rrfK <= 0 {
		f.rrfK = 60
	}
	return f
}

// candidate is one chunk seen by either leg.
type candidate struct {
	chunk       domain.Chunk
	vector      float64
	keyword     float64
	vectorRank  int // 1-based; 0 when absent from the leg
	keywordRank int
}

// fuse merges both legs into results ordered by fused score, then chunk id.
// A chunk appearing in both legs yields one result; a chunk repeated within
// a leg keeps its best score. Either leg may be nil when it did not run.
func (f fusion) fuse(vector, keyword []driven.IndexHit) []domain.SearchResult {
	byID := make(map[string]*candidate)
	var order []string
	get := func(c domain.Chunk) *candidate {
		if cand, ok := byID[c.ID]; ok {
			return cand
		}
		cand := &candidate{chunk: c}
		byID[c.ID] = cand
		order = append(order, c.ID)
		return cand
	}

	for i, h := range vector {
		c := get(h.Chunk)
		if c.vectorRank == 0 || h.Score > c.vector {
			c.vector = h.Score
		}
		if c.vectorRank == 0 {
			c.vectorRank = i + 1
		}
	}
	var keywordMax float64
	for i, h := range keyword {
		c := get(h.Chunk)
		if c.keywordRank == 0 || h.Score > c.keyword {
			c.keyword = h.Score
		}
		if c.keywordRank == 0 {
			c.keywordRank = i + 1
		}
		keywordMax = math.Max(keywordMax, h.Score)
	}

	// Weights are renormalised over the legs that ran.
	wv, wk := f.vectorWeight, f.keywordWeight
	switch {
	case vector == nil && keyword != nil:
		wv, wk = 0, 1
	case keyword == nil && vector != nil:
		wv, wk = 1, 0
	default:
		total := wv + wk
		wv, wk = wv/total, wk/total
	}

	results := make([]domain.SearchResult, 0, len(order))
	for _, id := range order {
		c := byID[id]
		nv := clamp01(c.vector)
		nk := 0.0
		if keywordMax > 0 {
			nk = clamp01(c.keyword / keywordMax)
		}

		var fused float64
		switch f.strategy {
		case domain.FusionRRF:
			if c.vectorRank > 0 {
				fused += 1 / float64(f.rrfK+c.vectorRank)
			}
			if c.keywordRank > 0 {
				fused += 1 / float64(f.rrfK+c.keywordRank)
			}
		case domain.FusionMax:
			fused = math.Max(nv, nk)
		default:
			fused = wv*nv + wk*nk
		}

		results = append(results, domain.SearchResult{
			Chunk:        c.chunk,
			VectorScore:  c.vector,
			KeywordScore: c.keyword,
			FusedScore:   fused,
			Citation:     c.chunk.Citation(),
		})
	}

	sortResults(results)
	return results
}

// sortResults orders by Score() descending, then chunk id.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Score(), results[j].Score()
		if si != sj {
			return si > sj
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
