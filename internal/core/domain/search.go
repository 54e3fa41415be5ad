package domain

// Search defaults.
const (
	DefaultSearchLimit = 10
	DefaultTopK        = 50
)

// SearchQuery is a hybrid retrieval request.
type SearchQuery struct {
	// Text is the user's query.
	Text string

	// GameSystem restricts results to one rules system. Required.
	GameSystem string

	// ContentTypes optionally restricts results to these types.
	ContentTypes []ContentType

	// Books optionally restricts results to these books.
	Books []string

	// Versions optionally restricts results to these versions.
	Versions []string

	// Limit is the maximum number of results. Zero uses the configured default.
	Limit int

	// ScoreThreshold drops results scoring below it. Nil uses the
	// configured default; an explicit zero keeps everything.
	ScoreThreshold *float64
}

// Filters returns the index filters for the query.
func (q SearchQuery) Filters() Filters {
	return Filters{
		GameSystem:   q.GameSystem,
		Books:        q.Books,
		ContentTypes: q.ContentTypes,
		Versions:     q.Versions,
	}
}

// SimilarQuery asks for chunks resembling a reference text.
type SimilarQuery struct {
	// Text is the reference text.
	Text string

	// GameSystem restricts results to one rules system. Required.
	GameSystem string

	// Limit is the maximum number of results. Zero uses the configured default.
	Limit int

	// ScoreThreshold drops results scoring below it. Nil uses the
	// configured default; an explicit zero keeps everything.
	ScoreThreshold *float64
}

// Threshold returns a ScoreThreshold value for v.
func Threshold(v float64) *float64 {
	return &v
}

// IndexStats summarises what is indexed for one game system.
type IndexStats struct {
	GameSystem string              `json:"game_system" yaml:"game_system"`
	Chunks     int                 `json:"chunks" yaml:"chunks"`
	ByType     map[ContentType]int `json:"by_type" yaml:"by_type"`
}

// SearchResult is a single retrieval hit.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk `json:"chunk" yaml:"chunk"`

	// VectorScore is the cosine similarity from the vector leg (0 if absent).
	VectorScore float64 `json:"vector_score" yaml:"vector_score"`

	// KeywordScore is the keyword leg score (0 if absent).
	KeywordScore float64 `json:"keyword_score" yaml:"keyword_score"`

	// FusedScore is the combined score from the fusion strategy.
	FusedScore float64 `json:"fused_score" yaml:"fused_score"`

	// RerankScore is set when a reranker ran over the result.
	RerankScore *float64 `json:"rerank_score,omitempty" yaml:"rerank_score,omitempty"`

	// Citation points back to the printed source.
	Citation Citation `json:"citation" yaml:"citation"`

	// Degraded is set when the result came from keyword search alone
	// because the vector leg was unavailable.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// Score returns the score results are ordered by: the rerank score when
// present, otherwise the fused score.
func (r *SearchResult) Score() float64 {
	if r.RerankScore != nil {
		return *r.RerankScore
	}
	return r.FusedScore
}
