package driven

import (
	"context"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// IndexHit is a single result from an index query.
type IndexHit struct {
	// Chunk is the stored chunk payload.
	Chunk domain.Chunk

	// Score is cosine similarity for vector queries and a positive
	// relevance score (higher is better) for keyword queries.
	Score float64
}

// Index stores chunk embeddings with metadata and answers filtered queries.
// It must tolerate concurrent upserts from different documents.
type Index interface {
	// Upsert inserts or replaces entries by chunk id. Re-upserting an id
	// overwrites its vector and metadata without duplication.
	Upsert(ctx context.Context, entries []domain.IndexEntry) error

	// Query returns the topK entries most similar to vector that pass filters.
	Query(ctx context.Context, vector []float32, filters domain.Filters, topK int) ([]IndexHit, error)

	// KeywordQuery returns the topK entries best matching the query terms that pass filters.
	KeywordQuery(ctx context.Context, text string, filters domain.Filters, topK int) ([]IndexHit, error)

	// Get returns the stored chunk by id.
	Get(ctx context.Context, chunkID string) (*domain.Chunk, error)

	// Delete removes entries by chunk id. Unknown ids are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// DocumentChunks returns the ids of a document's entries.
	DocumentChunks(ctx context.Context, documentID string) ([]string, error)

	// Count returns the number of entries that pass filters.
	Count(ctx context.Context, filters domain.Filters) (int, error)

	// Close releases resources.
	Close() error
}

// Reranker rescores a small candidate set with a more precise relevance model.
type Reranker interface {
	// Name identifies the reranker.
	Name() string

	// Rerank returns one score per candidate, in candidate order.
	Rerank(ctx context.Context, query string, candidates []domain.SearchResult) ([]float64, error)
}
