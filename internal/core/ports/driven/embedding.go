// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from Index which stores and searches vectors.
// EmbeddingService generates vectors; Index stores them.
//
// Implementations may include:
//   - Hashing (built-in, offline, deterministic)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// The result has one vector per input, in input order.
	// A partial failure returns ItemErrors alongside the vectors that succeeded
	// (failed positions are nil).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	// It is part of the embedding cache key.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ItemErrors reports per-item failures of a batch call, keyed by input position.
type ItemErrors map[int]error

// Error implements error.
func (e ItemErrors) Error() string {
	idx := make([]int, 0, len(e))
	for i := range e {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("item %d: %v", i, e[i]))
	}
	return fmt.Sprintf("%d items failed: %s", len(e), strings.Join(parts, "; "))
}

// EmbeddingCache stores embeddings keyed by content hash and model.
// Implementations must never return a vector stored under a different model.
type EmbeddingCache interface {
	// Get returns the cached vector for key under model.
	Get(ctx context.Context, model, key string) ([]float32, bool)

	// Put stores a vector for key under model.
	Put(ctx context.Context, model, key string, vector []float32) error
}
