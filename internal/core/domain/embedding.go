package domain

import (
	"fmt"
	"slices"
	"time"
)

// Embedding defaults.
const (
	DefaultEmbeddingBatchSize  = 32
	DefaultMaxConcurrentBatch  = 4
	DefaultEmbeddingMaxRetries = 3
	DefaultMaxSequenceTokens   = 512
	DefaultEmbeddingTimeout    = 30 * time.Second
)

// EmbeddingConfig controls how chunks are embedded.
type EmbeddingConfig struct {
	// Model selects the embedding runtime. Empty selects the default runtime.
	Model string `json:"model,omitempty"`

	// BatchSize is the maximum number of texts per model call.
	BatchSize int `json:"batch_size"`

	// MaxConcurrentBatches bounds the worker pool.
	MaxConcurrentBatches int `json:"max_concurrent_batches"`

	// MaxRetries is the retry budget per batch and per item.
	MaxRetries int `json:"max_retries"`

	// Normalize scales vectors to unit length.
	Normalize bool `json:"normalize_embeddings"`

	// MaxSequenceTokens truncates input text before embedding. Zero disables truncation.
	MaxSequenceTokens int `json:"max_sequence_tokens,omitempty"`

	// Timeout bounds each model call.
	Timeout time.Duration `json:"timeout"`

	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration `json:"initial_backoff,omitempty"`
}

// DefaultEmbeddingConfig returns the standard embedding configuration.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BatchSize:            DefaultEmbeddingBatchSize,
		MaxConcurrentBatches: DefaultMaxConcurrentBatch,
		MaxRetries:           DefaultEmbeddingMaxRetries,
		Normalize:            true,
		MaxSequenceTokens:    DefaultMaxSequenceTokens,
		Timeout:              DefaultEmbeddingTimeout,
		InitialBackoff:       200 * time.Millisecond,
	}
}

// Validate checks the configuration for values that cannot work.
func (c EmbeddingConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive", ErrInvalidInput)
	}
	if c.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("%w: max concurrent batches must be positive", ErrInvalidInput)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidInput)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: embedding timeout must be positive", ErrInvalidInput)
	}
	return nil
}

// EmbeddingVector is the embedding of one chunk.
type EmbeddingVector struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	ModelID string    `json:"model_id"`
}

// IndexEntry is what the index stores per chunk: the vector plus the
// chunk itself as metadata payload.
type IndexEntry struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	ModelID string    `json:"model_id"`
	Chunk   Chunk     `json:"chunk"`
}

// NewIndexEntry pairs a chunk with its embedding.
func NewIndexEntry(chunk Chunk, vec EmbeddingVector) IndexEntry {
	return IndexEntry{
		ChunkID: chunk.ID,
		Vector:  vec.Vector,
		ModelID: vec.ModelID,
		Chunk:   chunk,
	}
}

// Filters restricts index queries. Filters are conjunctive across fields;
// a list field matches when any of its values matches. Empty fields match everything.
type Filters struct {
	GameSystem   string
	Books        []string
	ContentTypes []ContentType
	Versions     []string
}

// Matches reports whether a chunk passes every filter.
func (f Filters) Matches(c *Chunk) bool {
	if f.GameSystem != "" && c.GameSystem != f.GameSystem {
		return false
	}
	if len(f.Books) > 0 && !slices.Contains(f.Books, c.Book) {
		return false
	}
	if len(f.ContentTypes) > 0 && !slices.Contains(f.ContentTypes, c.Type) {
		return false
	}
	if len(f.Versions) > 0 && !slices.Contains(f.Versions, c.Version) {
		return false
	}
	return true
}
