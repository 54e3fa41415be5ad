// Package hashing provides an offline embedding service based on feature
// hashing. It needs no model download or network access and always produces
// the same vector for the same text.
package hashing

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/textutil"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 384
	ModelPrefix       = "hashing-"
)

// bigramWeight scales adjacent-term features relative to single terms.
const bigramWeight = 0.5

// EmbeddingService embeds text by hashing terms and term bigrams into a
// fixed number of signed buckets, with sublinear term frequency and L2
// normalisation.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a hashing embedder. Non-positive dimensions
// select DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("hashing: empty text")
	}
	return s.vector(text), nil
}

// EmbedBatch generates embeddings for multiple texts. Empty texts are
// reported through driven.ItemErrors.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	var failed driven.ItemErrors
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			if failed == nil {
				failed = driven.ItemErrors{}
			}
			failed[i] = errors.New("hashing: empty text")
			continue
		}
		out[i] = s.vector(text)
	}
	if failed != nil {
		return out, failed
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns "hashing-<dimensions>".
func (s *EmbeddingService) ModelName() string {
	return fmt.Sprintf("%s%d", ModelPrefix, s.dimensions)
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	counts := make(map[string]float64)
	terms := textutil.Terms(text)
	for i, t := range terms {
		counts[t]++
		if i > 0 {
			counts[terms[i-1]+" "+t] += bigramWeight
		}
	}
	if len(counts) == 0 {
		// Text of punctuation, symbols or stopwords only: fall back to
		// character trigrams so distinct inputs still differ.
		for _, g := range trigrams(strings.ToLower(strings.TrimSpace(text))) {
			counts["#"+g]++
		}
	}

	acc := make([]float64, s.dimensions)
	for feature, c := range counts {
		idx, sign := s.bucket(feature)
		acc[idx] += sign * (1 + math.Log(c))
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, s.dimensions)
	if norm == 0 {
		// Colliding features cancelled out exactly.
		vec[0] = 1
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// bucket maps a feature to a dimension and a sign.
func (s *EmbeddingService) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(s.dimensions)), sign
}

func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return []string{s}
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}
