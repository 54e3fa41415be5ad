package driving

import (
	"context"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// RetrievalService provides search capabilities to external actors.
// Callers only ever see SearchResult and Citation values.
type RetrievalService interface {
	// Search runs a hybrid (vector + keyword) search.
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error)

	// FindSimilar returns chunks most similar to a reference text using
	// the vector path only.
	FindSimilar(ctx context.Context, query domain.SimilarQuery) ([]domain.SearchResult, error)

	// Stats counts the indexed chunks of a game system, in total and by content type.
	Stats(ctx context.Context, gameSystem string) (*domain.IndexStats, error)
}
