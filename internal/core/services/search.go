package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/core/ports/driving"
	"github.com/custodia-labs/tome/internal/logger"
	"github.com/custodia-labs/tome/internal/textutil"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// maxQuoteLength bounds citation quotes.
const maxQuoteLength = 200

// RetrievalService provides hybrid search over the index.
type RetrievalService struct {
	index     driven.Index
	embedder  *Embedder
	reranker  driven.Reranker
	settings  domain.SearchSettings
	embedding domain.EmbeddingConfig
	fusion    fusion
}

// NewRetrievalService creates a retrieval service.
// The embedder and reranker are optional (can be nil); without an embedder
// every search is keyword-only and FindSimilar is unavailable.
func NewRetrievalService(
	index driven.Index,
	embedder *Embedder,
	reranker driven.Reranker,
	settings domain.SearchSettings,
	embedding domain.EmbeddingConfig,
) *RetrievalService {
	return &RetrievalService{
		index:     index,
		embedder:  embedder,
		reranker:  reranker,
		settings:  settings,
		embedding: embedding,
		fusion:    newFusion(settings),
	}
}

// Search runs the vector and keyword legs concurrently, fuses them,
// optionally reranks, then applies the threshold and limit.
func (s *RetrievalService) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q, game system: %q, types: %v", q.Text, q.GameSystem, q.ContentTypes)

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is required", domain.ErrInvalidInput)
	}
	if q.GameSystem == "" {
		return nil, fmt.Errorf("%w: game system is required", domain.ErrInvalidInput)
	}
	for _, ct := range q.ContentTypes {
		if !ct.IsValid() {
			return nil, fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidInput, ct)
		}
	}

	limit := s.limit(q.Limit)
	threshold := s.threshold(q.ScoreThreshold)
	topK := max(s.settings.TopK, limit, s.settings.RerankCandidates)
	filters := q.Filters()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var vectorHits, keywordHits []driven.IndexHit
	var vectorErr, keywordErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.vectorSearch(ctx, text, filters, topK)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = s.keywordSearch(ctx, text, filters, topK)
	}()
	wg.Wait()

	degraded := false
	switch {
	case vectorErr != nil && keywordErr != nil:
		logger.Warn("Search: both legs failed: vector=%v keyword=%v", vectorErr, keywordErr)
		if isTimeout(vectorErr) && isTimeout(keywordErr) {
			return nil, fmt.Errorf("search: %w", domain.ErrQueryTimeout)
		}
		return nil, fmt.Errorf("search: %w", errors.Join(vectorErr, keywordErr))
	case vectorErr != nil:
		logger.Warn("Search: vector leg unavailable, using keyword results only: %v", vectorErr)
		vectorHits = nil
		degraded = true
	case keywordErr != nil:
		logger.Warn("Search: keyword leg failed, using vector results only: %v", keywordErr)
		keywordHits = nil
	}

	logger.Debug("Fusing %d vector + %d keyword hits with %s", len(vectorHits), len(keywordHits), s.fusion.strategy)
	results := s.fusion.fuse(vectorHits, keywordHits)

	if s.settings.Rerank && s.reranker != nil {
		results = s.rerank(ctx, text, results, limit)
	}

	results = applyThreshold(results, threshold, limit)
	terms := textutil.UniqueTerms(text)
	for i := range results {
		results[i].Citation.Quote = textutil.FirstSentenceWith(results[i].Chunk.Text, terms, maxQuoteLength)
		results[i].Degraded = degraded
	}

	logger.Info("Search %q: %d results", text, len(results))
	return results, nil
}

// FindSimilar embeds the reference text and returns the nearest chunks
// by cosine similarity. The reference text passes through the same
// normalisation and cache as indexed chunks.
func (s *RetrievalService) FindSimilar(ctx context.Context, q domain.SimilarQuery) ([]domain.SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: reference text is required", domain.ErrInvalidInput)
	}
	if q.GameSystem == "" {
		return nil, fmt.Errorf("%w: game system is required", domain.ErrInvalidInput)
	}

	limit := s.limit(q.Limit)
	threshold := s.threshold(q.ScoreThreshold)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	hits, err := s.vectorSearch(ctx, text, domain.Filters{GameSystem: q.GameSystem}, max(limit, s.settings.TopK))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("find similar: %w", domain.ErrQueryTimeout)
		}
		return nil, fmt.Errorf("find similar: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, domain.SearchResult{
			Chunk:       h.Chunk,
			VectorScore: h.Score,
			FusedScore:  clamp01(h.Score),
			Citation:    h.Chunk.Citation(),
		})
	}
	sortResults(results)
	results = applyThreshold(results, threshold, limit)

	terms := textutil.UniqueTerms(text)
	for i := range results {
		results[i].Citation.Quote = textutil.FirstSentenceWith(results[i].Chunk.Text, terms, maxQuoteLength)
	}
	return results, nil
}

// Stats counts the indexed chunks of a game system by content type.
func (s *RetrievalService) Stats(ctx context.Context, gameSystem string) (*domain.IndexStats, error) {
	if strings.TrimSpace(gameSystem) == "" {
		return nil, fmt.Errorf("%w: game system is required", domain.ErrInvalidInput)
	}

	stats := &domain.IndexStats{GameSystem: gameSystem, ByType: make(map[domain.ContentType]int)}
	for _, ct := range domain.AllContentTypes() {
		n, err := s.index.Count(ctx, domain.Filters{GameSystem: gameSystem, ContentTypes: []domain.ContentType{ct}})
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		if n > 0 {
			stats.ByType[ct] = n
		}
		stats.Chunks += n
	}
	return stats, nil
}

// vectorSearch embeds the query and runs a filtered vector query with retries.
func (s *RetrievalService) vectorSearch(
	ctx context.Context, text string, filters domain.Filters, topK int,
) ([]driven.IndexHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := s.embedder.EmbedText(ctx, text, s.embedding)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []driven.IndexHit
	err = retry(ctx, s.policy(), "vector query", func(ctx context.Context) error {
		var qerr error
		hits, qerr = s.index.Query(ctx, vec.Vector, filters, topK)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))
	return hits, nil
}

// keywordSearch runs a filtered keyword query with retries.
func (s *RetrievalService) keywordSearch(
	ctx context.Context, text string, filters domain.Filters, topK int,
) ([]driven.IndexHit, error) {
	var hits []driven.IndexHit
	err := retry(ctx, s.policy(), "keyword query", func(ctx context.Context) error {
		var qerr error
		hits, qerr = s.index.KeywordQuery(ctx, text, filters, topK)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))
	if hits == nil {
		hits = []driven.IndexHit{}
	}
	return hits, nil
}

// rerank rescores the top candidates. Candidates outside the rerank
// window keep their fused scores; applyThreshold restores the overall order.
func (s *RetrievalService) rerank(
	ctx context.Context, query string, results []domain.SearchResult, limit int,
) []domain.SearchResult {
	n := min(len(results), max(s.settings.RerankCandidates, limit))
	if n == 0 {
		return results
	}

	scores, err := s.reranker.Rerank(ctx, query, results[:n])
	if err != nil || len(scores) != n {
		logger.Warn("Rerank with %s skipped: %v", s.reranker.Name(), err)
		return results
	}

	for i := range n {
		score := scores[i]
		results[i].RerankScore = &score
	}
	return results
}

// applyThreshold drops results scoring below threshold, sorts the rest by
// descending score and truncates to limit.
func applyThreshold(results []domain.SearchResult, threshold float64, limit int) []domain.SearchResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score() >= threshold {
			kept = append(kept, r)
		}
	}
	sortResults(kept)
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func (s *RetrievalService) limit(requested int) int {
	switch {
	case requested > 0:
		return requested
	case s.settings.Limit > 0:
		return s.settings.Limit
	default:
		return domain.DefaultSearchLimit
	}
}

func (s *RetrievalService) threshold(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return s.settings.ScoreThreshold
}

func (s *RetrievalService) policy() retryPolicy {
	return retryPolicy{attempts: s.settings.MaxRetries}
}

func (s *RetrievalService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.settings.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrQueryTimeout)
}
