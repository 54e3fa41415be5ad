package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/tome/internal/adapters/driven/storage/scoring"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.Index = (*Index)(nil)

// Index is an in-memory implementation of driven.Index. Vector queries are
// brute-force cosine similarity; keyword queries are BM25 over the filtered set.
type Index struct {
	mu      sync.RWMutex
	entries map[string]domain.IndexEntry
	terms   map[string][]string
	dims    int
}

// NewIndex creates a new in-memory index.
func NewIndex() *Index {
	return &Index{
		entries: make(map[string]domain.IndexEntry),
		terms:   make(map[string][]string),
	}
}

// Upsert inserts or replaces entries by chunk id.
func (x *Index) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	dims := x.dims
	for _, e := range entries {
		if e.ChunkID == "" {
			return fmt.Errorf("%w: index entry without chunk id", domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("%w: vector for %s has %d dimensions, index has %d",
				domain.ErrInvalidInput, e.ChunkID, len(e.Vector), dims)
		}
	}

	x.dims = dims
	for _, e := range entries {
		e.Vector = slices.Clone(e.Vector)
		e.Chunk.ID = e.ChunkID
		x.entries[e.ChunkID] = e
		x.terms[e.ChunkID] = scoring.Terms(e.Chunk.Text)
	}
	return nil
}

// Query returns the topK entries most similar to vector that pass filters.
func (x *Index) Query(ctx context.Context, vector []float32, filters domain.Filters, topK int) ([]driven.IndexHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []driven.IndexHit
	for _, e := range x.entries {
		if !filters.Matches(&e.Chunk) {
			continue
		}
		hits = append(hits, driven.IndexHit{Chunk: e.Chunk, Score: scoring.Cosine(vector, e.Vector)})
	}
	return topHits(hits, topK), nil
}

// KeywordQuery returns the topK BM25 matches for text that pass filters.
func (x *Index) KeywordQuery(ctx context.Context, text string, filters domain.Filters, topK int) ([]driven.IndexHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := scoring.Terms(text)
	if len(query) == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := make([]string, 0, len(x.entries))
	for id, e := range x.entries {
		if filters.Matches(&e.Chunk) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	docs := make([]scoring.Document, len(ids))
	for i, id := range ids {
		docs[i] = scoring.Document{ID: id, Terms: x.terms[id]}
	}

	var hits []driven.IndexHit
	for _, s := range scoring.BM25(query, docs) {
		hits = append(hits, driven.IndexHit{Chunk: x.entries[s.ID].Chunk, Score: s.Score})
	}
	return topHits(hits, topK), nil
}

// Get returns the stored chunk by id.
func (x *Index) Get(_ context.Context, chunkID string) (*domain.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := e.Chunk
	return &c, nil
}

// Delete removes entries by chunk id.
func (x *Index) Delete(_ context.Context, chunkIDs []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range chunkIDs {
		delete(x.entries, id)
		delete(x.terms, id)
	}
	if len(x.entries) == 0 {
		x.dims = 0
	}
	return nil
}

// DocumentChunks returns the ids of a document's entries, sorted.
func (x *Index) DocumentChunks(_ context.Context, documentID string) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var ids []string
	for id, e := range x.entries {
		if e.Chunk.DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of entries that pass filters.
func (x *Index) Count(_ context.Context, filters domain.Filters) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, e := range x.entries {
		if filters.Matches(&e.Chunk) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

// topHits orders hits by score, then chunk id, and keeps the first topK.
func topHits(hits []driven.IndexHit, topK int) []driven.IndexHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
