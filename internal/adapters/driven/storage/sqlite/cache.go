package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/tome/internal/adapters/driven/storage/scoring"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/logger"
)

// embeddingCache implements driven.EmbeddingCache.
type embeddingCache struct {
	store *Store
}

var _ driven.EmbeddingCache = (*embeddingCache)(nil)

// Get returns the cached vector for key under model. Read errors count as misses.
func (c *embeddingCache) Get(ctx context.Context, model, key string) ([]float32, bool) {
	var blob []byte
	err := c.store.db.QueryRowContext(ctx,
		"SELECT embedding FROM embedding_cache WHERE model = ? AND content_key = ?", model, key).Scan(&blob)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Debug("embedding cache read failed: %v", err)
		}
		return nil, false
	}
	vec, err := scoring.DecodeVector(blob)
	if err != nil {
		logger.Debug("embedding cache entry %s is corrupt: %v", key, err)
		return nil, false
	}
	return vec, true
}

// Put stores a vector for key under model.
func (c *embeddingCache) Put(ctx context.Context, model, key string, vector []float32) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (model, content_key, embedding) VALUES (?, ?, ?)
		ON CONFLICT(model, content_key) DO UPDATE SET embedding = excluded.embedding
	`, model, key, scoring.EncodeVector(vector))
	if err != nil {
		return fmt.Errorf("caching embedding: %w", err)
	}
	return nil
}
