package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/tome/internal/adapters/driven/storage/scoring"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// chunkIndex implements driven.Index. Vectors are scored by brute-force
// cosine similarity over the filtered rows; keyword queries use FTS5 bm25().
type chunkIndex struct {
	store *Store
}

var _ driven.Index = (*chunkIndex)(nil)

// Upsert inserts or replaces entries by chunk id.
func (x *chunkIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	dims, err := x.dimensions(ctx)
	if err != nil {
		return err
	}
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

	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, game_system, book, version, content_type, model_id, embedding, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			game_system = excluded.game_system,
			book = excluded.book,
			version = excluded.version,
			content_type = excluded.content_type,
			model_id = excluded.model_id,
			embedding = excluded.embedding,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer upsert.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		chunk := e.Chunk
		chunk.ID = e.ChunkID
		payload, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("marshalling chunk: %w", err)
		}

		if _, err := upsert.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.GameSystem, chunk.Book,
			chunk.Version, string(chunk.Type), e.ModelID, scoring.EncodeVector(e.Vector), string(payload), now); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?", chunk.ID); err != nil {
			return fmt.Errorf("clearing keyword index: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)", chunk.ID, chunk.Text); err != nil {
			return fmt.Errorf("updating keyword index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// dimensions returns the vector size of stored entries, or 0 when empty.
func (x *chunkIndex) dimensions(ctx context.Context) (int, error) {
	var n sql.NullInt64
	err := x.store.db.QueryRowContext(ctx, "SELECT length(embedding) FROM chunks LIMIT 1").Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index dimensions: %w", err)
	}
	return int(n.Int64) / 4, nil
}

// Query returns the topK entries most similar to vector that pass filters.
func (x *chunkIndex) Query(ctx context.Context, vector []float32, filters domain.Filters, topK int) ([]driven.IndexHit, error) {
	where, args := filterClause("", filters)
	rows, err := x.store.db.QueryContext(ctx, "SELECT payload, embedding FROM chunks"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []driven.IndexHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		var blob []byte
		if err := rows.Scan(&payload, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk, err := decodeChunk(payload)
		if err != nil {
			return nil, err
		}
		vec, err := scoring.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding vector for %s: %w", chunk.ID, err)
		}
		hits = append(hits, driven.IndexHit{Chunk: *chunk, Score: scoring.Cosine(vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// KeywordQuery returns the topK FTS5 matches for text that pass filters.
// Scores are negated bm25() values so that higher is better.
func (x *chunkIndex) KeywordQuery(ctx context.Context, text string, filters domain.Filters, topK int) ([]driven.IndexHit, error) {
	match := matchExpression(text)
	if match == "" {
		return nil, nil
	}

	where, args := filterClause("c.", filters)
	if where == "" {
		where = " WHERE chunks_fts MATCH ?"
	} else {
		where += " AND chunks_fts MATCH ?"
	}
	args = append(args, match)

	query := `SELECT c.payload, -bm25(chunks_fts) AS score
		FROM chunks_fts JOIN chunks c ON c.id = chunks_fts.chunk_id` + where + `
		ORDER BY score DESC, c.id`
	if topK > 0 {
		query += " LIMIT ?"
		args = append(args, topK)
	}

	rows, err := x.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying keyword index: %w", err)
	}
	defer rows.Close()

	var hits []driven.IndexHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		var score float64
		if err := rows.Scan(&payload, &score); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		chunk, err := decodeChunk(payload)
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.IndexHit{Chunk: *chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword hits: %w", err)
	}
	return hits, nil
}

// Get returns the stored chunk by id.
func (x *chunkIndex) Get(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	var payload string
	err := x.store.db.QueryRowContext(ctx, "SELECT payload FROM chunks WHERE id = ?", chunkID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk: %w", err)
	}
	return decodeChunk(payload)
}

// Delete removes entries by chunk id.
func (x *chunkIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range chunkIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting chunk: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?", id); err != nil {
			return fmt.Errorf("deleting keyword entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DocumentChunks returns the ids of a document's entries, sorted.
func (x *chunkIndex) DocumentChunks(ctx context.Context, documentID string) ([]string, error) {
	rows, err := x.store.db.QueryContext(ctx, "SELECT id FROM chunks WHERE document_id = ? ORDER BY id", documentID)
	if err != nil {
		return nil, fmt.Errorf("listing document chunks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of entries that pass filters.
func (x *chunkIndex) Count(ctx context.Context, filters domain.Filters) (int, error) {
	where, args := filterClause("", filters)
	var n int
	if err := x.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Close is a no-op; the Store owns the connection.
func (x *chunkIndex) Close() error {
	return nil
}

// filterClause builds a WHERE clause for filters over the chunks table.
func filterClause(prefix string, f domain.Filters) (string, []any) {
	var conds []string
	var args []any
	if f.GameSystem != "" {
		conds = append(conds, prefix+"game_system = ?")
		args = append(args, f.GameSystem)
	}
	if len(f.Books) > 0 {
		c, a := inClause(prefix+"book", f.Books)
		conds = append(conds, c)
		args = append(args, a...)
	}
	if len(f.ContentTypes) > 0 {
		c, a := inClause(prefix+"content_type", f.ContentTypes)
		conds = append(conds, c)
		args = append(args, a...)
	}
	if len(f.Versions) > 0 {
		c, a := inClause(prefix+"version", f.Versions)
		conds = append(conds, c)
		args = append(args, a...)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// matchExpression turns free text into an FTS5 query: each term quoted,
// joined with OR.
func matchExpression(text string) string {
	terms := scoring.Terms(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func decodeChunk(payload string) (*domain.Chunk, error) {
	var chunk domain.Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk: %w", err)
	}
	return &chunk, nil
}
