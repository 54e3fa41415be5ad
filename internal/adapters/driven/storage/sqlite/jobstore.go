package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/tome/internal/adapters/driven/storage/scoring"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// SaveJob creates or replaces a job record.
func (s *jobStore) SaveJob(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, document_id, state, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			state = excluded.state,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, job.ID, job.Info.ID, string(job.State), string(payload), job.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob returns a job record.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var payload string
	err := s.store.db.QueryRowContext(ctx, "SELECT payload FROM jobs WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job: %w", err)
	}
	return &job, nil
}

// ListJobs returns job records, most recently updated first.
func (s *jobStore) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT payload FROM jobs ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return nil, fmt.Errorf("unmarshaling job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// SaveSegments replaces the classified segments of a job.
func (s *jobStore) SaveSegments(ctx context.Context, jobID string, segments []domain.ClassifiedSegment) error {
	return replaceStaged(ctx, s.store.db, "job_segments", jobID, segments)
}

// Segments returns the classified segments of a job in document order.
func (s *jobStore) Segments(ctx context.Context, jobID string) ([]domain.ClassifiedSegment, error) {
	return loadStaged[domain.ClassifiedSegment](ctx, s.store.db, "job_segments", jobID)
}

// SaveChunks replaces the chunks of a job.
func (s *jobStore) SaveChunks(ctx context.Context, jobID string, chunks []domain.Chunk) error {
	return replaceStaged(ctx, s.store.db, "job_chunks", jobID, chunks)
}

// Chunks returns the chunks of a job in document order.
func (s *jobStore) Chunks(ctx context.Context, jobID string) ([]domain.Chunk, error) {
	return loadStaged[domain.Chunk](ctx, s.store.db, "job_chunks", jobID)
}

// AddEmbeddings stores embedded chunks awaiting indexing.
func (s *jobStore) AddEmbeddings(ctx context.Context, jobID string, vectors []domain.EmbeddingVector) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO job_embeddings (job_id, chunk_id, model_id, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id, chunk_id) DO UPDATE SET
			model_id = excluded.model_id,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range vectors {
		if _, err := stmt.ExecContext(ctx, jobID, v.ChunkID, v.ModelID, scoring.EncodeVector(v.Vector)); err != nil {
			return fmt.Errorf("saving embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Embeddings returns the stored embeddings of a job ordered by chunk id.
func (s *jobStore) Embeddings(ctx context.Context, jobID string) ([]domain.EmbeddingVector, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, model_id, embedding FROM job_embeddings
		WHERE job_id = ? ORDER BY chunk_id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.EmbeddingVector //nolint:prealloc // size unknown from query
	for rows.Next() {
		var v domain.EmbeddingVector
		var blob []byte
		if err := rows.Scan(&v.ChunkID, &v.ModelID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if v.Vector, err = scoring.DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", v.ChunkID, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return out, nil
}

// ClearStaging removes segments, chunks and embeddings of a job.
func (s *jobStore) ClearStaging(ctx context.Context, jobID string) error {
	for _, table := range []string{"job_segments", "job_chunks", "job_embeddings"} {
		if _, err := s.store.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = ?", jobID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// replaceStaged overwrites the positional JSON rows of a job in table.
func replaceStaged[T any](ctx context.Context, db *sql.DB, table, jobID string, items []T) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" (job_id, position, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshalling %s row: %w", table, err)
		}
		if _, err := stmt.ExecContext(ctx, jobID, i, string(payload)); err != nil {
			return fmt.Errorf("saving %s row: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// loadStaged reads the positional JSON rows of a job from table.
func loadStaged[T any](ctx context.Context, db *sql.DB, table, jobID string) ([]T, error) {
	rows, err := db.QueryContext(ctx, "SELECT payload FROM "+table+" WHERE job_id = ? ORDER BY position", jobID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []T //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("unmarshaling %s row: %w", table, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return out, nil
}
