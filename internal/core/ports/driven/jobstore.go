package driven

import (
	"context"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// JobStore persists ingestion progress records and the stage outputs a
// failed job needs in order to resume without redoing completed stages.
type JobStore interface {
	// SaveJob creates or replaces a job record.
	SaveJob(ctx context.Context, job *domain.Job) error

	// GetJob returns a job record. Returns domain.ErrNotFound if absent.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// ListJobs returns job records, most recently updated first.
	ListJobs(ctx context.Context) ([]domain.Job, error)

	// SaveSegments replaces the classified segments of a job.
	SaveSegments(ctx context.Context, jobID string, segments []domain.ClassifiedSegment) error

	// Segments returns the classified segments of a job in document order.
	Segments(ctx context.Context, jobID string) ([]domain.ClassifiedSegment, error)

	// SaveChunks replaces the chunks of a job.
	SaveChunks(ctx context.Context, jobID string, chunks []domain.Chunk) error

	// Chunks returns the chunks of a job in document order.
	Chunks(ctx context.Context, jobID string) ([]domain.Chunk, error)

	// AddEmbeddings stores embedded chunks awaiting indexing. Re-adding a chunk id overwrites it.
	AddEmbeddings(ctx context.Context, jobID string, vectors []domain.EmbeddingVector) error

	// Embeddings returns the stored embeddings of a job.
	Embeddings(ctx context.Context, jobID string) ([]domain.EmbeddingVector, error)

	// ClearStaging removes segments, chunks and embeddings of a completed job.
	ClearStaging(ctx context.Context, jobID string) error
}
