package driving

import (
	"context"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// IngestionService runs documents through the ingestion pipeline.
type IngestionService interface {
	// Submit validates the request, records a job and starts it in the
	// background. Configuration errors are returned before any work begins.
	Submit(ctx context.Context, req domain.SubmitRequest) (string, error)

	// Status returns the progress of a job.
	Status(ctx context.Context, jobID string) (*domain.Status, error)

	// Resume restarts a failed job at its failed stage.
	Resume(ctx context.Context, jobID string) error

	// Cancel stops a running job at its next stage or batch boundary.
	Cancel(jobID string) error

	// Wait blocks until the job reaches a terminal state or ctx ends.
	Wait(ctx context.Context, jobID string) (*domain.Status, error)

	// Jobs lists known jobs, most recently updated first.
	Jobs(ctx context.Context) ([]domain.Status, error)
}
