package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown extractor, classifier or provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	// The vector leg of search is skipped without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Pipeline Errors.

	// ErrExtraction indicates a document could not be read. Fatal to the document's job.
	ErrExtraction = errors.New("extraction failed")

	// ErrClassificationAmbiguous indicates no content type clearly won.
	// Non-fatal: the segment degrades to ContentTypeRule.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrChunkConfigInvalid indicates a chunk configuration that cannot make progress.
	// Raised before any work begins.
	ErrChunkConfigInvalid = errors.New("invalid chunk configuration")

	// ErrEmbeddingFailure indicates a chunk could not be embedded after retries.
	ErrEmbeddingFailure = errors.New("embedding failed")

	// ErrIndexUnavailable indicates the index rejected or timed out an operation.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrQueryTimeout indicates a search leg timed out. Retryable.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrCancelled indicates a job was cancelled at a stage or batch boundary.
	ErrCancelled = errors.New("cancelled")

	// ErrJobNotResumable indicates a resume was requested for a job that has not failed.
	ErrJobNotResumable = errors.New("job not resumable")
)

// StageError is a pipeline failure with enough context to resume.
type StageError struct {
	JobID      string
	DocumentID string
	Stage      JobState
	ChunkID    string
	Err        error
}

// Error implements error.
func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: document %s", e.Stage, e.DocumentID)
	if e.ChunkID != "" {
		msg += ", chunk " + e.ChunkID
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
