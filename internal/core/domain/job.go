package domain

import (
	"fmt"
	"time"
)

// JobState is the position of an ingestion job in its state machine.
// Jobs move strictly forward through the stages; Failed and Complete are terminal.
type JobState string

// Job states in pipeline order.
const (
	JobQueued      JobState = "queued"
	JobExtracting  JobState = "extracting"
	JobClassifying JobState = "classifying"
	JobChunking    JobState = "chunking"
	JobEmbedding   JobState = "embedding"
	JobIndexing    JobState = "indexing"
	JobComplete    JobState = "complete"
	JobFailed      JobState = "failed"
)

// Stages returns the working stages in execution order.
func Stages() []JobState {
	return []JobState{JobExtracting, JobClassifying, JobChunking, JobEmbedding, JobIndexing}
}

// IsTerminal returns true if no further transitions happen without a resume.
func (s JobState) IsTerminal() bool {
	return s == JobComplete || s == JobFailed
}

// IsStage returns true for the working stages.
func (s JobState) IsStage() bool {
	switch s {
	case JobExtracting, JobClassifying, JobChunking, JobEmbedding, JobIndexing:
		return true
	default:
		return false
	}
}

// Next returns the state that follows s on success.
func (s JobState) Next() JobState {
	switch s {
	case JobQueued:
		return JobExtracting
	case JobExtracting:
		return JobClassifying
	case JobClassifying:
		return JobChunking
	case JobChunking:
		return JobEmbedding
	case JobEmbedding:
		return JobIndexing
	case JobIndexing:
		return JobComplete
	default:
		return s
	}
}

// String returns the string representation.
func (s JobState) String() string {
	return string(s)
}

// Failure records a unit of work that did not complete.
// It carries enough context to locate and retry the unit.
type Failure struct {
	DocumentID string    `json:"document_id"`
	Stage      JobState  `json:"stage"`
	ChunkID    string    `json:"chunk_id,omitempty"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// String formats the failure for display.
func (f Failure) String() string {
	if f.ChunkID != "" {
		return fmt.Sprintf("%s [%s] chunk %s: %s", f.DocumentID, f.Stage, f.ChunkID, f.Reason)
	}
	return fmt.Sprintf("%s [%s]: %s", f.DocumentID, f.Stage, f.Reason)
}

// ExtractionConfig tunes text extraction.
type ExtractionConfig struct {
	// MinTextLength drops segments shorter than this many characters.
	MinTextLength int `json:"min_text_length"`

	// MergeHyphenated joins words broken across line ends ("fire-\nball").
	MergeHyphenated bool `json:"merge_hyphenated"`

	// CleanHeadersFooters removes lines repeated at the top or bottom of most pages.
	CleanHeadersFooters bool `json:"clean_headers_footers"`

	// ExtractTables emits tables as their own segments.
	ExtractTables bool `json:"extract_tables"`
}

// DefaultExtractionConfig returns the standard extraction configuration.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MinTextLength:       10,
		MergeHyphenated:     true,
		CleanHeadersFooters: true,
		ExtractTables:       true,
	}
}

// SubmitRequest describes one document to ingest.
type SubmitRequest struct {
	Document   DocumentRef
	GameSystem string
	Book       string
	Version    string
	Extraction ExtractionConfig
	Chunking   ChunkConfig
	Embedding  EmbeddingConfig
}

// Job is the persisted progress record of one document's ingestion.
// It lives in the job store, separate from the index.
type Job struct {
	ID       string       `json:"id"`
	Document DocumentRef  `json:"document"`
	Info     DocumentInfo `json:"info"`

	Extraction ExtractionConfig `json:"extraction"`
	Chunking   ChunkConfig      `json:"chunking"`
	Embedding  EmbeddingConfig  `json:"embedding"`

	// State is the current state.
	State JobState `json:"state"`

	// Stage is the last stage entered. For failed jobs it is the stage that failed.
	Stage JobState `json:"stage"`

	// Offset is the last processed offset within Stage: chunks embedded
	// during Embedding, entries indexed during Indexing.
	Offset int `json:"offset"`

	// SegmentCount is the number of extracted segments.
	SegmentCount int `json:"segment_count"`

	// ChunkCount is the number of chunks produced.
	ChunkCount int `json:"chunk_count"`

	// Processed is the number of chunks indexed.
	Processed int `json:"processed_count"`

	// Ambiguous counts segments whose classification was ambiguous.
	Ambiguous int `json:"ambiguous_count"`

	// Failures lists non-fatal failures (skipped chunks).
	Failures []Failure `json:"failures,omitempty"`

	// Error is the fatal error of a failed job.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Status is the externally visible summary of a job.
type Status struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	State      JobState  `json:"state"`
	Stage      JobState  `json:"stage"`
	Offset     int       `json:"offset"`
	Chunks     int       `json:"chunk_count"`
	Processed  int       `json:"processed_count"`
	Failures   []Failure `json:"failures,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Status summarises the job.
func (j *Job) Status() Status {
	failures := make([]Failure, len(j.Failures))
	copy(failures, j.Failures)
	return Status{
		JobID:      j.ID,
		DocumentID: j.Info.ID,
		State:      j.State,
		Stage:      j.Stage,
		Offset:     j.Offset,
		Chunks:     j.ChunkCount,
		Processed:  j.Processed,
		Failures:   failures,
		Error:      j.Error,
	}
}
