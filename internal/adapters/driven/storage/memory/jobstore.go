package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
type JobStore struct {
	mu         sync.RWMutex
	jobs       map[string]domain.Job
	segments   map[string][]domain.ClassifiedSegment
	chunks     map[string][]domain.Chunk
	embeddings map[string]map[string]domain.EmbeddingVector
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:       make(map[string]domain.Job),
		segments:   make(map[string][]domain.ClassifiedSegment),
		chunks:     make(map[string][]domain.Chunk),
		embeddings: make(map[string]map[string]domain.EmbeddingVector),
	}
}

// SaveJob creates or replaces a job record.
func (s *JobStore) SaveJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := *job
	j.Failures = slices.Clone(job.Failures)
	s.jobs[job.ID] = j
	return nil
}

// GetJob returns a job record.
func (s *JobStore) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	j.Failures = slices.Clone(j.Failures)
	return &j, nil
}

// ListJobs returns job records, most recently updated first.
func (s *JobStore) ListJobs(_ context.Context) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].UpdatedAt.Equal(jobs[k].UpdatedAt) {
			return jobs[i].UpdatedAt.After(jobs[k].UpdatedAt)
		}
		return jobs[i].ID < jobs[k].ID
	})
	return jobs, nil
}

// SaveSegments replaces the classified segments of a job.
func (s *JobStore) SaveSegments(_ context.Context, jobID string, segments []domain.ClassifiedSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[jobID] = slices.Clone(segments)
	return nil
}

// Segments returns the classified segments of a job.
func (s *JobStore) Segments(_ context.Context, jobID string) ([]domain.ClassifiedSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.segments[jobID]), nil
}

// SaveChunks replaces the chunks of a job.
func (s *JobStore) SaveChunks(_ context.Context, jobID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[jobID] = slices.Clone(chunks)
	return nil
}

// Chunks returns the chunks of a job.
func (s *JobStore) Chunks(_ context.Context, jobID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chunks[jobID]), nil
}

// AddEmbeddings stores embedded chunks awaiting indexing.
func (s *JobStore) AddEmbeddings(_ context.Context, jobID string, vectors []domain.EmbeddingVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.embeddings[jobID]
	if !ok {
		m = make(map[string]domain.EmbeddingVector)
		s.embeddings[jobID] = m
	}
	for _, v := range vectors {
		v.Vector = slices.Clone(v.Vector)
		m[v.ChunkID] = v
	}
	return nil
}

// Embeddings returns the stored embeddings of a job ordered by chunk id.
func (s *JobStore) Embeddings(_ context.Context, jobID string) ([]domain.EmbeddingVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.embeddings[jobID]
	out := make([]domain.EmbeddingVector, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ChunkID < out[k].ChunkID })
	return out, nil
}

// ClearStaging removes segments, chunks and embeddings of a job.
func (s *JobStore) ClearStaging(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, jobID)
	delete(s.chunks, jobID)
	delete(s.embeddings, jobID)
	return nil
}
