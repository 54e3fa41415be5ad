package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/core/ports/driving"
	"github.com/custodia-labs/tome/internal/logger"
	"github.com/custodia-labs/tome/internal/postprocessors/chunker"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// documentNamespace scopes document ids derived from their source.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/custodia-labs/tome/document"))

// DocumentID returns the stable id of a document: the same source and
// citation metadata always map to the same id.
func DocumentID(info domain.DocumentInfo, uri string) string {
	name := strings.Join([]string{info.GameSystem, info.Book, info.Version, uri}, "\x00")
	return uuid.NewSHA1(documentNamespace, []byte(name)).String()
}

// activeJob is a job running in this process.
type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// IngestionService drives documents through extraction, classification,
// chunking, embedding and indexing. Each document runs as its own job in
// the background; progress is checkpointed in the job store so a failed
// job resumes at the stage it failed in.
type IngestionService struct {
	jobs       driven.JobStore
	extractors driven.ExtractorRegistry
	classifier driven.Classifier
	tokenizer  driven.Tokenizer
	embedder   *Embedder
	index      driven.Index
	indexing   retryPolicy
	now        func() time.Time
	base       context.Context

	mu     sync.Mutex
	active map[string]*activeJob
	wg     sync.WaitGroup
}

// IngestionOption configures the ingestion service.
type IngestionOption func(*IngestionService)

// WithChunkTokenizer sets the tokenizer the chunker budgets with.
func WithChunkTokenizer(t driven.Tokenizer) IngestionOption {
	return func(s *IngestionService) {
		if t != nil {
			s.tokenizer = t
		}
	}
}

// WithIndexPolicy bounds index upserts by a per-call timeout and retry count.
func WithIndexPolicy(timeout time.Duration, maxRetries int) IngestionOption {
	return func(s *IngestionService) {
		s.indexing.timeout = timeout
		s.indexing.attempts = maxRetries
	}
}

// WithJobContext ties running jobs to ctx: when it ends, they stop and
// are recorded as cancelled.
func WithJobContext(ctx context.Context) IngestionOption {
	return func(s *IngestionService) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	jobs driven.JobStore,
	extractors driven.ExtractorRegistry,
	classifier driven.Classifier,
	embedder *Embedder,
	index driven.Index,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		jobs:       jobs,
		extractors: extractors,
		classifier: classifier,
		embedder:   embedder,
		index:      index,
		indexing:   retryPolicy{attempts: 3, timeout: 30 * time.Second},
		now:        time.Now,
		base:       context.Background(),
		active:     make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the request, records a queued job and starts it.
func (s *IngestionService) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	info := domain.DocumentInfo{
		GameSystem: strings.TrimSpace(req.GameSystem),
		Book:       strings.TrimSpace(req.Book),
		Version:    strings.TrimSpace(req.Version),
	}
	if err := info.Validate(); err != nil {
		return "", err
	}
	if req.Document.URI == "" {
		return "", fmt.Errorf("%w: document uri is required", domain.ErrInvalidInput)
	}
	if err := req.Chunking.Validate(); err != nil {
		return "", err
	}
	if err := req.Embedding.Validate(); err != nil {
		return "", err
	}
	if s.embedder == nil {
		return "", domain.ErrEmbeddingUnavailable
	}
	if _, err := s.embedder.Runtime(req.Embedding.Model); err != nil {
		return "", err
	}
	if _, err := s.extractors.For(req.Document); err != nil {
		return "", err
	}

	info.ID = DocumentID(info, req.Document.URI)
	now := s.now()
	job := &domain.Job{
		ID:         uuid.NewString(),
		Document:   req.Document,
		Info:       info,
		Extraction: req.Extraction,
		Chunking:   req.Chunking,
		Embedding:  req.Embedding,
		State:      domain.JobQueued,
		Stage:      domain.JobQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	logger.Info("Submitted job %s for %s (%s, %s)", job.ID, req.Document.URI, info.Book, info.GameSystem)
	s.start(job, domain.JobExtracting)
	return job.ID, nil
}

// Status returns the progress of a job.
func (s *IngestionService) Status(ctx context.Context, jobID string) (*domain.Status, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	status := job.Status()
	return &status, nil
}

// Resume restarts a failed job at its failed stage. A job left mid-stage by
// a process that exited is resumed the same way.
func (s *IngestionService) Resume(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", jobID, err)
	}
	if s.isActive(jobID) || job.State == domain.JobComplete {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotResumable, jobID, job.State)
	}

	from := job.Stage
	if !from.IsStage() {
		from = domain.JobExtracting
	}
	job.Error = ""
	job.FinishedAt = nil

	logger.Info("Resuming job %s at %s (offset %d)", jobID, from, job.Offset)
	s.start(job, from)
	return nil
}

// Cancel stops a running job at its next stage or batch boundary.
func (s *IngestionService) Cancel(jobID string) error {
	s.mu.Lock()
	a, ok := s.active[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s is not running", domain.ErrNotFound, jobID)
	}
	a.cancel()
	return nil
}

// Wait blocks until the job reaches a terminal state or ctx ends.
func (s *IngestionService) Wait(ctx context.Context, jobID string) (*domain.Status, error) {
	s.mu.Lock()
	a, ok := s.active[jobID]
	s.mu.Unlock()
	if ok {
		select {
		case <-a.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Status(ctx, jobID)
}

// Jobs lists known jobs, most recently updated first.
func (s *IngestionService) Jobs(ctx context.Context) ([]domain.Status, error) {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]domain.Status, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobs[i].Status())
	}
	return out, nil
}

// Close waits for running jobs to finish. Jobs stop early only through
// Cancel or the context given with WithJobContext.
func (s *IngestionService) Close() {
	s.wg.Wait()
}

func (s *IngestionService) isActive(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[jobID]
	return ok
}

// start runs the job from the given stage in the background.
func (s *IngestionService) start(job *domain.Job, from domain.JobState) {
	ctx, cancel := context.WithCancel(s.base)
	a := &activeJob{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.active[job.ID] = a
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(a.done)
		defer func() {
			s.mu.Lock()
			delete(s.active, job.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.run(ctx, job, from)
	}()
}

// run advances the job one stage at a time. Cancellation is observed
// before each stage; stages themselves observe it between batches.
func (s *IngestionService) run(ctx context.Context, job *domain.Job, from domain.JobState) {
	logger.Section("Ingestion " + job.ID)

	for stage := from; stage != domain.JobComplete; stage = stage.Next() {
		if ctx.Err() != nil {
			s.fail(job, stage, domain.ErrCancelled)
			return
		}
		if job.Stage != stage {
			job.Offset = 0
		}
		job.State = stage
		job.Stage = stage
		s.save(job)
		logger.Info("Job %s: %s", job.ID, stage)

		if err := s.runStage(ctx, job, stage); err != nil {
			s.fail(job, stage, err)
			return
		}
	}

	now := s.now()
	job.State = domain.JobComplete
	job.FinishedAt = &now
	s.save(job)
	if err := s.jobs.ClearStaging(context.Background(), job.ID); err != nil {
		logger.Warn("Job %s: clearing staged outputs failed: %v", job.ID, err)
	}
	logger.Info("Job %s complete: %d chunks indexed, %d failures", job.ID, job.Processed, len(job.Failures))
}

// runStage runs one stage. Store and extractor calls ignore cancellation so
// a stage never stops half-written; ctx is only consulted at batch boundaries.
func (s *IngestionService) runStage(ctx context.Context, job *domain.Job, stage domain.JobState) error {
	switch stage {
	case domain.JobExtracting:
		return s.extract(ctx, job)
	case domain.JobClassifying:
		return s.classify(ctx, job)
	case domain.JobChunking:
		return s.chunk(ctx, job)
	case domain.JobEmbedding:
		return s.embed(ctx, job)
	case domain.JobIndexing:
		return s.upsert(ctx, job)
	default:
		return fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidInput, stage)
	}
}

// extract reads the document and stages its raw segments unclassified.
func (s *IngestionService) extract(ctx context.Context, job *domain.Job) error {
	extractor, err := s.extractors.For(job.Document)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	ctx = context.WithoutCancel(ctx)
	var segments []domain.ClassifiedSegment
	for raw, err := range extractor.Extract(ctx, job.Document, job.Info.ID, job.Extraction) {
		if err != nil {
			if !errors.Is(err, domain.ErrExtraction) {
				err = fmt.Errorf("%w: %w", domain.ErrExtraction, err)
			}
			return err
		}
		segments = append(segments, domain.ClassifiedSegment{RawSegment: raw})
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: no text found in %s", domain.ErrExtraction, job.Document.URI)
	}

	if err := s.jobs.SaveSegments(ctx, job.ID, segments); err != nil {
		return fmt.Errorf("save segments: %w", err)
	}
	job.SegmentCount = len(segments)
	logger.Debug("Extracted %d segments with %s", len(segments), extractor.Name())
	return nil
}

// classify tags each staged segment with a content type.
func (s *IngestionService) classify(ctx context.Context, job *domain.Job) error {
	ctx = context.WithoutCancel(ctx)
	segments, err := s.jobs.Segments(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	reporter, reports := s.classifier.(driven.AmbiguityReporter)
	job.Ambiguous = 0
	for i := range segments {
		seg := &segments[i]
		if strings.TrimSpace(seg.Text) == "" {
			seg.Type = domain.ContentTypeUnclassified
			continue
		}
		if !reports {
			seg.Type = s.classifier.Classify(seg.RawSegment)
			continue
		}
		typ, err := reporter.ClassifyReport(seg.RawSegment)
		if errors.Is(err, domain.ErrClassificationAmbiguous) {
			job.Ambiguous++
			logger.Debug("Segment %s: %v", seg.ID, err)
		}
		seg.Type = typ
	}

	if err := s.jobs.SaveSegments(ctx, job.ID, segments); err != nil {
		return fmt.Errorf("save segments: %w", err)
	}
	logger.Debug("Classified %d segments with %s (%d ambiguous)", len(segments), s.classifier.Name(), job.Ambiguous)
	return nil
}

// chunk groups classified segments into chunks.
func (s *IngestionService) chunk(ctx context.Context, job *domain.Job) error {
	ctx = context.WithoutCancel(ctx)
	segments, err := s.jobs.Segments(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	var opts []chunker.Option
	if s.tokenizer != nil {
		opts = append(opts, chunker.WithTokenizer(s.tokenizer))
	}
	c, err := chunker.New(job.Chunking, opts...)
	if err != nil {
		return err
	}

	job.Failures = dropFailures(job.Failures, domain.JobChunking)
	chunks := s.citable(job, c.ChunkAll(job.Info, segments))
	if err := s.jobs.SaveChunks(ctx, job.ID, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	job.ChunkCount = len(chunks)
	logger.Debug("Chunked %d segments into %d chunks", len(segments), len(chunks))
	return nil
}

// citable drops chunks that could not be cited back to a book and page,
// recording each as a failure.
func (s *IngestionService) citable(job *domain.Job, chunks []domain.Chunk) []domain.Chunk {
	kept := chunks[:0]
	for _, c := range chunks {
		if c.Citation().IsComplete() {
			kept = append(kept, c)
			continue
		}
		job.Failures = append(job.Failures, domain.Failure{
			DocumentID: job.Info.ID,
			Stage:      domain.JobChunking,
			ChunkID:    c.ID,
			Reason:     "incomplete citation: missing book or page",
			At:         s.now(),
		})
	}
	if dropped := len(chunks) - len(kept); dropped > 0 {
		logger.Warn("Job %s: %d chunks dropped without a page citation", job.ID, dropped)
	}
	return kept
}

// embed embeds chunks not yet staged, one window of batches at a time,
// staging each window's vectors before starting the next.
func (s *IngestionService) embed(ctx context.Context, job *domain.Job) error {
	store := context.WithoutCancel(ctx)
	chunks, err := s.jobs.Chunks(store, job.ID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	staged, err := s.jobs.Embeddings(store, job.ID)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}

	done := make(map[string]bool, len(staged))
	for _, v := range staged {
		done[v.ChunkID] = true
	}
	pending := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !done[c.ID] {
			pending = append(pending, c)
		}
	}

	// Earlier embedding failures are retried on resume.
	job.Failures = dropFailures(job.Failures, domain.JobEmbedding)
	job.Offset = len(done)

	window := job.Embedding.BatchSize * job.Embedding.MaxConcurrentBatches
	for start := 0; start < len(pending); start += window {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		part := pending[start:min(start+window, len(pending))]

		res, err := s.embedder.Embed(ctx, withContext(part), job.Embedding)
		if res != nil {
			if serr := s.jobs.AddEmbeddings(store, job.ID, res.Vectors); serr != nil {
				return fmt.Errorf("stage embeddings: %w", serr)
			}
			job.Offset += len(res.Vectors)
			job.Failures = append(job.Failures, res.Failures...)
			s.save(job)
			logger.Debug("Job %s: embedded %d/%d chunks", job.ID, job.Offset, len(chunks))
		}
		if err != nil {
			return err
		}
	}

	if job.Offset == 0 && len(chunks) > 0 {
		return fmt.Errorf("%w: none of %d chunks could be embedded", domain.ErrEmbeddingFailure, len(chunks))
	}
	return nil
}

// withContext returns copies of chunks whose text is prefixed with what
// the chunk is and where it comes from, so that a bare stat block still
// embeds near questions that name it.
func withContext(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c
		out[i].Text = embeddingInput(&c)
	}
	return out
}

// embeddingInput renders a chunk as "[SPELL] Spell: Fireball Source: PHB <text>".
func embeddingInput(c *domain.Chunk) string {
	var parts []string
	if c.Type != "" {
		parts = append(parts, "["+strings.ToUpper(string(c.Type))+"]")
	}
	if c.Name != "" {
		switch c.Type {
		case domain.ContentTypeSpell:
			parts = append(parts, "Spell: "+c.Name)
		case domain.ContentTypeFeat:
			parts = append(parts, "Feat: "+c.Name)
		}
	}
	if c.Book != "" {
		parts = append(parts, "Source: "+c.Book)
	}
	return strings.Join(append(parts, c.Text), " ")
}

// upsert writes staged embeddings to the index in batches, resuming after
// the last indexed offset, then prunes what an earlier ingestion of the
// same document indexed and this one no longer produces.
func (s *IngestionService) upsert(ctx context.Context, job *domain.Job) error {
	store := context.WithoutCancel(ctx)
	chunks, err := s.jobs.Chunks(store, job.ID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	vectors, err := s.jobs.Embeddings(store, job.ID)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}

	byID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	batch := max(job.Embedding.BatchSize, 1)
	for start := job.Offset; start < len(vectors); start += batch {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		part := vectors[start:min(start+batch, len(vectors))]

		entries := make([]domain.IndexEntry, 0, len(part))
		for _, v := range part {
			c, ok := byID[v.ChunkID]
			if !ok {
				continue
			}
			entries = append(entries, domain.NewIndexEntry(c, v))
		}

		if err := s.upsertBatch(store, job, entries); err != nil {
			return err
		}

		job.Offset = start + len(part)
		job.Processed = job.Offset
		s.save(job)
	}
	job.Processed = len(vectors)
	return s.prune(store, job, chunks)
}

// prune deletes the document's index entries that are not among chunks.
func (s *IngestionService) prune(ctx context.Context, job *domain.Job, chunks []domain.Chunk) error {
	current := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		current[c.ID] = true
	}

	var stale []string
	err := retry(ctx, s.indexing, "index prune", func(ctx context.Context) error {
		ids, err := s.index.DocumentChunks(ctx, job.Info.ID)
		if err != nil {
			return err
		}
		stale = stale[:0]
		for _, id := range ids {
			if !current[id] {
				stale = append(stale, id)
			}
		}
		return s.index.Delete(ctx, stale)
	})
	if err != nil {
		return &domain.StageError{
			JobID:      job.ID,
			DocumentID: job.Info.ID,
			Stage:      domain.JobIndexing,
			Err:        fmt.Errorf("%w: pruning stale chunks: %w", domain.ErrIndexUnavailable, err),
		}
	}
	if len(stale) > 0 {
		logger.Info("Job %s: pruned %d stale chunks", job.ID, len(stale))
	}
	return nil
}

// upsertBatch writes one batch to the index with retries.
func (s *IngestionService) upsertBatch(ctx context.Context, job *domain.Job, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := retry(ctx, s.indexing, "index upsert", func(ctx context.Context) error {
		return s.index.Upsert(ctx, entries)
	})
	if err != nil {
		return &domain.StageError{
			JobID:      job.ID,
			DocumentID: job.Info.ID,
			Stage:      domain.JobIndexing,
			ChunkID:    entries[0].ChunkID,
			Err:        fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err),
		}
	}
	return nil
}

// fail marks the job failed at stage.
func (s *IngestionService) fail(job *domain.Job, stage domain.JobState, err error) {
	now := s.now()
	job.State = domain.JobFailed
	job.Stage = stage
	job.FinishedAt = &now

	var se *domain.StageError
	if !errors.As(err, &se) {
		se = &domain.StageError{JobID: job.ID, DocumentID: job.Info.ID, Stage: stage, Err: err}
	}
	job.Error = se.Error()
	if errors.Is(err, domain.ErrCancelled) {
		logger.Warn("Job %s cancelled at %s", job.ID, stage)
	} else {
		logger.Error("Job %s failed: %v", job.ID, se)
	}
	s.save(job)
}

// save persists the job. Store errors are logged; the in-memory record
// stays authoritative for the running job.
func (s *IngestionService) save(job *domain.Job) {
	job.UpdatedAt = s.now()
	if err := s.jobs.SaveJob(context.Background(), job); err != nil {
		logger.Warn("Job %s: saving progress failed: %v", job.ID, err)
	}
}

func dropFailures(failures []domain.Failure, stage domain.JobState) []domain.Failure {
	kept := failures[:0]
	for _, f := range failures {
		if f.Stage != stage {
			kept = append(kept, f)
		}
	}
	return kept
}
