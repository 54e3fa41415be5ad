package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
	"github.com/custodia-labs/tome/internal/logger"
)

// EmbedResult is the outcome of embedding a set of chunks.
type EmbedResult struct {
	// Vectors holds one vector per successfully embedded chunk, in input order.
	Vectors []domain.EmbeddingVector

	// Failures lists chunks excluded after exhausting retries.
	Failures []domain.Failure

	// CacheHits is the number of chunks served from the cache.
	CacheHits int
}

// Embedder turns chunks into vectors with batching, caching and retries.
// It is safe for concurrent use.
type Embedder struct {
	models       map[string]driven.EmbeddingService
	defaultModel string
	cache        driven.EmbeddingCache
	tokenizer    driven.Tokenizer
}

// NewEmbedder creates an embedder over one or more embedding runtimes.
// The first runtime is the default. cache and tokenizer are optional; without
// a tokenizer no truncation to MaxSequenceTokens happens.
func NewEmbedder(cache driven.EmbeddingCache, tokenizer driven.Tokenizer, models ...driven.EmbeddingService) (*Embedder, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no embedding runtime configured", domain.ErrEmbeddingUnavailable)
	}
	e := &Embedder{
		models:       make(map[string]driven.EmbeddingService, len(models)),
		defaultModel: models[0].ModelName(),
		cache:        cache,
		tokenizer:    tokenizer,
	}
	for _, m := range models {
		e.models[m.ModelName()] = m
	}
	return e, nil
}

// Runtime returns the embedding runtime for a model name ("" for the default).
func (e *Embedder) Runtime(model string) (driven.EmbeddingService, error) {
	if model == "" {
		model = e.defaultModel
	}
	svc, ok := e.models[model]
	if !ok {
		return nil, fmt.Errorf("%w: model %q is not configured", domain.ErrEmbeddingUnavailable, model)
	}
	return svc, nil
}

// DefaultModel returns the name of the default embedding model.
func (e *Embedder) DefaultModel() string {
	return e.defaultModel
}

// pendingText is a unique text awaiting a model call and the chunks sharing it.
type pendingText struct {
	key    string
	text   string
	chunks []int
}

// Embed embeds chunks. Chunks whose embedding fails after retries are
// reported in Failures and left out of Vectors; they never abort the call.
// Cancellation is honoured between batches: batches already started run to
// completion, unstarted ones are skipped and the returned error wraps
// domain.ErrCancelled alongside the partial result.
func (e *Embedder) Embed(ctx context.Context, chunks []domain.Chunk, cfg domain.EmbeddingConfig) (*EmbedResult, error) {
	return e.embed(ctx, chunks, cfg, true)
}

// embed runs the embedding pipeline. With detach, model calls already
// started outlive ctx; without it every call is bounded by ctx.
func (e *Embedder) embed(
	ctx context.Context, chunks []domain.Chunk, cfg domain.EmbeddingConfig, detach bool,
) (*EmbedResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	svc, err := e.Runtime(cfg.Model)
	if err != nil {
		return nil, err
	}
	model := svc.ModelName()

	raw := make([][]float32, len(chunks))
	reasons := make([]string, len(chunks))
	result := &EmbedResult{}

	// 1. NORMALISE AND CHECK CACHE
	var misses []*pendingText
	byKey := make(map[string]*pendingText)
	for i := range chunks {
		text := e.prepare(chunks[i].Text, cfg)
		if text == "" {
			reasons[i] = "malformed text: empty after normalisation"
			continue
		}
		key := ContentKey(text)
		if e.cache != nil {
			if vec, ok := e.cache.Get(ctx, model, key); ok {
				raw[i] = vec
				result.CacheHits++
				continue
			}
		}
		if p, ok := byKey[key]; ok {
			p.chunks = append(p.chunks, i)
			continue
		}
		p := &pendingText{key: key, text: text, chunks: []int{i}}
		byKey[key] = p
		misses = append(misses, p)
	}

	logger.Debug("Embedding %d chunks with %s: %d cache hits, %d unique texts to embed",
		len(chunks), model, result.CacheHits, len(misses))

	// 2. EMBED MISSES IN BOUNDED CONCURRENT BATCHES
	var (
		mu        sync.Mutex
		g         errgroup.Group
		cancelled atomic.Bool
	)
	g.SetLimit(cfg.MaxConcurrentBatches)

	for start := 0; start < len(misses); start += cfg.BatchSize {
		if ctx.Err() != nil {
			cancelled.Store(true)
			break
		}
		batch := misses[start:min(start+cfg.BatchSize, len(misses))]

		g.Go(func() error {
			if ctx.Err() != nil {
				cancelled.Store(true)
				return nil
			}

			vecs, errs := e.embedBatch(ctx, svc, batch, cfg, detach)

			mu.Lock()
			defer mu.Unlock()
			for j, p := range batch {
				for _, idx := range p.chunks {
					if errs[j] != nil {
						reasons[idx] = errs[j].Error()
						continue
					}
					raw[idx] = vecs[j]
				}
				if errs[j] == nil && e.cache != nil {
					if err := e.cache.Put(ctx, model, p.key, vecs[j]); err != nil {
						logger.Warn("Embedding cache write failed: %v", err)
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	// 3. ASSEMBLE OUTPUT IN INPUT ORDER
	now := time.Now()
	for i := range chunks {
		switch {
		case raw[i] != nil:
			vec := raw[i]
			if cfg.Normalize {
				var ok bool
				if vec, ok = unitNormalize(vec); !ok {
					reasons[i] = "malformed vector: zero norm"
					break
				}
			}
			result.Vectors = append(result.Vectors, domain.EmbeddingVector{
				ChunkID: chunks[i].ID,
				Vector:  vec,
				ModelID: model,
			})
			continue
		case reasons[i] == "":
			// Skipped because of cancellation.
			continue
		}
		result.Failures = append(result.Failures, domain.Failure{
			DocumentID: chunks[i].DocumentID,
			Stage:      domain.JobEmbedding,
			ChunkID:    chunks[i].ID,
			Reason:     fmt.Sprintf("%v: %s", domain.ErrEmbeddingFailure, reasons[i]),
			At:         now,
		})
	}

	if len(result.Failures) > 0 {
		logger.Warn("Embedding: %d of %d chunks failed", len(result.Failures), len(chunks))
	}
	if cancelled.Load() {
		return result, fmt.Errorf("embedding: %w", domain.ErrCancelled)
	}
	return result, nil
}

// EmbedText embeds a single text through the same normalisation and cache
// path as chunks, so identical text yields the identical vector. Unlike
// Embed, the model call is bounded by ctx and a deadline surfaces as
// context.DeadlineExceeded.
func (e *Embedder) EmbedText(ctx context.Context, text string, cfg domain.EmbeddingConfig) (domain.EmbeddingVector, error) {
	res, err := e.embed(ctx, []domain.Chunk{{ID: "query", Text: text}}, cfg, false)
	if ctxErr := ctx.Err(); ctxErr != nil && (err != nil || len(res.Vectors) == 0) {
		return domain.EmbeddingVector{}, fmt.Errorf("embed text: %w", ctxErr)
	}
	if err != nil {
		return domain.EmbeddingVector{}, err
	}
	if len(res.Vectors) == 0 {
		reason := "no vector returned"
		if len(res.Failures) > 0 {
			reason = res.Failures[0].Reason
		}
		return domain.EmbeddingVector{}, fmt.Errorf("%w: %s", domain.ErrEmbeddingUnavailable, reason)
	}
	return res.Vectors[0], nil
}

// embedBatch embeds one batch. The batch call is retried as a whole; items
// that fail individually (reported via driven.ItemErrors or returning an
// unusable vector) are then retried one by one.
func (e *Embedder) embedBatch(
	ctx context.Context, svc driven.EmbeddingService, batch []*pendingText, cfg domain.EmbeddingConfig, detach bool,
) ([][]float32, []error) {
	policy := retryPolicy{
		attempts: cfg.MaxRetries,
		initial:  cfg.InitialBackoff,
		timeout:  cfg.Timeout,
		detach:   detach,
	}

	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.text
	}

	vecs := make([][]float32, len(batch))
	errs := make([]error, len(batch))

	err := retry(ctx, policy, fmt.Sprintf("embed batch of %d", len(texts)), func(ctx context.Context) error {
		out, err := svc.EmbedBatch(ctx, texts)
		var itemErrs driven.ItemErrors
		if err != nil && !errors.As(err, &itemErrs) {
			return err
		}
		if len(out) != len(texts) {
			return fmt.Errorf("model returned %d vectors for %d texts", len(out), len(texts))
		}
		for i := range texts {
			if itemErr, failed := itemErrs[i]; failed {
				errs[i] = itemErr
				continue
			}
			if verr := validVector(out[i], svc.Dimensions()); verr != nil {
				errs[i] = verr
				continue
			}
			vecs[i] = out[i]
			errs[i] = nil
		}
		return nil
	})
	if err != nil {
		for i := range errs {
			errs[i] = err
		}
		return vecs, errs
	}

	for i := range batch {
		if errs[i] == nil {
			continue
		}
		errs[i] = retry(ctx, policy, "embed item", func(ctx context.Context) error {
			out, err := svc.EmbedBatch(ctx, []string{texts[i]})
			if err != nil {
				return err
			}
			if len(out) != 1 {
				return fmt.Errorf("model returned %d vectors for 1 text", len(out))
			}
			if verr := validVector(out[0], svc.Dimensions()); verr != nil {
				return verr
			}
			vecs[i] = out[0]
			return nil
		})
	}
	return vecs, errs
}

// prepare normalises text for embedding: whitespace collapsed and trimmed,
// then truncated to the model's sequence budget.
func (e *Embedder) prepare(text string, cfg domain.EmbeddingConfig) string {
	text = strings.Join(strings.Fields(text), " ")
	if e.tokenizer == nil || cfg.MaxSequenceTokens <= 0 {
		return text
	}
	tokens := e.tokenizer.Tokenize(text)
	if len(tokens) <= cfg.MaxSequenceTokens {
		return text
	}
	return strings.TrimSpace(strings.Join(tokens[:cfg.MaxSequenceTokens], ""))
}

// ContentKey returns the cache key of normalised text.
func ContentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func validVector(vec []float32, dims int) error {
	if len(vec) == 0 {
		return errors.New("malformed vector: empty")
	}
	if dims > 0 && len(vec) != dims {
		return fmt.Errorf("malformed vector: %d dimensions, expected %d", len(vec), dims)
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("malformed vector: non-finite value")
		}
	}
	return nil
}

// unitNormalize returns a unit-length copy of vec. It reports false for a zero vector.
func unitNormalize(vec []float32) ([]float32, bool) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, true
}
