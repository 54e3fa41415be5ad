package services

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tome/internal/adapters/driven/tokenizer/whitespace"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// scriptedEmbedding returns [len(text), 1, 2] for each text and fails on cue.
type scriptedEmbedding struct {
	name string

	mu sync.Mutex
	// itemFailures is how many more times a text is reported as a per-item error.
	itemFailures map[string]int
	// batchFailures is how many more calls fail as a whole.
	batchFailures int
	// short lists texts answered with a vector of the wrong size.
	short map[string]bool
	calls [][]string
}

func newScripted(name string) *scriptedEmbedding {
	return &scriptedEmbedding{name: name, itemFailures: map[string]int{}, short: map[string]bool{}}
}

func (s *scriptedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *scriptedEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), texts...))

	if s.batchFailures > 0 {
		s.batchFailures--
		return nil, domain.ErrEmbeddingUnavailable
	}

	out := make([][]float32, len(texts))
	itemErrs := driven.ItemErrors{}
	for i, text := range texts {
		if s.itemFailures[text] > 0 {
			s.itemFailures[text]--
			itemErrs[i] = domain.ErrEmbeddingUnavailable
			continue
		}
		if s.short[text] {
			out[i] = []float32{1}
			continue
		}
		out[i] = []float32{float32(len(text)), 1, 2}
	}
	if len(itemErrs) > 0 {
		return out, itemErrs
	}
	return out, nil
}

func (s *scriptedEmbedding) Dimensions() int            { return 3 }
func (s *scriptedEmbedding) ModelName() string          { return s.name }
func (s *scriptedEmbedding) Ping(context.Context) error { return nil }
func (s *scriptedEmbedding) Close() error               { return nil }

func (s *scriptedEmbedding) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []string
	for _, c := range s.calls {
		all = append(all, c...)
	}
	return all
}

func (s *scriptedEmbedding) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func fastEmbeddingConfig() domain.EmbeddingConfig {
	cfg := domain.DefaultEmbeddingConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.Timeout = time.Second
	cfg.MaxRetries = 1
	return cfg
}

func textChunks(texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{ID: string(rune('a' + i)), DocumentID: "phb", Text: text}
	}
	return chunks
}

func chunkIDs(vectors []domain.EmbeddingVector) []string {
	out := make([]string, len(vectors))
	for i, v := range vectors {
		out[i] = v.ChunkID
	}
	return out
}

func TestNewEmbedder_RequiresRuntime(t *testing.T) {
	_, err := NewEmbedder(nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_CacheHitsSkipModel(t *testing.T) {
	model := newScripted("m")
	e, err := NewEmbedder(memory.NewEmbeddingCache(100), nil, model)
	require.NoError(t, err)
	ctx := context.Background()
	chunks := textChunks("Fireball deals fire damage.", "Shield raises AC by 5.")

	first, err := e.Embed(ctx, chunks, fastEmbeddingConfig())
	require.NoError(t, err)
	assert.Zero(t, first.CacheHits)
	calls := model.callCount()

	second, err := e.Embed(ctx, chunks, fastEmbeddingConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, second.CacheHits)
	assert.Equal(t, calls, model.callCount())
	assert.Equal(t, first.Vectors, second.Vectors)
}

func TestEmbedder_CacheIsPerModel(t *testing.T) {
	a, b := newScripted("a"), newScripted("b")
	e, err := NewEmbedder(memory.NewEmbeddingCache(100), nil, a, b)
	require.NoError(t, err)
	assert.Equal(t, "a", e.DefaultModel())
	ctx := context.Background()
	chunks := textChunks("Magic Missile")

	_, err = e.Embed(ctx, chunks, fastEmbeddingConfig())
	require.NoError(t, err)

	cfg := fastEmbeddingConfig()
	cfg.Model = "b"
	res, err := e.Embed(ctx, chunks, cfg)
	require.NoError(t, err)
	assert.Zero(t, res.CacheHits)
	assert.Equal(t, []string{"Magic Missile"}, b.sent())
	assert.Equal(t, "b", res.Vectors[0].ModelID)

	cfg.Model = "c"
	_, err = e.Embed(ctx, chunks, cfg)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_DeduplicatesNormalisedText(t *testing.T) {
	model := newScripted("m")
	e, err := NewEmbedder(nil, nil, model)
	require.NoError(t, err)

	res, err := e.Embed(context.Background(), textChunks("Cure  Wounds\n", " Cure Wounds", "Bless"), fastEmbeddingConfig())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Cure Wounds", "Bless"}, model.sent())
	assert.Equal(t, []string{"a", "b", "c"}, chunkIDs(res.Vectors))
	assert.Equal(t, res.Vectors[0].Vector, res.Vectors[1].Vector)
}

func TestEmbedder_Normalize(t *testing.T) {
	e, err := NewEmbedder(nil, nil, newScripted("m"))
	require.NoError(t, err)
	ctx := context.Background()

	cfg := fastEmbeddingConfig()
	res, err := e.Embed(ctx, textChunks("abcd"), cfg)
	require.NoError(t, err)
	var sum float64
	for _, v := range res.Vectors[0].Vector {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	cfg.Normalize = false
	res, err = e.Embed(ctx, textChunks("abcd"), cfg)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1, 2}, res.Vectors[0].Vector)
}

func TestEmbedder_BatchesKeepInputOrder(t *testing.T) {
	model := newScripted("m")
	e, err := NewEmbedder(nil, nil, model)
	require.NoError(t, err)

	cfg := fastEmbeddingConfig()
	cfg.BatchSize = 2
	cfg.MaxConcurrentBatches = 3
	res, err := e.Embed(context.Background(), textChunks("one", "two", "three", "four", "five"), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, chunkIDs(res.Vectors))
	model.mu.Lock()
	defer model.mu.Unlock()
	assert.Len(t, model.calls, 3)
	for _, call := range model.calls {
		assert.LessOrEqual(t, len(call), 2)
	}
}

func TestEmbedder_ItemFailures(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		wantFailures int
	}{
		{"transient item recovers on individual retry", 1, 0},
		{"persistent item is skipped and reported", 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newScripted("m")
			model.itemFailures["Wish"] = tt.failures
			e, err := NewEmbedder(nil, nil, model)
			require.NoError(t, err)

			res, err := e.Embed(context.Background(), textChunks("Fireball", "Wish", "Shield"), fastEmbeddingConfig())
			require.NoError(t, err)

			require.Len(t, res.Failures, tt.wantFailures)
			assert.Len(t, res.Vectors, 3-tt.wantFailures)
			if tt.wantFailures > 0 {
				f := res.Failures[0]
				assert.Equal(t, "b", f.ChunkID)
				assert.Equal(t, "phb", f.DocumentID)
				assert.Equal(t, domain.JobEmbedding, f.Stage)
				assert.Equal(t, []string{"a", "c"}, chunkIDs(res.Vectors))
			}
		})
	}
}

func TestEmbedder_BatchErrorIsRetried(t *testing.T) {
	model := newScripted("m")
	model.batchFailures = 1
	e, err := NewEmbedder(nil, nil, model)
	require.NoError(t, err)

	res, err := e.Embed(context.Background(), textChunks("Fireball", "Shield"), fastEmbeddingConfig())
	require.NoError(t, err)
	assert.Len(t, res.Vectors, 2)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, model.callCount())
}

func TestEmbedder_MalformedInputAndOutput(t *testing.T) {
	model := newScripted("m")
	model.short["Broken"] = true
	e, err := NewEmbedder(nil, nil, model)
	require.NoError(t, err)

	cfg := fastEmbeddingConfig()
	cfg.MaxRetries = 0
	res, err := e.Embed(context.Background(), textChunks("  \n\t", "Broken", "Fine"), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"c"}, chunkIDs(res.Vectors))
	require.Len(t, res.Failures, 2)
	assert.Contains(t, res.Failures[0].Reason, "empty after normalisation")
	assert.Contains(t, res.Failures[1].Reason, "dimensions")
	assert.NotContains(t, model.sent(), "")
}

func TestEmbedder_TruncatesToSequenceBudget(t *testing.T) {
	model := newScripted("m")
	e, err := NewEmbedder(nil, whitespace.New(), model)
	require.NoError(t, err)

	cfg := fastEmbeddingConfig()
	cfg.MaxSequenceTokens = 3
	_, err = e.Embed(context.Background(), textChunks("one two three four five"), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"one two three"}, model.sent())
}

func TestEmbedder_CancelledBeforeStart(t *testing.T) {
	model := newScripted("m")
	e, err := NewEmbedder(nil, nil, model)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Embed(ctx, textChunks("Fireball"), fastEmbeddingConfig())

	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, res)
	assert.Empty(t, res.Vectors)
	assert.Empty(t, res.Failures)
	assert.Zero(t, model.callCount())
}

func TestEmbedder_EmbedText(t *testing.T) {
	model := newScripted("m")
	e, err := NewEmbedder(memory.NewEmbeddingCache(10), nil, model)
	require.NoError(t, err)
	ctx := context.Background()

	vec, err := e.EmbedText(ctx, "Counterspell", fastEmbeddingConfig())
	require.NoError(t, err)
	assert.Equal(t, "m", vec.ModelID)

	_, err = e.EmbedText(ctx, "   ", fastEmbeddingConfig())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_EmbedTextHonoursDeadline(t *testing.T) {
	e, err := NewEmbedder(nil, nil, slowEmbedding{delay: 2 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = e.EmbedText(ctx, "Counterspell", fastEmbeddingConfig())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEmbedder_StartedBatchesOutliveDeadline(t *testing.T) {
	e, err := NewEmbedder(nil, nil, slowEmbedding{delay: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := fastEmbeddingConfig()
	cfg.MaxRetries = 0
	res, err := e.Embed(ctx, textChunks("Counterspell"), cfg)

	require.NoError(t, err)
	assert.Len(t, res.Vectors, 1)
	assert.Empty(t, res.Failures)
}

func TestContentKey(t *testing.T) {
	assert.Equal(t, ContentKey("Fireball"), ContentKey("Fireball"))
	assert.NotEqual(t, ContentKey("Fireball"), ContentKey("fireball"))
	assert.Len(t, ContentKey(""), 64)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := retryPolicy{initial: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.delay(0))
	assert.Equal(t, 400*time.Millisecond, p.delay(2))
	assert.Equal(t, maxBackoff, p.delay(10))
	assert.Equal(t, maxBackoff, p.delay(100))
	assert.Equal(t, defaultBackoff, retryPolicy{}.delay(0))
}

func TestRetry(t *testing.T) {
	p := retryPolicy{attempts: 2, initial: time.Millisecond}
	ctx := context.Background()

	tries := 0
	err := retry(ctx, p, "flaky", func(context.Context) error {
		tries++
		if tries < 3 {
			return domain.ErrIndexUnavailable
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, tries)

	tries = 0
	err = retry(ctx, p, "down", func(context.Context) error {
		tries++
		return domain.ErrIndexUnavailable
	})
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Equal(t, 3, tries)

	tries = 0
	err = retry(ctx, p, "bad input", func(context.Context) error {
		tries++
		return domain.ErrInvalidInput
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, tries)
}

func TestRetry_TimeoutPerCall(t *testing.T) {
	p := retryPolicy{timeout: 10 * time.Millisecond}
	err := retry(context.Background(), p, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetry_CancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retryPolicy{attempts: 5, initial: time.Hour}

	err := retry(ctx, p, "cancelled", func(context.Context) error {
		cancel()
		return domain.ErrIndexUnavailable
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.Contains(err.Error(), domain.ErrIndexUnavailable.Error()))
}
