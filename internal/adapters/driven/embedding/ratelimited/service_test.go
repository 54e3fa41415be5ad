package ratelimited

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

type stubService struct {
	calls atomic.Int32
	err   error
}

func (s *stubService) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls.Add(1)
	return []float32{1}, s.err
}

func (s *stubService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, s.err
}

func (s *stubService) Dimensions() int              { return 1 }
func (s *stubService) ModelName() string            { return "stub" }
func (s *stubService) Ping(_ context.Context) error { return nil }
func (s *stubService) Close() error                 { return nil }

func TestNew_DisabledReturnsNext(t *testing.T) {
	next := &stubService{}
	assert.Same(t, next, New(next, Config{}))
}

func TestService_Delegates(t *testing.T) {
	next := &stubService{}
	svc := New(next, Config{RequestsPerSecond: 1000, BurstSize: 10})

	out, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "stub", svc.ModelName())
	assert.Equal(t, 1, svc.Dimensions())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}

func TestService_Throttles(t *testing.T) {
	next := &stubService{}
	svc := New(next, Config{RequestsPerSecond: 20, BurstSize: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := svc.Embed(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestService_CooldownAfterRateLimit(t *testing.T) {
	next := &stubService{err: fmt.Errorf("remote: %w", domain.ErrRateLimited)}
	svc := New(next, Config{RequestsPerSecond: 1000, BurstSize: 10, Cooldown: time.Hour})

	_, err := svc.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), next.calls.Load())
}
