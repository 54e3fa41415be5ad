package mcp

import (
	"context"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.SearchResult
	err     error

	lastSearch  domain.SearchQuery
	lastSimilar domain.SimilarQuery
	lastStats   string
	stats       *domain.IndexStats
}

func (m *mockRetrievalService) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	m.lastSearch = q
	return m.results, m.err
}

func (m *mockRetrievalService) FindSimilar(_ context.Context, q domain.SimilarQuery) ([]domain.SearchResult, error) {
	m.lastSimilar = q
	return m.results, m.err
}

func (m *mockRetrievalService) Stats(_ context.Context, gameSystem string) (*domain.IndexStats, error) {
	m.lastStats = gameSystem
	if m.err != nil {
		return nil, m.err
	}
	if m.stats != nil {
		return m.stats, nil
	}
	return &domain.IndexStats{GameSystem: gameSystem, ByType: map[domain.ContentType]int{}}, nil
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	statuses map[string]*domain.Status
	jobs     []domain.Status
	err      error
}

func (m *mockIngestionService) Submit(_ context.Context, _ domain.SubmitRequest) (string, error) {
	return "", m.err
}

func (m *mockIngestionService) Status(_ context.Context, jobID string) (*domain.Status, error) {
	if m.err != nil {
		return nil, m.err
	}
	st, ok := m.statuses[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (m *mockIngestionService) Resume(_ context.Context, _ string) error { return m.err }
func (m *mockIngestionService) Cancel(_ string) error                   { return m.err }

func (m *mockIngestionService) Wait(ctx context.Context, jobID string) (*domain.Status, error) {
	return m.Status(ctx, jobID)
}

func (m *mockIngestionService) Jobs(_ context.Context) ([]domain.Status, error) {
	return m.jobs, m.err
}
