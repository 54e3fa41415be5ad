package search

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/tome/internal/core/domain"
)

// mockRetrieval implements driving.RetrievalService for testing.
type mockRetrieval struct {
	results []domain.SearchResult
	err     error
	queries []domain.SearchQuery
}

func (m *mockRetrieval) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, q)
	return m.results, m.err
}

func (m *mockRetrieval) FindSimilar(_ context.Context, _ domain.SimilarQuery) ([]domain.SearchResult, error) {
	return m.results, m.err
}

func (m *mockRetrieval) Stats(_ context.Context, gameSystem string) (*domain.IndexStats, error) {
	return &domain.IndexStats{GameSystem: gameSystem}, m.err
}

func testResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			Chunk:      domain.Chunk{Text: "Fireball", Type: domain.ContentTypeSpell},
			FusedScore: 0.9,
			Citation:   domain.Citation{Book: "PHB", Pages: domain.PageRange{Start: 241, End: 241}},
		},
		{
			Chunk:      domain.Chunk{Text: "Flaming Sphere", Type: domain.ContentTypeSpell},
			FusedScore: 0.7,
			Citation:   domain.Citation{Book: "PHB", Pages: domain.PageRange{Start: 242, End: 242}},
		},
	}
}

func typeQuery(v *View, text string) {
	for _, r := range text {
		v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// run executes a command and feeds its message back to the view.
func run(t *testing.T, v *View, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	v.Update(cmd())
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, &mockRetrieval{}, "dnd5e")

	require.NotNil(t, v)
	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Results())
	assert.Nil(t, v.Filter())
	assert.NotNil(t, v.Init())
}

func TestView_SubmitSearch(t *testing.T) {
	retrieval := &mockRetrieval{results: testResults()}
	v := NewView(nil, nil, retrieval, "dnd5e")

	typeQuery(v, "fireball")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	require.Len(t, retrieval.queries, 1)
	assert.Equal(t, "fireball", retrieval.queries[0].Text)
	assert.Equal(t, "dnd5e", retrieval.queries[0].GameSystem)
	assert.Len(t, v.Results(), 2)
	assert.False(t, v.InputFocused())
	assert.Contains(t, v.View(), "PHB, p. 241")
}

func TestView_EmptyQueryDoesNothing(t *testing.T) {
	retrieval := &mockRetrieval{}
	v := NewView(nil, nil, retrieval, "dnd5e")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, retrieval.queries)
}

func TestView_TabCyclesFilterAndReruns(t *testing.T) {
	retrieval := &mockRetrieval{results: testResults()}
	v := NewView(nil, nil, retrieval, "dnd5e")

	// Before any search, tab only changes the filter.
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Nil(t, cmd)
	assert.Equal(t, []domain.ContentType{domain.ContentTypeSpell}, v.Filter())

	typeQuery(v, "fire")
	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyTab})
	run(t, v, cmd)

	require.Len(t, retrieval.queries, 2)
	assert.Equal(t, []domain.ContentType{domain.ContentTypeSpell}, retrieval.queries[0].ContentTypes)
	assert.Equal(t, []domain.ContentType{domain.ContentTypeFeat}, retrieval.queries[1].ContentTypes)
	assert.Equal(t, "fire", retrieval.queries[1].Text)
	assert.Contains(t, v.View(), "type: Feat")

	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	run(t, v, cmd)
	assert.Equal(t, []domain.ContentType{domain.ContentTypeSpell}, retrieval.queries[2].ContentTypes)
}

func TestView_ResultsNavigationAndNewSearch(t *testing.T) {
	v := NewView(nil, nil, &mockRetrieval{results: testResults()}, "dnd5e")
	typeQuery(v, "fire")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 1, v.SelectedIndex())

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Query())

	// Typing 'j' now goes to the input.
	typeQuery(v, "j")
	assert.Equal(t, "j", v.Query())
}

func TestView_SearchError(t *testing.T) {
	v := NewView(nil, nil, &mockRetrieval{err: domain.ErrIndexUnavailable}, "dnd5e")
	typeQuery(v, "fire")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	require.Error(t, v.Err())
	assert.True(t, errors.Is(v.Err(), domain.ErrIndexUnavailable))
	assert.Contains(t, v.View(), "Error:")
	assert.True(t, v.InputFocused())
}

func TestView_NilRetrieval(t *testing.T) {
	v := NewView(nil, nil, nil, "dnd5e")
	typeQuery(v, "fire")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	assert.ErrorIs(t, v.Err(), ErrNoRetrievalService)
}

func TestView_StaleResultsIgnored(t *testing.T) {
	v := NewView(nil, nil, &mockRetrieval{}, "dnd5e")
	typeQuery(v, "fire")
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	v.Update(messages.SearchCompleted{Query: "older query", Results: testResults()})

	assert.Empty(t, v.Results())
}

func TestView_DegradedResults(t *testing.T) {
	results := testResults()
	results[0].Degraded = true
	v := NewView(nil, nil, &mockRetrieval{results: results}, "dnd5e")
	v.SetDimensions(160, 40)
	typeQuery(v, "fire")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	assert.Contains(t, v.View(), "keyword only")
}

func TestView_Reset(t *testing.T) {
	v := NewView(nil, nil, &mockRetrieval{results: testResults()}, "dnd5e")
	v.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeQuery(v, "fire")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, v, cmd)

	v.Reset()

	assert.Empty(t, v.Results())
	assert.Empty(t, v.Query())
	assert.Nil(t, v.Filter())
	assert.True(t, v.InputFocused())
	assert.NoError(t, v.Err())
}
