// Package search provides the main search view for the TUI.
package search

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/components/filter"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driving"
)

// View is the search screen: query box, type filter, results and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.SearchInput
	filter    *filter.ContentFilter
	list      *list.ResultList
	statusbar *status.Bar

	retrieval  driving.RetrievalService
	gameSystem string
	ctx        context.Context

	lastQuery  string
	width      int
	height     int
	err        error
	focusInput bool // true = typing, false = navigating results
}

// NewView creates a new search view.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	retrieval driving.RetrievalService,
	gameSystem string,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	bar := status.NewBar(s, km)
	bar.SetGameSystem(gameSystem)

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewSearchInput(s),
		filter:     filter.New(s),
		list:       list.NewResultList(s),
		statusbar:  bar,
		retrieval:  retrieval,
		gameSystem: gameSystem,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	// Tab cycles the filter in both modes and reruns the last query.
	if keymap.Matches(msg.String(), v.keymap.Filter) {
		v.filter.Next()
		return v, v.refilter()
	}
	if msg.Type == tea.KeyShiftTab {
		v.filter.Prev()
		return v, v.refilter()
	}

	if v.focusInput {
		switch msg.Type { //nolint:exhaustive // only submit and leave are handled here
		case tea.KeyEnter:
			query := strings.TrimSpace(v.input.Value())
			if query == "" {
				return v, nil
			}
			v.input.Remember(query)
			return v, v.startSearch(query)
		case tea.KeyEsc:
			if v.list.Count() > 0 {
				v.focusResults()
			}
			return v, nil
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case keymap.Matches(msg.String(), v.keymap.NewSearch):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case msg.Type == tea.KeyEsc && v.list.Expanded():
		v.list, _ = v.list.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		return v, nil
	case msg.Type == tea.KeyEsc:
		v.focusInput = true
		return v, v.input.Focus()
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// refilter updates the status bar and reruns the last query, if any.
func (v *View) refilter() tea.Cmd {
	v.statusbar.SetFilter(v.filter.Label())
	if v.lastQuery == "" {
		return nil
	}
	return v.startSearch(v.lastQuery)
}

func (v *View) startSearch(query string) tea.Cmd {
	v.lastQuery = query
	v.statusbar.SetState(status.StateSearching)
	return v.performSearch(query, v.filter.Selected())
}

// performSearch runs the search off the update loop.
func (v *View) performSearch(query string, types []domain.ContentType) tea.Cmd {
	retrieval, ctx, gameSystem := v.retrieval, v.ctx, v.gameSystem
	return func() tea.Msg {
		if retrieval == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}
		results, err := retrieval.Search(ctx, domain.SearchQuery{
			Text:         query,
			GameSystem:   gameSystem,
			ContentTypes: types,
		})
		return messages.SearchCompleted{Query: query, Results: results, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Query != "" && msg.Query != v.lastQuery {
		return
	}
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetResults(len(msg.Results), len(msg.Results) > 0 && msg.Results[0].Degraded)
	if len(msg.Results) > 0 {
		v.focusResults()
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

func (v *View) focusResults() {
	v.focusInput = false
	v.input.Blur()
}

// View renders the search view.
func (v *View) View() string {
	sections := make([]string, 0, 9)

	sections = append(sections,
		v.styles.Title.Render("tome")+v.styles.Muted.Render("  rules lookup"),
		"",
		v.input.View(),
		v.filter.View(),
		"",
	)

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	// Header, input box, filter and status bar take about ten lines.
	v.list.SetDimensions(width, max(height-10, 4))
}

// Reset clears the query, results and filter.
func (v *View) Reset() {
	v.input.Reset()
	v.filter.Reset()
	v.list.SetResults(nil)
	v.statusbar.Clear()
	v.statusbar.SetFilter(v.filter.Label())
	v.lastQuery = ""
	v.err = nil
	v.focusInput = true
	v.input.Focus()
}

// Query returns the current input value.
func (v *View) Query() string {
	return v.input.Value()
}

// Results returns the displayed results.
func (v *View) Results() []domain.SearchResult {
	return v.list.Results()
}

// SelectedIndex returns the selected result index.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Filter returns the active content-type restriction.
func (v *View) Filter() []domain.ContentType {
	return v.filter.Selected()
}

// InputFocused reports whether keys go to the query box.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
