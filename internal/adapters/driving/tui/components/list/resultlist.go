// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/tome/internal/core/domain"
)

// linesPerResult is the height of one rendered result: heading, citation,
// preview and a blank separator.
const linesPerResult = 4

// ResultList displays search results in a navigable list.
type ResultList struct {
	results  []domain.SearchResult
	selected int
	expanded bool
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates a new result list component.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 20}
}

// Init initialises the result list.
func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		case " ":
			r.expanded = !r.expanded
		}
	}
	return r, nil
}

// View renders the result list.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	if r.expanded {
		return r.renderExpanded(r.SelectedResult())
	}

	lines := make([]string, 0, len(r.results)*linesPerResult+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.results))), "")

	visible := max((r.height-2)/linesPerResult, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.results))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderResult(i, &r.results[i]), "")
	}
	return strings.Join(lines, "\n")
}

// renderResult formats one result as heading, citation and preview.
func (r *ResultList) renderResult(index int, result *domain.SearchResult) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	heading := firstLine(result.Chunk.Text)
	heading = truncate(heading, max(r.width-30, 10))
	score := fmt.Sprintf("%.2f", result.Score())

	var head string
	if index == r.selected {
		head = r.styles.Selected.Render(indicator+heading) + " "
	} else {
		head = r.styles.Normal.Render(indicator+heading) + " "
	}
	head += r.styles.TypeBadge(result.Chunk.Type) + r.styles.Muted.Render(score)

	citation := r.styles.Citation.Render("    " + result.Citation.String())

	preview := result.Citation.Quote
	if preview == "" {
		preview = result.Chunk.Text
	}
	preview = truncate(strings.Join(strings.Fields(preview), " "), max(r.width-6, 20))

	return head + "\n" + citation + "\n" + r.styles.Muted.Render("    "+preview)
}

// renderExpanded shows the full text of one result.
func (r *ResultList) renderExpanded(result *domain.SearchResult) string {
	header := r.styles.TypeBadge(result.Chunk.Type) + " " + r.styles.Citation.Render(result.Citation.String())
	body := r.styles.Normal.Width(max(r.width-4, 20)).Render(result.Chunk.Text)
	return header + "\n\n" + body
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// SetResults updates the result list.
func (r *ResultList) SetResults(results []domain.SearchResult) {
	r.results = results
	r.selected = 0
	r.expanded = false
}

// Results returns the current results.
func (r *ResultList) Results() []domain.SearchResult {
	return r.results
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SelectedResult returns the currently selected result, or nil if none.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// Expanded reports whether the selected result is shown in full.
func (r *ResultList) Expanded() bool {
	return r.expanded
}

// MoveUp moves selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.results)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of results.
func (r *ResultList) Count() int {
	return len(r.results)
}
