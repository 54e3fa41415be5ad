// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateError     State = "error"
	StateResults   State = "results"
)

// Bar shows the search state, the active scope and keybinding hints.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap

	state       State
	message     string
	resultCount int
	degraded    bool
	gameSystem  string
	filter      string
	width       int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, filter: "All", width: 80}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft() + s.styles.Muted.Render("  "+s.renderScope())
	right := s.renderRight()

	padding := max(s.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateSearching:
		return s.styles.Muted.Render("Searching...")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render("Error: " + s.message)
		}
		return s.styles.Error.Render("Error")
	case StateResults:
		text := s.styles.Normal.Render(fmt.Sprintf("%d results", s.resultCount))
		if s.degraded {
			text += s.styles.Warning.Render(" (keyword only)")
		}
		return text
	case StateReady:
	}
	if s.message != "" {
		return s.styles.Normal.Render(s.message)
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) renderScope() string {
	if s.gameSystem == "" {
		return "type: " + s.filter
	}
	return fmt.Sprintf("%s · type: %s", s.gameSystem, s.filter)
}

func (s *Bar) renderRight() string {
	var bindings []key.Binding
	if s.state == StateResults && s.resultCount > 0 {
		bindings = s.keymap.ResultsHelp()
	} else {
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetResults records a finished search.
func (s *Bar) SetResults(count int, degraded bool) {
	s.state = StateResults
	s.resultCount = count
	s.degraded = degraded
	s.message = ""
}

// ResultCount returns the current result count.
func (s *Bar) ResultCount() int {
	return s.resultCount
}

// SetGameSystem sets the game system shown in the scope.
func (s *Bar) SetGameSystem(gameSystem string) {
	s.gameSystem = gameSystem
}

// SetFilter sets the content-type filter label shown in the scope.
func (s *Bar) SetFilter(label string) {
	s.filter = label
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Clear resets the status bar to default state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.resultCount = 0
	s.degraded = false
}
