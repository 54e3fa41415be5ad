// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// Theme defines the colour palette for the TUI.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color

	// ContentTypes colours the badge of each content type.
	ContentTypes map[domain.ContentType]lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#B4637A"), // Rose
		Secondary:  lipgloss.Color("#D7A65F"), // Gold
		Background: lipgloss.Color("#1F1D2E"),
		Foreground: lipgloss.Color("#E0DEF4"),
		Muted:      lipgloss.Color("#6E6A86"),
		Success:    lipgloss.Color("#9CCFD8"),
		Warning:    lipgloss.Color("#F6C177"),
		Error:      lipgloss.Color("#EB6F92"),
		Border:     lipgloss.Color("#403D52"),
		ContentTypes: map[domain.ContentType]lipgloss.Color{
			domain.ContentTypeSpell:        lipgloss.Color("#C4A7E7"),
			domain.ContentTypeFeat:         lipgloss.Color("#F6C177"),
			domain.ContentTypeClassFeature: lipgloss.Color("#9CCFD8"),
			domain.ContentTypeEquipment:    lipgloss.Color("#EA9A97"),
			domain.ContentTypeTable:        lipgloss.Color("#3E8FB0"),
			domain.ContentTypeRule:         lipgloss.Color("#908CAA"),
		},
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Selected   lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style

	// Citation renders "Book, p. N" lines under results.
	Citation lipgloss.Style

	// Badge is the base style of content-type badges.
	Badge lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Foreground).
			Background(theme.Primary),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Background).
			Padding(0, 1),

		Help: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		Citation: lipgloss.NewStyle().
			Italic(true).
			Foreground(theme.Secondary),

		Badge: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// TypeBadge renders a content-type label in the type's colour.
func (s *Styles) TypeBadge(ct domain.ContentType) string {
	style := s.Badge.Foreground(s.theme.Muted)
	if c, ok := s.theme.ContentTypes[ct]; ok {
		style = s.Badge.Foreground(c)
	}
	return style.Render(ct.Label())
}
