package ui

import "github.com/charmbracelet/lipgloss"

// Palette: one warm accent over grays.
const (
	ColorAccent   = "178" // Gold, headers and active items
	ColorAccentLo = "136" // Dim gold, borders of finished panels
	ColorWhite    = "255"
	ColorGray     = "245" // Labels
	ColorDarkGray = "238" // Borders, separators
	ColorRed      = "196"
	ColorYellow   = "220"
	ColorBlue     = "75" // User turns in chat
)

// Styles holds the lipgloss styles used by the renderers.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Active   lipgloss.Style
	Label    lipgloss.Style
	User     lipgloss.Style
	Assist   lipgloss.Style
	Source   lipgloss.Style
	Border   lipgloss.Style
	Complete lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		User:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorBlue)),
		Assist:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Source:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(ColorGray)),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Complete: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorAccentLo)).
			Padding(1, 2),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:   plain,
		Success:  plain,
		Warning:  plain,
		Error:    plain,
		Dim:      plain,
		Active:   plain,
		Label:    plain,
		User:     plain,
		Assist:   plain,
		Source:   plain,
		Border:   plain,
		Complete: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1, 2),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
