package output

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	colorAccent  = lipgloss.Color("#8BC34A")
	colorInfo    = lipgloss.Color("#2196F3")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorMuted   = lipgloss.Color("#808080")
)

// Styles holds the text-mode styles.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Symbol renders dotted symbol paths.
	Symbol lipgloss.Style

	// Pending marks references the runtime could not resolve.
	Pending lipgloss.Style
}

// NewStyles builds styles bound to lr, so its color profile applies.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: lr.NewStyle().Bold(true).Underline(true).Foreground(colorAccent),
		Header2: lr.NewStyle().Bold(true).Foreground(colorInfo),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(colorMuted),
		Success: lr.NewStyle().Foreground(colorAccent),
		Warning: lr.NewStyle().Foreground(colorWarning),
		Error:   lr.NewStyle().Bold(true).Foreground(colorError),
		Info:    lr.NewStyle().Foreground(colorInfo),
		Symbol:  lr.NewStyle().Foreground(colorInfo),
		Pending: lr.NewStyle().Italic(true).Foreground(colorWarning),
	}
}
