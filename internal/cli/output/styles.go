package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Key     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusPending lipgloss.Style
}

// newStyles builds styles bound to w. Without a TTY every style renders
// plain text.
func newStyles(w io.Writer, isTTY bool) *Styles {
	lr := lipgloss.NewRenderer(w)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}

	green := lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}
	yellow := lipgloss.AdaptiveColor{Light: "#a16207", Dark: "#facc15"}
	red := lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	grey := lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	accent := lipgloss.AdaptiveColor{Light: "#4f46e5", Dark: "#818cf8"}

	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(accent),
		Header2: lr.NewStyle().Bold(true),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(grey),
		Key:     lr.NewStyle().Foreground(grey),
		Success: lr.NewStyle().Foreground(green),
		Warning: lr.NewStyle().Foreground(yellow),
		Error:   lr.NewStyle().Foreground(red),

		StatusSuccess: lr.NewStyle().Foreground(green).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(red).SetString("✗"),
		StatusPending: lr.NewStyle().Foreground(yellow).SetString("…"),
	}
}
