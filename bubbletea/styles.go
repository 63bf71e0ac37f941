package bubbletea

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ragchat"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	UserMsg  lipgloss.Style
	Citation lipgloss.Style
	Snippet  lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	ErrorBg  lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t ragchat.Theme) Styles {
	return Styles{
		UserMsg:  lipgloss.NewStyle().Foreground(ansiColor(t.UserMsg)).Bold(true),
		Citation: lipgloss.NewStyle().Foreground(ansiColor(t.Citation)).Bold(true),
		Snippet:  lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Italic(true),
		Error:    lipgloss.NewStyle().Foreground(ansiColor(t.Error)),
		Success:  lipgloss.NewStyle().Foreground(ansiColor(t.Success)),
		Muted:    lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:   lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		ErrorBg:  lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(ansiColor(t.Error)).PaddingLeft(1),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
