package tui

import "github.com/charmbracelet/lipgloss"

// Spinner is the streaming activity indicator.
type Spinner struct {
	frames []string
	frame  int
}

// NewSpinner creates a new spinner.
func NewSpinner() *Spinner {
	return &Spinner{
		frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
	}
}

// Next advances the spinner to the next frame.
func (s *Spinner) Next() {
	s.frame = (s.frame + 1) % len(s.frames)
}

// View returns the current spinner frame.
func (s *Spinner) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	return style.Render(s.frames[s.frame])
}
