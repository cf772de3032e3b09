package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shakti7/codemate/internal/stream"
)

// Message types for async operations
type (
	// streamEventMsg carries one decoded stream event, already applied
	// to the store by the orchestrator.
	streamEventMsg struct {
		SessionID string
		Event     stream.Event
	}

	// streamClosedMsg indicates the active stream's event channel closed.
	streamClosedMsg struct {
		SessionID string
	}

	// tickMsg drives the streaming spinner animation.
	tickMsg time.Time
)

// waitForEvent blocks on the stream channel and forwards the next event
// into the update loop. Re-issued after every event so the transcript
// re-renders on each intermediate state, in order.
func waitForEvent(sessionID string, ch <-chan stream.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{SessionID: sessionID}
		}
		return streamEventMsg{SessionID: sessionID, Event: ev}
	}
}

// tickCmd creates a ticker for the spinner animation.
func tickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
