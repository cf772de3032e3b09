// Package tui implements the terminal chat client: a sessions sidebar, a
// streaming transcript, a composer, and an artifact side panel.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/shakti7/codemate/internal/store"
	"github.com/shakti7/codemate/internal/stream"
	"github.com/shakti7/codemate/pkg/models"
)

const sidebarWidth = 30

type focusArea int

const (
	focusComposer focusArea = iota
	focusSidebar
)

// inputMode selects what submitting the composer does.
type inputMode int

const (
	modeCompose inputMode = iota
	modeRename
	modeEditInPlace
	modeEditBranch
)

type model struct {
	store *store.Store
	orch  *stream.Orchestrator
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	composer   textarea.Model
	transcript viewport.Model
	artifact   viewport.Model
	spinner    *Spinner
	md         *markdownRenderer

	focus         focusArea
	mode          inputMode
	editTargetID  string
	sessionCursor int
	showArtifact  bool

	// events is the active stream's channel; nil while idle.
	events    <-chan stream.Event
	streamSID string

	ready  bool
	width  int
	height int
	err    error
}

func initialModel(st *store.Store, orch *stream.Orchestrator, log *zap.Logger) model {
	ctx, cancel := context.WithCancel(context.Background())

	composer := textarea.New()
	composer.Placeholder = "Ask CodeMate to generate some code..."
	composer.ShowLineNumbers = false
	composer.SetHeight(3)
	composer.CharLimit = 0
	composer.Focus()

	return model{
		store:    st,
		orch:     orch,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		composer: composer,
		spinner:  NewSpinner(),
		md:       newMarkdownRenderer(),
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()

	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			return newModel, cmd
		}
		m = newModel

	case streamEventMsg:
		if msg.SessionID == m.streamSID {
			m.refresh()
			cmds = append(cmds, waitForEvent(m.streamSID, m.events))
		}

	case streamClosedMsg:
		if msg.SessionID == m.streamSID {
			m.events = nil
			m.streamSID = ""
			m.refresh()
		}

	case tickMsg:
		if m.events != nil {
			m.spinner.Next()
			m.refresh()
			cmds = append(cmds, tickCmd())
		}
	}

	if m.focus == focusComposer {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)
	if m.showArtifact {
		m.artifact, cmd = m.artifact.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes one key press. handled=true means the key must not
// reach the child components (it was an action, not text input).
func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.cancel()
		return m, tea.Quit, true

	case "tab":
		if m.focus == focusComposer {
			m.focus = focusSidebar
			m.composer.Blur()
			m.syncSessionCursor()
		} else {
			m.focus = focusComposer
			m.composer.Focus()
		}
		return m, nil, true

	case "esc":
		if sid := m.store.CurrentID(); sid != "" && m.store.Streaming(sid) {
			m.orch.Stop(sid)
			m.refresh()
			return m, nil, true
		}
		if m.mode != modeCompose {
			m.mode = modeCompose
			m.editTargetID = ""
			m.composer.Reset()
			return m, nil, true
		}
		return m, nil, true

	case "enter":
		if m.focus == focusComposer {
			newModel, cmd := m.submit()
			return newModel, cmd, true
		}
		// Sidebar: select session under cursor.
		order := m.store.Order()
		if m.sessionCursor < len(order) {
			m.store.SelectSession(order[m.sessionCursor])
			m.syncSessionCursor()
			m.refresh()
		}
		return m, nil, true

	case "ctrl+a":
		sess, ok := m.currentSession()
		if ok && sess.LatestArtifact != nil {
			m.showArtifact = !m.showArtifact
			m.layout()
			m.refresh()
		}
		return m, nil, true

	case "ctrl+e":
		return m.beginEdit(modeEditInPlace), nil, true

	case "ctrl+b":
		return m.beginEdit(modeEditBranch), nil, true
	}

	if m.focus == focusSidebar {
		switch msg.String() {
		case "up", "k":
			if m.sessionCursor > 0 {
				m.sessionCursor--
			}
			return m, nil, true
		case "down", "j":
			if m.sessionCursor < len(m.store.Order())-1 {
				m.sessionCursor++
			}
			return m, nil, true
		case "n":
			m.store.CreateSession("")
			m.syncSessionCursor()
			m.refresh()
			return m, nil, true
		case "d":
			order := m.store.Order()
			if m.sessionCursor < len(order) {
				id := order[m.sessionCursor]
				m.orch.Stop(id)
				m.store.DeleteSession(id)
				m.syncSessionCursor()
				m.refresh()
			}
			return m, nil, true
		case "r":
			if sess, ok := m.currentSession(); ok {
				m.mode = modeRename
				m.composer.SetValue(sess.Title)
				m.focus = focusComposer
				m.composer.Focus()
			}
			return m, nil, true
		case "h":
			if sid := m.store.CurrentID(); sid != "" {
				m.store.StepHistory(sid, -1)
				m.refresh()
			}
			return m, nil, true
		case "l":
			if sid := m.store.CurrentID(); sid != "" {
				m.store.StepHistory(sid, +1)
				m.refresh()
			}
			return m, nil, true
		case "q":
			m.cancel()
			return m, tea.Quit, true
		}
	}

	return m, nil, false
}

// submit dispatches the composer content according to the input mode.
func (m model) submit() (model, tea.Cmd) {
	content := strings.TrimSpace(m.composer.Value())
	if content == "" {
		return m, nil
	}

	switch m.mode {
	case modeRename:
		if sid := m.store.CurrentID(); sid != "" {
			m.store.RenameSession(sid, content)
		}
		m.mode = modeCompose
		m.composer.Reset()
		m.refresh()
		return m, nil

	case modeEditInPlace:
		sid := m.store.CurrentID()
		target := m.editTargetID
		m.mode = modeCompose
		m.editTargetID = ""
		m.composer.Reset()
		if sid == "" || target == "" {
			return m, nil
		}
		if edited := m.store.EditUserMessage(sid, target, content, false); edited != "" {
			return m.replay(edited)
		}
		return m, nil

	case modeEditBranch:
		sid := m.store.CurrentID()
		target := m.editTargetID
		m.mode = modeCompose
		m.editTargetID = ""
		m.composer.Reset()
		if sid == "" || target == "" {
			return m, nil
		}
		if branched := m.store.EditUserMessage(sid, target, content, true); branched != "" {
			m.syncSessionCursor()
			return m.replay(branched)
		}
		return m, nil
	}

	// Fresh send. Lazily create a session for the first message.
	sid := m.store.CurrentID()
	if sid == "" {
		sid = m.store.CreateSession("")
		m.syncSessionCursor()
	}
	ch, err := m.orch.Start(m.ctx, sid, content)
	if err != nil {
		// Rejected start (already streaming): keep the draft text.
		return m, nil
	}
	m.composer.Reset()
	m.events = ch
	m.streamSID = sid
	m.refresh()
	return m, tea.Batch(waitForEvent(sid, ch), tickCmd())
}

// beginEdit prefills the composer with the most recent user message of
// the current session and arms the edit mode.
func (m model) beginEdit(mode inputMode) model {
	sess, ok := m.currentSession()
	if !ok || sess.Streaming {
		return m
	}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == models.RoleUser {
			m.mode = mode
			m.editTargetID = sess.Messages[i].ID
			m.composer.SetValue(sess.Messages[i].Content)
			m.focus = focusComposer
			m.composer.Focus()
			return m
		}
	}
	return m
}

// replay starts the stream for an edited session's rewritten tail and
// anchors the placeholder assistant message for the history affordance.
func (m model) replay(sessionID string) (model, tea.Cmd) {
	ch, err := m.orch.Replay(m.ctx, sessionID)
	if err != nil {
		m.log.Warn("replay rejected", zap.String("session", sessionID), zap.Error(err))
		m.refresh()
		return m, nil
	}
	if sess, ok := m.store.Session(sessionID); ok && len(sess.Messages) > 0 {
		m.store.SetHistoryAnchorMessage(sessionID, sess.Messages[len(sess.Messages)-1].ID)
	}
	m.events = ch
	m.streamSID = sessionID
	m.refresh()
	return m, tea.Batch(waitForEvent(sessionID, ch), tickCmd())
}

func (m *model) currentSession() (models.Session, bool) {
	sid := m.store.CurrentID()
	if sid == "" {
		return models.Session{}, false
	}
	return m.store.Session(sid)
}

// syncSessionCursor keeps the sidebar cursor on the current session.
func (m *model) syncSessionCursor() {
	order := m.store.Order()
	current := m.store.CurrentID()
	m.sessionCursor = 0
	for i, id := range order {
		if id == current {
			m.sessionCursor = i
			return
		}
	}
}

// layout sizes the viewports for the current window and panel state.
func (m *model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	bodyHeight := m.height - 2 - m.composer.Height() - 2
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	mainWidth := m.width - sidebarWidth - 1
	if m.showArtifact {
		mainWidth = mainWidth / 2
	}
	artifactWidth := m.width - sidebarWidth - 1 - mainWidth - 1

	if !m.ready {
		m.transcript = viewport.New(mainWidth, bodyHeight)
		m.artifact = viewport.New(artifactWidth, bodyHeight)
		m.ready = true
	} else {
		m.transcript.Width = mainWidth
		m.transcript.Height = bodyHeight
		m.artifact.Width = artifactWidth
		m.artifact.Height = bodyHeight
	}
	m.composer.SetWidth(m.width - sidebarWidth - 1)
}

// refresh re-derives viewport content from the store.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	sess, ok := m.currentSession()
	if !ok {
		m.transcript.SetContent(emptyStateView())
		m.showArtifact = false
		return
	}

	m.transcript.SetContent(m.renderTranscript(sess))
	m.transcript.GotoBottom()

	if m.showArtifact {
		if sess.LatestArtifact == nil {
			m.showArtifact = false
		} else {
			m.artifact.SetContent(sess.LatestArtifact.Content)
		}
	}
}

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))
	historyBannerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Italic(true)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m *model) renderTranscript(sess models.Session) string {
	var s strings.Builder

	if sess.HistoryCursor != nil {
		banner := fmt.Sprintf("── viewing earlier version %d/%d · l returns to live ──",
			*sess.HistoryCursor+1, len(sess.History))
		s.WriteString(historyBannerStyle.Render(banner) + "\n\n")
	}

	msgs := m.store.Project(sess.ID)
	if len(msgs) == 0 {
		s.WriteString(dimStyle.Render("No messages yet."))
		return s.String()
	}

	wrapWidth := m.transcript.Width - 2
	for i, msg := range msgs {
		if msg.Role == models.RoleUser {
			s.WriteString(userLabelStyle.Render("You") + "\n")
			s.WriteString(msg.Content + "\n")
		} else {
			s.WriteString(assistantLabelStyle.Render("CodeMate") + "\n")
			s.WriteString(m.md.Render(msg.Content, wrapWidth) + "\n")
		}
		if i < len(msgs)-1 {
			s.WriteString("\n")
		}
	}

	if sess.Streaming {
		s.WriteString("\n" + m.spinner.View() + dimStyle.Render(" generating..."))
	}
	return s.String()
}

func (m *model) renderSidebar() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	s.WriteString(headerStyle.Render("Chats") + "\n")
	s.WriteString(strings.Repeat("─", sidebarWidth-2) + "\n")

	order := m.store.Order()
	current := m.store.CurrentID()
	if len(order) == 0 {
		s.WriteString(dimStyle.Render("No chats yet — press n"))
		return s.String()
	}

	for i, id := range order {
		sess, ok := m.store.Session(id)
		if !ok {
			continue
		}
		cursor := "  "
		if m.focus == focusSidebar && i == m.sessionCursor {
			cursor = "> "
		}
		marker := " "
		if id == current {
			marker = "•"
		}

		style := lipgloss.NewStyle()
		if m.focus == focusSidebar && i == m.sessionCursor {
			style = style.Foreground(lipgloss.Color("212")).Bold(true)
		} else if id == current {
			style = style.Foreground(lipgloss.Color("252"))
		} else {
			style = dimStyle
		}

		title := sess.Title
		if title == "" {
			title = store.DefaultTitle
		}
		line := truncate(fmt.Sprintf("%s%s %s", cursor, marker, title), sidebarWidth-2)
		s.WriteString(style.Render(line) + "\n")
	}
	return s.String()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n", m.err)
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	sidebarStyle := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(m.transcript.Height + m.composer.Height() + 1)

	divider := dividerColumn(m.transcript.Height + m.composer.Height() + 1)

	main := m.transcript.View()
	if m.showArtifact {
		main = lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.transcript.View(),
			dividerColumn(m.transcript.Height),
			m.renderArtifactPane(),
		)
	}
	right := lipgloss.JoinVertical(lipgloss.Left, main, m.renderComposer())

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		sidebarStyle.Render(m.renderSidebar()),
		divider,
		right,
	)

	return fmt.Sprintf("%s\n%s\n%s", header, body, footer)
}

func (m model) renderHeader() string {
	title := "CodeMate"
	if sess, ok := m.currentSession(); ok {
		title = fmt.Sprintf("CodeMate — %s", sess.Title)
		if sess.Streaming {
			title += " " + m.spinner.View()
		}
	}
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63"))
	return style.Render(truncate(title, m.width))
}

func (m model) renderComposer() string {
	label := ""
	switch m.mode {
	case modeRename:
		label = historyBannerStyle.Render("renaming chat — enter to save, esc to cancel") + "\n"
	case modeEditInPlace:
		label = historyBannerStyle.Render("editing message (rewrites history) — enter to send, esc to cancel") + "\n"
	case modeEditBranch:
		label = historyBannerStyle.Render("editing message (new branch) — enter to send, esc to cancel") + "\n"
	}
	return label + m.composer.View()
}

func (m model) renderArtifactPane() string {
	sess, ok := m.currentSession()
	header := "Artifact"
	if ok && sess.LatestArtifact != nil && sess.LatestArtifact.Language != "" {
		header = fmt.Sprintf("Artifact (%s)", sess.LatestArtifact.Language)
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(header),
		m.artifact.View(),
	)
}

func (m model) renderFooter() string {
	info := "tab: focus • enter: send • ctrl+e: edit • ctrl+b: branch • ctrl+a: artifact"
	if m.focus == focusSidebar {
		info = "↑/↓: chats • enter: open • n: new • d: delete • r: rename • h/l: history • q: quit"
	}
	if sid := m.store.CurrentID(); sid != "" && m.store.Streaming(sid) {
		info = "esc: stop generating • " + info
	}
	return dimStyle.Render(truncate(info, m.width))
}

func emptyStateView() string {
	return dimStyle.Render("Start a new chat: type a message below, or press tab then n.")
}

func dividerColumn(height int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	var divider strings.Builder
	for i := 0; i < height; i++ {
		divider.WriteString("│")
		if i < height-1 {
			divider.WriteString("\n")
		}
	}
	return style.Render(divider.String())
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 3 || len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// Run starts the TUI and blocks until the user quits.
func Run(st *store.Store, orch *stream.Orchestrator, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	p := tea.NewProgram(
		initialModel(st, orch, log),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
