package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/shakti7/codemate/internal/store"
	"github.com/shakti7/codemate/internal/stream"
)

func newTestModel() (model, *store.Store) {
	st := store.New(nil, nil)
	client := stream.NewClient("http://127.0.0.1:1", time.Second)
	orch := stream.NewOrchestrator(st, client, nil)
	return initialModel(st, orch, zap.NewNop()), st
}

func resize(m model, w, h int) model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return updated.(model)
}

func keyPress(m model, key string) (model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(model), cmd
}

func TestInitialModelDefaults(t *testing.T) {
	m, _ := newTestModel()
	if m.ready {
		t.Error("model should not be ready before the first resize")
	}
	if m.focus != focusComposer {
		t.Error("composer should have initial focus")
	}
	if m.mode != modeCompose {
		t.Error("initial mode should be compose")
	}
}

func TestViewBeforeReady(t *testing.T) {
	m, _ := newTestModel()
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("pre-resize view should show the initializing placeholder")
	}
}

func TestWindowSizeMakesReady(t *testing.T) {
	m, _ := newTestModel()
	m = resize(m, 120, 40)
	if !m.ready {
		t.Error("model should be ready after a window size message")
	}
	if m.transcript.Width <= 0 || m.transcript.Height <= 0 {
		t.Errorf("transcript got a degenerate size %dx%d", m.transcript.Width, m.transcript.Height)
	}
}

func TestTabTogglesFocus(t *testing.T) {
	m, _ := newTestModel()
	m = resize(m, 120, 40)

	m, _ = keyPress(m, "tab")
	if m.focus != focusSidebar {
		t.Fatal("tab should move focus to the sidebar")
	}
	m, _ = keyPress(m, "tab")
	if m.focus != focusComposer {
		t.Fatal("tab should move focus back to the composer")
	}
}

func TestSidebarCursorMovement(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	for _, text := range []string{"one", "two", "three"} {
		id := st.CreateSession("")
		st.AppendUserMessage(id, text)
	}

	m, _ = keyPress(m, "tab")
	if m.sessionCursor != 0 {
		t.Fatalf("cursor should start on the current session, got %d", m.sessionCursor)
	}

	m, _ = keyPress(m, "j")
	m, _ = keyPress(m, "j")
	if m.sessionCursor != 2 {
		t.Fatalf("cursor should be 2 after two downs, got %d", m.sessionCursor)
	}
	m, _ = keyPress(m, "j")
	if m.sessionCursor != 2 {
		t.Fatal("cursor should clamp at the last session")
	}

	m, _ = keyPress(m, "k")
	if m.sessionCursor != 1 {
		t.Fatalf("cursor should be 1 after up, got %d", m.sessionCursor)
	}
}

func TestSidebarEnterSelectsSession(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	older := st.CreateSession("")
	st.AppendUserMessage(older, "one")
	newer := st.CreateSession("")
	st.AppendUserMessage(newer, "two")

	m, _ = keyPress(m, "tab")
	m, _ = keyPress(m, "j")
	m, _ = keyPress(m, "enter")

	if got := st.CurrentID(); got != older {
		t.Errorf("enter should select the session under the cursor, got %q", got)
	}
}

func TestSidebarNewSessionKey(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")
	st.AppendUserMessage(id, "hello")

	m, _ = keyPress(m, "tab")
	m, _ = keyPress(m, "n")

	if len(st.Order()) != 2 {
		t.Fatalf("n should create a session, order has %d entries", len(st.Order()))
	}
	if st.CurrentID() == id {
		t.Error("the new session should be current")
	}
	if m.sessionCursor != 0 {
		t.Error("cursor should follow the new session to the head")
	}
}

func TestSidebarDeleteKey(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	older := st.CreateSession("")
	st.AppendUserMessage(older, "one")
	newer := st.CreateSession("")
	st.AppendUserMessage(newer, "two")

	m, _ = keyPress(m, "tab")
	m, _ = keyPress(m, "d")

	if _, ok := st.Session(newer); ok {
		t.Error("d should delete the session under the cursor")
	}
	if st.CurrentID() != older {
		t.Error("deleting the current session should promote the next one")
	}
}

func TestRenameFlow(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")
	st.AppendUserMessage(id, "original request")

	m, _ = keyPress(m, "tab")
	m, _ = keyPress(m, "r")

	if m.mode != modeRename {
		t.Fatal("r should arm rename mode")
	}
	if m.focus != focusComposer {
		t.Fatal("rename should focus the composer")
	}

	m.composer.SetValue("Button Builder")
	m, _ = keyPress(m, "enter")

	sess, _ := st.Session(id)
	if sess.Title != "Button Builder" {
		t.Errorf("rename should update the title, got %q", sess.Title)
	}
	if m.mode != modeCompose {
		t.Error("submitting a rename should return to compose mode")
	}
}

func TestEscCancelsInputMode(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")
	st.AppendUserMessage(id, "hello")

	m = m.beginEdit(modeEditInPlace)
	if m.mode != modeEditInPlace {
		t.Fatal("beginEdit should arm the edit mode")
	}
	if m.composer.Value() != "hello" {
		t.Fatalf("edit should prefill the composer, got %q", m.composer.Value())
	}

	m, _ = keyPress(m, "esc")
	if m.mode != modeCompose {
		t.Error("esc should cancel the edit mode")
	}
	if m.editTargetID != "" {
		t.Error("esc should clear the edit target")
	}
	if m.composer.Value() != "" {
		t.Error("esc should clear the composer")
	}
}

func TestBeginEditTargetsLastUserMessage(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")
	st.AppendUserMessage(id, "first")
	st.AppendAssistantChunk(id, "reply")
	last := st.AppendUserMessage(id, "second")

	m = m.beginEdit(modeEditBranch)

	if m.editTargetID != last {
		t.Error("edit should target the most recent user message")
	}
	if m.composer.Value() != "second" {
		t.Errorf("composer should hold the target content, got %q", m.composer.Value())
	}
}

func TestBeginEditWithoutSessionIsNoop(t *testing.T) {
	m, _ := newTestModel()
	m = resize(m, 120, 40)

	m = m.beginEdit(modeEditInPlace)
	if m.mode != modeCompose {
		t.Error("edit with no session should stay in compose mode")
	}
}

func TestStreamClosedClearsChannel(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")

	ch := make(chan stream.Event)
	close(ch)
	m.events = ch
	m.streamSID = id

	updated, _ := m.Update(streamClosedMsg{SessionID: id})
	m = updated.(model)

	if m.events != nil || m.streamSID != "" {
		t.Error("stream close should clear the active channel")
	}
}

func TestStreamClosedForOtherSessionIgnored(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")

	ch := make(chan stream.Event)
	m.events = ch
	m.streamSID = id

	updated, _ := m.Update(streamClosedMsg{SessionID: "other"})
	m = updated.(model)

	if m.events == nil {
		t.Error("a close for another session must not clear the active channel")
	}
}

func TestSubmitEmptyComposerIsNoop(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)

	m.composer.SetValue("   ")
	m, _ = keyPress(m, "enter")

	if len(st.Order()) != 0 {
		t.Error("submitting whitespace should not create a session")
	}
}

func TestFooterSwitchesWithFocus(t *testing.T) {
	m, _ := newTestModel()
	m = resize(m, 200, 40)

	if !strings.Contains(m.renderFooter(), "enter: send") {
		t.Error("composer footer should show send hint")
	}
	m, _ = keyPress(m, "tab")
	if !strings.Contains(m.renderFooter(), "d: delete") {
		t.Error("sidebar footer should show delete hint")
	}
}

func TestSidebarListsSessions(t *testing.T) {
	m, st := newTestModel()
	m = resize(m, 120, 40)
	id := st.CreateSession("")
	st.AppendUserMessage(id, "build a carousel")

	out := m.renderSidebar()
	if !strings.Contains(out, "build a carousel") {
		t.Errorf("sidebar should list the session title, got:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("short strings pass through, got %q", got)
	}
	if got := truncate("hello world", 8); got != "hello..." {
		t.Errorf("long strings get an ellipsis, got %q", got)
	}
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("truncation must not split multibyte runes, got %q", got)
	}
	if got := truncate("héllo", 10); got != "héllo" {
		t.Errorf("rune count, not byte count, decides truncation, got %q", got)
	}
}
