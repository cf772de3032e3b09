// Package store holds the authoritative state for all chat sessions and
// exposes it through atomic state transitions. Every transition that
// references a session or message id silently no-ops when the id is
// unknown: UI actions get no feedback on a miss and can simply be
// retried.
package store

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/shakti7/codemate/pkg/models"
)

// DefaultTitle is the title of a session before its first user message.
const DefaultTitle = "New Chat"

// titleLimit caps the auto-generated session title, in runes.
const titleLimit = 48

// Store is the single mutable shared structure of the client. All
// mutations run under the lock; readers get independent copies.
type Store struct {
	mu   sync.RWMutex
	col  models.Collection
	snap Snapshotter
	log  *zap.Logger
}

// New creates an empty store. snap may be nil for in-memory use.
func New(snap Snapshotter, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		col: models.Collection{
			Sessions: make(map[string]*models.Session),
		},
		snap: snap,
		log:  log,
	}
}

// CreateSession makes a fresh session current and returns its id.
//
// Precondition exception: when the current session exists and has zero
// messages, it is reused (only its title is updated) instead of creating
// another empty session. Postcondition: the returned id is current and is
// the head of the order unless an empty draft was reused.
func (s *Store) CreateSession(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = DefaultTitle
	}

	if cur, ok := s.col.Sessions[s.col.CurrentID]; ok && len(cur.Messages) == 0 {
		if cur.Title == "" {
			cur.Title = title
		}
		s.persistLocked()
		return cur.ID
	}

	sess := models.NewSession(title)
	s.col.Sessions[sess.ID] = sess
	s.col.Order = append([]string{sess.ID}, s.col.Order...)
	s.col.CurrentID = sess.ID
	s.persistLocked()
	return sess.ID
}

// StartNewDraft clears the current session pointer, garbage-collecting
// the previous current session if it never received a message.
func (s *Store) StartNewDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collectEmptyLocked(s.col.CurrentID)
	s.col.CurrentID = ""
	s.persistLocked()
}

// SelectSession switches the current session. Unknown ids leave the state
// untouched. The previously current session is garbage-collected if it
// has zero messages.
func (s *Store) SelectSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.col.Sessions[id]; !ok {
		return
	}
	if prev := s.col.CurrentID; prev != "" && prev != id {
		s.collectEmptyLocked(prev)
	}
	s.col.CurrentID = id
	s.persistLocked()
}

// DeleteSession removes a session from the collection and the order
// atomically. If it was current, the new head of the order becomes
// current, or no session if the order is now empty.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.col.Sessions[id]; !ok {
		return
	}
	delete(s.col.Sessions, id)
	s.col.Order = removeID(s.col.Order, id)
	if s.col.CurrentID == id {
		s.col.CurrentID = ""
		if len(s.col.Order) > 0 {
			s.col.CurrentID = s.col.Order[0]
		}
	}
	s.persistLocked()
}

// RenameSession sets a session title. A title that is empty after
// trimming is a no-op.
func (s *Store) RenameSession(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	if sess, ok := s.col.Sessions[id]; ok {
		sess.Title = title
		s.persistLocked()
	}
}

// ResetSession clears a session's transcript, artifact, and edit history
// while keeping the session itself.
func (s *Store) ResetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.col.Sessions[id]
	if !ok {
		return
	}
	sess.Messages = []models.Message{}
	sess.LatestArtifact = nil
	sess.History = nil
	sess.HistoryCursor = nil
	sess.HistoryAnchorMessageID = ""
	s.persistLocked()
}

// AppendUserMessage appends a user message and returns its id. The first
// message of a session also sets the title to a truncated prefix of the
// content.
func (s *Store) AppendUserMessage(sessionID, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.col.Sessions[sessionID]
	if !ok {
		return ""
	}
	msg := models.NewMessage(models.RoleUser, content)
	sess.Messages = append(sess.Messages, msg)
	if len(sess.Messages) == 1 {
		sess.Title = truncateTitle(content)
	}
	s.persistLocked()
	return msg.ID
}

// AppendAssistantChunk concatenates text onto the trailing assistant
// message, or appends a new assistant message seeded with text when the
// transcript does not end in one. This is the sole mutation path during
// streaming; calling it with an empty string creates the placeholder that
// anchors subsequent chunks.
func (s *Store) AppendAssistantChunk(sessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.col.Sessions[sessionID]
	if !ok {
		return
	}
	if n := len(sess.Messages); n > 0 && sess.Messages[n-1].Role == models.RoleAssistant {
		sess.Messages[n-1].Content += text
	} else {
		sess.Messages = append(sess.Messages, models.NewMessage(models.RoleAssistant, text))
	}
	s.persistLocked()
}

// SetStreaming flips a session's streaming flag. Clearing an already
// cleared flag is safe.
func (s *Store) SetStreaming(sessionID string, streaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.col.Sessions[sessionID]; ok {
		sess.Streaming = streaming
		s.persistLocked()
	}
}

// SetLatestArtifact replaces a session's artifact.
func (s *Store) SetLatestArtifact(sessionID string, artifact *models.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.col.Sessions[sessionID]; ok {
		sess.LatestArtifact = artifact
		s.persistLocked()
	}
}

// EditUserMessage rewrites a prior user message. It is a no-op when the
// message is missing or not user-authored.
//
// branch=true forks a new session carrying the messages strictly before
// the edited one plus a new user message with newContent; the fork
// becomes current and the source session is untouched. branch=false
// pushes a snapshot of the full current transcript onto History, rewrites
// the message in place, truncates everything after it, and returns the
// session to live view.
//
// The returned id is the session holding the edit (the fork in branch
// mode, sessionID otherwise), or empty on a no-op.
func (s *Store) EditUserMessage(sessionID, messageID, newContent string, branch bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.col.Sessions[sessionID]
	if !ok {
		return ""
	}
	idx := -1
	for i, m := range sess.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 || sess.Messages[idx].Role != models.RoleUser {
		return ""
	}

	if branch {
		branched := models.NewSession(sess.Title + " (edited)")
		branched.Messages = models.CloneMessages(sess.Messages[:idx])
		branched.Messages = append(branched.Messages, models.NewMessage(models.RoleUser, newContent))
		s.col.Sessions[branched.ID] = branched
		s.col.Order = append([]string{branched.ID}, s.col.Order...)
		s.col.CurrentID = branched.ID
		s.persistLocked()
		return branched.ID
	}

	sess.History = append(sess.History, models.CloneMessages(sess.Messages))
	sess.Messages[idx].Content = newContent
	sess.Messages = sess.Messages[:idx+1]
	sess.HistoryCursor = nil
	sess.HistoryAnchorMessageID = ""
	s.persistLocked()
	return sess.ID
}

// SetHistoryCursor positions the history view. nil returns to the live
// transcript; any other value is clamped into the valid snapshot range.
func (s *Store) SetHistoryCursor(sessionID string, cursor *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.col.Sessions[sessionID]
	if !ok {
		return
	}
	if cursor == nil || len(sess.History) == 0 {
		sess.HistoryCursor = nil
		s.persistLocked()
		return
	}
	c := clamp(*cursor, 0, len(sess.History)-1)
	sess.HistoryCursor = &c
	s.persistLocked()
}

// SetHistoryAnchorMessage records the assistant message created by the
// most recent edit, anchoring the "viewing the latest edit" affordance.
func (s *Store) SetHistoryAnchorMessage(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.col.Sessions[sessionID]; ok {
		sess.HistoryAnchorMessageID = messageID
		s.persistLocked()
	}
}

// Session returns an independent copy of a session.
func (s *Store) Session(id string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.col.Sessions[id]
	if !ok {
		return models.Session{}, false
	}
	return copySession(sess), true
}

// CurrentID returns the current session id, or empty.
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.CurrentID
}

// Order returns a copy of the sidebar order.
func (s *Store) Order() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.col.Order))
	copy(out, s.col.Order)
	return out
}

// Streaming reports whether a session is currently streaming.
func (s *Store) Streaming(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.col.Sessions[id]
	return ok && sess.Streaming
}

// collectEmptyLocked drops a session that never received a message.
func (s *Store) collectEmptyLocked(id string) {
	sess, ok := s.col.Sessions[id]
	if !ok || len(sess.Messages) > 0 {
		return
	}
	delete(s.col.Sessions, id)
	s.col.Order = removeID(s.col.Order, id)
}

func copySession(sess *models.Session) models.Session {
	out := *sess
	out.Messages = models.CloneMessages(sess.Messages)
	if sess.LatestArtifact != nil {
		artifact := *sess.LatestArtifact
		out.LatestArtifact = &artifact
	}
	if sess.HistoryCursor != nil {
		cursor := *sess.HistoryCursor
		out.HistoryCursor = &cursor
	}
	if len(sess.History) > 0 {
		out.History = make([][]models.Message, len(sess.History))
		for i, snap := range sess.History {
			out.History[i] = models.CloneMessages(snap)
		}
	}
	return out
}

func removeID(order []string, id string) []string {
	out := order[:0]
	for _, x := range order {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func truncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
