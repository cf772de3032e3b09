package models

import "github.com/google/uuid"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session transcript. Content grows while
// the assistant is streaming and is immutable once the stream ends.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Artifact is the latest generated code/markup blob for a session. It has
// no version history; each artifact event overwrites the previous one.
type Artifact struct {
	Language string `json:"language"`
	Content  string `json:"content"`
}

// Session represents one chat conversation with its own transcript,
// streaming status, artifact, and edit history.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Streaming bool      `json:"streaming"`

	LatestArtifact *Artifact `json:"latestArtifact,omitempty"`

	// History holds immutable snapshots of the message list taken right
	// before each in-place edit, oldest first. HistoryCursor is nil while
	// viewing the live transcript, otherwise an index into History.
	History                [][]Message `json:"history,omitempty"`
	HistoryCursor          *int        `json:"historyCursor,omitempty"`
	HistoryAnchorMessageID string      `json:"historyAnchorMessageId,omitempty"`
}

// Collection is the full persisted set of sessions. Order lists session
// ids most-recent-first for sidebar display; every id in Order has exactly
// one entry in Sessions, and CurrentID, when set, is a member of Order.
type Collection struct {
	Sessions  map[string]*Session `json:"sessions"`
	Order     []string            `json:"order"`
	CurrentID string              `json:"currentId,omitempty"`
}

// NewSession allocates an empty session with a fresh id.
func NewSession(title string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Title:    title,
		Messages: []Message{},
	}
}

// NewMessage allocates a message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// CloneMessages returns a copy of a message list independent of the
// original backing array.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
