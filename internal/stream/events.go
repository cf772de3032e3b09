// Package stream consumes the backend's server-sent event stream and
// applies it to session state.
package stream

import "github.com/shakti7/codemate/pkg/models"

// Kind classifies a decoded server event.
type Kind int

const (
	// KindChunk carries an incremental fragment of assistant text.
	KindChunk Kind = iota
	// KindArtifact replaces the session's latest artifact.
	KindArtifact
	// KindDone terminates the stream normally.
	KindDone
	// KindError terminates the stream with a reported error.
	KindError
)

// Event is one typed server event decoded from the stream.
type Event struct {
	Kind     Kind
	Text     string // chunk text
	Artifact *models.Artifact
	Message  string // error message
}
