package store

import "github.com/shakti7/codemate/pkg/models"

// Project derives the message list to render for a session: the live
// transcript while HistoryCursor is nil, otherwise the immutable snapshot
// at the cursor. Unknown ids project an empty transcript.
func (s *Store) Project(sessionID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.col.Sessions[sessionID]
	if !ok {
		return nil
	}
	if sess.HistoryCursor == nil {
		return models.CloneMessages(sess.Messages)
	}
	c := clamp(*sess.HistoryCursor, 0, len(sess.History)-1)
	return models.CloneMessages(sess.History[c])
}

// StepHistory moves the history cursor by delta. Stepping backward from
// the live view lands on the most recent snapshot; stepping forward past
// the last snapshot returns to the live view. Sessions with no history
// are unaffected.
func (s *Store) StepHistory(sessionID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.col.Sessions[sessionID]
	if !ok || len(sess.History) == 0 {
		return
	}

	if sess.HistoryCursor == nil {
		if delta < 0 {
			c := len(sess.History) - 1
			sess.HistoryCursor = &c
			s.persistLocked()
		}
		return
	}

	next := *sess.HistoryCursor + delta
	if next >= len(sess.History) {
		sess.HistoryCursor = nil
	} else {
		c := clamp(next, 0, len(sess.History)-1)
		sess.HistoryCursor = &c
	}
	s.persistLocked()
}
