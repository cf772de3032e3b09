package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/shakti7/codemate/pkg/models"
)

// SnapshotKey is the fixed key the serialized collection lives under.
const SnapshotKey = "codemate:sessions"

// Snapshotter persists the serialized session collection. Save is called
// after every state transition; failures are logged and ignored, the
// in-memory state stays authoritative.
type Snapshotter interface {
	Save(value string) error
	Load() (string, error)
}

// KVSnapshots stores the collection blob in the DuckDB kv table.
type KVSnapshots struct {
	db *sql.DB
}

// NewKVSnapshots wraps an open snapshot database.
func NewKVSnapshots(database *sql.DB) *KVSnapshots {
	return &KVSnapshots{db: database}
}

// Save upserts the blob under the snapshot key.
func (k *KVSnapshots) Save(value string) error {
	if _, err := k.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, SnapshotKey, value); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads the blob, or returns empty when none has been written yet.
func (k *KVSnapshots) Load() (string, error) {
	var value string
	err := k.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, SnapshotKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}
	return value, nil
}

// Load restores the collection from the snapshotter. An unreadable or
// invalid blob is rejected wholesale and the store stays empty; there is
// no partial recovery.
func (s *Store) Load() {
	if s.snap == nil {
		return
	}
	blob, err := s.snap.Load()
	if err != nil {
		s.log.Warn("failed to load snapshot", zap.Error(err))
		return
	}
	if blob == "" {
		return
	}

	var col models.Collection
	if err := json.Unmarshal([]byte(blob), &col); err != nil {
		s.log.Warn("rejecting snapshot: invalid JSON", zap.Error(err))
		return
	}
	normalized, ok := normalize(col)
	if !ok {
		s.log.Warn("rejecting snapshot: failed validation")
		return
	}

	s.mu.Lock()
	s.col = normalized
	s.mu.Unlock()
}

// persistLocked serializes the whole collection and hands it to the
// snapshotter. Callers hold the write lock.
func (s *Store) persistLocked() {
	if s.snap == nil {
		return
	}
	blob, err := json.Marshal(s.col)
	if err != nil {
		s.log.Error("failed to serialize sessions", zap.Error(err))
		return
	}
	if err := s.snap.Save(string(blob)); err != nil {
		s.log.Error("failed to persist sessions", zap.Error(err))
	}
}

// normalize validates a persisted collection: sessions with no messages
// are pruned, the order keeps each surviving id exactly once, and the
// current id must resolve (falling back to the head of the order). An
// empty result rejects the whole blob. Streaming flags are cleared: no
// stream survives a restart.
func normalize(col models.Collection) (models.Collection, bool) {
	out := models.Collection{
		Sessions: make(map[string]*models.Session),
	}
	seen := make(map[string]bool)
	for _, id := range col.Order {
		if seen[id] {
			continue
		}
		sess, ok := col.Sessions[id]
		if !ok || sess == nil || len(sess.Messages) == 0 {
			continue
		}
		seen[id] = true
		sess.ID = id
		sess.Streaming = false
		out.Sessions[id] = sess
		out.Order = append(out.Order, id)
	}
	if len(out.Order) == 0 {
		return models.Collection{}, false
	}
	out.CurrentID = out.Order[0]
	if seen[col.CurrentID] {
		out.CurrentID = col.CurrentID
	}
	return out, true
}
