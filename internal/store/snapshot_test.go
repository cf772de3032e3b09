package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySnapshots is an in-memory Snapshotter for tests.
type memorySnapshots struct {
	value   string
	saves   int
	saveErr error
	loadErr error
}

func (m *memorySnapshots) Save(value string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.value = value
	m.saves++
	return nil
}

func (m *memorySnapshots) Load() (string, error) {
	if m.loadErr != nil {
		return "", m.loadErr
	}
	return m.value, nil
}

func TestEveryTransitionPersists(t *testing.T) {
	snap := &memorySnapshots{}
	st := New(snap, nil)

	id := st.CreateSession("")
	st.AppendUserMessage(id, "hello")
	st.AppendAssistantChunk(id, "hi")
	st.RenameSession(id, "greetings")

	assert.Equal(t, 4, snap.saves)
	assert.NotEmpty(t, snap.value)
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := &memorySnapshots{}
	st := New(snap, nil)

	id := st.CreateSession("")
	mid := st.AppendUserMessage(id, "make a button")
	st.AppendAssistantChunk(id, "here")
	st.EditUserMessage(id, mid, "make a link", false)

	restored := New(snap, nil)
	restored.Load()

	sess, ok := restored.Session(id)
	require.True(t, ok)
	assert.Equal(t, "make a button", sess.Title)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "make a link", sess.Messages[0].Content)
	require.Len(t, sess.History, 1)
	assert.Equal(t, "make a button", sess.History[0][0].Content)
	assert.Equal(t, id, restored.CurrentID())
	assert.Equal(t, []string{id}, restored.Order())
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	snap := &memorySnapshots{value: "{not json"}
	st := New(snap, nil)
	st.Load()
	assert.Empty(t, st.Order())
	assert.Equal(t, "", st.CurrentID())
}

func TestLoadRejectsEmptyCollections(t *testing.T) {
	for _, blob := range []string{
		"",
		`{}`,
		`{"sessions":{},"order":[],"currentId":""}`,
		// Order references nothing the sessions map holds.
		`{"sessions":{},"order":["ghost"],"currentId":"ghost"}`,
	} {
		snap := &memorySnapshots{value: blob}
		st := New(snap, nil)
		st.Load()
		assert.Empty(t, st.Order(), "blob %q", blob)
	}
}

func TestLoadPrunesEmptySessionsAndDuplicates(t *testing.T) {
	snap := &memorySnapshots{value: `{
		"sessions": {
			"a": {"id":"a","title":"kept","messages":[{"id":"m1","role":"user","content":"hi"}]},
			"b": {"id":"b","title":"empty","messages":[]}
		},
		"order": ["b","a","a"],
		"currentId": "b"
	}`}
	st := New(snap, nil)
	st.Load()

	assert.Equal(t, []string{"a"}, st.Order())
	// The persisted current id was pruned, so the head takes over.
	assert.Equal(t, "a", st.CurrentID())
}

func TestLoadClearsStreamingFlag(t *testing.T) {
	snap := &memorySnapshots{value: `{
		"sessions": {
			"a": {"id":"a","title":"t","streaming":true,"messages":[{"id":"m1","role":"user","content":"hi"}]}
		},
		"order": ["a"],
		"currentId": "a"
	}`}
	st := New(snap, nil)
	st.Load()

	assert.False(t, st.Streaming("a"))
}

func TestLoadErrorLeavesStoreEmpty(t *testing.T) {
	snap := &memorySnapshots{loadErr: errors.New("disk gone")}
	st := New(snap, nil)
	st.Load()
	assert.Empty(t, st.Order())
}

func TestSaveFailureKeepsMemoryAuthoritative(t *testing.T) {
	snap := &memorySnapshots{saveErr: errors.New("disk full")}
	st := New(snap, nil)

	id := st.CreateSession("")
	st.AppendUserMessage(id, "hello")

	sess, ok := st.Session(id)
	require.True(t, ok)
	assert.Equal(t, "hello", sess.Messages[0].Content)
}
