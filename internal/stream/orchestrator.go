package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/shakti7/codemate/internal/store"
	"github.com/shakti7/codemate/pkg/models"
)

var (
	// ErrUnknownSession rejects a start against a session id the store
	// does not know.
	ErrUnknownSession = errors.New("unknown session")
	// ErrAlreadyStreaming rejects a start while a stream is active for
	// the session. Only one stream may run per session at a time.
	ErrAlreadyStreaming = errors.New("session is already streaming")
	// ErrNothingToReplay rejects a replay when the transcript does not
	// end in a user message.
	ErrNothingToReplay = errors.New("no user message to replay")
)

// errorSuffix is appended to the assistant message on a stream failure.
// Errors render inline in the transcript, not as separate dialogs.
const errorSuffix = "\n[Error] "

// streamSlot is one stream's registration in the active map. Slots are
// compared by identity: a goroutine may only free the slot it was
// launched with, so a stale stream that outlives its Stop cannot release
// a successor's registration.
type streamSlot struct {
	cancel context.CancelFunc
}

// Orchestrator bridges one active decoder per session to the store. It
// owns the cancellation handles and enforces the one-stream-per-session
// rule at its own boundary rather than trusting callers.
type Orchestrator struct {
	store  *store.Store
	client *Client
	log    *zap.Logger

	mu     sync.Mutex
	active map[string]*streamSlot
}

// NewOrchestrator wires the store and backend client together.
func NewOrchestrator(st *store.Store, client *Client, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:  st,
		client: client,
		log:    log,
		active: make(map[string]*streamSlot),
	}
}

// Start sends a fresh user message on a session and opens a stream for
// the response. The returned channel carries decoded events after they
// have been applied to the store, in arrival order, and closes when the
// stream ends. Delivery is best-effort: a reader that stops draining
// stops getting notified but never stalls the stream itself.
func (o *Orchestrator) Start(ctx context.Context, sessionID, text string) (<-chan Event, error) {
	sl, err := o.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	o.store.AppendUserMessage(sessionID, text)
	return o.launch(ctx, sessionID, text, sl), nil
}

// Replay re-runs the stream for the transcript's trailing user message
// without appending it again. Used after an in-place edit.
func (o *Orchestrator) Replay(ctx context.Context, sessionID string) (<-chan Event, error) {
	sess, ok := o.store.Session(sessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	n := len(sess.Messages)
	if n == 0 || sess.Messages[n-1].Role != models.RoleUser {
		return nil, ErrNothingToReplay
	}
	sl, err := o.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	return o.launch(ctx, sessionID, sess.Messages[n-1].Content, sl), nil
}

// Stop cancels the session's active stream, if any, and forces the
// streaming flag down. Cancellation is not an error: it leaves no trace
// in the transcript.
func (o *Orchestrator) Stop(sessionID string) {
	o.mu.Lock()
	sl, ok := o.active[sessionID]
	if ok {
		delete(o.active, sessionID)
	}
	o.mu.Unlock()

	if ok {
		sl.cancel()
	}
	o.store.SetStreaming(sessionID, false)
}

// Active reports whether a stream is running for the session.
func (o *Orchestrator) Active(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[sessionID]
	return ok
}

// acquire takes the session's stream slot, checking preconditions.
func (o *Orchestrator) acquire(sessionID string) (*streamSlot, error) {
	if _, ok := o.store.Session(sessionID); !ok {
		return nil, ErrUnknownSession
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.active[sessionID]; running || o.store.Streaming(sessionID) {
		return nil, ErrAlreadyStreaming
	}
	// Placeholder cancel; launch swaps in the real func under the same
	// lock acquisition ordering.
	sl := &streamSlot{cancel: func() {}}
	o.active[sessionID] = sl
	return sl, nil
}

// launch marks the session streaming, anchors the placeholder assistant
// message, and spawns the stream goroutine. acquire must have succeeded.
func (o *Orchestrator) launch(ctx context.Context, sessionID, text string, sl *streamSlot) <-chan Event {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	sl.cancel = cancel
	o.mu.Unlock()

	o.store.SetStreaming(sessionID, true)
	o.store.AppendAssistantChunk(sessionID, "")

	ch := make(chan Event, 16)
	go o.run(ctx, sessionID, text, sl, ch)
	return ch
}

// run owns one stream from open to close. It is the only goroutine that
// mutates the session while streaming, so events hit the store in
// arrival order with no reordering.
func (o *Orchestrator) run(ctx context.Context, sessionID, text string, sl *streamSlot, ch chan<- Event) {
	defer close(ch)
	defer o.release(sessionID, sl)

	body, err := o.client.OpenStream(ctx, sessionID, text)
	if err != nil {
		if ctx.Err() != nil {
			o.abandon(sessionID, sl)
			return
		}
		o.log.Warn("stream open failed", zap.String("session", sessionID), zap.Error(err))
		o.fail(sessionID, err.Error(), ch)
		return
	}
	defer body.Close()

	dec := NewDecoder(body)
	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			// A cancelled read is not a user-visible error.
			if ctx.Err() != nil {
				o.abandon(sessionID, sl)
				return
			}
			o.log.Warn("stream read failed", zap.String("session", sessionID), zap.Error(err))
			o.fail(sessionID, err.Error(), ch)
			return
		}
		// No callbacks after abort.
		if ctx.Err() != nil {
			o.abandon(sessionID, sl)
			return
		}

		o.apply(sessionID, ev)
		// The store transition above is the event's effect; the channel
		// is only a render notification. An undrained channel must never
		// stall the stream, so a full buffer drops the notification.
		select {
		case ch <- ev:
		default:
		}
	}
}

// apply performs the store transition for one decoded event.
func (o *Orchestrator) apply(sessionID string, ev Event) {
	switch ev.Kind {
	case KindChunk:
		o.store.AppendAssistantChunk(sessionID, ev.Text)
	case KindArtifact:
		o.store.SetLatestArtifact(sessionID, ev.Artifact)
	case KindDone:
		o.store.SetStreaming(sessionID, false)
	case KindError:
		o.store.SetStreaming(sessionID, false)
		o.store.AppendAssistantChunk(sessionID, errorSuffix+ev.Message)
	}
}

// fail applies transport-failure handling: streaming off, error text
// appended inline, and a single synthesized error event forwarded.
func (o *Orchestrator) fail(sessionID, message string, ch chan<- Event) {
	o.store.SetStreaming(sessionID, false)
	o.store.AppendAssistantChunk(sessionID, errorSuffix+message)
	select {
	case ch <- Event{Kind: KindError, Message: message}:
	default:
	}
}

// abandon ends a cancelled stream. After Stop has handed the session's
// slot to a newer stream, only that stream may touch the streaming flag,
// so the flag is cleared only while this registration is still current.
func (o *Orchestrator) abandon(sessionID string, sl *streamSlot) {
	if o.release(sessionID, sl) {
		o.store.SetStreaming(sessionID, false)
	}
}

// release frees the session's stream slot, but only when the slot still
// belongs to this stream. A slot already taken over by a newer stream is
// left in place.
func (o *Orchestrator) release(sessionID string, sl *streamSlot) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[sessionID] != sl {
		return false
	}
	delete(o.active, sessionID)
	return true
}
