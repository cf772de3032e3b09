package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/shakti7/codemate/pkg/models"
)

// frameDelimiter separates SSE frames.
var frameDelimiter = []byte("\n\n")

// defaultErrorMessage stands in when an error payload carries no message.
const defaultErrorMessage = "Unknown error"

// Decoder turns a raw byte stream into a sequence of typed events. Frames
// may span any number of reads; incomplete frames are buffered without
// losing or duplicating bytes. Malformed frames and frames without data
// are dropped silently and never abort the stream. When the stream ends
// without an explicit done event, a done event is synthesized.
type Decoder struct {
	r        io.Reader
	buf      []byte
	readBuf  []byte
	queue    []Event
	eof      bool
	finished bool
}

// NewDecoder wraps a readable byte stream.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:       r,
		readBuf: make([]byte, 4096),
	}
}

// Next returns the next decoded event. It returns io.EOF after the final
// synthesized done event; any other error is a transport failure that the
// caller maps to a single error event (or suppresses on cancellation).
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.queue) > 0 {
			ev := d.queue[0]
			d.queue = d.queue[1:]
			return ev, nil
		}
		if d.eof {
			if !d.finished {
				d.finished = true
				return Event{Kind: KindDone}, nil
			}
			return Event{}, io.EOF
		}

		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			d.buf = append(d.buf, d.readBuf[:n]...)
			d.extractFrames()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A trailing partial frame has no delimiter and is dropped.
				d.eof = true
				continue
			}
			return Event{}, err
		}
	}
}

// extractFrames moves every complete delimited frame out of the buffer
// and onto the event queue.
func (d *Decoder) extractFrames() {
	for {
		idx := bytes.Index(d.buf, frameDelimiter)
		if idx == -1 {
			return
		}
		raw := d.buf[:idx]
		d.buf = d.buf[idx+len(frameDelimiter):]
		if ev, ok := parseFrame(raw); ok {
			d.queue = append(d.queue, ev)
		}
	}
}

// ssePayload is the union of the recognized data shapes.
type ssePayload struct {
	Type     string           `json:"type"`
	Text     *string          `json:"text"`
	Message  string           `json:"message"`
	Artifact *models.Artifact `json:"artifact"`
}

// parseFrame decodes one SSE frame: zero or one event: line, one or more
// data: lines joined with embedded newlines. Frames without data, or
// whose data fails to decode, are skipped.
func parseFrame(raw []byte) (Event, bool) {
	var eventName string
	var dataLines []string
	for _, line := range strings.Split(string(raw), "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	if len(dataLines) == 0 {
		return Event{}, false
	}

	var payload ssePayload
	if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &payload); err != nil {
		return Event{}, false
	}

	switch {
	case payload.Type == "chunk" && payload.Text != nil:
		return Event{Kind: KindChunk, Text: *payload.Text}, true
	case eventName == "artifact" && payload.Artifact != nil:
		return Event{Kind: KindArtifact, Artifact: payload.Artifact}, true
	case payload.Type == "done":
		return Event{Kind: KindDone}, true
	case payload.Type == "error":
		msg := payload.Message
		if msg == "" {
			msg = defaultErrorMessage
		}
		return Event{Kind: KindError, Message: msg}, true
	}
	return Event{}, false
}
