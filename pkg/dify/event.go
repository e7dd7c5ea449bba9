package dify

import (
	"encoding/json"

	"github.com/papercomputeco/difyvoice/pkg/sse"
)

// EventKind classifies a decoded stream frame.
type EventKind int

const (
	// EventSkip is a well-formed record without answer text.
	EventSkip EventKind = iota

	// EventAnswer carries an incremental answer fragment.
	EventAnswer

	// EventDone terminates the stream.
	EventDone

	// EventMalformed is a frame that could not be decoded.
	EventMalformed
)

func (k EventKind) String() string {
	switch k {
	case EventAnswer:
		return "answer"
	case EventDone:
		return "done"
	case EventMalformed:
		return "malformed"
	default:
		return "skip"
	}
}

// StreamEvent is a decoded stream frame.
type StreamEvent struct {
	Kind EventKind

	// Text is the answer fragment for EventAnswer.
	Text string

	// Name is the record's "event" field, when present.
	Name string

	// Message is the record's "message" field, set by backend error records.
	Message string
}

// DecodeFrame turns a data frame into a StreamEvent.
//
// A frame that is not valid UTF-8, not a JSON object, or whose "answer" field
// is not a string is EventMalformed. An object without "answer" is EventSkip.
func DecodeFrame(f *sse.Frame) StreamEvent {
	switch {
	case f.Invalid:
		return StreamEvent{Kind: EventMalformed}
	case f.Done:
		return StreamEvent{Kind: EventDone}
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal([]byte(f.Data), &record); err != nil || record == nil {
		return StreamEvent{Kind: EventMalformed}
	}

	ev := StreamEvent{Kind: EventSkip}
	if raw, ok := record["event"]; ok {
		_ = json.Unmarshal(raw, &ev.Name)
	}
	if raw, ok := record["message"]; ok {
		_ = json.Unmarshal(raw, &ev.Message)
	}

	raw, ok := record["answer"]
	if !ok {
		return ev
	}

	var text *string
	if err := json.Unmarshal(raw, &text); err != nil || text == nil {
		return StreamEvent{Kind: EventMalformed, Name: ev.Name}
	}

	ev.Kind = EventAnswer
	ev.Text = *text
	return ev
}
