// Package sse provides a minimal, line-oriented reader for the "data: " frames
// of a server-sent-event stream, optionally teeing the raw bytes to a second
// writer (e.g. a debug dump of the upstream stream).
//
// Framing follows the conversational backend rather than the full SSE
// grammar: every line is handled on its own, blank-line event boundaries and
// "event:"/"id:" fields carry no meaning, and only lines starting with
// "data: " (after trimming surrounding whitespace) produce frames.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
package sse

// DataPrefix marks a line that carries a payload.
const DataPrefix = "data: "

// DoneSentinel is the payload that terminates a stream.
const DoneSentinel = "[DONE]"

// Frame is a single payload-bearing line of the stream.
type Frame struct {
	// Data is the line content after DataPrefix, trimmed.
	Data string

	// Done is true when Data is DoneSentinel.
	Done bool

	// Invalid is true when the raw line was not valid UTF-8. Data is empty
	// for invalid frames.
	Invalid bool
}
