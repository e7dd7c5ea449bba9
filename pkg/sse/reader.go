package sse

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 1024 * 1024
)

// Reader reads Frames line by line from a source io.Reader while optionally
// writing every raw line verbatim to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │ (optional)
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer
	teeErr  error

	skipped int
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that also writes each raw line to
// dest. A nil dest disables teeing.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufSize), maxLineSize)

	return &Reader{
		scanner: scanner,
		dest:    dest,
	}
}

// Next returns the next data frame. Lines without the DataPrefix are skipped.
// A line that is not valid UTF-8 yields a Frame with Invalid set, so callers
// can account for it and carry on.
//
// Next returns nil, nil when the source is exhausted. Any read error from the
// source is returned as is. A failed write to the tee destination disables the
// tee and is reported by TeeErr; reading continues.
func (r *Reader) Next() (*Frame, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Bytes()

		if r.dest != nil {
			// bufio.Scanner strips the newline from Scan() so we reinsert it here.
			if _, err := io.WriteString(r.dest, string(raw)+"\n"); err != nil {
				r.teeErr = err
				r.dest = nil
			}
		}

		if !utf8.Valid(raw) {
			return &Frame{Invalid: true}, nil
		}

		line := strings.TrimSpace(string(raw))
		if !strings.HasPrefix(line, DataPrefix) {
			r.skipped++
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, DataPrefix))
		return &Frame{
			Data: data,
			Done: data == DoneSentinel,
		}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, nil
}

// TeeErr returns the write error that disabled the tee, or nil.
func (r *Reader) TeeErr() error {
	return r.teeErr
}

// Skipped returns how many non-data lines have been passed over so far.
func (r *Reader) Skipped() int {
	return r.skipped
}
