package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLI builds the logger for interactive commands: pretty output on console
// and, when logFile is set, every record down to debug as JSON lines appended
// to that file. The returned close func releases the file.
func CLI(console io.Writer, debug bool, logFile string) (*slog.Logger, func() error, error) {
	pretty := New(WithDebug(debug), WithPretty(true), WithWriter(console))
	if logFile == "" {
		return pretty, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := New(WithDebug(true), WithJSON(true), WithSource(debug), WithWriter(f))
	return Multi(pretty, file), f.Close, nil
}
