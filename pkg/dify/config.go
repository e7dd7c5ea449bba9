package dify

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultLabel identifies this backend in emitted metrics.
	DefaultLabel = "dify"

	// DefaultUser is the static end-user identifier sent with every request.
	DefaultUser = "livekit-agent"

	// DefaultTimeout bounds a single streaming call end to end.
	DefaultTimeout = 5 * time.Minute

	// ResponseModeStreaming asks the backend for an SSE response.
	ResponseModeStreaming = "streaming"
)

// Config configures a Client.
type Config struct {
	// APIKey is the bearer credential for the backend.
	APIKey string

	// BaseURL is the full chat-messages endpoint, e.g.
	// "https://api.dify.ai/v1/chat-messages".
	BaseURL string

	// Username is the caller identifier sent as inputs.username. A random
	// UUID is generated when empty.
	Username string

	// User overrides DefaultUser.
	User string

	// Label overrides DefaultLabel in emitted metrics.
	Label string

	// Timeout bounds each call. Zero uses DefaultTimeout, a negative value
	// disables the bound.
	Timeout time.Duration

	// HTTPClient is used for requests. Defaults to a fresh http.Client.
	HTTPClient *http.Client

	// StreamDump, when set, receives a verbatim copy of every streamed line.
	StreamDump io.Writer

	// Logger is the provided slog logger. Defaults to a no-op logger.
	Logger *slog.Logger
}
