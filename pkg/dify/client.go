// Package dify implements a streaming completion adapter for the Dify
// chat-messages API.
//
// A Client turns the latest message of a chat context into a single streaming
// POST, decodes the "data: " lines of the response into answer fragments and
// reports exactly one llm.CompletionMetrics record per call to its observers.
package dify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/logger"
	"github.com/papercomputeco/difyvoice/pkg/sse"
)

// maxErrorBody caps how much of a non-success response body is kept.
const maxErrorBody = 4 * 1024

// Client is a streaming completion adapter for a Dify backend.
// A Client is safe for concurrent use; each Chat call owns its own connection.
type Client struct {
	apiKey   string
	baseURL  string
	username string
	user     string
	label    string
	timeout  time.Duration

	httpClient *http.Client
	streamDump io.Writer
	logger     *slog.Logger

	emitter llm.Emitter
}

var _ llm.Streamer = (*Client)(nil)

// New creates a Client from c.
func New(c Config) (*Client, error) {
	if c.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid dify base URL %q: %w", c.BaseURL, err)
	}

	client := &Client{
		apiKey:     c.APIKey,
		baseURL:    c.BaseURL,
		username:   c.Username,
		user:       c.User,
		label:      c.Label,
		timeout:    c.Timeout,
		httpClient: c.HTTPClient,
		streamDump: c.StreamDump,
		logger:     c.Logger,
	}

	if client.username == "" {
		client.username = uuid.NewString()
	}
	if client.user == "" {
		client.user = DefaultUser
	}
	if client.label == "" {
		client.label = DefaultLabel
	}
	if client.timeout == 0 {
		client.timeout = DefaultTimeout
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.logger == nil {
		client.logger = logger.Nop()
	}

	if client.apiKey == "" {
		client.logger.Warn("dify API key is empty, requests will likely be rejected")
	}

	return client, nil
}

// Username returns the caller identifier sent as inputs.username.
func (c *Client) Username() string {
	return c.username
}

// Label returns the backend label used in metrics.
func (c *Client) Label() string {
	return c.label
}

// OnMetrics registers an observer for per-call metrics and returns a func
// that removes it.
func (c *Client) OnMetrics(obs llm.MetricsObserver) (unsubscribe func()) {
	return c.emitter.OnMetrics(obs)
}

// Chat streams the answer to the last message of chatCtx.
//
// Temperature, max tokens and function context options are accepted for
// compatibility with orchestrators but are not sent to the backend.
//
// Metrics for the call are delivered to every observer before a failure is
// yielded, and also when the consumer stops ranging early.
func (c *Client) Chat(ctx context.Context, chatCtx *llm.ChatContext, opts ...llm.ChatOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if o := llm.ApplyChatOptions(opts...); !o.IsZero() {
			c.logger.Debug("generation options are not forwarded to dify")
		}

		if err := c.stream(ctx, c.newStreamRequest(chatCtx), yield); err != nil {
			yield("", err)
		}
	}
}

// stream performs one call. It returns nil once the consumer has stopped so
// that yield is never called again after returning false.
func (c *Client) stream(ctx context.Context, body *StreamRequest, yield func(string, error) bool) (err error) {
	rec := newRecorder(c.label, body.Query)
	log := c.logger.With("request_id", rec.requestID)
	parent := ctx

	defer func() {
		if err != nil && errors.Is(parent.Err(), context.Canceled) {
			rec.cancelled = true
		}

		m := rec.finish(err)
		log.Debug("dify completion finished",
			"duration", m.Duration,
			"ttft", m.TTFT,
			"fragments", rec.fragments,
			"malformed", rec.malformed,
			"completion_tokens", m.CompletionTokens,
			"cancelled", m.Cancelled,
			"error", m.Error,
		)
		c.emitter.EmitMetrics(m)
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newHTTPRequest(ctx, body)
	if err != nil {
		return err
	}

	log.Debug("dify request", "prompt_tokens", rec.promptTokens)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &BackendRequestError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	reader := sse.NewTeeReader(resp.Body, c.streamDump)
	dumpFailed := false
	for {
		frame, err := reader.Next()
		if teeErr := reader.TeeErr(); teeErr != nil && !dumpFailed {
			dumpFailed = true
			log.Warn("stream dump disabled after write failure", "error", teeErr)
		}
		if err != nil {
			return transportError(ctx, err)
		}
		if frame == nil {
			log.Debug("dify stream ended without done sentinel")
			return nil
		}

		ev := DecodeFrame(frame)
		switch ev.Kind {
		case EventDone:
			return nil

		case EventMalformed:
			rec.malformed++
			log.Debug("skipping malformed dify frame", "event", ev.Name)

		case EventSkip:
			if ev.Name == "error" {
				log.Warn("dify reported a stream error", "message", ev.Message)
			}

		case EventAnswer:
			rec.observeAnswer(ev.Text)
			if !yield(ev.Text, nil) {
				rec.cancelled = true
				return nil
			}
		}
	}
}

// transportError wraps a connection or read failure, keeping the context
// cause visible to errors.Is.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &TransportError{Err: err}
}
