package dify

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/difyvoice/pkg/llm"
)

// recorder accumulates the measurements of a single call.
type recorder struct {
	label     string
	requestID string
	start     time.Time

	firstToken       time.Time
	promptTokens     int
	completionTokens int
	fragments        int
	malformed        int
	cancelled        bool
}

func newRecorder(label, query string) *recorder {
	return &recorder{
		label:        label,
		requestID:    uuid.NewString(),
		start:        time.Now(),
		promptTokens: countWords(query),
	}
}

// observeAnswer records a fragment about to be handed to the consumer.
func (r *recorder) observeAnswer(text string) {
	if r.firstToken.IsZero() {
		r.firstToken = time.Now()
	}
	r.fragments++
	r.completionTokens += countWords(text)
}

// finish computes the metrics record for the call.
func (r *recorder) finish(err error) llm.CompletionMetrics {
	duration := time.Since(r.start).Seconds()
	total := r.promptTokens + r.completionTokens

	m := llm.CompletionMetrics{
		Duration:         duration,
		Label:            r.label,
		Cancelled:        r.cancelled,
		CompletionTokens: r.completionTokens,
		PromptTokens:     r.promptTokens,
		TotalTokens:      total,
		RequestID:        r.requestID,
		Timestamp:        r.start.Unix(),
	}

	if duration > 0 {
		m.TokensPerSecond = float64(total) / duration
	}
	if !r.firstToken.IsZero() {
		m.TTFT = r.firstToken.Sub(r.start).Seconds()
	}
	if err != nil {
		m.Error = err.Error()
	}

	return m
}

// countWords approximates a token count by whitespace-separated words.
func countWords(s string) int {
	return len(strings.Fields(s))
}
