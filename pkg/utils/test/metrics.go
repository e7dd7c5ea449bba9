// Package testutils holds fixtures and fakes shared by package tests.
package testutils

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/difyvoice/pkg/llm"
)

// NewTestMetrics creates a completion metrics record for the given label with
// plausible values and a fresh request ID.
func NewTestMetrics(label string) *llm.CompletionMetrics {
	return &llm.CompletionMetrics{
		Duration:         0.5,
		Label:            label,
		CompletionTokens: 4,
		PromptTokens:     2,
		TotalTokens:      6,
		TokensPerSecond:  12,
		RequestID:        uuid.NewString(),
		Timestamp:        time.Now().Unix(),
		TTFT:             0.1,
	}
}

// NewFailedTestMetrics creates a record for a call that failed before any
// fragment arrived.
func NewFailedTestMetrics(label, errMsg string) *llm.CompletionMetrics {
	m := NewTestMetrics(label)
	m.CompletionTokens = 0
	m.TotalTokens = m.PromptTokens
	m.TTFT = 0
	m.Error = errMsg
	return m
}
