package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/papercomputeco/difyvoice/pkg/llm"
)

// StreamRequest is the JSON body of a chat-messages call.
type StreamRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID string            `json:"conversation_id"`
	User           string            `json:"user"`
}

// newStreamRequest builds the body for chatCtx. Only the last message is
// forwarded; the backend keeps no conversation for us.
func (c *Client) newStreamRequest(chatCtx *llm.ChatContext) *StreamRequest {
	return &StreamRequest{
		Inputs: map[string]string{
			"username": c.username,
		},
		Query:          chatCtx.LastContent(),
		ResponseMode:   ResponseModeStreaming,
		ConversationID: "",
		User:           c.user,
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, body *StreamRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding dify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating dify request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	return req, nil
}
