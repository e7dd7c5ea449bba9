// Package llm defines the provider-agnostic chat and metrics types shared by
// the Dify adapter, the voice agent session and the metrics sinks.
package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: text,
	}
}

// ChatContext is the ordered conversation history handed to a Streamer.
// Streamers treat it as read-only.
type ChatContext struct {
	Messages []Message `json:"messages"`
}

// NewChatContext returns a ChatContext seeded with the given messages.
func NewChatContext(msgs ...Message) *ChatContext {
	return &ChatContext{Messages: append([]Message(nil), msgs...)}
}

// Append adds a message to the end of the history.
func (c *ChatContext) Append(role, text string) {
	c.Messages = append(c.Messages, NewTextMessage(role, text))
}

// LastContent returns the content of the final message, or "" when the
// context is nil or empty.
func (c *ChatContext) LastContent() string {
	if c == nil || len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

// Len returns the number of messages in the history.
func (c *ChatContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Messages)
}
