package llm

import (
	"context"
	"iter"
)

// Streamer produces incremental answer text for a chat context.
//
// The returned sequence is lazy: no work happens until it is ranged over.
// Each step yields a text fragment with a nil error. A failure is yielded once
// as ("", err) and ends the sequence.
type Streamer interface {
	Chat(ctx context.Context, chatCtx *ChatContext, opts ...ChatOption) iter.Seq2[string, error]
}
