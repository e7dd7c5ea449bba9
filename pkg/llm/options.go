package llm

// FunctionContext describes callable tools an orchestrator may offer a model.
type FunctionContext struct {
	Functions map[string]any `json:"functions,omitempty"`
}

// ChatOptions carries the generation parameters an orchestrator passes to a
// Streamer. Streamers may ignore any of them.
type ChatOptions struct {
	Temperature     *float64
	MaxTokens       *int
	FunctionContext *FunctionContext
}

// ChatOption configures ChatOptions.
type ChatOption func(*ChatOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &t
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &n
	}
}

// WithFunctionContext attaches callable tool descriptions.
func WithFunctionContext(fc *FunctionContext) ChatOption {
	return func(o *ChatOptions) {
		o.FunctionContext = fc
	}
}

// ApplyChatOptions folds opts into a ChatOptions value.
func ApplyChatOptions(opts ...ChatOption) ChatOptions {
	var o ChatOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// IsZero reports whether no option was set.
func (o ChatOptions) IsZero() bool {
	return o.Temperature == nil && o.MaxTokens == nil && o.FunctionContext == nil
}
