package adapter

import "context"

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is one single-prompt generation. The deadline travels
// in the context, not in the request.
type CompletionRequest struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

type Completion struct {
	Text     string
	Model    string
	Provider string
	Usage    Usage
}

// LLMClient is the port for text generation.
//
// Implementations classify failures into domain.ErrLLMUnavailable,
// domain.ErrLLMTimeout or domain.ErrLLMQuota (wrapped). Callers must treat
// the three identically.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
