package feeds

import "context"

// Provider is the interface for any LLM backend.
type Provider interface {
	Complete(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is a single-turn completion request.
type LLMRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// LLMResponse is the provider's text answer and token usage.
type LLMResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}
