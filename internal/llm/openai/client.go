// Package openai implements feeds.Provider on any OpenAI-compatible chat
// completions endpoint, such as DashScope's Qwen models.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

// DashScopeBaseURL is the OpenAI-compatible endpoint serving Qwen models.
const DashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// Client implements the Provider interface for chat completions.
type Client struct {
	client openai.Client
	model  string
}

// New creates a client for model. An empty baseURL uses the OpenAI API.
func New(apiKey, baseURL, model string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &Client{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Complete sends a system and user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, req *feeds.LLMRequest) (*feeds.LLMResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, toParams(c.model, req))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &feeds.LLMResponse{
		Text:         resp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func toParams(model string, req *feeds.LLMRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	p := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return p
}
