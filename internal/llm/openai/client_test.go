package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

func TestToParams(t *testing.T) {
	t.Parallel()

	p := toParams("qwen-plus", &feeds.LLMRequest{System: "sys", Prompt: "hi", MaxTokens: 1000, Temperature: 0.7})
	if p.Model != "qwen-plus" {
		t.Errorf("Model = %q, want %q", p.Model, "qwen-plus")
	}
	if len(p.Messages) != 2 {
		t.Fatalf("Messages = %d, want 2", len(p.Messages))
	}
	if p.Messages[0].OfSystem == nil || p.Messages[1].OfUser == nil {
		t.Errorf("roles = %+v", p.Messages)
	}
	if p.MaxTokens.Value != 1000 {
		t.Errorf("MaxTokens = %d, want 1000", p.MaxTokens.Value)
	}

	p = toParams("m", &feeds.LLMRequest{Prompt: "hi"})
	if len(p.Messages) != 1 {
		t.Errorf("Messages = %d, want 1 without system prompt", len(p.Messages))
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1",
			"object": "chat.completion",
			"created": 1,
			"model": "qwen-plus",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "【专属见解】\nok"}}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 7, "total_tokens": 37}
		}`))
	}))
	defer srv.Close()

	c := New("sk-test", srv.URL, "qwen-plus", option.WithMaxRetries(0))
	resp, err := c.Complete(context.Background(), &feeds.LLMRequest{System: "s", Prompt: "p", MaxTokens: 1000, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "【专属见解】\nok" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.InputTokens != 30 || resp.OutputTokens != 7 {
		t.Errorf("usage = %d/%d, want 30/7", resp.InputTokens, resp.OutputTokens)
	}
	if !strings.HasSuffix(gotPath, "/chat/completions") {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotBody["temperature"])
	}
}

func TestComplete_NoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","model":"m","choices":[]}`))
	}))
	defer srv.Close()

	c := New("k", srv.URL, "m", option.WithMaxRetries(0))
	if _, err := c.Complete(context.Background(), &feeds.LLMRequest{Prompt: "p"}); err == nil {
		t.Error("expected error for empty choices")
	}
}
