package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxPromptContent is the number of runes of feed content sent to the LLM.
	MaxPromptContent = 2000
	ResponseTokens   = 1000
	Temperature      = 0.7

	markerTitle   = "【标题翻译】"
	markerSummary = "【核心总结】"
	markerInsight = "【专属见解】"

	systemPrompt = "You are a knowledge management assistant who analyzes and distills information precisely."
)

// AnalyzerHooks are optional callbacks for instrumentation.
type AnalyzerHooks struct {
	OnLLMCall func(model string, inputTokens, outputTokens int, duration float64, err error)
}

// Analyzer produces an Analysis for a feed with a single LLM call.
type Analyzer struct {
	provider  Provider
	plainText func(string) string
	logger    log.Logger
	hooks     AnalyzerHooks
}

// NewAnalyzer creates an Analyzer. plainText converts stored HTML content
// to prompt text; nil leaves content as is.
func NewAnalyzer(provider Provider, plainText func(string) string, logger log.Logger, hooks AnalyzerHooks) *Analyzer {
	if logger == nil {
		logger = log.Nop()
	}
	if plainText == nil {
		plainText = func(s string) string { return s }
	}
	return &Analyzer{
		provider:  provider,
		plainText: plainText,
		logger:    logger,
		hooks:     hooks,
	}
}

// Analyze prompts the provider for a translated title, a three point
// summary and a short insight, and parses the answer.
func (a *Analyzer) Analyze(ctx context.Context, f *Feed) (*Analysis, error) {
	content := truncateRunes(strings.TrimSpace(a.plainText(f.Content)), MaxPromptContent)

	ctx, span := otel.Tracer("github.com/linnemanlabs/brainsync/internal/feeds").Start(ctx, "llm.call",
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "llm.call"),
			attribute.Int64("brainsync.feed.id", f.ID),
			attribute.Int("brainsync.prompt.content_runes", utf8.RuneCountInString(content)),
		))
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Complete(ctx, &LLMRequest{
		System:      systemPrompt,
		Prompt:      BuildPrompt(f.Title, content),
		MaxTokens:   ResponseTokens,
		Temperature: Temperature,
	})
	dur := time.Since(start).Seconds()

	if err != nil {
		if a.hooks.OnLLMCall != nil {
			a.hooks.OnLLMCall("", 0, 0, dur, err)
		}
		a.logger.Error(ctx, err, "llm call failed", "feed_id", f.ID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		return nil, fmt.Errorf("llm completion: %w", err)
	}
	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.OutputTokens),
	)
	if a.hooks.OnLLMCall != nil {
		a.hooks.OnLLMCall(resp.Model, resp.InputTokens, resp.OutputTokens, dur, nil)
	}

	a.logger.Info(ctx, "llm response",
		"feed_id", f.ID,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration", dur,
	)

	out := ParseAnalysis(resp.Text)
	if out.Summary == "" && out.Insight == "" && out.TranslatedTitle == "" {
		span.SetStatus(codes.Error, "unstructured answer")
		return nil, errors.New("llm answer contained none of the expected sections")
	}
	return &out, nil
}

// BuildPrompt renders the user prompt for a feed.
func BuildPrompt(title, content string) string {
	if content == "" {
		content = "(no content)"
	}
	var b strings.Builder
	b.WriteString("Analyze the following article or podcast episode and answer in exactly the format below.\n\n")
	fmt.Fprintf(&b, "Title: %s\nContent: %s\n\n", title, content)
	b.WriteString(markerTitle + "\n")
	b.WriteString("If the title is not in Chinese, give a precise Chinese translation. Otherwise repeat the title.\n\n")
	b.WriteString(markerSummary + "\n")
	b.WriteString("Distill the content into 3 key points, one per line:\n1. first point\n2. second point\n3. third point\n\n")
	b.WriteString(markerInsight + "\n")
	b.WriteString("Relate it to the reader's interests (work skills, AI tech, investing, personal growth) in one short comment of at most 50 characters.\n\n")
	b.WriteString("Follow the format strictly and add nothing else.")
	return b.String()
}

// ParseAnalysis splits an LLM answer into its three sections. Lines before
// the first marker are ignored; blank lines are dropped.
func ParseAnalysis(text string) Analysis {
	var title, summary, insight []string
	var cur *[]string

	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, markerTitle):
			cur = &title
			continue
		case strings.Contains(line, markerSummary):
			cur = &summary
			continue
		case strings.Contains(line, markerInsight):
			cur = &insight
			continue
		}
		if line != "" && cur != nil {
			*cur = append(*cur, line)
		}
	}

	return Analysis{
		TranslatedTitle: strings.Join(title, "\n"),
		Summary:         strings.Join(summary, "\n"),
		Insight:         strings.Join(insight, "\n"),
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
