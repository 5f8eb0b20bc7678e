// Package slack announces captured notes to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

const (
	maxExcerptLen = 600
	httpTimeout   = 10 * time.Second
)

// Notifier posts captured notes to a Slack webhook. It implements
// feeds.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, NoteCaptured
// is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// NoteCaptured posts a summary of note to the configured webhook.
func (n *Notifier) NoteCaptured(ctx context.Context, note *feeds.Note) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(note))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "note announced on slack", "note_id", note.ID)
	return nil
}

func buildMessage(note *feeds.Note) map[string]any {
	blocks := []map[string]any{
		headerBlock(note),
		fieldsBlock(note),
		{"type": "divider"},
		excerptBlock(note),
		contextBlock(note),
	}
	return map[string]any{
		"text":   "Note captured: " + note.Title,
		"blocks": blocks,
	}
}

func headerBlock(note *feeds.Note) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate("\U0001f4dd "+note.Title, 150), // header text limit
		},
	}
}

func fieldsBlock(note *feeds.Note) map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": "*Category:* " + categoryName(note.Category)},
	}
	if len(note.Tags) > 0 {
		names := make([]string, len(note.Tags))
		for i, t := range note.Tags {
			names[i] = "`" + t.Name + "`"
		}
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": "*Tags:* " + strings.Join(names, " ")})
	}
	if note.OriginalLink != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Source:* <%s|original>", note.OriginalLink)})
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func excerptBlock(note *feeds.Note) map[string]any {
	text := truncate(Excerpt(note.Content), maxExcerptLen)
	if text == "" {
		text = "_Empty note._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func contextBlock(note *feeds.Note) map[string]any {
	ts := note.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{{
			"type": "mrkdwn",
			"text": fmt.Sprintf("brainsync • note %d • %s", note.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		}},
	}
}

// Excerpt returns the first section body of a Markdown note: the text
// under the first "###" heading, or the text after the title when there is
// none.
func Excerpt(content string) string {
	lines := strings.Split(content, "\n")
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "### ") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		start = 0
		if strings.HasPrefix(lines[0], "#") {
			start = 1
		}
	}

	var out []string
	for _, l := range lines[start:] {
		if strings.HasPrefix(l, "#") || l == "---" {
			break
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func categoryName(id string) string {
	for _, c := range feeds.Categories() {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
