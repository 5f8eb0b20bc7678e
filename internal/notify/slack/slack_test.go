package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

const noteBody = "## Go 1.25 released\n\n**Link**: https://go.dev/blog/go1.25\n\n### Summary\n1. Faster GC\n2. New APIs\n\n### Insight\nUpgrade soon.\n\n---\nOriginal:\nbody\n"

func sampleNote() *feeds.Note {
	return &feeds.Note{
		ID:           42,
		Title:        "Go 1.25 released",
		Content:      noteBody,
		Category:     "ai-tech",
		OriginalLink: "https://go.dev/blog/go1.25",
		Tags:         []feeds.Tag{{ID: 1, Name: "go"}},
		CreatedAt:    time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestNoteCaptured_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	if err := n.NoteCaptured(context.Background(), sampleNote()); err != nil {
		t.Fatalf("NoteCaptured: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array")
	}
	if len(blocks) != 5 {
		t.Fatalf("blocks = %d, want 5", len(blocks))
	}

	header := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(header, "Go 1.25 released") {
		t.Errorf("header = %q", header)
	}

	fields := blocks[1].(map[string]any)["fields"].([]any)
	if len(fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(fields))
	}
	cat := fields[0].(map[string]any)["text"].(string)
	if cat != "*Category:* AI tech" {
		t.Errorf("category field = %q", cat)
	}

	excerpt := blocks[3].(map[string]any)["text"].(map[string]any)["text"].(string)
	if excerpt != "1. Faster GC\n2. New APIs" {
		t.Errorf("excerpt = %q", excerpt)
	}

	ctxText := blocks[4].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "note 42") || !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context = %q", ctxText)
	}
}

func TestNoteCaptured_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", nil)
	if err := n.NoteCaptured(context.Background(), sampleNote()); err != nil {
		t.Errorf("NoteCaptured without URL = %v, want nil", err)
	}
}

func TestNoteCaptured_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	err := New(srv.URL, log.Nop()).NoteCaptured(context.Background(), sampleNote())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"first section", noteBody, "1. Faster GC\n2. New APIs"},
		{"no sections", "## Title\n\nfree text\nmore", "free text\nmore"},
		{"plain", "just words", "just words"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Excerpt(tt.in); got != tt.want {
				t.Errorf("Excerpt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	got := truncate(strings.Repeat("界", 700), maxExcerptLen)
	if n := utf8.RuneCountInString(got); n != maxExcerptLen {
		t.Errorf("runes = %d, want %d", n, maxExcerptLen)
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("expected truncated text to end with an ellipsis")
	}
	if truncate("short", 10) != "short" {
		t.Error("short text should be unchanged")
	}
}

func TestCategoryName(t *testing.T) {
	t.Parallel()

	if got := categoryName("investing"); got != "Investing" {
		t.Errorf("categoryName = %q, want %q", got, "Investing")
	}
	if got := categoryName("unknown"); got != "unknown" {
		t.Errorf("categoryName = %q, want %q", got, "unknown")
	}
}

func FuzzBuildMessage(f *testing.F) {
	f.Add("Title", "ai-tech", noteBody, "https://example.com")
	f.Add("", "", "", "")
	f.Add("<@U123> mention", "x", "### \n---", "not a url")
	f.Add(strings.Repeat("A", 5000), "investing", strings.Repeat("語", 10000), "")

	f.Fuzz(func(t *testing.T, title, category, content, link string) {
		note := &feeds.Note{ID: 1, Title: title, Category: category, Content: content, OriginalLink: link}

		data, err := json.Marshal(buildMessage(note))
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		if blocks, ok := decoded["blocks"].([]any); !ok || len(blocks) != 5 {
			t.Fatalf("blocks = %v, want 5 blocks", decoded["blocks"])
		}
	})
}
