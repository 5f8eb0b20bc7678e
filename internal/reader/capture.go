package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// NoteHeadings are the labels used when assembling a note document.
type NoteHeadings struct {
	Link     string
	Summary  string
	Insight  string
	Original string
}

var (
	EnglishHeadings = NoteHeadings{
		Link:     "Original link",
		Summary:  "Core summary",
		Insight:  "Exclusive insight",
		Original: "Original content",
	}
	ChineseHeadings = NoteHeadings{
		Link:     "原文链接",
		Summary:  "核心总结",
		Insight:  "专属见解",
		Original: "原始内容",
	}
)

// HeadingsFor returns the headings for a language code ("en" or "zh").
func HeadingsFor(lang string) (NoteHeadings, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "en":
		return EnglishHeadings, nil
	case "zh":
		return ChineseHeadings, nil
	}
	return NoteHeadings{}, fmt.Errorf("unsupported note language %q", lang)
}

// NoteTitle is the translated title, falling back to the item title.
func NoteTitle(item FeedItem, analysis AnalysisResult) string {
	if t := strings.TrimSpace(analysis.TranslatedTitle); t != "" {
		return t
	}
	return item.Title
}

// BuildNoteContent assembles the Markdown note for an analyzed item. The
// output depends only on its arguments.
func BuildNoteContent(item FeedItem, analysis AnalysisResult, h NoteHeadings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", NoteTitle(item, analysis))
	fmt.Fprintf(&b, "**%s**: %s\n\n", h.Link, item.Link)
	fmt.Fprintf(&b, "### %s\n%s\n\n", h.Summary, analysis.Summary)
	fmt.Fprintf(&b, "### %s\n%s\n\n", h.Insight, analysis.Insight)
	fmt.Fprintf(&b, "---\n%s:\n%s\n", h.Original, item.Content)
	return b.String()
}

// Refresher reloads the feed snapshot after a capture.
type Refresher interface {
	Reload(ctx context.Context) error
}

// VaultCapture turns an analyzed item into a vault note.
type VaultCapture struct {
	vault     VaultService
	workflow  *AnalysisWorkflow
	refresher Refresher
	headings  NoteHeadings
	logger    log.Logger
}

// NewVaultCapture creates a VaultCapture. workflow and refresher may be nil.
func NewVaultCapture(vault VaultService, workflow *AnalysisWorkflow, refresher Refresher, headings NoteHeadings, logger log.Logger) *VaultCapture {
	if logger == nil {
		logger = log.Nop()
	}
	if headings == (NoteHeadings{}) {
		headings = EnglishHeadings
	}
	return &VaultCapture{
		vault:     vault,
		workflow:  workflow,
		refresher: refresher,
		headings:  headings,
		logger:    logger,
	}
}

// Save validates its inputs, submits the note and, on success, clears the
// item's selection and refreshes the feed view. A failed submission leaves
// all state untouched so the caller can retry with the same inputs.
func (c *VaultCapture) Save(ctx context.Context, item FeedItem, analysis *AnalysisResult, category Category) (*Note, error) {
	if analysis == nil {
		return nil, &ValidationError{Field: "analysis", Message: "item has not been analyzed"}
	}
	if analysis.FeedID != item.ID {
		return nil, &ValidationError{Field: "analysis", Message: "analysis belongs to a different item"}
	}
	if strings.TrimSpace(category.ID) == "" {
		return nil, &ValidationError{Field: "category", Message: "a category is required"}
	}

	payload := NewNote{
		Title:        NoteTitle(item, *analysis),
		Content:      BuildNoteContent(item, *analysis, c.headings),
		Category:     category.ID,
		FeedID:       item.ID,
		OriginalLink: item.Link,
	}

	note, err := c.vault.CreateNote(ctx, payload)
	if err != nil {
		err = asTransport("save note", err)
		c.logger.Warn(ctx, "save note failed", "feed_id", item.ID, "category", category.ID, "error", err)
		return nil, err
	}

	c.logger.Info(ctx, "note saved", "feed_id", item.ID, "note_id", note.ID, "category", category.ID)

	if c.workflow != nil {
		c.workflow.ClearIf(item.ID)
	}
	if c.refresher != nil {
		if err := c.refresher.Reload(ctx); err != nil {
			c.logger.Warn(ctx, "refresh after save failed", "error", err)
		}
	}
	return note, nil
}
