// Package cli implements the brainsync terminal client on top of a
// reader.Session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"mvdan.cc/xurls/v2"

	"github.com/linnemanlabs/brainsync/internal/reader"
)

// Backend is the remote API the client needs beyond reader.Backend.
type Backend interface {
	reader.Backend
	SyncFromConfig(ctx context.Context) (string, error)
	DeleteSource(ctx context.Context, id int64) error
}

// App renders session operations to Out.
type App struct {
	Session *reader.Session
	Backend Backend
	Out     io.Writer

	// Confirm approves bulk operations. Nil declines everything.
	Confirm reader.ConfirmFunc

	// mu serializes writes to Out between commands and background analyses.
	mu sync.Mutex
}

// New creates an App over a fresh session.
func New(b Backend, s *reader.Session, out io.Writer, confirm reader.ConfirmFunc) *App {
	return &App{Session: s, Backend: b, Out: out, Confirm: confirm}
}

// ResolveSource maps a source reference (ID, name or "all") to a source
// filter value.
func (a *App) ResolveSource(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.EqualFold(ref, "all") {
		return reader.AllSources, nil
	}
	src, ok := a.Session.Registry.Lookup(ref)
	if !ok {
		return 0, &reader.ValidationError{Field: "source", Message: "unknown source " + strconv.Quote(ref)}
	}
	return src.ID, nil
}

// ListSources prints the registry with per-source unread and total counts.
func (a *App) ListSources() {
	counts := a.Session.Triage.Counts()
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tUNREAD\tTOTAL\tURL")
	for _, s := range a.Session.Registry.List() {
		c := counts[s.ID]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", s.ID, s.Name, kindLabel(s.Kind), c.Unread, c.Total, s.URL)
	}
	_ = tw.Flush()
}

// ListFeeds prints the current working set.
func (a *App) ListFeeds() {
	items := a.Session.View()
	src, rf := a.Session.Filters()
	scope := "all sources"
	if s, ok := a.Session.Registry.Get(src); ok {
		scope = s.Name
	}
	fmt.Fprintf(a.Out, "%d %s items in %s\n", len(items), rf, scope)

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, it := range items {
		mark := "*"
		if it.IsRead {
			mark = " "
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", mark, it.ID, published(it.PublishedAt), sourceName(it), it.DisplayTitle())
	}
	_ = tw.Flush()
}

// AddSource registers a source. The URL is taken from the first URL found
// in text, so pasted lines like "Go blog: https://go.dev/blog/feed.atom"
// work.
func (a *App) AddSource(ctx context.Context, name, text string, kind reader.SourceKind) error {
	u := xurls.Strict().FindString(text)
	if u == "" {
		return &reader.ValidationError{Field: "url", Message: "no URL found in " + strconv.Quote(text)}
	}
	src, err := a.Session.Sync.AddSource(ctx, name, u, kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "added source %d %s (%s)\n", src.ID, src.Name, kindLabel(src.Kind))
	return nil
}

// RemoveSource deletes a source and reloads both caches.
func (a *App) RemoveSource(ctx context.Context, ref string) error {
	id, err := a.ResolveSource(ref)
	if err != nil {
		return err
	}
	if id == reader.AllSources {
		return &reader.ValidationError{Field: "source", Message: "refusing to remove every source"}
	}
	if err := a.Backend.DeleteSource(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "removed source %d\n", id)
	return errors.Join(a.Session.Sync.LoadSources(ctx), a.Session.Sync.Reload(ctx))
}

// SyncSources asks the server to sync its source file, then reloads.
func (a *App) SyncSources(ctx context.Context) error {
	msg, err := a.Backend.SyncFromConfig(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, msg)
	return a.Session.Sync.LoadSources(ctx)
}

// Refresh fetches one source, or every source when ref is empty or "all".
func (a *App) Refresh(ctx context.Context, ref string) error {
	id, err := a.ResolveSource(ref)
	if err != nil {
		return err
	}
	var out reader.SyncOutcome
	if src, ok := a.Session.Registry.Get(id); ok {
		out = a.Session.Sync.RefreshOne(ctx, src)
	} else {
		out = a.Session.Sync.RefreshAll(ctx)
	}
	fmt.Fprintln(a.Out, out.Message)
	return out.Err
}

// MarkAllRead marks the current working set read after confirmation.
func (a *App) MarkAllRead(ctx context.Context) error {
	out, err := a.Session.MarkAllRead(ctx, a.Confirm)
	switch {
	case errors.Is(err, reader.ErrNotConfirmed):
		fmt.Fprintln(a.Out, "cancelled")
		return nil
	case out.Requested == 0 && err == nil:
		fmt.Fprintln(a.Out, "nothing to mark")
		return nil
	}
	fmt.Fprintf(a.Out, "marked %d of %d items read\n", len(out.Succeeded), out.Requested)
	return err
}

// Categories prints the vault categories.
func (a *App) Categories(ctx context.Context) error {
	cats, err := a.Session.Categories(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Description)
	}
	return tw.Flush()
}

// Open selects an item and prints it.
func (a *App) Open(ctx context.Context, ref string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil {
		return &reader.ValidationError{Field: "item", Message: "expected a numeric item id"}
	}
	res, err := a.Session.Open(ctx, id)
	if err != nil {
		return err
	}
	if res.MarkReadErr != nil {
		fmt.Fprintf(a.Out, "warning: %v\n", res.MarkReadErr)
	}
	a.printItem(res.Item)
	return nil
}

// Analyze starts analysis of the current item and returns without waiting
// for it. The result is printed when it arrives; a response for an item the
// user has since moved away from is dropped.
func (a *App) Analyze(ctx context.Context) error {
	snap := a.Session.Analysis.Snapshot()
	switch snap.State {
	case reader.StateIdle:
		return &reader.ValidationError{Field: "item", Message: "no item selected"}
	case reader.StateAnalyzing:
		return reader.ErrAnalysisInFlight
	case reader.StateAnalyzed:
		a.Show()
		return nil
	}

	id := snap.Item.ID
	a.Session.Analysis.AnalyzeAsync(ctx, func(_ *reader.AnalysisResult, err error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if err != nil {
			fmt.Fprintf(a.Out, "analysis of %d failed: %v\n", id, err)
			return
		}
		a.Show()
	})
	fmt.Fprintf(a.Out, "analyzing [%d], use show to check progress\n", id)
	return nil
}

// Acknowledge clears a failed analysis so the item can be retried.
func (a *App) Acknowledge() {
	if a.Session.Analysis.Acknowledge() {
		fmt.Fprintln(a.Out, "error cleared")
	}
}

// Show prints the current selection and its analysis state.
func (a *App) Show() {
	snap := a.Session.Analysis.Snapshot()
	if snap.Item == nil {
		fmt.Fprintln(a.Out, "no item selected")
		return
	}
	a.printItem(*snap.Item)
	fmt.Fprintf(a.Out, "state: %s\n", snap.State)
	switch {
	case snap.State == reader.StateFailed && snap.Err != nil:
		fmt.Fprintf(a.Out, "error: %v\n", snap.Err)
	case snap.Result != nil:
		fmt.Fprintf(a.Out, "\n%s\n\n%s\n\n%s\n",
			reader.NoteTitle(*snap.Item, *snap.Result), snap.Result.Summary, snap.Result.Insight)
	}
}

// Save captures the analyzed current item into a category.
func (a *App) Save(ctx context.Context, category string) error {
	note, err := a.Session.SaveCurrent(ctx, category)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "saved note %d %q\n", note.ID, note.Title)
	return nil
}

func (a *App) printItem(it reader.FeedItem) {
	fmt.Fprintf(a.Out, "[%d] %s\n%s | %s\n%s\n", it.ID, it.DisplayTitle(), sourceName(it), published(it.PublishedAt), it.Link)
}

func kindLabel(k reader.SourceKind) string {
	if k == reader.KindAudio {
		return "podcast"
	}
	return "blog"
}

func sourceName(it reader.FeedItem) string {
	if it.Source != nil {
		return it.Source.Name
	}
	return "source " + strconv.FormatInt(it.SourceID, 10)
}

func published(t time.Time) string {
	if t.IsZero() {
		return "----------"
	}
	return t.Local().Format("2006-01-02")
}
