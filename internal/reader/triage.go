package reader

import (
	"context"
	"slices"

	"github.com/linnemanlabs/go-core/log"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds the number of concurrent mark-read calls
// issued by MarkAllRead.
const DefaultBatchConcurrency = 8

// SourceCount is the per-source badge pair.
type SourceCount struct {
	Unread int
	Total  int
}

// SelectResult is the outcome of selecting an item. The item is always
// usable; MarkReadErr only reports a failed best-effort mark-read.
type SelectResult struct {
	Item        FeedItem
	MarkedRead  bool
	MarkReadErr error
}

// BatchOutcome lists the per-item results of a bulk mark-read.
type BatchOutcome struct {
	Requested int
	Succeeded []int64
	Failed    []int64
}

// ConfirmFunc asks the user to approve a bulk operation over n items.
type ConfirmFunc func(n int) bool

// TriageEngine derives the working set and applies read-state transitions.
type TriageEngine struct {
	feeds       FeedService
	store       *FeedStore
	logger      log.Logger
	concurrency int
}

// NewTriageEngine creates a TriageEngine. concurrency <= 0 selects
// DefaultBatchConcurrency.
func NewTriageEngine(feeds FeedService, store *FeedStore, logger log.Logger, concurrency int) *TriageEngine {
	if logger == nil {
		logger = log.Nop()
	}
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &TriageEngine{
		feeds:       feeds,
		store:       store,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Filter returns the items matching both the source and read-state
// predicates, newest first. It does not modify items.
func Filter(items []FeedItem, sourceID int64, rf ReadFilter) []FeedItem {
	out := make([]FeedItem, 0, len(items))
	for _, it := range items {
		if matches(it, sourceID, rf) {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, newestFirst)
	return out
}

func matches(it FeedItem, sourceID int64, rf ReadFilter) bool {
	if sourceID != AllSources && it.SourceID != sourceID {
		return false
	}
	switch rf {
	case ReadAll:
		return true
	case ReadRead:
		return it.IsRead
	default:
		return !it.IsRead
	}
}

func newestFirst(a, b FeedItem) int {
	az, bz := a.PublishedAt.IsZero(), b.PublishedAt.IsZero()
	switch {
	case az && !bz:
		return 1
	case !az && bz:
		return -1
	}
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// Counts derives per-source badges with the same predicates Filter uses.
// The AllSources key holds the totals across every source.
func Counts(items []FeedItem) map[int64]SourceCount {
	out := make(map[int64]SourceCount)
	add := func(id int64, unread bool) {
		c := out[id]
		c.Total++
		if unread {
			c.Unread++
		}
		out[id] = c
	}
	for _, it := range items {
		add(AllSources, !it.IsRead)
		add(it.SourceID, !it.IsRead)
	}
	return out
}

// WorkingSet filters the current FeedStore snapshot.
func (e *TriageEngine) WorkingSet(sourceID int64, rf ReadFilter) []FeedItem {
	return Filter(e.store.Snapshot(), sourceID, rf)
}

// Counts derives badges from the current FeedStore snapshot.
func (e *TriageEngine) Counts() map[int64]SourceCount {
	return Counts(e.store.Snapshot())
}

// SelectItem marks an unread item read on the backend and, on success, in
// the store. Failure is logged and returned in the result; the selection
// itself always succeeds.
func (e *TriageEngine) SelectItem(ctx context.Context, item FeedItem) SelectResult {
	if cur, ok := e.store.Get(item.ID); ok {
		item = cur
	}
	if item.IsRead {
		return SelectResult{Item: item}
	}

	if err := e.feeds.MarkRead(ctx, item.ID); err != nil {
		err = asTransport("mark read", err)
		e.logger.Warn(ctx, "mark read failed", "feed_id", item.ID, "error", err)
		return SelectResult{Item: item, MarkReadErr: err}
	}

	e.store.MarkRead(item.ID)
	item.IsRead = true
	return SelectResult{Item: item, MarkedRead: true}
}

// MarkAllRead marks every unread item of workingSet read, after confirm
// approves the batch. Requests run concurrently and every outcome is
// recorded; failures are returned as a single *BatchError once the whole
// batch has settled.
func (e *TriageEngine) MarkAllRead(ctx context.Context, workingSet []FeedItem, confirm ConfirmFunc) (BatchOutcome, error) {
	var ids []int64
	for _, it := range workingSet {
		if cur, ok := e.store.Get(it.ID); ok {
			it = cur
		}
		if !it.IsRead {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return BatchOutcome{}, nil
	}
	if confirm == nil || !confirm(len(ids)) {
		return BatchOutcome{}, ErrNotConfirmed
	}

	results := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := e.feeds.MarkRead(ctx, id); err != nil {
				results[i] = asTransport("mark read", err)
				return nil
			}
			e.store.MarkRead(id)
			return nil
		})
	}
	_ = g.Wait()

	out := BatchOutcome{Requested: len(ids)}
	var errs []error
	for i, id := range ids {
		if results[i] != nil {
			out.Failed = append(out.Failed, id)
			errs = append(errs, results[i])
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}

	if len(out.Failed) == 0 {
		e.logger.Info(ctx, "marked all read", "count", len(out.Succeeded))
		return out, nil
	}

	berr := &BatchError{Op: "mark all read", Total: len(ids), Failed: out.Failed, Errs: errs}
	e.logger.Warn(ctx, "mark all read partially failed",
		"requested", len(ids),
		"failed", len(out.Failed),
		"error", berr,
	)
	return out, berr
}
