package reader

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/linnemanlabs/go-core/log"
)

// SessionConfig tunes a Session.
type SessionConfig struct {
	Headings         NoteHeadings
	BatchConcurrency int
}

// Session wires the engine components around one Backend and keeps the
// user's current source and read-state filters.
type Session struct {
	Registry *SourceRegistry
	Store    *FeedStore
	Triage   *TriageEngine
	Analysis *AnalysisWorkflow
	Capture  *VaultCapture
	Sync     *SyncOrchestrator

	vault VaultService

	mu         sync.Mutex
	sourceID   int64
	filter     ReadFilter
	categories []Category
}

// NewSession builds every component on top of b.
func NewSession(b Backend, cfg SessionConfig, logger log.Logger) *Session {
	if logger == nil {
		logger = log.Nop()
	}
	registry := NewSourceRegistry()
	store := NewFeedStore()
	workflow := NewAnalysisWorkflow(b, logger.With("component", "analysis"))
	syncer := NewSyncOrchestrator(b, b, registry, store, logger.With("component", "sync"))

	return &Session{
		Registry: registry,
		Store:    store,
		Triage:   NewTriageEngine(b, store, logger.With("component", "triage"), cfg.BatchConcurrency),
		Analysis: workflow,
		Capture:  NewVaultCapture(b, workflow, syncer, cfg.Headings, logger.With("component", "capture")),
		Sync:     syncer,
		vault:    b,
		filter:   ReadUnread,
	}
}

// Start loads sources and feeds. Both are attempted even if one fails.
func (s *Session) Start(ctx context.Context) error {
	srcErr := s.Sync.LoadSources(ctx)
	feedErr := s.Sync.Reload(ctx)
	if srcErr != nil {
		return srcErr
	}
	return feedErr
}

// SetSource restricts the view to one source, or AllSources.
func (s *Session) SetSource(id int64) {
	s.mu.Lock()
	s.sourceID = id
	s.mu.Unlock()
}

// SetFilter sets the read-state filter.
func (s *Session) SetFilter(rf ReadFilter) {
	s.mu.Lock()
	s.filter = rf
	s.mu.Unlock()
}

// Filters returns the current source and read-state filters.
func (s *Session) Filters() (int64, ReadFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceID, s.filter
}

// View returns the current working set.
func (s *Session) View() []FeedItem {
	src, rf := s.Filters()
	return s.Triage.WorkingSet(src, rf)
}

// Open selects an item: it becomes the analysis workflow's current item
// right away and is then marked read best-effort. A mark-read response that
// arrives after another item was opened only updates its own item.
func (s *Session) Open(ctx context.Context, id int64) (SelectResult, error) {
	item, ok := s.Store.Get(id)
	if !ok {
		return SelectResult{}, &ValidationError{Field: "item", Message: "no such item in the current snapshot"}
	}
	s.Analysis.Select(item)
	return s.Triage.SelectItem(ctx, item), nil
}

// MarkAllRead marks the current working set read after confirmation.
func (s *Session) MarkAllRead(ctx context.Context, confirm ConfirmFunc) (BatchOutcome, error) {
	return s.Triage.MarkAllRead(ctx, s.View(), confirm)
}

// Categories returns the vault categories, loading them on first use.
func (s *Session) Categories(ctx context.Context) ([]Category, error) {
	s.mu.Lock()
	cached := s.categories
	s.mu.Unlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	cats, err := s.vault.ListCategories(ctx)
	if err != nil {
		return nil, asTransport("list categories", err)
	}
	s.mu.Lock()
	s.categories = slices.Clone(cats)
	s.mu.Unlock()
	return cats, nil
}

// SaveCurrent saves the analyzed current item into the category referenced
// by ID or display name.
func (s *Session) SaveCurrent(ctx context.Context, categoryRef string) (*Note, error) {
	snap := s.Analysis.Snapshot()
	if snap.State != StateAnalyzed || snap.Item == nil {
		return nil, &ValidationError{Field: "analysis", Message: "current item has not been analyzed"}
	}

	categoryRef = strings.TrimSpace(categoryRef)
	if categoryRef == "" {
		return nil, &ValidationError{Field: "category", Message: "a category is required"}
	}
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	var category Category
	for _, c := range cats {
		if c.ID == categoryRef || strings.EqualFold(c.Name, categoryRef) {
			category = c
			break
		}
	}
	if category.ID == "" {
		return nil, &ValidationError{Field: "category", Message: "unknown category " + categoryRef}
	}

	return s.Capture.Save(ctx, *snap.Item, snap.Result, category)
}
