package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchConcurrency bounds parallel source fetches in FetchAll.
const DefaultFetchConcurrency = 4

// Fetcher retrieves the current entries of a source. Returned feeds carry
// no ID; SourceID is set by the service.
type Fetcher interface {
	Fetch(ctx context.Context, src *Source) ([]*Feed, error)
}

// Notifier is told about captured notes.
type Notifier interface {
	NoteCaptured(ctx context.Context, note *Note) error
}

// FeedAnalyzer analyzes one feed.
type FeedAnalyzer interface {
	Analyze(ctx context.Context, f *Feed) (*Analysis, error)
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	FetchConcurrency int
	SourceFile       string
}

// SyncResult is the outcome of SyncSourcesFromConfig.
type SyncResult struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Total   int    `json:"total"`
}

// Service is the business boundary for feed, source and note operations.
type Service struct {
	store    Store
	analyzer FeedAnalyzer
	fetcher  Fetcher
	notifier Notifier
	metrics  *Metrics
	logger   log.Logger
	cfg      ServiceConfig

	analyses singleflight.Group
}

// NewService creates a new feed service. analyzer, notifier and metrics may
// be nil.
func NewService(store Store, analyzer FeedAnalyzer, fetcher Fetcher, notifier Notifier, metrics *Metrics, logger log.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}
	return &Service{
		store:    store,
		analyzer: analyzer,
		fetcher:  fetcher,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// ListFeeds returns feeds matching q.
func (s *Service) ListFeeds(ctx context.Context, q FeedQuery) ([]Feed, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	return s.store.ListFeeds(ctx, q)
}

// GetFeed returns one feed or ErrNotFound.
func (s *Service) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	f, ok, err := s.store.GetFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// MarkRead sets is_read on a feed.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	return found(s.store.MarkFeedRead(ctx, id))
}

// Archive sets is_archived on a feed.
func (s *Service) Archive(ctx context.Context, id int64) error {
	return found(s.store.ArchiveFeed(ctx, id))
}

// AnalyzeFeed returns the stored analysis of a feed, running the analyzer
// first if the feed has none. Concurrent calls for the same feed share one
// analyzer run.
func (s *Service) AnalyzeFeed(ctx context.Context, id int64) (*Analysis, error) {
	f, err := s.GetFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.IsAnalyzed {
		s.metrics.analysis("cached")
		return &Analysis{TranslatedTitle: f.TranslatedTitle, Summary: f.Summary, Insight: f.Insight}, nil
	}
	if s.analyzer == nil {
		return nil, errors.New("analysis is not configured")
	}

	v, err, shared := s.analyses.Do(strconv.FormatInt(id, 10), func() (any, error) {
		// detached so one caller going away does not fail the others
		actx := context.WithoutCancel(ctx)
		a, err := s.analyzer.Analyze(actx, f)
		if err != nil {
			return nil, err
		}
		if err := s.store.SaveAnalysis(actx, id, a); err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
		return a, nil
	})
	if err != nil {
		s.metrics.analysis("error")
		return nil, err
	}
	if shared {
		s.logger.Info(ctx, "analysis shared with in-flight request", "feed_id", id)
	}
	s.metrics.analysis("analyzed")
	out := *v.(*Analysis)
	return &out, nil
}

// ListSources returns all sources ordered by ID.
func (s *Service) ListSources(ctx context.Context) ([]Source, error) {
	return s.store.ListSources(ctx)
}

// CreateSource validates and stores a new source.
func (s *Service) CreateSource(ctx context.Context, in SourceInput) (*Source, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return nil, invalid("name is required")
	}
	if err := validateFeedURL(in.URL); err != nil {
		return nil, err
	}
	switch in.Type {
	case "":
		in.Type = SourceBlog
	case SourceBlog, SourcePodcast:
	default:
		return nil, invalid(fmt.Sprintf("invalid source type %q, must be blog or podcast", in.Type))
	}

	if _, ok, err := s.store.GetSourceByURL(ctx, in.URL); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateSource
	}

	src := &Source{
		Name:      in.Name,
		URL:       in.URL,
		Type:      in.Type,
		Category:  in.Category,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "source created", "source_id", src.ID, "url", src.URL)
	return src, nil
}

// DeleteSource removes a source and its feeds.
func (s *Service) DeleteSource(ctx context.Context, id int64) error {
	return found(s.store.DeleteSource(ctx, id))
}

// FetchSource ingests new entries of one source.
func (s *Service) FetchSource(ctx context.Context, id int64) (string, error) {
	src, ok, err := s.store.GetSource(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}

	start := time.Now()
	n, err := s.fetchInto(ctx, src)
	s.metrics.fetchRun("source", err != nil, n, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Fetched %d new feeds", n), nil
}

// FetchAll ingests new entries of every source. A failing source does not
// stop the others; failures are counted in the returned message.
func (s *Service) FetchAll(ctx context.Context) (string, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return "", err
	}

	runID := ulid.Make().String()
	L := s.logger.With("run_id", runID)
	start := time.Now()

	var inserted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)
	for i := range sources {
		src := &sources[i]
		g.Go(func() error {
			n, err := s.fetchInto(gctx, src)
			if err != nil {
				failed.Add(1)
				L.Warn(gctx, "source fetch failed", "source_id", src.ID, "url", src.URL, "err", err)
				return nil
			}
			inserted.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Fetched %d new feeds from %d sources", inserted.Load(), len(sources))
	if f := failed.Load(); f > 0 {
		msg += fmt.Sprintf("; %d sources failed", f)
	}
	s.metrics.fetchRun("all", failed.Load() > 0, int(inserted.Load()), time.Since(start).Seconds())
	L.Info(ctx, "fetch run complete",
		"sources", len(sources),
		"inserted", inserted.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start).Seconds(),
	)
	return msg, nil
}

func (s *Service) fetchInto(ctx context.Context, src *Source) (int, error) {
	entries, err := s.fetcher.Fetch(ctx, src)
	s.metrics.sourceFetch(err)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	for _, e := range entries {
		e.SourceID = src.ID
	}
	return s.store.InsertFeeds(ctx, entries)
}

// SyncSourcesFromConfig upserts the sources listed in the configured source
// file, keyed by URL. Entries without a name or URL are skipped.
func (s *Service) SyncSourcesFromConfig(ctx context.Context) (*SyncResult, error) {
	if s.cfg.SourceFile == "" {
		return nil, fmt.Errorf("no source file configured: %w", ErrNotFound)
	}
	sf, err := LoadSourceFile(s.cfg.SourceFile)
	if err != nil {
		return nil, err
	}
	return s.SyncSources(ctx, sf)
}

// SyncSources upserts the entries of sf.
func (s *Service) SyncSources(ctx context.Context, sf *SourceFile) (*SyncResult, error) {
	res := &SyncResult{Total: len(sf.Feeds)}
	for _, e := range sf.Feeds {
		name := strings.TrimSpace(e.Name)
		u := strings.TrimSpace(e.URL)
		if name == "" || u == "" {
			continue
		}
		typ := TypeForCategory(e.Category)

		existing, ok, err := s.store.GetSourceByURL(ctx, u)
		if err != nil {
			return nil, err
		}
		if ok {
			if existing.Name == name && existing.Type == typ && existing.Category == e.Category {
				continue
			}
			existing.Name, existing.Type, existing.Category = name, typ, e.Category
			if err := s.store.UpdateSource(ctx, existing); err != nil {
				return nil, err
			}
			res.Updated++
			continue
		}

		src := &Source{Name: name, URL: u, Type: typ, Category: e.Category, CreatedAt: time.Now().UTC()}
		if err := s.store.CreateSource(ctx, src); err != nil {
			return nil, err
		}
		res.Created++
	}
	res.Message = fmt.Sprintf("Synced %d sources from config (created=%d, updated=%d)", res.Total, res.Created, res.Updated)
	s.logger.Info(ctx, "sources synced", "total", res.Total, "created", res.Created, "updated", res.Updated)
	return res, nil
}

// Categories returns the fixed vault categories.
func (s *Service) Categories() []Category {
	return Categories()
}

// ListNotes returns notes matching q, most recently updated first.
func (s *Service) ListNotes(ctx context.Context, q NoteQuery) ([]Note, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	return s.store.ListNotes(ctx, q)
}

// GetNote returns one note or ErrNotFound.
func (s *Service) GetNote(ctx context.Context, id int64) (*Note, error) {
	n, ok, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// CreateNote validates and stores a note. A note that references a feed
// archives that feed.
func (s *Service) CreateNote(ctx context.Context, in NoteInput) (*Note, error) {
	if err := checkCategory(in.Category); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("content is required")
	}

	now := time.Now().UTC()
	note := &Note{
		Title:        in.Title,
		Content:      in.Content,
		Category:     in.Category,
		FeedID:       in.FeedID,
		OriginalLink: in.OriginalLink,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateNote(ctx, note, cleanTags(in.TagNames)); err != nil {
		return nil, err
	}
	s.metrics.noteCreated(note.Category)
	s.logger.Info(ctx, "note created", "note_id", note.ID, "category", note.Category)

	if s.notifier != nil {
		n := *note
		go func() {
			nctx := context.WithoutCancel(ctx)
			if err := s.notifier.NoteCaptured(nctx, &n); err != nil {
				s.logger.Warn(nctx, "note notification failed", "note_id", n.ID, "err", err)
			}
		}()
	}
	return note, nil
}

// UpdateNote applies a partial update.
func (s *Service) UpdateNote(ctx context.Context, id int64, u *NoteUpdate) (*Note, error) {
	if u.Category != nil {
		if err := checkCategory(*u.Category); err != nil {
			return nil, err
		}
	}
	if u.TagNames != nil {
		tags := cleanTags(*u.TagNames)
		u.TagNames = &tags
	}
	n, ok, err := s.store.UpdateNote(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	return found(s.store.DeleteNote(ctx, id))
}

// ListTags returns every tag.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	return s.store.ListTags(ctx)
}

func found(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func checkCategory(c string) error {
	if !ValidCategory(c) {
		return invalid("Invalid category. Must be one of: " + categoryIDs())
	}
	return nil
}

func validateFeedURL(raw string) error {
	if raw == "" {
		return invalid("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(fmt.Sprintf("invalid feed url %q", raw))
	}
	return nil
}

// cleanTags trims names and drops blanks and duplicates, keeping order.
func cleanTags(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
