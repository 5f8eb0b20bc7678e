package reader

import (
	"context"
	"errors"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// SyncOutcome is the single aggregate result of a refresh. Message is meant
// for display; Err is non-nil when the fetch or the reload failed.
type SyncOutcome struct {
	Message string
	Err     error
}

// SyncOrchestrator pulls new items from the backend and reloads the local
// caches.
type SyncOrchestrator struct {
	sources  SourceService
	feeds    FeedService
	registry *SourceRegistry
	store    *FeedStore
	logger   log.Logger
}

// NewSyncOrchestrator creates a SyncOrchestrator.
func NewSyncOrchestrator(sources SourceService, feeds FeedService, registry *SourceRegistry, store *FeedStore, logger log.Logger) *SyncOrchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &SyncOrchestrator{
		sources:  sources,
		feeds:    feeds,
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Reload replaces the FeedStore snapshot with the backend's unarchived items.
func (s *SyncOrchestrator) Reload(ctx context.Context) error {
	items, err := s.feeds.ListFeeds(ctx, true)
	if err != nil {
		return asTransport("list feeds", err)
	}
	s.store.Replace(items)
	return nil
}

// LoadSources replaces the SourceRegistry snapshot.
func (s *SyncOrchestrator) LoadSources(ctx context.Context) error {
	sources, err := s.sources.ListSources(ctx)
	if err != nil {
		return asTransport("list sources", err)
	}
	s.registry.Replace(sources)
	return nil
}

// RefreshAll asks the backend to fetch every source, then reloads the feed
// snapshot whatever the fetch outcome was.
func (s *SyncOrchestrator) RefreshAll(ctx context.Context) SyncOutcome {
	msg, err := s.sources.FetchAll(ctx)
	return s.settle(ctx, "fetch all", msg, err)
}

// RefreshOne is RefreshAll scoped to a single source.
func (s *SyncOrchestrator) RefreshOne(ctx context.Context, src Source) SyncOutcome {
	msg, err := s.sources.FetchSource(ctx, src.ID)
	return s.settle(ctx, "fetch "+src.Name, msg, err)
}

func (s *SyncOrchestrator) settle(ctx context.Context, op, msg string, fetchErr error) SyncOutcome {
	out := SyncOutcome{Message: msg}
	if fetchErr != nil {
		fetchErr = asTransport(op, fetchErr)
		out.Err = fetchErr
		out.Message = fetchErr.Error()
	}

	if err := s.Reload(ctx); err != nil {
		out.Err = errors.Join(out.Err, err)
		if out.Message != "" {
			out.Message += "; "
		}
		out.Message += "reload failed: " + err.Error()
	}

	if out.Err != nil {
		s.logger.Warn(ctx, "refresh finished with errors", "op", op, "error", out.Err)
	} else {
		s.logger.Info(ctx, "refresh finished", "op", op, "message", out.Message, "items", s.store.Len())
	}
	return out
}

// AddSource registers a source after checking that name and url are set,
// then reloads the registry in canonical order.
func (s *SyncOrchestrator) AddSource(ctx context.Context, name, url string, kind SourceKind) (*Source, error) {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "source name is required"}
	}
	if url == "" {
		return nil, &ValidationError{Field: "url", Message: "source url is required"}
	}
	if kind == "" {
		kind = KindArticle
	}

	created, err := s.sources.CreateSource(ctx, NewSource{Name: name, URL: url, Kind: kind})
	if err != nil {
		return nil, asTransport("create source", err)
	}
	s.logger.Info(ctx, "source added", "source_id", created.ID, "name", created.Name)

	if err := s.LoadSources(ctx); err != nil {
		return created, err
	}
	return created, nil
}
