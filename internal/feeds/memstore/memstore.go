// Package memstore provides an in-memory implementation of feeds.Store.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

// Store holds sources, feeds and notes in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	sources map[int64]*feeds.Source
	feeds   map[int64]*feeds.Feed
	links   map[string]int64 // feed link -> feed ID (dedup)
	notes   map[int64]*feeds.Note
	tags    map[string]*feeds.Tag // tag name -> tag
	seq     [4]int64 // ID sequences, one per table
	now     func() time.Time
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		sources: make(map[int64]*feeds.Source),
		feeds:   make(map[int64]*feeds.Feed),
		links:   make(map[string]int64),
		notes:   make(map[int64]*feeds.Note),
		tags:    make(map[string]*feeds.Tag),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const (
	seqSources = iota
	seqFeeds
	seqNotes
	seqTags
)

// next must be called with mu held.
func (s *Store) next(table int) int64 {
	s.seq[table]++
	return s.seq[table]
}

// ListSources returns copies of all sources ordered by ID.
func (s *Store) ListSources(_ context.Context) ([]feeds.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feeds.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, *src)
	}
	slices.SortFunc(out, func(a, b feeds.Source) int { return cmpID(a.ID, b.ID) })
	return out, nil
}

// GetSource returns a copy of a source.
func (s *Store) GetSource(_ context.Context, id int64) (*feeds.Source, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, false, nil
	}
	cp := *src
	return &cp, true, nil
}

// GetSourceByURL returns a copy of the source registered under url.
func (s *Store) GetSourceByURL(_ context.Context, url string) (*feeds.Source, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if src.URL == url {
			cp := *src
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// CreateSource stores a copy of src and assigns its ID.
func (s *Store) CreateSource(_ context.Context, src *feeds.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sources {
		if existing.URL == src.URL {
			return feeds.ErrDuplicateSource
		}
	}
	src.ID = s.next(seqSources)
	if src.CreatedAt.IsZero() {
		src.CreatedAt = s.now()
	}
	cp := *src
	s.sources[src.ID] = &cp
	return nil
}

// UpdateSource overwrites name, type and category of an existing source.
func (s *Store) UpdateSource(_ context.Context, src *feeds.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sources[src.ID]
	if !ok {
		return feeds.ErrNotFound
	}
	cur.Name, cur.Type, cur.Category = src.Name, src.Type, src.Category
	return nil
}

// DeleteSource removes a source and its feeds.
func (s *Store) DeleteSource(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return false, nil
	}
	delete(s.sources, id)
	for fid, f := range s.feeds {
		if f.SourceID == id {
			delete(s.links, f.Link)
			delete(s.feeds, fid)
		}
	}
	return true, nil
}

// ListFeeds returns copies of matching feeds, newest first.
func (s *Store) ListFeeds(_ context.Context, q feeds.FeedQuery) ([]feeds.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feeds.Feed, 0, len(s.feeds))
	for _, f := range s.feeds {
		if q.SourceID != 0 && f.SourceID != q.SourceID {
			continue
		}
		if q.UnreadOnly && f.IsRead {
			continue
		}
		if q.UnarchivedOnly && f.IsArchived {
			continue
		}
		out = append(out, s.withSource(f))
	}
	slices.SortFunc(out, func(a, b feeds.Feed) int {
		switch {
		case a.PublishedAt == nil && b.PublishedAt != nil:
			return 1
		case a.PublishedAt != nil && b.PublishedAt == nil:
			return -1
		case a.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
			return b.PublishedAt.Compare(*a.PublishedAt)
		}
		return cmpID(b.ID, a.ID)
	})
	return page(out, q.Skip, q.Limit), nil
}

// GetFeed returns a copy of a feed.
func (s *Store) GetFeed(_ context.Context, id int64) (*feeds.Feed, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.feeds[id]
	if !ok {
		return nil, false, nil
	}
	cp := s.withSource(f)
	return &cp, true, nil
}

// InsertFeeds stores copies of entries whose link is not yet known.
func (s *Store) InsertFeeds(_ context.Context, in []*feeds.Feed) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range in {
		if _, dup := s.links[f.Link]; dup {
			continue
		}
		f.ID = s.next(seqFeeds)
		if f.CreatedAt.IsZero() {
			f.CreatedAt = s.now()
		}
		cp := *f
		cp.Source = nil
		s.feeds[f.ID] = &cp
		s.links[f.Link] = f.ID
		n++
	}
	return n, nil
}

// MarkFeedRead sets is_read.
func (s *Store) MarkFeedRead(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if ok {
		f.IsRead = true
	}
	return ok, nil
}

// ArchiveFeed sets is_archived.
func (s *Store) ArchiveFeed(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if ok {
		f.IsArchived = true
	}
	return ok, nil
}

// SaveAnalysis stores the analysis on a feed and marks it analyzed.
func (s *Store) SaveAnalysis(_ context.Context, id int64, a *feeds.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if !ok {
		return feeds.ErrNotFound
	}
	f.TranslatedTitle, f.Summary, f.Insight = a.TranslatedTitle, a.Summary, a.Insight
	f.IsAnalyzed = true
	return nil
}

// ListNotes returns copies of matching notes, most recently updated first.
func (s *Store) ListNotes(_ context.Context, q feeds.NoteQuery) ([]feeds.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(q.Search)
	out := make([]feeds.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if q.Category != "" && n.Category != q.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(n.Title), search) &&
			!strings.Contains(strings.ToLower(n.Content), search) {
			continue
		}
		out = append(out, copyNote(n))
	}
	slices.SortFunc(out, func(a, b feeds.Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmpID(b.ID, a.ID)
	})
	return page(out, q.Skip, q.Limit), nil
}

// GetNote returns a copy of a note.
func (s *Store) GetNote(_ context.Context, id int64) (*feeds.Note, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, false, nil
	}
	cp := copyNote(n)
	return &cp, true, nil
}

// CreateNote stores a note with its tags and archives the referenced feed.
func (s *Store) CreateNote(_ context.Context, note *feeds.Note, tagNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	note.ID = s.next(seqNotes)
	if note.CreatedAt.IsZero() {
		note.CreatedAt = s.now()
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}
	note.Tags = s.upsertTags(tagNames)
	cp := copyNote(note)
	s.notes[note.ID] = &cp
	if note.FeedID != nil {
		if f, ok := s.feeds[*note.FeedID]; ok {
			f.IsArchived = true
		}
	}
	return nil
}

// UpdateNote applies the non-nil fields of u.
func (s *Store) UpdateNote(_ context.Context, id int64, u *feeds.NoteUpdate) (*feeds.Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, false, nil
	}
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	if u.Category != nil {
		n.Category = *u.Category
	}
	if u.TagNames != nil {
		n.Tags = s.upsertTags(*u.TagNames)
	}
	n.UpdatedAt = s.now()
	cp := copyNote(n)
	return &cp, true, nil
}

// DeleteNote removes a note. Tags are kept.
func (s *Store) DeleteNote(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return false, nil
	}
	delete(s.notes, id)
	return true, nil
}

// ListTags returns every tag ordered by ID.
func (s *Store) ListTags(_ context.Context) ([]feeds.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feeds.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b feeds.Tag) int { return cmpID(a.ID, b.ID) })
	return out, nil
}

// upsertTags must be called with mu held.
func (s *Store) upsertTags(names []string) []feeds.Tag {
	out := make([]feeds.Tag, 0, len(names))
	for _, name := range names {
		t, ok := s.tags[name]
		if !ok {
			t = &feeds.Tag{ID: s.next(seqTags), Name: name, CreatedAt: s.now()}
			s.tags[name] = t
		}
		out = append(out, *t)
	}
	return out
}

// withSource must be called with mu held.
func (s *Store) withSource(f *feeds.Feed) feeds.Feed {
	cp := *f
	if src, ok := s.sources[f.SourceID]; ok {
		sc := *src
		cp.Source = &sc
	}
	return cp
}

func copyNote(n *feeds.Note) feeds.Note {
	cp := *n
	cp.Tags = slices.Clone(n.Tags)
	if n.FeedID != nil {
		id := *n.FeedID
		cp.FeedID = &id
	}
	return cp
}

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return items[:0]
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cmpID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
