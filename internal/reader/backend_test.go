package reader

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// fakeBackend implements Backend for testing.
type fakeBackend struct {
	mu sync.Mutex

	feeds      []FeedItem
	sources    []Source
	categories []Category
	nextID     int64

	listFeedsErr   error
	listFeedsCalls int

	markReadErr   map[int64]error
	markReadCalls []int64
	markReadFn    func(ctx context.Context, id int64) error

	analyzeFn    func(ctx context.Context, id int64) (*AnalysisResult, error)
	analyzeCalls []int64

	fetchAllMsg   string
	fetchAllErr   error
	fetchAllAdds  []FeedItem
	fetchOneCalls []int64

	createSourceErr   error
	createSourceCalls int

	listCategoriesCalls int
	createNoteErr       error
	notes               []NewNote
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		markReadErr: make(map[int64]error),
		nextID:      100,
		categories: []Category{
			{ID: "ai-tech", Name: "AI tech"},
			{ID: "investing", Name: "Investing"},
		},
	}
}

func (f *fakeBackend) ListFeeds(_ context.Context, unarchivedOnly bool) ([]FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFeedsCalls++
	if f.listFeedsErr != nil {
		return nil, f.listFeedsErr
	}
	var out []FeedItem
	for _, it := range f.feeds {
		if unarchivedOnly && it.IsArchived {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.markReadCalls = append(f.markReadCalls, id)
	fn := f.markReadFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, id); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markReadErr[id]; err != nil {
		return err
	}
	for i := range f.feeds {
		if f.feeds[i].ID == id {
			f.feeds[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeBackend) Analyze(ctx context.Context, id int64) (*AnalysisResult, error) {
	f.mu.Lock()
	f.analyzeCalls = append(f.analyzeCalls, id)
	fn := f.analyzeFn
	f.mu.Unlock()
	if fn == nil {
		return &AnalysisResult{TranslatedTitle: "translated", Summary: "summary", Insight: "insight"}, nil
	}
	return fn(ctx, id)
}

func (f *fakeBackend) ListSources(_ context.Context) ([]Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sources), nil
}

func (f *fakeBackend) CreateSource(_ context.Context, src NewSource) (*Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createSourceCalls++
	if f.createSourceErr != nil {
		return nil, f.createSourceErr
	}
	f.nextID++
	s := Source{ID: f.nextID, Name: src.Name, URL: src.URL, Kind: src.Kind, CreatedAt: time.Now()}
	f.sources = append(f.sources, s)
	return &s, nil
}

func (f *fakeBackend) FetchAll(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds = append(f.feeds, f.fetchAllAdds...)
	return f.fetchAllMsg, f.fetchAllErr
}

func (f *fakeBackend) FetchSource(_ context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchOneCalls = append(f.fetchOneCalls, id)
	return "Fetched 0 new feeds", nil
}

func (f *fakeBackend) ListCategories(_ context.Context) ([]Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCategoriesCalls++
	return slices.Clone(f.categories), nil
}

func (f *fakeBackend) CreateNote(_ context.Context, n NewNote) (*Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	if f.createNoteErr != nil {
		return nil, f.createNoteErr
	}
	f.nextID++
	feedID := n.FeedID
	for i := range f.feeds {
		if f.feeds[i].ID == n.FeedID {
			f.feeds[i].IsArchived = true
		}
	}
	return &Note{ID: f.nextID, Title: n.Title, Content: n.Content, Category: n.Category, FeedID: &feedID, OriginalLink: n.OriginalLink}, nil
}

func (f *fakeBackend) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listFeedsCalls + len(f.markReadCalls) + len(f.analyzeCalls) + f.createSourceCalls +
		len(f.notes) + len(f.fetchOneCalls) + f.listCategoriesCalls
}

func ts(day int) time.Time {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
}

// sampleItems returns three unread items from source 1 and two from source 2
// (one of them read).
func sampleItems() []FeedItem {
	return []FeedItem{
		{ID: 1, SourceID: 1, Title: "one", Link: "https://a.example/1", PublishedAt: ts(1)},
		{ID: 2, SourceID: 1, Title: "two", Link: "https://a.example/2", PublishedAt: ts(3)},
		{ID: 3, SourceID: 1, Title: "three", Link: "https://a.example/3", PublishedAt: ts(2)},
		{ID: 4, SourceID: 2, Title: "four", Link: "https://b.example/4", PublishedAt: ts(5), IsRead: true},
		{ID: 5, SourceID: 2, Title: "five", Link: "https://b.example/5"},
	}
}
