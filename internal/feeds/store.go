package feeds

import "context"

// Store is the persistence interface for sources, feeds and notes.
//
// Lookups return (value, found, error). ListFeeds orders by published time
// descending (missing timestamps last), then ID descending, and fills in
// Feed.Source. InsertFeeds skips entries whose link is already stored and
// reports how many were inserted. CreateNote upserts tags by name and, when
// the note references a feed, archives that feed in the same transaction.
type Store interface {
	ListSources(ctx context.Context) ([]Source, error)
	GetSource(ctx context.Context, id int64) (*Source, bool, error)
	GetSourceByURL(ctx context.Context, url string) (*Source, bool, error)
	CreateSource(ctx context.Context, src *Source) error
	UpdateSource(ctx context.Context, src *Source) error
	DeleteSource(ctx context.Context, id int64) (bool, error)

	ListFeeds(ctx context.Context, q FeedQuery) ([]Feed, error)
	GetFeed(ctx context.Context, id int64) (*Feed, bool, error)
	InsertFeeds(ctx context.Context, feeds []*Feed) (int, error)
	MarkFeedRead(ctx context.Context, id int64) (bool, error)
	ArchiveFeed(ctx context.Context, id int64) (bool, error)
	SaveAnalysis(ctx context.Context, id int64, a *Analysis) error

	ListNotes(ctx context.Context, q NoteQuery) ([]Note, error)
	GetNote(ctx context.Context, id int64) (*Note, bool, error)
	CreateNote(ctx context.Context, note *Note, tagNames []string) error
	UpdateNote(ctx context.Context, id int64, u *NoteUpdate) (*Note, bool, error)
	DeleteNote(ctx context.Context, id int64) (bool, error)
	ListTags(ctx context.Context) ([]Tag, error)
}
