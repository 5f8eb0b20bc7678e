package reader

import "time"

// SourceKind distinguishes article feeds from audio feeds.
type SourceKind string

const (
	KindArticle SourceKind = "article-feed"
	KindAudio   SourceKind = "audio-feed"
)

// Source is a subscribed content origin.
type Source struct {
	ID        int64
	Name      string
	URL       string
	Kind      SourceKind
	Category  string
	CreatedAt time.Time
}

// NewSource is the payload for registering a source.
type NewSource struct {
	Name     string
	URL      string
	Kind     SourceKind
	Category string
}

// FeedItem is one ingested entry from a Source.
type FeedItem struct {
	ID            int64
	SourceID      int64
	Source        *Source // back-reference, may be nil
	Title         string
	OriginalTitle string
	Content       string
	Link          string
	PublishedAt   time.Time
	IsRead        bool
	IsArchived    bool
	IsAnalyzed    bool
}

// DisplayTitle returns the item title, or a placeholder when it is empty.
func (f *FeedItem) DisplayTitle() string {
	if f.Title == "" {
		return "(untitled)"
	}
	return f.Title
}

// AnalysisResult is the session-scoped output of analyzing one FeedItem.
type AnalysisResult struct {
	FeedID          int64
	TranslatedTitle string
	Summary         string
	Insight         string
}

// Category is a flat vault category supplied by the backend.
type Category struct {
	ID          string
	Name        string
	Description string
}

// Tag is an opaque vault decoration.
type Tag struct {
	ID   int64
	Name string
}

// Note is a persisted vault document.
type Note struct {
	ID           int64
	Title        string
	Content      string
	Category     string
	FeedID       *int64
	OriginalLink string
	Tags         []Tag
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewNote is the payload submitted to the vault service.
type NewNote struct {
	Title        string
	Content      string
	Category     string
	FeedID       int64
	OriginalLink string
}

// ReadFilter selects items by read state.
type ReadFilter string

const (
	ReadUnread ReadFilter = "unread"
	ReadRead   ReadFilter = "read"
	ReadAll    ReadFilter = "all"
)

// ParseReadFilter maps user input to a ReadFilter. Empty input yields the
// default, ReadUnread.
func ParseReadFilter(s string) (ReadFilter, error) {
	switch ReadFilter(s) {
	case "":
		return ReadUnread, nil
	case ReadUnread, ReadRead, ReadAll:
		return ReadFilter(s), nil
	}
	return "", &ValidationError{Field: "filter", Message: "must be one of unread, read, all"}
}

// AllSources is the source filter value that disables source filtering.
const AllSources int64 = 0
