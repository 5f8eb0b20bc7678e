package feeds

import "time"

// SourceType is the wire kind of a source.
type SourceType string

const (
	SourceBlog    SourceType = "blog"
	SourcePodcast SourceType = "podcast"
)

// Source is a subscribed RSS or Atom feed.
type Source struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Type      SourceType `json:"type"`
	Category  string     `json:"category"`
	CreatedAt time.Time  `json:"created_at"`
}

// SourceInput is the payload for creating a source.
type SourceInput struct {
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	Type     SourceType `json:"type"`
	Category string     `json:"category"`
}

// Feed is one ingested entry. Source is populated on reads.
type Feed struct {
	ID              int64      `json:"id"`
	SourceID        int64      `json:"source_id"`
	Title           string     `json:"title"`
	OriginalTitle   string     `json:"original_title"`
	Link            string     `json:"link"`
	PublishedAt     *time.Time `json:"published_at"`
	Content         string     `json:"content"`
	IsAnalyzed      bool       `json:"is_analyzed"`
	TranslatedTitle string     `json:"translated_title"`
	Summary         string     `json:"summary"`
	Insight         string     `json:"insight"`
	IsRead          bool       `json:"is_read"`
	IsArchived      bool       `json:"is_archived"`
	CreatedAt       time.Time  `json:"created_at"`
	Source          *Source    `json:"source,omitempty"`
}

// Analysis is the parsed LLM output for a feed.
type Analysis struct {
	TranslatedTitle string `json:"translated_title"`
	Summary         string `json:"summary"`
	Insight         string `json:"insight"`
}

// Tag labels notes. Names are unique.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a vault document.
type Note struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	FeedID       *int64    `json:"feed_id"`
	OriginalLink string    `json:"original_link"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Tags         []Tag     `json:"tags"`
}

// NoteInput is the payload for creating a note. Tags are created by name.
type NoteInput struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Category     string   `json:"category"`
	FeedID       *int64   `json:"feed_id"`
	OriginalLink string   `json:"original_link"`
	TagNames     []string `json:"tag_names"`
}

// NoteUpdate is a partial note update; nil fields are left unchanged.
type NoteUpdate struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	TagNames *[]string `json:"tag_names"`
}

// Category is a fixed vault category.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FeedQuery filters ListFeeds. Zero SourceID means every source.
type FeedQuery struct {
	SourceID       int64
	UnreadOnly     bool
	UnarchivedOnly bool
	Skip           int
	Limit          int
}

// NoteQuery filters ListNotes. Search matches title or content,
// case-insensitively.
type NoteQuery struct {
	Category string
	Search   string
	Skip     int
	Limit    int
}

// DefaultLimit caps list endpoints when no limit is given.
const DefaultLimit = 100
