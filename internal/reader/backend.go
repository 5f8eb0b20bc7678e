package reader

import "context"

// FeedService is the remote feed collaborator.
type FeedService interface {
	ListFeeds(ctx context.Context, unarchivedOnly bool) ([]FeedItem, error)
	MarkRead(ctx context.Context, id int64) error
	Analyze(ctx context.Context, id int64) (*AnalysisResult, error)
}

// SourceService is the remote source registry and fetch collaborator.
// FetchAll and FetchSource return the backend's status message.
type SourceService interface {
	ListSources(ctx context.Context) ([]Source, error)
	CreateSource(ctx context.Context, src NewSource) (*Source, error)
	FetchAll(ctx context.Context) (string, error)
	FetchSource(ctx context.Context, id int64) (string, error)
}

// VaultService is the remote note vault collaborator.
type VaultService interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateNote(ctx context.Context, note NewNote) (*Note, error)
}

// Backend bundles every collaborator the engine talks to.
type Backend interface {
	FeedService
	SourceService
	VaultService
}
