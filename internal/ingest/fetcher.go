package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/mmcdole/gofeed"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

// DefaultUserAgent is sent with every feed request.
const DefaultUserAgent = "brainsync/1.0 (+https://github.com/linnemanlabs/brainsync)"

const untitled = "No title"

// Config configures a Fetcher.
type Config struct {
	Client       *http.Client
	UserAgent    string
	HostInterval time.Duration
	Logger       log.Logger
}

// Fetcher downloads and parses feeds. It implements feeds.Fetcher.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *HostLimiter
	logger    log.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return &Fetcher{
		client:    cfg.Client,
		userAgent: cfg.UserAgent,
		limiter:   NewHostLimiter(cfg.HostInterval),
		logger:    cfg.Logger,
	}
}

// Fetch downloads src and converts its entries. Entries without a link are
// dropped since links identify entries across fetches.
func (f *Fetcher) Fetch(ctx context.Context, src *feeds.Source) ([]*feeds.Feed, error) {
	if err := f.limiter.Wait(ctx, src.URL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	p := gofeed.NewParser()
	p.Client = f.client
	p.UserAgent = f.userAgent

	parsed, err := p.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := make([]*feeds.Feed, 0, len(parsed.Items))
	skipped := 0
	for _, it := range parsed.Items {
		fd := convert(it)
		if fd == nil {
			skipped++
			continue
		}
		fd.SourceID = src.ID
		out = append(out, fd)
	}

	f.logger.Info(ctx, "feed fetched",
		"source_id", src.ID,
		"url", src.URL,
		"entries", len(out),
		"skipped", skipped,
	)
	return out, nil
}

func convert(it *gofeed.Item) *feeds.Feed {
	link := strings.TrimSpace(it.Link)
	if link == "" {
		return nil
	}
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = untitled
	}

	content := it.Content
	if strings.TrimSpace(content) == "" {
		content = it.Description
	}

	fd := &feeds.Feed{
		Title:         title,
		OriginalTitle: title,
		Link:          link,
		Content:       Sanitize(content),
	}
	switch {
	case it.PublishedParsed != nil:
		t := it.PublishedParsed.UTC()
		fd.PublishedAt = &t
	case it.UpdatedParsed != nil:
		t := it.UpdatedParsed.UTC()
		fd.PublishedAt = &t
	}
	return fd
}
