package apiclient

import (
	"github.com/linnemanlabs/brainsync/internal/feeds"
	"github.com/linnemanlabs/brainsync/internal/reader"
)

func toKind(t feeds.SourceType) reader.SourceKind {
	if t == feeds.SourcePodcast {
		return reader.KindAudio
	}
	return reader.KindArticle
}

func toSourceType(k reader.SourceKind) feeds.SourceType {
	if k == reader.KindAudio {
		return feeds.SourcePodcast
	}
	return feeds.SourceBlog
}

func toSource(s *feeds.Source) reader.Source {
	return reader.Source{
		ID:        s.ID,
		Name:      s.Name,
		URL:       s.URL,
		Kind:      toKind(s.Type),
		Category:  s.Category,
		CreatedAt: s.CreatedAt,
	}
}

func toFeedItem(f *feeds.Feed) reader.FeedItem {
	it := reader.FeedItem{
		ID:            f.ID,
		SourceID:      f.SourceID,
		Title:         f.Title,
		OriginalTitle: f.OriginalTitle,
		Content:       f.Content,
		Link:          f.Link,
		IsRead:        f.IsRead,
		IsArchived:    f.IsArchived,
		IsAnalyzed:    f.IsAnalyzed,
	}
	if f.PublishedAt != nil {
		it.PublishedAt = *f.PublishedAt
	}
	if f.Source != nil {
		s := toSource(f.Source)
		it.Source = &s
	}
	return it
}

func toNote(n *feeds.Note) reader.Note {
	out := reader.Note{
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		Category:     n.Category,
		FeedID:       n.FeedID,
		OriginalLink: n.OriginalLink,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
	for _, t := range n.Tags {
		out.Tags = append(out.Tags, reader.Tag{ID: t.ID, Name: t.Name})
	}
	return out
}
