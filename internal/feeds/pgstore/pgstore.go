// Package pgstore provides a PostgreSQL implementation of feeds.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

var tracer = otel.Tracer("github.com/linnemanlabs/brainsync/internal/feeds/pgstore")

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Store persists sources, feeds and notes in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The pool is
// owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pgstore."+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

// fail marks span as failed and returns err.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const sourceColumns = `id, name, url, type, category, created_at`

func scanSource(row pgx.Row) (*feeds.Source, error) {
	var s feeds.Source
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Type, &s.Category, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSources returns all sources ordered by ID.
func (s *Store) ListSources(ctx context.Context) ([]feeds.Source, error) {
	ctx, span := startSpan(ctx, "ListSources", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+sourceColumns+` FROM rss_sources ORDER BY id`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query sources: %w", err))
	}
	defer rows.Close()

	var out []feeds.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fail(span, fmt.Errorf("scan source: %w", err))
		}
		out = append(out, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id int64) (*feeds.Source, bool, error) {
	ctx, span := startSpan(ctx, "GetSource", "SELECT")
	defer span.End()

	src, err := scanSource(s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM rss_sources WHERE id = $1`, id))
	return lookup(span, src, err)
}

// GetSourceByURL retrieves a source by its feed URL.
func (s *Store) GetSourceByURL(ctx context.Context, url string) (*feeds.Source, bool, error) {
	ctx, span := startSpan(ctx, "GetSourceByURL", "SELECT")
	defer span.End()

	src, err := scanSource(s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM rss_sources WHERE url = $1`, url))
	return lookup(span, src, err)
}

func lookup[T any](span trace.Span, v *T, err error) (*T, bool, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, err)
	}
	return v, true, nil
}

// CreateSource inserts src and fills in its ID and creation time.
func (s *Store) CreateSource(ctx context.Context, src *feeds.Source) error {
	ctx, span := startSpan(ctx, "CreateSource", "INSERT")
	defer span.End()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO rss_sources (name, url, type, category) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		src.Name, src.URL, src.Type, src.Category,
	).Scan(&src.ID, &src.CreatedAt)
	if isUnique(err) {
		return feeds.ErrDuplicateSource
	}
	if err != nil {
		return fail(span, fmt.Errorf("insert source: %w", err))
	}
	return nil
}

// UpdateSource overwrites name, type and category.
func (s *Store) UpdateSource(ctx context.Context, src *feeds.Source) error {
	ctx, span := startSpan(ctx, "UpdateSource", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE rss_sources SET name = $2, type = $3, category = $4 WHERE id = $1`,
		src.ID, src.Name, src.Type, src.Category)
	if err != nil {
		return fail(span, fmt.Errorf("update source: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return feeds.ErrNotFound
	}
	return nil
}

// DeleteSource removes a source; its feeds go with it.
func (s *Store) DeleteSource(ctx context.Context, id int64) (bool, error) {
	return s.execOne(ctx, "DeleteSource", "DELETE", `DELETE FROM rss_sources WHERE id = $1`, id)
}

const feedColumns = `f.id, f.source_id, f.title, f.original_title, f.link, f.published_at, f.content,
	f.is_analyzed, f.translated_title, f.summary, f.insight, f.is_read, f.is_archived, f.created_at,
	s.id, s.name, s.url, s.type, s.category, s.created_at`

const feedFrom = ` FROM feeds f JOIN rss_sources s ON s.id = f.source_id`

func scanFeed(row pgx.Row) (*feeds.Feed, error) {
	var f feeds.Feed
	var src feeds.Source
	err := row.Scan(
		&f.ID, &f.SourceID, &f.Title, &f.OriginalTitle, &f.Link, &f.PublishedAt, &f.Content,
		&f.IsAnalyzed, &f.TranslatedTitle, &f.Summary, &f.Insight, &f.IsRead, &f.IsArchived, &f.CreatedAt,
		&src.ID, &src.Name, &src.URL, &src.Type, &src.Category, &src.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Source = &src
	return &f, nil
}

// ListFeeds returns matching feeds, newest first.
func (s *Store) ListFeeds(ctx context.Context, q feeds.FeedQuery) ([]feeds.Feed, error) {
	ctx, span := startSpan(ctx, "ListFeeds", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+feedColumns+feedFrom+`
		WHERE ($1::bigint = 0 OR f.source_id = $1)
		  AND (NOT $2::boolean OR NOT f.is_read)
		  AND (NOT $3::boolean OR NOT f.is_archived)
		ORDER BY f.published_at DESC NULLS LAST, f.id DESC
		OFFSET $4 LIMIT NULLIF($5::int, 0)`,
		q.SourceID, q.UnreadOnly, q.UnarchivedOnly, max(q.Skip, 0), q.Limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query feeds: %w", err))
	}
	defer rows.Close()

	var out []feeds.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fail(span, fmt.Errorf("scan feed: %w", err))
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

// GetFeed retrieves a feed with its source.
func (s *Store) GetFeed(ctx context.Context, id int64) (*feeds.Feed, bool, error) {
	ctx, span := startSpan(ctx, "GetFeed", "SELECT")
	defer span.End()

	f, err := scanFeed(s.pool.QueryRow(ctx, `SELECT `+feedColumns+feedFrom+` WHERE f.id = $1`, id))
	return lookup(span, f, err)
}

// InsertFeeds stores entries whose link is not yet known, in one
// transaction, and fills in their IDs.
func (s *Store) InsertFeeds(ctx context.Context, in []*feeds.Feed) (int, error) {
	ctx, span := startSpan(ctx, "InsertFeeds", "INSERT")
	defer span.End()

	if len(in) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	n := 0
	for _, f := range in {
		err := tx.QueryRow(ctx,
			`INSERT INTO feeds (source_id, title, original_title, link, published_at, content)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (link) DO NOTHING
			 RETURNING id, created_at`,
			f.SourceID, f.Title, f.OriginalTitle, f.Link, f.PublishedAt, f.Content,
		).Scan(&f.ID, &f.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, fail(span, fmt.Errorf("insert feed %q: %w", f.Link, err))
		}
		n++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fail(span, fmt.Errorf("commit: %w", err))
	}
	span.SetAttributes(attribute.Int("feeds.offered", len(in)), attribute.Int("feeds.inserted", n))
	return n, nil
}

// MarkFeedRead sets is_read.
func (s *Store) MarkFeedRead(ctx context.Context, id int64) (bool, error) {
	return s.execOne(ctx, "MarkFeedRead", "UPDATE", `UPDATE feeds SET is_read = true WHERE id = $1`, id)
}

// ArchiveFeed sets is_archived.
func (s *Store) ArchiveFeed(ctx context.Context, id int64) (bool, error) {
	return s.execOne(ctx, "ArchiveFeed", "UPDATE", `UPDATE feeds SET is_archived = true WHERE id = $1`, id)
}

// SaveAnalysis stores the analysis on a feed and marks it analyzed.
func (s *Store) SaveAnalysis(ctx context.Context, id int64, a *feeds.Analysis) error {
	ok, err := s.execOne(ctx, "SaveAnalysis", "UPDATE",
		`UPDATE feeds SET translated_title = $2, summary = $3, insight = $4, is_analyzed = true WHERE id = $1`,
		id, a.TranslatedTitle, a.Summary, a.Insight)
	if err != nil {
		return err
	}
	if !ok {
		return feeds.ErrNotFound
	}
	return nil
}

func (s *Store) execOne(ctx context.Context, name, op, sql string, args ...any) (bool, error) {
	ctx, span := startSpan(ctx, name, op)
	defer span.End()

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, fail(span, err)
	}
	return tag.RowsAffected() > 0, nil
}

const noteColumns = `id, title, content, category, feed_id, original_link, created_at, updated_at`

func scanNote(row pgx.Row) (*feeds.Note, error) {
	var n feeds.Note
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Category, &n.FeedID, &n.OriginalLink, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Tags = []feeds.Tag{}
	return &n, nil
}

// ListNotes returns matching notes, most recently updated first.
func (s *Store) ListNotes(ctx context.Context, q feeds.NoteQuery) ([]feeds.Note, error) {
	ctx, span := startSpan(ctx, "ListNotes", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes
		WHERE ($1::text = '' OR category = $1)
		  AND ($2::text = '' OR title ILIKE '%' || $2 || '%' OR content ILIKE '%' || $2 || '%')
		ORDER BY updated_at DESC, id DESC
		OFFSET $3 LIMIT NULLIF($4::int, 0)`,
		q.Category, escapeLike(q.Search), max(q.Skip, 0), q.Limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query notes: %w", err))
	}

	var out []feeds.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			rows.Close()
			return nil, fail(span, fmt.Errorf("scan note: %w", err))
		}
		out = append(out, *n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fail(span, err)
	}

	if err := s.loadTags(ctx, s.pool, out); err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// GetNote retrieves a note with its tags.
func (s *Store) GetNote(ctx context.Context, id int64) (*feeds.Note, bool, error) {
	ctx, span := startSpan(ctx, "GetNote", "SELECT")
	defer span.End()
	return s.getNote(ctx, span, s.pool, id)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) getNote(ctx context.Context, span trace.Span, q querier, id int64) (*feeds.Note, bool, error) {
	n, err := scanNote(q.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
	n, ok, err := lookup(span, n, err)
	if !ok || err != nil {
		return nil, ok, err
	}
	one := []feeds.Note{*n}
	if err := s.loadTags(ctx, q, one); err != nil {
		return nil, false, fail(span, err)
	}
	return &one[0], true, nil
}

func (s *Store) loadTags(ctx context.Context, q querier, notes []feeds.Note) error {
	if len(notes) == 0 {
		return nil
	}
	ids := make([]int64, len(notes))
	idx := make(map[int64]int, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
		idx[n.ID] = i
	}

	rows, err := q.Query(ctx,
		`SELECT nt.note_id, t.id, t.name, t.created_at
		 FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
		 WHERE nt.note_id = ANY($1)
		 ORDER BY nt.note_id, nt.pos`, ids)
	if err != nil {
		return fmt.Errorf("query note tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID int64
		var t feeds.Tag
		if err := rows.Scan(&noteID, &t.ID, &t.Name, &t.CreatedAt); err != nil {
			return fmt.Errorf("scan note tag: %w", err)
		}
		i := idx[noteID]
		notes[i].Tags = append(notes[i].Tags, t)
	}
	return rows.Err()
}

// CreateNote inserts a note, upserts its tags, and archives the feed it
// was captured from, in one transaction.
func (s *Store) CreateNote(ctx context.Context, note *feeds.Note, tagNames []string) error {
	ctx, span := startSpan(ctx, "CreateNote", "INSERT")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	err = tx.QueryRow(ctx,
		`INSERT INTO notes (title, content, category, feed_id, original_link)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		note.Title, note.Content, note.Category, note.FeedID, note.OriginalLink,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return fail(span, fmt.Errorf("insert note: %w", err))
	}

	if note.Tags, err = setTags(ctx, tx, note.ID, tagNames); err != nil {
		return fail(span, err)
	}

	if note.FeedID != nil {
		if _, err := tx.Exec(ctx, `UPDATE feeds SET is_archived = true WHERE id = $1`, *note.FeedID); err != nil {
			return fail(span, fmt.Errorf("archive feed: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// setTags replaces the tags of a note, creating unknown tags.
func setTags(ctx context.Context, tx pgx.Tx, noteID int64, names []string) ([]feeds.Tag, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM note_tags WHERE note_id = $1`, noteID); err != nil {
		return nil, fmt.Errorf("clear note tags: %w", err)
	}
	tags := make([]feeds.Tag, 0, len(names))
	for i, name := range names {
		var t feeds.Tag
		err := tx.QueryRow(ctx,
			`INSERT INTO tags (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id, name, created_at`, name,
		).Scan(&t.ID, &t.Name, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("upsert tag %q: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO note_tags (note_id, tag_id, pos) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			noteID, t.ID, i); err != nil {
			return nil, fmt.Errorf("link tag %q: %w", name, err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// UpdateNote applies the non-nil fields of u and bumps updated_at.
func (s *Store) UpdateNote(ctx context.Context, id int64, u *feeds.NoteUpdate) (*feeds.Note, bool, error) {
	ctx, span := startSpan(ctx, "UpdateNote", "UPDATE")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	tag, err := tx.Exec(ctx,
		`UPDATE notes SET
			title = COALESCE($2, title),
			content = COALESCE($3, content),
			category = COALESCE($4, category),
			updated_at = now()
		 WHERE id = $1`,
		id, u.Title, u.Content, u.Category)
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("update note: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}

	if u.TagNames != nil {
		if _, err := setTags(ctx, tx, id, *u.TagNames); err != nil {
			return nil, false, fail(span, err)
		}
	}

	n, ok, err := s.getNote(ctx, span, tx, id)
	if err != nil || !ok {
		return nil, ok, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fail(span, fmt.Errorf("commit: %w", err))
	}
	return n, true, nil
}

// DeleteNote removes a note. Tags are kept.
func (s *Store) DeleteNote(ctx context.Context, id int64) (bool, error) {
	return s.execOne(ctx, "DeleteNote", "DELETE", `DELETE FROM notes WHERE id = $1`, id)
}

// ListTags returns every tag ordered by ID.
func (s *Store) ListTags(ctx context.Context) ([]feeds.Tag, error) {
	ctx, span := startSpan(ctx, "ListTags", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM tags ORDER BY id`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query tags: %w", err))
	}
	defer rows.Close()

	out := []feeds.Tag{}
	for rows.Next() {
		var t feeds.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan tag: %w", err))
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
