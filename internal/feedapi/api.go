// Package feedapi serves the feed, source and note REST endpoints.
package feedapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/brainsync/internal/authmw"
	"github.com/linnemanlabs/brainsync/internal/feeds"
)

// FeedService defines the business operations feedapi needs.
type FeedService interface {
	ListFeeds(ctx context.Context, q feeds.FeedQuery) ([]feeds.Feed, error)
	GetFeed(ctx context.Context, id int64) (*feeds.Feed, error)
	MarkRead(ctx context.Context, id int64) error
	Archive(ctx context.Context, id int64) error
	AnalyzeFeed(ctx context.Context, id int64) (*feeds.Analysis, error)

	ListSources(ctx context.Context) ([]feeds.Source, error)
	CreateSource(ctx context.Context, in feeds.SourceInput) (*feeds.Source, error)
	DeleteSource(ctx context.Context, id int64) error
	FetchSource(ctx context.Context, id int64) (string, error)
	FetchAll(ctx context.Context) (string, error)
	SyncSourcesFromConfig(ctx context.Context) (*feeds.SyncResult, error)

	Categories() []feeds.Category
	ListNotes(ctx context.Context, q feeds.NoteQuery) ([]feeds.Note, error)
	GetNote(ctx context.Context, id int64) (*feeds.Note, error)
	CreateNote(ctx context.Context, in feeds.NoteInput) (*feeds.Note, error)
	UpdateNote(ctx context.Context, id int64, u *feeds.NoteUpdate) (*feeds.Note, error)
	DeleteNote(ctx context.Context, id int64) error
	ListTags(ctx context.Context) ([]feeds.Tag, error)
}

// Default page sizes.
const (
	DefaultFeedLimit = 50
	DefaultNoteLimit = 100
)

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    FeedService
	token  string
}

// New creates a new API handler. Every route except /api/auth/verify
// requires token.
func New(logger log.Logger, svc FeedService, token string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("feed service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		token:  token,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/verify", a.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.token))

			r.Route("/feeds", func(r chi.Router) {
				r.Get("/", a.handleListFeeds)
				r.Get("/{id}", a.handleGetFeed)
				r.Patch("/{id}/mark-read", a.handleMarkRead)
				r.Patch("/{id}/archive", a.handleArchive)
				r.Post("/{id}/analyze", a.handleAnalyze)
			})

			r.Route("/rss", func(r chi.Router) {
				r.Post("/fetch", a.handleFetchAll)
				r.Get("/sources", a.handleListSources)
				r.Post("/sources", a.handleCreateSource)
				r.Post("/sources/sync-from-config", a.handleSyncFromConfig)
				r.Delete("/sources/{id}", a.handleDeleteSource)
				r.Post("/sources/{id}/fetch", a.handleFetchSource)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", a.handleListNotes)
				r.Post("/", a.handleCreateNote)
				r.Get("/categories/list", a.handleCategories)
				r.Get("/tags/list", a.handleTags)
				r.Get("/{id}", a.handleGetNote)
				r.Put("/{id}", a.handleUpdateNote)
				r.Delete("/{id}", a.handleDeleteNote)
			})
		})
	})
}

type authRequest struct {
	AccessToken string `json:"access_token"`
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !decode(w, r, &req) {
		return
	}
	if !authmw.Equal(req.AccessToken, a.token) {
		authmw.Deny(w, authmw.InvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Authentication successful",
		"authenticated": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// fail maps service errors to status codes. notFound is the detail for
// ErrNotFound.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var ie *feeds.InputError
	switch {
	case errors.Is(err, feeds.ErrNotFound):
		writeDetail(w, http.StatusNotFound, notFound)
	case errors.Is(err, feeds.ErrDuplicateSource):
		writeDetail(w, http.StatusBadRequest, feeds.ErrDuplicateSource.Error())
	case errors.As(err, &ie):
		writeDetail(w, http.StatusBadRequest, ie.Msg)
	default:
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
		trace.SpanFromContext(r.Context()).RecordError(err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusBadRequest, "invalid id "+strconv.Quote(raw))
		return 0, false
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("brainsync.id", id))
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

// queryParams parses the paging and flag parameters shared by list routes.
type queryParams struct {
	w    http.ResponseWriter
	r    *http.Request
	fail bool
}

func (q *queryParams) int(name string, def int) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.fail {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeDetail(q.w, http.StatusBadRequest, "invalid "+name)
		q.fail = true
		return def
	}
	return v
}

func (q *queryParams) bool(name string, def bool) bool {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.fail {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeDetail(q.w, http.StatusBadRequest, "invalid "+name)
		q.fail = true
		return def
	}
	return v
}
