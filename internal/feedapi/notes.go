package feedapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

func (a *API) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]feeds.Category{
		"categories": a.svc.Categories(),
	})
}

func (a *API) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := a.svc.ListTags(r.Context())
	if err != nil {
		a.fail(w, r, err, "Tag not found")
		return
	}
	if tags == nil {
		tags = []feeds.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	qp := queryParams{w: w, r: r}
	q := feeds.NoteQuery{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Skip:     qp.int("skip", 0),
		Limit:    qp.int("limit", DefaultNoteLimit),
	}
	if qp.fail {
		return
	}

	list, err := a.svc.ListNotes(r.Context(), q)
	if err != nil {
		a.fail(w, r, err, "Note not found")
		return
	}
	if list == nil {
		list = []feeds.Note{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := a.svc.GetNote(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "Note not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var in feeds.NoteInput
	if !decode(w, r, &in) {
		return
	}
	n, err := a.svc.CreateNote(r.Context(), in)
	if err != nil {
		a.fail(w, r, err, "Note not found")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int64("brainsync.note.id", n.ID),
		attribute.String("brainsync.note.category", n.Category),
	)
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var u feeds.NoteUpdate
	if !decode(w, r, &u) {
		return
	}
	n, err := a.svc.UpdateNote(r.Context(), id, &u)
	if err != nil {
		a.fail(w, r, err, "Note not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteNote(r.Context(), id); err != nil {
		a.fail(w, r, err, "Note not found")
		return
	}
	writeMessage(w, "Note deleted successfully")
}
