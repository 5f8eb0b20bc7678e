package feedapi

import (
	"errors"
	"io/fs"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

// MissingSourceFile is the detail returned when sync-from-config has no
// readable source file.
const MissingSourceFile = "Config file rss_source.yaml not found on server"

func (a *API) handleListSources(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListSources(r.Context())
	if err != nil {
		a.fail(w, r, err, "RSS source not found")
		return
	}
	if list == nil {
		list = []feeds.Source{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var in feeds.SourceInput
	if !decode(w, r, &in) {
		return
	}
	src, err := a.svc.CreateSource(r.Context(), in)
	if err != nil {
		a.fail(w, r, err, "RSS source not found")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("brainsync.source.id", src.ID))
	writeJSON(w, http.StatusOK, src)
}

func (a *API) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteSource(r.Context(), id); err != nil {
		a.fail(w, r, err, "RSS source not found")
		return
	}
	writeMessage(w, "RSS source deleted successfully")
}

func (a *API) handleFetchSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	msg, err := a.svc.FetchSource(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "RSS source not found")
		return
	}
	writeMessage(w, msg)
}

func (a *API) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	msg, err := a.svc.FetchAll(r.Context())
	if err != nil {
		a.fail(w, r, err, "RSS source not found")
		return
	}
	writeMessage(w, msg)
}

func (a *API) handleSyncFromConfig(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.SyncSourcesFromConfig(r.Context())
	if err != nil {
		if isNotFound(err) || errors.Is(err, fs.ErrNotExist) {
			writeDetail(w, http.StatusInternalServerError, MissingSourceFile)
			return
		}
		a.fail(w, r, err, "RSS source not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func isNotFound(err error) bool {
	return errors.Is(err, feeds.ErrNotFound)
}
