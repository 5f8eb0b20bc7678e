package feedapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/brainsync/internal/feeds"
)

func (a *API) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	qp := queryParams{w: w, r: r}
	q := feeds.FeedQuery{
		SourceID:       int64(qp.int("source_id", 0)),
		UnreadOnly:     qp.bool("unread_only", false),
		UnarchivedOnly: qp.bool("unarchived_only", true),
		Skip:           qp.int("skip", 0),
		Limit:          qp.int("limit", DefaultFeedLimit),
	}
	if qp.fail {
		return
	}

	list, err := a.svc.ListFeeds(r.Context(), q)
	if err != nil {
		a.fail(w, r, err, "Feed not found")
		return
	}
	if list == nil {
		list = []feeds.Feed{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, err := a.svc.GetFeed(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "Feed not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.svc.MarkRead(r.Context(), id); err != nil {
		a.fail(w, r, err, "Feed not found")
		return
	}
	writeMessage(w, "Feed marked as read")
}

func (a *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.svc.Archive(r.Context(), id); err != nil {
		a.fail(w, r, err, "Feed not found")
		return
	}
	writeMessage(w, "Feed archived")
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int64("brainsync.feed.id", id))

	res, err := a.svc.AnalyzeFeed(r.Context(), id)
	switch {
	case err == nil:
	case isNotFound(err):
		writeDetail(w, http.StatusNotFound, "Feed not found")
		return
	default:
		a.logger.Error(r.Context(), err, "feed analysis failed", "feed_id", id)
		span.RecordError(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to analyze feed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
