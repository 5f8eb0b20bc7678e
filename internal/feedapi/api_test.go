package feedapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/brainsync/internal/feeds"
	"github.com/linnemanlabs/brainsync/internal/feeds/memstore"
)

const testToken = "s3cret"

type stubFetcher struct {
	entries []*feeds.Feed
}

func (s *stubFetcher) Fetch(context.Context, *feeds.Source) ([]*feeds.Feed, error) {
	out := make([]*feeds.Feed, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

type stubAnalyzer struct {
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, f *feeds.Feed) (*feeds.Analysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &feeds.Analysis{TranslatedTitle: "译 " + f.Title, Summary: "sum", Insight: "ins"}, nil
}

type fixture struct {
	router chi.Router
	svc    *feeds.Service
	store  *memstore.Store
}

func newFixture(t *testing.T, an feeds.FeedAnalyzer, sourceFile string) *fixture {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fe := &stubFetcher{entries: []*feeds.Feed{
		{Title: "first", OriginalTitle: "first", Link: "https://blog.example/1", PublishedAt: &now, Content: "body"},
	}}
	st := memstore.New()
	svc := feeds.NewService(st, an, fe, nil, nil, log.Nop(), feeds.ServiceConfig{SourceFile: sourceFile})
	r := chi.NewRouter()
	New(nil, svc, testToken).RegisterRoutes(r)
	return &fixture{router: r, svc: svc, store: st}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rec)["detail"]
}

// seedFeed creates a source and fetches one feed into it.
func (f *fixture) seedFeed(t *testing.T) (srcID, feedID int64) {
	t.Helper()
	ctx := context.Background()
	src, err := f.svc.CreateSource(ctx, feeds.SourceInput{Name: "Blog", URL: "https://blog.example/rss"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if _, err := f.svc.FetchSource(ctx, src.ID); err != nil {
		t.Fatalf("FetchSource: %v", err)
	}
	list, err := f.svc.ListFeeds(ctx, feeds.FeedQuery{SourceID: src.ID})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListFeeds = %v, %v; want one feed", list, err)
	}
	return src.ID, list[0].ID
}

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, feeds.NewService(memstore.New(), nil, &stubFetcher{}, nil, nil, nil, feeds.ServiceConfig{}), testToken)
	if api.logger == nil {
		t.Fatal("New(nil, ...) left logger nil; expected Nop logger")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic")
		}
	}()
	New(nil, nil, testToken)
}

func TestAuth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantDetail string
	}{
		{"missing", "", http.StatusUnauthorized, "No authorization token provided"},
		{"wrong", "Bearer nope", http.StatusUnauthorized, "Invalid access token"},
		{"bearer", "Bearer " + testToken, http.StatusOK, ""},
		{"bare", testToken, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/rss/sources", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantDetail != "" {
				if got := detail(t, rec); got != tt.wantDetail {
					t.Errorf("detail = %q, want %q", got, tt.wantDetail)
				}
			}
		})
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"match", `{"access_token":"s3cret"}`, http.StatusOK},
		{"mismatch", `{"access_token":"other"}`, http.StatusUnauthorized},
		{"empty", `{}`, http.StatusUnauthorized},
		{"garbage", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				got := decodeBody[map[string]any](t, rec)
				if got["authenticated"] != true {
					t.Errorf("authenticated = %v, want true", got["authenticated"])
				}
				if got["message"] != "Authentication successful" {
					t.Errorf("message = %v", got["message"])
				}
			}
		})
	}
}

func TestFeeds_Lifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubAnalyzer{}, "")
	_, id := f.seedFeed(t)
	path := "/api/feeds/" + itoa(id)

	rec := f.do(t, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET feed status = %d", rec.Code)
	}
	if got := decodeBody[feeds.Feed](t, rec); got.Title != "first" || got.Source == nil {
		t.Errorf("feed = %+v, want title first with source", got)
	}

	rec = f.do(t, http.MethodPost, path+"/analyze", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[feeds.Analysis](t, rec); got.TranslatedTitle != "译 first" {
		t.Errorf("translated_title = %q, want %q", got.TranslatedTitle, "译 first")
	}

	rec = f.do(t, http.MethodPatch, path+"/mark-read", "")
	if got := decodeBody[map[string]string](t, rec)["message"]; got != "Feed marked as read" {
		t.Errorf("mark-read message = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/api/feeds?unread_only=true", "")
	if got := decodeBody[[]feeds.Feed](t, rec); len(got) != 0 {
		t.Errorf("unread feeds = %d, want 0", len(got))
	}

	rec = f.do(t, http.MethodPatch, path+"/archive", "")
	if got := decodeBody[map[string]string](t, rec)["message"]; got != "Feed archived" {
		t.Errorf("archive message = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/api/feeds", "")
	if got := decodeBody[[]feeds.Feed](t, rec); len(got) != 0 {
		t.Errorf("unarchived feeds = %d, want 0", len(got))
	}
	rec = f.do(t, http.MethodGet, "/api/feeds?unarchived_only=false", "")
	if got := decodeBody[[]feeds.Feed](t, rec); len(got) != 1 {
		t.Errorf("all feeds = %d, want 1", len(got))
	}
}

func TestFeeds_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubAnalyzer{err: errors.New("model unavailable")}, "")
	_, id := f.seedFeed(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantDetail string
	}{
		{"get missing", http.MethodGet, "/api/feeds/999", http.StatusNotFound, "Feed not found"},
		{"read missing", http.MethodPatch, "/api/feeds/999/mark-read", http.StatusNotFound, "Feed not found"},
		{"archive missing", http.MethodPatch, "/api/feeds/999/archive", http.StatusNotFound, "Feed not found"},
		{"analyze missing", http.MethodPost, "/api/feeds/999/analyze", http.StatusNotFound, "Feed not found"},
		{"analyze failure", http.MethodPost, "/api/feeds/" + itoa(id) + "/analyze", http.StatusInternalServerError, "Failed to analyze feed: "},
		{"bad id", http.MethodGet, "/api/feeds/abc", http.StatusBadRequest, "invalid id"},
		{"bad limit", http.MethodGet, "/api/feeds?limit=-1", http.StatusBadRequest, "invalid limit"},
		{"bad flag", http.MethodGet, "/api/feeds?unread_only=maybe", http.StatusBadRequest, "invalid unread_only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := f.do(t, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := detail(t, rec); !strings.HasPrefix(got, tt.wantDetail) {
				t.Errorf("detail = %q, want prefix %q", got, tt.wantDetail)
			}
		})
	}
}

func TestSources(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "")

	rec := f.do(t, http.MethodPost, "/api/rss/sources", `{"name":"Pod","url":"https://pod.example/rss","type":"podcast","category":"tech"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	src := decodeBody[feeds.Source](t, rec)
	if src.Type != feeds.SourcePodcast {
		t.Errorf("type = %q, want podcast", src.Type)
	}

	rec = f.do(t, http.MethodPost, "/api/rss/sources", `{"name":"Again","url":"https://pod.example/rss"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want 400", rec.Code)
	}
	if got := detail(t, rec); got != "RSS source already exists" {
		t.Errorf("duplicate detail = %q", got)
	}

	rec = f.do(t, http.MethodPost, "/api/rss/sources", `{"url":"https://x.example/rss"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name status = %d, want 400", rec.Code)
	}
	if got := detail(t, rec); got != "name is required" {
		t.Errorf("missing name detail = %q", got)
	}

	rec = f.do(t, http.MethodPost, "/api/rss/sources/"+itoa(src.ID)+"/fetch", "")
	if got := decodeBody[map[string]string](t, rec)["message"]; got != "Fetched 1 new feeds" {
		t.Errorf("fetch message = %q", got)
	}

	rec = f.do(t, http.MethodPost, "/api/rss/fetch", "")
	if got := decodeBody[map[string]string](t, rec)["message"]; !strings.HasPrefix(got, "Fetched 0 new feeds from 1 sources") {
		t.Errorf("fetch all message = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/api/rss/sources", "")
	if got := decodeBody[[]feeds.Source](t, rec); len(got) != 1 {
		t.Errorf("sources = %d, want 1", len(got))
	}

	rec = f.do(t, http.MethodDelete, "/api/rss/sources/"+itoa(src.ID), "")
	if got := decodeBody[map[string]string](t, rec)["message"]; got != "RSS source deleted successfully" {
		t.Errorf("delete message = %q", got)
	}

	rec = f.do(t, http.MethodDelete, "/api/rss/sources/"+itoa(src.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
	if got := detail(t, rec); got != "RSS source not found" {
		t.Errorf("second delete detail = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/api/rss/sources", "")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty list body = %s, want []", body)
	}
}

func TestSyncFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, filepath.Join(t.TempDir(), "absent.yaml"))
		rec := f.do(t, http.MethodPost, "/api/rss/sources/sync-from-config", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		if got := detail(t, rec); got != MissingSourceFile {
			t.Errorf("detail = %q, want %q", got, MissingSourceFile)
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, "")
		rec := f.do(t, http.MethodPost, "/api/rss/sources/sync-from-config", "")
		if got := detail(t, rec); got != MissingSourceFile {
			t.Errorf("detail = %q, want %q", got, MissingSourceFile)
		}
	})

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "rss_source.yaml")
		doc := "feeds:\n  - name: One\n    url: https://one.example/rss\n    category: tech\n  - name: Cast\n    url: https://cast.example/rss\n    category: podcast\n"
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatal(err)
		}
		f := newFixture(t, nil, path)
		rec := f.do(t, http.MethodPost, "/api/rss/sources/sync-from-config", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		res := decodeBody[feeds.SyncResult](t, rec)
		if res.Created != 2 || res.Updated != 0 {
			t.Errorf("created/updated = %d/%d, want 2/0", res.Created, res.Updated)
		}
	})
}

func TestNotes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "")
	_, feedID := f.seedFeed(t)

	rec := f.do(t, http.MethodGet, "/api/notes/categories/list", "")
	cats := decodeBody[map[string][]feeds.Category](t, rec)["categories"]
	if len(cats) != len(feeds.Categories()) {
		t.Fatalf("categories = %d, want %d", len(cats), len(feeds.Categories()))
	}

	body := `{"title":"Idea","content":"Some **markdown**","category":"` + cats[0].ID +
		`","feed_id":` + itoa(feedID) + `,"original_link":"https://blog.example/1","tag_names":["go"," go ","rss"]}`
	rec = f.do(t, http.MethodPost, "/api/notes", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	note := decodeBody[feeds.Note](t, rec)
	if len(note.Tags) != 2 {
		t.Errorf("tags = %+v, want go and rss", note.Tags)
	}

	feed, err := f.svc.GetFeed(context.Background(), feedID)
	if err != nil {
		t.Fatal(err)
	}
	if !feed.IsArchived {
		t.Error("capturing a note did not archive its feed")
	}

	rec = f.do(t, http.MethodPost, "/api/notes", `{"title":"x","content":"y","category":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad category status = %d, want 400", rec.Code)
	}
	if got := detail(t, rec); !strings.HasPrefix(got, "Invalid category. Must be one of: ") {
		t.Errorf("bad category detail = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/api/notes?search=MARKDOWN", "")
	if got := decodeBody[[]feeds.Note](t, rec); len(got) != 1 {
		t.Errorf("search hits = %d, want 1", len(got))
	}

	path := "/api/notes/" + itoa(note.ID)
	rec = f.do(t, http.MethodPut, path, `{"title":"Renamed","tag_names":["only"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	upd := decodeBody[feeds.Note](t, rec)
	if upd.Title != "Renamed" || upd.Content != "Some **markdown**" {
		t.Errorf("updated = %+v", upd)
	}
	if len(upd.Tags) != 1 || upd.Tags[0].Name != "only" {
		t.Errorf("updated tags = %+v, want [only]", upd.Tags)
	}

	rec = f.do(t, http.MethodGet, "/api/notes/tags/list", "")
	if got := decodeBody[[]feeds.Tag](t, rec); len(got) != 3 {
		t.Errorf("tags = %d, want 3", len(got))
	}

	rec = f.do(t, http.MethodDelete, path, "")
	if got := decodeBody[map[string]string](t, rec)["message"]; got != "Note deleted successfully" {
		t.Errorf("delete message = %q", got)
	}
	rec = f.do(t, http.MethodGet, path, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", rec.Code)
	}
	if got := detail(t, rec); got != "Note not found" {
		t.Errorf("detail = %q, want %q", got, "Note not found")
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
