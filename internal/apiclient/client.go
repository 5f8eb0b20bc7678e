// Package apiclient is the HTTP client for the brainsync server. It
// implements reader.Backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/brainsync/internal/feeds"
	"github.com/linnemanlabs/brainsync/internal/reader"
)

// PageLimit is the page size requested when listing feeds. ListFeeds keeps
// requesting pages until one comes back short.
const PageLimit = 1000

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// Client talks to the brainsync REST API.
type Client struct {
	base       *url.URL
	token      string
	httpClient *http.Client
	pageSize   int
}

var _ reader.Backend = (*Client)(nil)

// New creates a client for the server at baseURL. Requests carry token as a
// bearer credential and are traced through otelhttp.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		base:  u,
		token: token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		pageSize: PageLimit,
	}, nil
}

// Verify checks the token against the server.
func (c *Client) Verify(ctx context.Context) error {
	var out struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := c.do(ctx, "verify token", http.MethodPost, "/api/auth/verify", nil,
		map[string]string{"access_token": c.token}, &out); err != nil {
		return err
	}
	if !out.Authenticated {
		return &reader.TransportError{Op: "verify token", Status: http.StatusUnauthorized, Detail: "not authenticated"}
	}
	return nil
}

// ListFeeds returns every matching feed, newest first, walking the server's
// pages. Items that shift between pages while new feeds arrive are kept once.
func (c *Client) ListFeeds(ctx context.Context, unarchivedOnly bool) ([]reader.FeedItem, error) {
	var (
		out  []reader.FeedItem
		seen = make(map[int64]struct{})
	)
	for skip := 0; ; {
		q := url.Values{}
		q.Set("unarchived_only", strconv.FormatBool(unarchivedOnly))
		q.Set("skip", strconv.Itoa(skip))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var page []feeds.Feed
		if err := c.do(ctx, "list feeds", http.MethodGet, "/api/feeds", q, nil, &page); err != nil {
			return nil, err
		}
		added := 0
		for i := range page {
			if _, dup := seen[page[i].ID]; dup {
				continue
			}
			seen[page[i].ID] = struct{}{}
			out = append(out, toFeedItem(&page[i]))
			added++
		}
		if len(page) < c.pageSize || added == 0 {
			break
		}
		skip += len(page)
	}
	if out == nil {
		out = []reader.FeedItem{}
	}
	return out, nil
}

// MarkRead marks one feed read.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.do(ctx, "mark read", http.MethodPatch, feedPath(id, "mark-read"), nil, nil, nil)
}

// Analyze requests the analysis of one feed.
func (c *Client) Analyze(ctx context.Context, id int64) (*reader.AnalysisResult, error) {
	var a feeds.Analysis
	if err := c.do(ctx, "analyze", http.MethodPost, feedPath(id, "analyze"), nil, nil, &a); err != nil {
		return nil, err
	}
	return &reader.AnalysisResult{
		FeedID:          id,
		TranslatedTitle: a.TranslatedTitle,
		Summary:         a.Summary,
		Insight:         a.Insight,
	}, nil
}

// ListSources returns every registered source.
func (c *Client) ListSources(ctx context.Context) ([]reader.Source, error) {
	var list []feeds.Source
	if err := c.do(ctx, "list sources", http.MethodGet, "/api/rss/sources", nil, nil, &list); err != nil {
		return nil, err
	}
	out := make([]reader.Source, 0, len(list))
	for i := range list {
		out = append(out, toSource(&list[i]))
	}
	return out, nil
}

// CreateSource registers a source.
func (c *Client) CreateSource(ctx context.Context, src reader.NewSource) (*reader.Source, error) {
	in := feeds.SourceInput{
		Name:     src.Name,
		URL:      src.URL,
		Type:     toSourceType(src.Kind),
		Category: src.Category,
	}
	var created feeds.Source
	if err := c.do(ctx, "create source", http.MethodPost, "/api/rss/sources", nil, in, &created); err != nil {
		return nil, err
	}
	s := toSource(&created)
	return &s, nil
}

// DeleteSource removes a source and its feeds.
func (c *Client) DeleteSource(ctx context.Context, id int64) error {
	return c.do(ctx, "delete source", http.MethodDelete, "/api/rss/sources/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// FetchAll asks the server to fetch every source.
func (c *Client) FetchAll(ctx context.Context) (string, error) {
	return c.message(ctx, "fetch all", "/api/rss/fetch")
}

// FetchSource asks the server to fetch one source.
func (c *Client) FetchSource(ctx context.Context, id int64) (string, error) {
	return c.message(ctx, "fetch source", "/api/rss/sources/"+strconv.FormatInt(id, 10)+"/fetch")
}

// SyncFromConfig asks the server to sync sources from its source file.
func (c *Client) SyncFromConfig(ctx context.Context) (string, error) {
	return c.message(ctx, "sync sources", "/api/rss/sources/sync-from-config")
}

// ListCategories returns the vault categories.
func (c *Client) ListCategories(ctx context.Context) ([]reader.Category, error) {
	var out struct {
		Categories []feeds.Category `json:"categories"`
	}
	if err := c.do(ctx, "list categories", http.MethodGet, "/api/notes/categories/list", nil, nil, &out); err != nil {
		return nil, err
	}
	cats := make([]reader.Category, 0, len(out.Categories))
	for _, cat := range out.Categories {
		cats = append(cats, reader.Category{ID: cat.ID, Name: cat.Name, Description: cat.Description})
	}
	return cats, nil
}

// CreateNote stores a note in the vault. A zero FeedID is sent as null.
func (c *Client) CreateNote(ctx context.Context, note reader.NewNote) (*reader.Note, error) {
	in := feeds.NoteInput{
		Title:        note.Title,
		Content:      note.Content,
		Category:     note.Category,
		OriginalLink: note.OriginalLink,
	}
	if note.FeedID != 0 {
		id := note.FeedID
		in.FeedID = &id
	}
	var created feeds.Note
	if err := c.do(ctx, "create note", http.MethodPost, "/api/notes", nil, in, &created); err != nil {
		return nil, err
	}
	n := toNote(&created)
	return &n, nil
}

func (c *Client) message(ctx context.Context, op, path string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, op, http.MethodPost, path, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// do performs one JSON round trip. Failures come back as
// *reader.TransportError; a server {"detail"} body becomes its Detail.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &reader.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &reader.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &reader.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &reader.TransportError{Op: op, Status: resp.StatusCode, Detail: detailOf(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &reader.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// detailOf extracts the "detail" of an error body. Non-string details are
// returned as raw JSON; bodies that are not JSON are ignored.
func detailOf(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}

func feedPath(id int64, action string) string {
	return "/api/feeds/" + strconv.FormatInt(id, 10) + "/" + action
}
