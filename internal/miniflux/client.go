// Package miniflux reads feed entries from a Miniflux server.
package miniflux

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aryannaik/nexus/internal/htmltext"
	"github.com/aryannaik/nexus/internal/nexus"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Recent returns the newest entries regardless of status.
func (c *Client) Recent(ctx context.Context, limit int) ([]nexus.Item, error) {
	return c.entries(ctx, entryParams(limit), false)
}

// Unread returns the newest unread entries.
func (c *Client) Unread(ctx context.Context, limit int) ([]nexus.Item, error) {
	p := entryParams(limit)
	p.Set("status", "unread")
	return c.entries(ctx, p, false)
}

// Search runs Miniflux's full-text search. Items keep the server's order as
// their rank.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]nexus.Item, error) {
	p := entryParams(limit)
	p.Set("search", query)
	return c.entries(ctx, p, true)
}

// MarkRead sets the given entries' status to read.
func (c *Client) MarkRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nexus.Invalid("entry_ids", "must not be empty")
	}
	body, err := json.Marshal(updateEntriesRequest{EntryIDs: ids, Status: "read"})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if err := c.do(ctx, http.MethodPut, "/entries", nil, bytes.NewReader(body), nil); err != nil {
		return nexus.Upstream(nexus.SourceFeed, err)
	}
	slog.Info("miniflux entries marked read", "count", len(ids))
	return nil
}

func entryParams(limit int) url.Values {
	return url.Values{
		"limit":     {strconv.Itoa(limit)},
		"order":     {"published_at"},
		"direction": {"desc"},
	}
}

func (c *Client) entries(ctx context.Context, params url.Values, ranked bool) ([]nexus.Item, error) {
	var resp entriesResponse
	if err := c.do(ctx, http.MethodGet, "/entries", params, nil, &resp); err != nil {
		return nil, nexus.Upstream(nexus.SourceFeed, err)
	}

	items := make([]nexus.Item, 0, len(resp.Entries))
	for i, e := range resp.Entries {
		it := convertEntry(e)
		if ranked {
			r := nexus.RecencyRank(i)
			it.Rank = &r
		}
		items = append(items, it)
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, out any) error {
	u := c.baseURL + "/v1" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("miniflux request", "method", method, "path", path, "params", params.Encode())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func convertEntry(e apiEntry) nexus.Item {
	it := nexus.Item{
		ID:      "rss_" + strconv.FormatInt(e.ID, 10),
		Source:  nexus.SourceFeed,
		Title:   strings.TrimSpace(e.Title),
		URL:     e.URL,
		Snippet: nexus.Snippet(htmltext.Plain(e.Content), 200),
		Tags:    []string{},
	}
	if it.Title == "" {
		it.Title = e.Feed.Title
	}
	it.Metadata = nexus.Metadata{
		"entry_id": e.ID,
		"starred":  e.Starred,
	}
	it.Metadata.Set("status", e.Status)
	it.Metadata.Set("feed_title", e.Feed.Title)
	it.Metadata.Set("author", strings.TrimSpace(e.Author))
	if feedID := cmp.Or(e.FeedID, e.Feed.ID); feedID != 0 {
		it.Metadata["feed_id"] = feedID
	}
	if e.Feed.Category != nil && e.Feed.Category.Title != "" {
		it.Tags = append(it.Tags, e.Feed.Category.Title)
	}
	for _, tag := range e.Tags {
		if tag != "" && !slices.Contains(it.Tags, tag) {
			it.Tags = append(it.Tags, tag)
		}
	}

	if e.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, e.PublishedAt); err == nil {
			it.Timestamp = t.UTC()
		} else {
			slog.Debug("miniflux: unparseable published_at", "id", e.ID, "value", e.PublishedAt)
		}
	}
	return it
}

// ParseItemID extracts the Miniflux entry ID from a unified item ID such as
// "rss_42". A bare number is accepted too.
func ParseItemID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "rss_"), 10, 64)
	if err != nil || n <= 0 {
		return 0, nexus.Invalid("ids", fmt.Sprintf("%q is not a feed item id", id))
	}
	return n, nil
}
