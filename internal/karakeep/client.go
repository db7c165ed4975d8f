// Package karakeep reads bookmarks from a Karakeep server.
package karakeep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
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

// Recent returns the newest bookmarks.
func (c *Client) Recent(ctx context.Context, limit int) ([]nexus.Item, error) {
	return c.list(ctx, url.Values{"limit": {strconv.Itoa(limit)}}, false)
}

// ByTag returns bookmarks carrying tag.
func (c *Client) ByTag(ctx context.Context, tag string, limit int) ([]nexus.Item, error) {
	return c.list(ctx, url.Values{"limit": {strconv.Itoa(limit)}, "tag": {tag}}, false)
}

// Search runs the server's text search. Items keep the server's order as
// their rank.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]nexus.Item, error) {
	return c.list(ctx, url.Values{"limit": {strconv.Itoa(limit)}, "q": {query}}, true)
}

func (c *Client) list(ctx context.Context, params url.Values, ranked bool) ([]nexus.Item, error) {
	var apiResp apiResponse
	if err := c.get(ctx, "/bookmarks", params, &apiResp); err != nil {
		return nil, nexus.Upstream(nexus.SourceBookmark, err)
	}

	items := make([]nexus.Item, 0, len(apiResp.Bookmarks))
	for i, bm := range apiResp.Bookmarks {
		it := convertBookmark(bm)
		if ranked {
			r := nexus.RecencyRank(i)
			it.Rank = &r
		}
		items = append(items, it)
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + "/api/v1" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	slog.Debug("karakeep request", "path", path, "params", params.Encode())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func convertBookmark(bm apiBookmark) nexus.Item {
	it := nexus.Item{
		ID:     "bk_" + bm.ID,
		Source: nexus.SourceBookmark,
		URL:    firstNonEmpty(bm.URL, bm.Content.URL),
		Tags:   []string(bm.Tags),
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}

	it.Title = firstNonEmpty(deref(bm.Title), deref(bm.Content.Title), it.URL)

	desc := firstNonEmpty(bm.Description, deref(bm.Content.Description), bm.Content.Text, bm.Content.HTMLContent, deref(bm.Note))
	it.Snippet = nexus.Snippet(htmltext.Plain(desc), 200)

	it.Metadata = nexus.Metadata{
		"archived":   bm.Archived,
		"favourited": bm.Favourited,
	}
	it.Metadata.Set("archive_url", deref(bm.ArchiveURL))
	it.Metadata.Set("favicon_url", firstNonEmpty(deref(bm.FaviconURL), deref(bm.Content.Favicon)))

	// createdAt is ISO 8601 with millis: "2026-02-20T15:53:23.083Z"
	if bm.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, bm.CreatedAt); err == nil {
			it.Timestamp = t.UTC()
		} else {
			slog.Debug("karakeep: unparseable createdAt", "id", bm.ID, "value", bm.CreatedAt)
		}
	}

	return it
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
