package miniflux

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/nexus/internal/nexus"
)

const entriesJSON = `{
  "total": 2,
  "entries": [
    {
      "id": 42,
      "feed_id": 3,
      "status": "unread",
      "starred": true,
      "title": "Go 1.26 released",
      "url": "https://go.dev/doc/go1.26",
      "author": "The Go Team",
      "content": "<p>Release <em>notes</em> here.</p>",
      "published_at": "2026-02-11T18:00:00+01:00",
      "tags": ["golang"],
      "feed": {"id": 3, "title": "Go Blog", "category": {"id": 1, "title": "Programming"}}
    },
    {
      "id": 43,
      "status": "read",
      "title": "",
      "url": "https://example.com/x",
      "content": "plain body",
      "published_at": "2026-02-10T09:30:00Z",
      "feed": {"id": 4, "title": "Example Feed", "category": null}
    }
  ]
}`

func newFake(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "/v1/entries", r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token")
}

func TestClient_Unread(t *testing.T) {
	c := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "unread", q.Get("status"))
		assert.Equal(t, "7", q.Get("limit"))
		assert.Equal(t, "desc", q.Get("direction"))
		w.Write([]byte(entriesJSON))
	})

	items, err := c.Unread(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "rss_42", first.ID)
	assert.Equal(t, nexus.SourceFeed, first.Source)
	assert.Equal(t, "Go 1.26 released", first.Title)
	assert.Equal(t, "Release notes here.", first.Snippet)
	assert.Equal(t, []string{"Programming", "golang"}, first.Tags)
	assert.Equal(t, time.Date(2026, 2, 11, 17, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, nexus.Metadata{
		"entry_id":   int64(42),
		"feed_id":    int64(3),
		"status":     "unread",
		"starred":    true,
		"feed_title": "Go Blog",
		"author":     "The Go Team",
	}, first.Metadata)

	second := items[1]
	assert.Equal(t, "Example Feed", second.Title)
	assert.Equal(t, []string{}, second.Tags)
	assert.Equal(t, "plain body", second.Snippet)
	assert.Equal(t, nexus.Metadata{
		"entry_id":   int64(43),
		"feed_id":    int64(4),
		"status":     "read",
		"starred":    false,
		"feed_title": "Example Feed",
	}, second.Metadata)
}

func TestClient_RecentHasNoStatusFilter(t *testing.T) {
	c := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("status"))
		w.Write([]byte(entriesJSON))
	})
	items, err := c.Recent(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Nil(t, items[0].Rank)
}

func TestClient_Search(t *testing.T) {
	c := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "release", r.URL.Query().Get("search"))
		w.Write([]byte(entriesJSON))
	})
	items, err := c.Search(context.Background(), "release", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, nexus.RecencyRank(1), *items[1].Rank)
}

func TestClient_MarkRead(t *testing.T) {
	var got updateEntriesRequest
	c := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.MarkRead(context.Background(), []int64{42, 43}))
	assert.Equal(t, []int64{42, 43}, got.EntryIDs)
	assert.Equal(t, "read", got.Status)

	err := c.MarkRead(context.Background(), nil)
	assert.True(t, nexus.IsValidation(err))
}

func TestClient_ServerError(t *testing.T) {
	c := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.Unread(context.Background(), 5)
	var ue *nexus.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, nexus.SourceFeed, ue.Source)
}

func TestParseItemID(t *testing.T) {
	n, err := ParseItemID("rss_42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = ParseItemID("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	for _, bad := range []string{"bk_1", "rss_", "rss_-3", ""} {
		_, err := ParseItemID(bad)
		assert.True(t, nexus.IsValidation(err), bad)
	}
}
