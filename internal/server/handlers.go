package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aryannaik/nexus/internal/aggregate"
	"github.com/aryannaik/nexus/internal/memory"
	"github.com/aryannaik/nexus/internal/miniflux"
	"github.com/aryannaik/nexus/internal/nexus"
)

// Version is reported by GET /.
const Version = "0.1.0"

const (
	defaultLimit       = 20
	maxLimit           = 100
	maxRequestBodySize = 1 << 20

	// healthTimeout bounds the embedder probe behind /status.
	healthTimeout = 2 * time.Second

	// statusClientClosedRequest is recorded when the caller goes away before
	// a response is written.
	statusClientClosedRequest = 499
)

type Aggregator interface {
	Search(ctx context.Context, q aggregate.Query) (aggregate.Result, error)
	Recent(ctx context.Context, sources []nexus.Source, limit int) (aggregate.Result, error)
}

type Bookmarks interface {
	Recent(ctx context.Context, limit int) ([]nexus.Item, error)
	ByTag(ctx context.Context, tag string, limit int) ([]nexus.Item, error)
}

type Feeds interface {
	Unread(ctx context.Context, limit int) ([]nexus.Item, error)
	MarkRead(ctx context.Context, ids []int64) error
}

type Memory interface {
	Remember(ctx context.Context, text string, tags []string, metadata nexus.Metadata) (memory.Entry, error)
	Forget(ctx context.Context, id string) error
	Count() int
}

type Embedder interface {
	IsHealthy(ctx context.Context) bool
	Model() string
}

type Handlers struct {
	agg       Aggregator
	bookmarks Bookmarks
	feeds     Feeds
	memory    Memory
	embedder  Embedder

	// timeout bounds each single-source upstream call, like the
	// aggregator's per-adapter timeout.
	timeout       time.Duration
	healthTimeout time.Duration
}

// NewHandlers builds the handler set. timeout <= 0 uses
// aggregate.DefaultTimeout.
func NewHandlers(agg Aggregator, bookmarks Bookmarks, feeds Feeds, mem Memory, embedder Embedder, timeout time.Duration) *Handlers {
	if timeout <= 0 {
		timeout = aggregate.DefaultTimeout
	}
	return &Handlers{
		agg:           agg,
		bookmarks:     bookmarks,
		feeds:         feeds,
		memory:        mem,
		embedder:      embedder,
		timeout:       timeout,
		healthTimeout: healthTimeout,
	}
}

// upstreamContext derives the context for one call to a source adapter.
func (h *Handlers) upstreamContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": "Nexus", "version": Version})
}

type statusResponse struct {
	MemoryCount int    `json:"memoryCount"`
	EmbedderOK  bool   `json:"embedderOk"`
	Model       string `json:"model"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, statusResponse{
		MemoryCount: h.memory.Count(),
		EmbedderOK:  h.embedder.IsHealthy(ctx),
		Model:       h.embedder.Model(),
	})
}

type searchRequest struct {
	Query   string   `json:"query"`
	TopK    int      `json:"top_k"`
	Sources []string `json:"sources"`
}

func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	sources, err := nexus.ParseSources(req.Sources)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.agg.Search(r.Context(), aggregate.Query{Query: req.Query, TopK: req.TopK, Sources: sources})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":    strings.TrimSpace(req.Query),
		"items":    res.Items,
		"warnings": res.Warnings,
		"total":    len(res.Items),
	})
}

func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var names []string
	if s := r.URL.Query().Get("sources"); s != "" {
		names = strings.Split(s, ",")
	}
	sources, err := nexus.ParseSources(names)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.agg.Recent(r.Context(), sources, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":    res.Items,
		"warnings": res.Warnings,
		"total":    len(res.Items),
	})
}

func (h *Handlers) HandleBookmarks(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	var items []nexus.Item
	if tag := strings.TrimSpace(r.URL.Query().Get("tag")); tag != "" {
		items, err = h.bookmarks.ByTag(ctx, tag, limit)
	} else {
		items, err = h.bookmarks.Recent(ctx, limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeItems(w, items)
}

func (h *Handlers) HandleUnread(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	items, err := h.feeds.Unread(ctx, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeItems(w, items)
}

type readRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handlers) HandleRead(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, nexus.Invalid("ids", "must not be empty"))
		return
	}

	entryIDs := make([]int64, 0, len(req.IDs))
	for _, id := range req.IDs {
		n, err := miniflux.ParseItemID(id)
		if err != nil {
			writeError(w, err)
			return
		}
		entryIDs = append(entryIDs, n)
	}

	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	if err := h.feeds.MarkRead(ctx, entryIDs); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": len(entryIDs)})
}

type rememberRequest struct {
	Text     string         `json:"text"`
	Tags     []string       `json:"tags"`
	Metadata nexus.Metadata `json:"metadata"`
}

func (h *Handlers) HandleRemember(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.memory.Remember(r.Context(), req.Text, req.Tags, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handlers) HandleForget(w http.ResponseWriter, r *http.Request) {
	if err := h.memory.Forget(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxLimit {
		return 0, nexus.Invalid("limit", fmt.Sprintf("must be an integer between 1 and %d", maxLimit))
	}
	return n, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nexus.Invalid("body", "request body is empty")
		}
		return nexus.Invalid("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func writeItems(w http.ResponseWriter, items []nexus.Item) {
	if items == nil {
		items = []nexus.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, context.Canceled):
		// client went away; record the status for the access log only
		w.WriteHeader(statusClientClosedRequest)
		return
	case nexus.IsValidation(err):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, nexus.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case nexus.IsUpstream(err):
		status, msg = http.StatusBadGateway, err.Error()
	}

	if status >= 500 {
		slog.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
