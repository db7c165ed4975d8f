// Package aggregate merges results from every source into one ranked list,
// tolerating the failure of individual sources.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aryannaik/nexus/internal/nexus"
)

const (
	DefaultTopK    = 10
	MaxTopK        = 100
	DefaultTimeout = 10 * time.Second
)

// Adapter is one source as the aggregator sees it. Search results carry a
// Rank; Recent results need not.
type Adapter interface {
	Recent(ctx context.Context, limit int) ([]nexus.Item, error)
	Search(ctx context.Context, query string, limit int) ([]nexus.Item, error)
}

// Query is a cross-source search request.
type Query struct {
	Query   string         `json:"query"`
	TopK    int            `json:"top_k"`
	Sources []nexus.Source `json:"sources"`
}

// Result is the merged output plus one warning per failed source.
type Result struct {
	Items    []nexus.Item    `json:"items"`
	Warnings []nexus.Warning `json:"warnings"`
}

type Aggregator struct {
	adapters map[nexus.Source]Adapter
	timeout  time.Duration
	policy   Policy
}

type Option func(*Aggregator)

// WithTimeout bounds each adapter call.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithPolicy sets the comparator used to order search results.
func WithPolicy(p Policy) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.policy = p
		}
	}
}

func New(adapters map[nexus.Source]Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters: adapters,
		timeout:  DefaultTimeout,
		policy:   RankByRelevance,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Recent merges the newest items of each source, newest first, at most limit.
func (a *Aggregator) Recent(ctx context.Context, sources []nexus.Source, limit int) (Result, error) {
	if limit <= 0 {
		return Result{}, nexus.Invalid("limit", "must be positive")
	}
	if len(sources) == 0 {
		sources = nexus.AllSources
	}
	outcomes := a.fanOut(ctx, sources, func(ctx context.Context, ad Adapter) ([]nexus.Item, error) {
		return ad.Recent(ctx, limit)
	})

	res, err := collect(ctx, outcomes)
	if err != nil {
		return Result{}, err
	}
	for i := range res.Items {
		res.Items[i].Rank = nil
	}
	slices.SortStableFunc(res.Items, ByRecency)
	res.Items = truncate(res.Items, limit)
	return res, nil
}

// Search queries each requested source and ranks the union with the
// aggregator's policy.
func (a *Aggregator) Search(ctx context.Context, q Query) (Result, error) {
	q, err := q.normalize()
	if err != nil {
		return Result{}, err
	}

	outcomes := a.fanOut(ctx, q.Sources, func(ctx context.Context, ad Adapter) ([]nexus.Item, error) {
		return ad.Search(ctx, q.Query, q.TopK)
	})

	res, err := collect(ctx, outcomes)
	if err != nil {
		return Result{}, err
	}
	slices.SortStableFunc(res.Items, a.policy)
	res.Items = truncate(res.Items, q.TopK)
	return res, nil
}

func (q Query) normalize() (Query, error) {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return q, nexus.Invalid("query", "must not be empty")
	}
	switch {
	case q.TopK == 0:
		q.TopK = DefaultTopK
	case q.TopK < 0 || q.TopK > MaxTopK:
		return q, nexus.Invalid("top_k", fmt.Sprintf("must be between 1 and %d", MaxTopK))
	}
	if len(q.Sources) == 0 {
		q.Sources = nexus.AllSources
	}
	return q, nil
}

// outcome is the result of one adapter call: items or the reason it failed.
type outcome struct {
	source nexus.Source
	items  []nexus.Item
	err    error
}

func (a *Aggregator) fanOut(ctx context.Context, sources []nexus.Source, call func(context.Context, Adapter) ([]nexus.Item, error)) []outcome {
	outcomes := make([]outcome, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		ad, ok := a.adapters[src]
		if !ok {
			outcomes[i] = outcome{source: src, err: errors.New("source not configured")}
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			start := time.Now()
			items, err := call(cctx, ad)
			if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				err = nexus.Upstream(src, fmt.Errorf("timed out after %s: %w", a.timeout, err))
			}
			slog.Debug("source call finished", "source", src, "items", len(items), "duration", time.Since(start), "err", err)

			outcomes[i] = outcome{source: src, items: items, err: err}
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// collect merges successful outcomes and turns failures into warnings.
// Validation errors and cancellation of the caller's context are not
// partial failures and abort the whole request.
func collect(ctx context.Context, outcomes []outcome) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Items: []nexus.Item{}, Warnings: []nexus.Warning{}}
	for _, o := range outcomes {
		if o.err != nil {
			if nexus.IsValidation(o.err) {
				return Result{}, o.err
			}
			slog.Warn("source failed", "source", o.source, "err", o.err)
			res.Warnings = append(res.Warnings, nexus.Warning{Source: o.source, Error: o.err.Error()})
			continue
		}
		res.Items = append(res.Items, o.items...)
	}
	return res, nil
}

func truncate(items []nexus.Item, n int) []nexus.Item {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}
