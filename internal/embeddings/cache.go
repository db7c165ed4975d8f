package embeddings

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Embedder is what Cache wraps. *Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Cache memoizes embeddings by model and text. Failed calls are not cached.
type Cache struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCache wraps next with an LRU of the given size. size <= 0 returns next
// unwrapped.
func NewCache(next Embedder, size int) (Embedder, error) {
	if size <= 0 {
		return next, nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cache{next: next, cache: c}, nil
}

func (c *Cache) Model() string { return c.next.Model() }

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.next.Model() + "\x00" + text
	if vec, ok := c.cache.Get(key); ok {
		return append([]float32(nil), vec...), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]float32(nil), vec...))
	return vec, nil
}

// Len is the number of cached vectors.
func (c *Cache) Len() int { return c.cache.Len() }
