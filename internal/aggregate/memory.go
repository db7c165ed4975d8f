package aggregate

import (
	"context"

	"github.com/aryannaik/nexus/internal/memory"
	"github.com/aryannaik/nexus/internal/nexus"
)

// MemoryService is the part of memory.Service the aggregator uses.
type MemoryService interface {
	Recent(ctx context.Context, limit int) ([]memory.Entry, error)
	Search(ctx context.Context, query string, topK int) ([]memory.Hit, error)
}

type memoryAdapter struct {
	svc MemoryService
}

// Memory adapts the local memory store to the Adapter interface.
func Memory(svc MemoryService) Adapter {
	return memoryAdapter{svc: svc}
}

func (m memoryAdapter) Recent(ctx context.Context, limit int) ([]nexus.Item, error) {
	entries, err := m.svc.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]nexus.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.Item())
	}
	return items, nil
}

func (m memoryAdapter) Search(ctx context.Context, query string, limit int) ([]nexus.Item, error) {
	hits, err := m.svc.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]nexus.Item, 0, len(hits))
	for _, h := range hits {
		items = append(items, h.Item())
	}
	return items, nil
}
