package memory

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// SearchByVector scores every entry against queryVec by cosine similarity and
// returns the topK best, highest first. Equal scores put the newer entry first.
// An empty store yields no hits and no error.
func (s *Store) SearchByVector(queryVec []float32, topK int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(queryVec) != s.dims {
		return nil, fmt.Errorf("search: %w: got %d, store has %d", ErrDimensionMismatch, len(queryVec), s.dims)
	}

	hits := make([]Hit, 0, len(s.entries))
	for _, e := range s.entries {
		hits = append(hits, Hit{Entry: e, Score: cosineSimilarity(queryVec, e.Embedding)})
	}

	slices.SortFunc(hits, compareHits)

	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func compareHits(a, b Hit) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Entry.CreatedAt.Compare(a.Entry.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Entry.ID, b.Entry.ID)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return float32(dot / denom)
}
