// Package mock provides a deterministic embedder for tests and offline use.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// Embedder hashes each lowercase word of the input into one of Dims buckets
// and returns the normalized bag-of-words vector. Texts sharing words get a
// positive cosine similarity; identical texts get 1.0.
type Embedder struct {
	Dims int
	// Err, when set, is returned by every Embed call.
	Err error

	calls atomic.Int64
}

// New creates a mock embedder with 256 dimensions.
func New() *Embedder {
	return &Embedder{Dims: 256}
}

func (m *Embedder) Model() string { return "mock-bow" }

// Calls reports how many times Embed has run.
func (m *Embedder) Calls() int { return int(m.calls.Load()) }

func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, m.Dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[int(h.Sum32())%m.Dims]++
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
