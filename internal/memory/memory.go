// Package memory is the local semantic memory: remembered text fragments,
// their embeddings, and nearest-neighbour search over them.
package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryannaik/nexus/internal/nexus"
)

// maxEmbedRunes bounds the text sent to the embedding model.
const maxEmbedRunes = 1000

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	store    *Store
	embedder Embedder
	now      func() time.Time
}

func NewService(store *Store, embedder Embedder) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Remember embeds and stores text with optional tags and metadata. Empty text
// is a validation error.
func (s *Service) Remember(ctx context.Context, text string, tags []string, metadata nexus.Metadata) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, nexus.Invalid("text", "must not be empty")
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return Entry{}, err
	}
	if metadata == nil {
		metadata = nexus.Metadata{}
	}

	e := Entry{
		ID:        uuid.NewString(),
		Text:      text,
		Tags:      cleanTags(tags),
		Metadata:  metadata,
		CreatedAt: s.now(),
		Embedding: vec,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return Entry{}, err
	}

	slog.Info("memory stored", "id", e.ID, "tags", e.Tags, "chars", len(e.Text))
	return e, nil
}

// Search returns the topK entries most similar to query.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nexus.Invalid("query", "must not be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	if s.store.Count() == 0 {
		return nil, nil
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.SearchByVector(vec, topK)
}

// Recent returns up to limit entries, newest first.
func (s *Service) Recent(_ context.Context, limit int) ([]Entry, error) {
	return s.store.Recent(limit), nil
}

// Forget deletes one entry by ID.
func (s *Service) Forget(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("memory forgotten", "id", id)
	return nil
}

// Count returns the number of stored entries.
func (s *Service) Count() int { return s.store.Count() }

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if r := []rune(text); len(r) > maxEmbedRunes {
		text = string(r[:maxEmbedRunes])
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nexus.Upstream(nexus.SourceMemory, err)
	}
	return vec, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
