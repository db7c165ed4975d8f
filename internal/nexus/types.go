// Package nexus holds the types shared by every source: the normalized item
// returned by the API and the error taxonomy the server maps to status codes.
package nexus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Source identifies where an item came from.
type Source string

const (
	SourceBookmark Source = "bookmark"
	SourceFeed     Source = "feed"
	SourceMemory   Source = "memory"
)

// AllSources is the default source set, in fan-out order.
var AllSources = []Source{SourceBookmark, SourceFeed, SourceMemory}

// ParseSource accepts the canonical names plus "rss" as an alias for feed.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bookmark", "bookmarks":
		return SourceBookmark, nil
	case "feed", "feeds", "rss":
		return SourceFeed, nil
	case "memory":
		return SourceMemory, nil
	}
	return "", &ValidationError{Field: "sources", Reason: fmt.Sprintf("unknown source %q", s)}
}

// ParseSources parses a list of names, dropping duplicates. An empty list
// means every source.
func ParseSources(names []string) ([]Source, error) {
	if len(names) == 0 {
		return append([]Source(nil), AllSources...), nil
	}
	seen := make(map[Source]bool, len(names))
	out := make([]Source, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		src, err := ParseSource(n)
		if err != nil {
			return nil, err
		}
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	if len(out) == 0 {
		return append([]Source(nil), AllSources...), nil
	}
	return out, nil
}

// RankBasis says how an item's position was decided.
type RankBasis string

const (
	// BasisScore items carry a similarity score in [−1, 1].
	BasisScore RankBasis = "score"
	// BasisRecency items were ordered by their upstream; Position is the
	// zero-based index in that upstream response.
	BasisRecency RankBasis = "recency"
)

// Rank is a tagged union: Score is meaningful only for BasisScore, Position
// only for BasisRecency. It serializes with exactly the field its basis uses,
// zero values included.
type Rank struct {
	Basis    RankBasis `json:"basis"`
	Score    float32   `json:"score"`
	Position int       `json:"position"`
}

func (r Rank) MarshalJSON() ([]byte, error) {
	switch r.Basis {
	case BasisScore:
		return json.Marshal(struct {
			Basis RankBasis `json:"basis"`
			Score float32   `json:"score"`
		}{r.Basis, r.Score})
	case BasisRecency:
		return json.Marshal(struct {
			Basis    RankBasis `json:"basis"`
			Position int       `json:"position"`
		}{r.Basis, r.Position})
	}
	return json.Marshal(struct {
		Basis RankBasis `json:"basis"`
	}{r.Basis})
}

// ScoreRank builds a similarity-based rank.
func ScoreRank(score float32) Rank {
	return Rank{Basis: BasisScore, Score: score}
}

// RecencyRank builds an upstream-order rank.
func RecencyRank(position int) Rank {
	return Rank{Basis: BasisRecency, Position: position}
}

// Item is the normalized shape every endpoint returns.
type Item struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
	Rank      *Rank     `json:"rank,omitempty"`
	// Metadata holds source-specific fields such as a bookmark's archive
	// state or a feed entry's read status.
	Metadata Metadata `json:"metadata,omitempty"`
}

// Metadata is a free-form, JSON-serializable attribute bag.
type Metadata map[string]any

// Set stores v under key, skipping empty strings so absent upstream fields
// stay absent.
func (m Metadata) Set(key string, v any) {
	if s, ok := v.(string); ok && s == "" {
		return
	}
	m[key] = v
}

// Warning records a source that failed during an aggregate request.
type Warning struct {
	Source Source `json:"source"`
	Error  string `json:"error"`
}

// Snippet truncates s to max runes, appending "..." when cut.
func Snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
