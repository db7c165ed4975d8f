package memory

import (
	"strings"
	"time"

	"github.com/aryannaik/nexus/internal/nexus"
)

// Entry is a remembered text fragment with its embedding vector.
type Entry struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Tags      []string       `json:"tags"`
	Metadata  nexus.Metadata `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	Embedding []float32      `json:"-"`
}

// Hit is a scored entry from a search.
type Hit struct {
	Entry Entry
	Score float32
}

// Item normalizes the entry for the unified API.
func (e Entry) Item() nexus.Item {
	title, _, _ := strings.Cut(e.Text, "\n")
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return nexus.Item{
		ID:        e.ID,
		Source:    nexus.SourceMemory,
		Title:     nexus.Snippet(title, 80),
		Snippet:   nexus.Snippet(e.Text, 200),
		Timestamp: e.CreatedAt,
		Tags:      tags,
		Metadata:  e.Metadata,
	}
}

// Item normalizes the hit, carrying its similarity as the rank.
func (h Hit) Item() nexus.Item {
	it := h.Entry.Item()
	r := nexus.ScoreRank(h.Score)
	it.Rank = &r
	return it
}
