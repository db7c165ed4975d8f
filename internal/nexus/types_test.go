package nexus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_JSONKeepsZeroValueOfItsBasis(t *testing.T) {
	tests := []struct {
		name string
		rank Rank
		want string
	}{
		{"top upstream hit", RecencyRank(0), `{"basis":"recency","position":0}`},
		{"later upstream hit", RecencyRank(3), `{"basis":"recency","position":3}`},
		{"orthogonal memory hit", ScoreRank(0), `{"basis":"score","score":0}`},
		{"scored hit", ScoreRank(0.5), `{"basis":"score","score":0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.rank)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			var back Rank
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.rank, back)
		})
	}
}

func TestItem_RankPointerSerializes(t *testing.T) {
	r := RecencyRank(0)
	b, err := json.Marshal(Item{ID: "rss_1", Source: SourceFeed, Tags: []string{}, Rank: &r})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"rank":{"basis":"recency","position":0}`)
}

func TestMetadata_SetSkipsEmptyStrings(t *testing.T) {
	m := Metadata{}
	m.Set("author", "")
	m.Set("archived", false)
	m.Set("status", "unread")
	assert.Equal(t, Metadata{"archived": false, "status": "unread"}, m)
}

func TestParseSources(t *testing.T) {
	got, err := ParseSources([]string{"rss", "feeds", "Memory", ""})
	require.NoError(t, err)
	assert.Equal(t, []Source{SourceFeed, SourceMemory}, got)

	got, err = ParseSources(nil)
	require.NoError(t, err)
	assert.Equal(t, AllSources, got)

	_, err = ParseSources([]string{"email"})
	assert.True(t, IsValidation(err))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("  short ", 10))
	assert.Equal(t, "héllo...", Snippet("héllo world", 5))
}
