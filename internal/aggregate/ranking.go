package aggregate

import (
	"cmp"

	"github.com/aryannaik/nexus/internal/nexus"
)

// Policy orders two items; negative means a ranks before b.
type Policy func(a, b nexus.Item) int

// positionStep is the score lost per place in an upstream-ordered list.
const positionStep = 0.1

// EffectiveScore maps an item's rank onto one scale: similarity items keep
// their score, upstream-ordered items score 1 - 0.1*position (floored at 0),
// unranked items score 0.
func EffectiveScore(it nexus.Item) float32 {
	if it.Rank == nil {
		return 0
	}
	switch it.Rank.Basis {
	case nexus.BasisScore:
		return it.Rank.Score
	case nexus.BasisRecency:
		return max(0, 1-positionStep*float32(it.Rank.Position))
	}
	return 0
}

// RankByRelevance orders by effective score, then by recency.
func RankByRelevance(a, b nexus.Item) int {
	if c := cmp.Compare(EffectiveScore(b), EffectiveScore(a)); c != 0 {
		return c
	}
	return ByRecency(a, b)
}

// ByRecency orders newest first, then by ID so output is deterministic.
func ByRecency(a, b nexus.Item) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
