package usecase

import (
	"sort"
	"strings"

	"github.com/ecolens/backend/internal/domain"
)

// MaxRankedCandidates caps the ranked candidate list
const MaxRankedCandidates = 10

// Rank deduplicates candidates by lower-cased cleaned text, keeping the most
// confident member of each group, then orders groups by confidence. Ties keep
// the order in which each group was first seen.
func Rank(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	groups := make(map[string]int, len(candidates))
	ranked := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(c.CleanedText)
		if i, ok := groups[key]; ok {
			if c.Confidence > ranked[i].Confidence {
				ranked[i] = c
			}
			continue
		}
		groups[key] = len(ranked)
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	if len(ranked) > MaxRankedCandidates {
		ranked = ranked[:MaxRankedCandidates]
	}
	return ranked
}
