package monitor

import (
	"sort"

	"github.com/Veraticus/kmpscan/pkg/types"
)

// KMPPatternMatcher finds literal patterns with precompiled KMP matchers
type KMPPatternMatcher struct {
	patterns []types.Pattern
}

// NewPatternMatcher creates a new pattern matcher
func NewPatternMatcher(patterns []types.Pattern) *KMPPatternMatcher {
	// Filter only enabled patterns with a compiled matcher
	enabledPatterns := make([]types.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Enabled && p.Matcher() != nil {
			enabledPatterns = append(enabledPatterns, p)
		}
	}

	return &KMPPatternMatcher{
		patterns: enabledPatterns,
	}
}

// Match finds every occurrence of every pattern in text, overlapping
// occurrences included. Results are ordered by position, then by the order
// the patterns were configured in.
func (pm *KMPPatternMatcher) Match(text string) []MatchResult {
	var results []MatchResult
	data := []byte(text)

	for _, pattern := range pm.patterns {
		m := pattern.Matcher()
		for _, pos := range m.FindAll(data) {
			results = append(results, MatchResult{
				PatternName: pattern.Name,
				Text:        text[pos : pos+m.Len()],
				Position:    pos,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Position < results[j].Position
	})
	return results
}

// GetPatterns returns the active patterns
func (pm *KMPPatternMatcher) GetPatterns() []types.Pattern {
	return pm.patterns
}
