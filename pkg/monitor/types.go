package monitor

import "github.com/Veraticus/kmpscan/pkg/types"

// MatchResult represents a pattern match result.
type MatchResult = types.MatchResult

// PatternMatcher matches patterns in text.
type PatternMatcher interface {
	Match(text string) []MatchResult
}
