package testutil

import (
	"sync"

	"github.com/Veraticus/kmpscan/pkg/types"
)

// MockPatternMatcher is a mock implementation of monitor.PatternMatcher for testing
type MockPatternMatcher struct {
	mu             sync.Mutex
	results        []types.MatchResult
	matchCallCount int
	lines          []string
}

// NewMockPatternMatcher creates a new mock pattern matcher
func NewMockPatternMatcher(results ...types.MatchResult) *MockPatternMatcher {
	return &MockPatternMatcher{
		results: results,
	}
}

// Match implements the PatternMatcher interface
func (m *MockPatternMatcher) Match(text string) []types.MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchCallCount++
	m.lines = append(m.lines, text)

	result := make([]types.MatchResult, len(m.results))
	copy(result, m.results)
	return result
}

// SetResults sets what Match will return
func (m *MockPatternMatcher) SetResults(results ...types.MatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
}

// GetMatchCallCount returns how many times Match was called
func (m *MockPatternMatcher) GetMatchCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchCallCount
}

// GetLines returns every text Match was called with
func (m *MockPatternMatcher) GetLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.lines))
	copy(result, m.lines)
	return result
}
