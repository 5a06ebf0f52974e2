// Package types contains shared data structures used across the application.
package types

import "github.com/Veraticus/kmpscan/pkg/kmp"

// MatchResult represents a pattern match result
type MatchResult struct {
	PatternName string
	Text        string
	Position    int
}

// Pattern represents a configurable literal pattern
type Pattern struct {
	Name        string             `yaml:"name"`
	Text        string             `yaml:"text"`
	Description string             `yaml:"description"`
	Enabled     bool               `yaml:"enabled"`
	compiled    *kmp.Matcher[byte] `yaml:"-"`
}

// Matcher returns the compiled matcher, or nil if the pattern has not been compiled
func (p *Pattern) Matcher() *kmp.Matcher[byte] {
	return p.compiled
}

// Compile builds the matcher for the pattern text
func (p *Pattern) Compile() {
	p.compiled = kmp.CompileString(p.Text)
}
