package kmp

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a failure function does not fit the
// pattern it was passed with.
var ErrInvalidArgument = errors.New("kmp: invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Stats counts the work done by a single scan.
type Stats struct {
	// Comparisons is the number of text symbols compared against the pattern
	Comparisons int
	// Fallbacks is the number of times the pattern cursor moved back through the table
	Fallbacks int
}

// Search returns the start index of every occurrence of pattern in text, in
// increasing order. Occurrences may overlap.
//
// lps must be the failure function of pattern, as returned by BuildLPS. A
// table of the wrong length or with out-of-range entries is rejected with an
// error wrapping ErrInvalidArgument; a well-formed table built from a
// different pattern produces wrong results. Use SearchPattern to have the
// table built internally.
//
// An empty pattern matches at every position from 0 through len(text).
func Search[E comparable](text, pattern []E, lps []int) ([]int, error) {
	matches, _, err := SearchStats(text, pattern, lps)
	return matches, err
}

// SearchStats is Search that also reports how much work the scan did.
func SearchStats[E comparable](text, pattern []E, lps []int) ([]int, Stats, error) {
	if err := validateLPS(lps, len(pattern)); err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	matches := scan(text, pattern, lps, &stats)
	return matches, stats, nil
}

// SearchPattern builds the failure function for pattern and searches text
// with it.
func SearchPattern[E comparable](text, pattern []E) []int {
	return scan(text, pattern, BuildLPS(pattern), nil)
}

// SearchString returns the byte offsets of every occurrence of pattern in text.
func SearchString(text, pattern string) []int {
	return SearchPattern([]byte(text), []byte(pattern))
}

// scan assumes lps has already been validated against pattern.
func scan[E comparable](text, pattern []E, lps []int, stats *Stats) []int {
	n, m := len(text), len(pattern)

	if m == 0 {
		matches := make([]int, n+1)
		for i := range matches {
			matches[i] = i
		}
		return matches
	}

	matches := []int{}
	if n < m {
		return matches
	}

	var comparisons, fallbacks int
	i, j := 0, 0
	for i < n {
		comparisons++
		if text[i] == pattern[j] {
			i++
			j++
			if j == m {
				matches = append(matches, i-m)
				j = lps[m-1]
			}
			continue
		}

		if j > 0 {
			j = lps[j-1]
			fallbacks++
		} else {
			i++
		}
	}

	if stats != nil {
		stats.Comparisons = comparisons
		stats.Fallbacks = fallbacks
	}
	return matches
}
