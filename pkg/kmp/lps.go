// Package kmp implements exact substring search with the Knuth-Morris-Pratt
// algorithm.
//
// A search runs in two steps. BuildLPS computes the failure function of the
// pattern, and Search walks the text once, using that table to avoid
// re-reading symbols it has already matched. Both functions are pure: they
// read their inputs and return freshly allocated results.
package kmp

// BuildLPS returns the failure function of pattern: lps[i] is the length of
// the longest proper prefix of pattern[:i+1] that is also a suffix of it.
// The result always has len(pattern) entries.
func BuildLPS[E comparable](pattern []E) []int {
	lps := make([]int, len(pattern))

	// j is the length of the prefix matched so far
	j := 0
	for i := 1; i < len(pattern); i++ {
		for j > 0 && pattern[i] != pattern[j] {
			j = lps[j-1]
		}
		if pattern[i] == pattern[j] {
			j++
		}
		lps[i] = j
	}

	return lps
}

// BuildLPSString is BuildLPS over the bytes of pattern.
func BuildLPSString(pattern string) []int {
	return BuildLPS([]byte(pattern))
}

// validateLPS checks that lps could belong to a pattern of length m.
func validateLPS(lps []int, m int) error {
	if len(lps) != m {
		return invalidArgument("lps length %d does not match pattern length %d", len(lps), m)
	}
	for i, v := range lps {
		if v < 0 || v > i {
			return invalidArgument("lps[%d] = %d out of range [0, %d]", i, v, i)
		}
	}
	return nil
}
