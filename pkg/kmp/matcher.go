package kmp

// Matcher is a pattern with its failure function computed once, for
// searching many texts. A Matcher is immutable and safe for concurrent use.
type Matcher[E comparable] struct {
	pattern []E
	lps     []int
}

// Compile copies pattern and builds its failure function.
func Compile[E comparable](pattern []E) *Matcher[E] {
	p := make([]E, len(pattern))
	copy(p, pattern)
	return &Matcher[E]{
		pattern: p,
		lps:     BuildLPS(p),
	}
}

// CompileString compiles the bytes of pattern.
func CompileString(pattern string) *Matcher[byte] {
	return Compile([]byte(pattern))
}

// FindAll returns the start index of every occurrence in text.
func (m *Matcher[E]) FindAll(text []E) []int {
	return scan(text, m.pattern, m.lps, nil)
}

// FindAllStats is FindAll that also reports the work done.
func (m *Matcher[E]) FindAllStats(text []E) ([]int, Stats) {
	var stats Stats
	matches := scan(text, m.pattern, m.lps, &stats)
	return matches, stats
}

// Find returns the first occurrence in text, or -1.
func (m *Matcher[E]) Find(text []E) int {
	if len(m.pattern) == 0 {
		return 0
	}

	j := 0
	for i := 0; i < len(text); {
		if text[i] == m.pattern[j] {
			i++
			j++
			if j == len(m.pattern) {
				return i - j
			}
		} else if j > 0 {
			j = m.lps[j-1]
		} else {
			i++
		}
	}
	return -1
}

// Contains reports whether the pattern occurs in text.
func (m *Matcher[E]) Contains(text []E) bool {
	return m.Find(text) >= 0
}

// Count returns the number of (possibly overlapping) occurrences in text.
func (m *Matcher[E]) Count(text []E) int {
	return len(m.FindAll(text))
}

// Len returns the pattern length.
func (m *Matcher[E]) Len() int {
	return len(m.pattern)
}

// Pattern returns a copy of the compiled pattern.
func (m *Matcher[E]) Pattern() []E {
	p := make([]E, len(m.pattern))
	copy(p, m.pattern)
	return p
}

// LPS returns a copy of the failure function.
func (m *Matcher[E]) LPS() []int {
	lps := make([]int, len(m.lps))
	copy(lps, m.lps)
	return lps
}
