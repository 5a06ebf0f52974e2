package testutil

import (
	"bytes"
	"math/rand"
)

// LowercaseAlphabet is the alphabet of random texts unless a test needs a smaller one
const LowercaseAlphabet = "abcdefghijklmnopqrstuvwxyz"

// NaiveSearch returns every start position of pattern in text by comparing
// the pattern at each offset. It is the reference the matchers are checked against.
func NaiveSearch(text, pattern []byte) []int {
	matches := []int{}
	for pos := 0; pos+len(pattern) <= len(text); pos++ {
		if bytes.Equal(text[pos:pos+len(pattern)], pattern) {
			matches = append(matches, pos)
		}
	}
	return matches
}

// NaiveLPS computes the failure function by trying every prefix length
func NaiveLPS(pattern []byte) []int {
	lps := make([]int, len(pattern))
	for i := range pattern {
		for k := i; k > 0; k-- {
			if bytes.Equal(pattern[:k], pattern[i-k+1:i+1]) {
				lps[i] = k
				break
			}
		}
	}
	return lps
}

// RandomString returns n symbols drawn uniformly from alphabet
func RandomString(rng *rand.Rand, alphabet string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return b
}

// SearchCase is a text and a pattern to search for in it
type SearchCase struct {
	Text    []byte
	Pattern []byte
}

// RandomCases generates count cases with text lengths in [1, maxText] and
// pattern lengths in [1, maxPattern]. About half the cases have the pattern
// planted in the text so that matches actually occur.
func RandomCases(rng *rand.Rand, alphabet string, count, maxText, maxPattern int) []SearchCase {
	cases := make([]SearchCase, 0, count)
	for i := 0; i < count; i++ {
		text := RandomString(rng, alphabet, 1+rng.Intn(maxText))
		pattern := RandomString(rng, alphabet, 1+rng.Intn(maxPattern))
		if len(pattern) <= len(text) && rng.Intn(2) == 0 {
			at := rng.Intn(len(text) - len(pattern) + 1)
			copy(text[at:], pattern)
		}
		cases = append(cases, SearchCase{Text: text, Pattern: pattern})
	}
	return cases
}
