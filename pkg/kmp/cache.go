package kmp

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keeps recently used byte matchers so that a pattern searched
// repeatedly has its failure function built only once.
type Cache struct {
	entries *lru.Cache[uint64, *Matcher[byte]]
}

// NewCache creates a cache holding at most size matchers.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[uint64, *Matcher[byte]](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns the matcher for pattern, compiling it on a miss.
func (c *Cache) Get(pattern []byte) *Matcher[byte] {
	key := xxhash.Sum64(pattern)
	if m, ok := c.entries.Get(key); ok && bytes.Equal(m.pattern, pattern) {
		return m
	}

	// Miss or hash collision; the newer pattern wins the slot
	m := Compile(pattern)
	c.entries.Add(key, m)
	return m
}

// GetString is Get for a string pattern.
func (c *Cache) GetString(pattern string) *Matcher[byte] {
	return c.Get([]byte(pattern))
}

// Len returns the number of cached matchers.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached matcher.
func (c *Cache) Purge() {
	c.entries.Purge()
}
