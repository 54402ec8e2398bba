// Package store keeps the most recent analyses in memory so results can be
// fetched again by id. Nothing is written to disk.
package store

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/atikulmunna/logsift/internal/model"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 100

// Store is a bounded LRU of analyses keyed by id. Safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, model.Analysis]
}

// New creates a Store holding at most capacity analyses.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[string, model.Analysis](capacity, nil)
	return &Store{lru: lru}
}

// Put adds or replaces an analysis, evicting the least recently used one when full.
func (s *Store) Put(an model.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(an.ID, an)
}

// Get returns the analysis with id and marks it as recently used.
func (s *Store) Get(id string) (model.Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(id)
}

// Delete removes one analysis. It reports whether it was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Remove(id)
}

// Clear removes everything and returns how many analyses were dropped.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lru.Len()
	s.lru.Purge()
	return n
}

// Len returns the number of stored analyses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Recent returns up to n analyses, most recently used first, without
// touching their recency.
func (s *Store) Recent(n int) []model.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.lru.Keys() // oldest first
	out := make([]model.Analysis, 0, min(n, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if an, ok := s.lru.Peek(keys[i]); ok {
			out = append(out, an)
		}
	}
	return out
}
