// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package agingset provides a capacity- and time-bounded membership cache.
//
// A Set remembers when each key was last added. Add reports whether a key is
// fresh, meaning it was absent or its last record is older than the maximum
// age. When an insert pushes the set past its maximum size, the oldest
// entries are evicted until the minimum size is reached.
//
// The set is used for content-fingerprint dedup and for "already queued"
// membership tests. Eviction sorts all entries by timestamp; it runs rarely
// and correctness of the freshness answer matters more than its cost.
package agingset

import (
	"slices"
	"sync"
	"time"
)

// Set is a concurrency-safe aging membership set.
type Set[K comparable] struct {
	mu      sync.Mutex
	entries map[K]time.Time
	minSize int
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
}

// Option configures a Set.
type Option[K comparable] func(*Set[K])

// WithClock replaces the time source. It is intended for tests.
func WithClock[K comparable](now func() time.Time) Option[K] {
	return func(s *Set[K]) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a set that holds at most maxSize keys, shrinks to minSize when
// that bound is exceeded, and treats entries older than maxAge as absent.
// A non-positive maxAge means entries never age out.
func New[K comparable](minSize, maxSize int, maxAge time.Duration, opts ...Option[K]) *Set[K] {
	if maxSize < 1 {
		maxSize = 1
	}
	minSize = min(max(minSize, 0), maxSize)

	s := &Set[K]{
		entries: make(map[K]time.Time, maxSize+1),
		minSize: minSize,
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add records key with the current time. It returns true if key was absent
// or its previous record was older than the maximum age.
func (s *Set[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	last, ok := s.entries[key]
	s.entries[key] = now
	if len(s.entries) > s.maxSize {
		s.shrink(key)
	}
	return !ok || s.expired(last, now)
}

// Contains reports whether key was added within the maximum age.
// It does not refresh the entry.
func (s *Set[K]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.entries[key]
	return ok && !s.expired(last, s.now())
}

// Remove forgets key.
func (s *Set[K]) Remove(key K) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of keys currently held, including aged ones not yet evicted.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Set[K]) expired(last, now time.Time) bool {
	return s.maxAge > 0 && now.Sub(last) > s.maxAge
}

type entry[K comparable] struct {
	key K
	at  time.Time
}

// shrink evicts the oldest entries down to minSize. The key just added is
// never evicted, whatever its timestamp ties with. Must be called with lock held.
func (s *Set[K]) shrink(added K) {
	all := make([]entry[K], 0, len(s.entries))
	for k, at := range s.entries {
		if k != added {
			all = append(all, entry[K]{key: k, at: at})
		}
	}
	slices.SortFunc(all, func(a, b entry[K]) int {
		return a.at.Compare(b.at)
	})
	evict := len(s.entries) - max(s.minSize, 1)
	for _, e := range all[:evict] {
		delete(s.entries, e.key)
	}
}
