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


package core

import (
	"strings"
	"time"
)

// Tag is a search term tracked for adaptive polling frequency.
type Tag struct {
	Term         string
	Interval     time.Duration // current query interval
	Cursor       ID            // highest tweet id seen for this term
	LastQuery    time.Time
	NextEligible time.Time // LastQuery + Interval
	LastHits     int
}

// NewTag creates a tag for term that is eligible immediately.
func NewTag(term string, interval time.Duration) *Tag {
	return &Tag{
		Term:     NormalizeTerm(term),
		Interval: interval,
	}
}

// NormalizeTerm lower-cases a term and collapses inner whitespace.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

// Eligible reports whether the tag may be queried at now.
func (t *Tag) Eligible(now time.Time) bool {
	return !now.Before(t.NextEligible)
}

// IntervalPolicy derives the next query interval of a tag from the number
// of hits its last query returned.
//
// Each query is expected to return TargetHits results. The interval is scaled
// by TargetHits/hits, bounded to a factor in [1/MaxFactor, MaxFactor]; a query
// with no hits multiplies it by MaxFactor. The result is clamped to
// [MinInterval, MaxInterval].
type IntervalPolicy struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	TargetHits  int
	MaxFactor   float64
}

// DefaultIntervalPolicy returns the policy used when none is configured.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		MinInterval: 30 * time.Second,
		MaxInterval: 6 * time.Hour,
		TargetHits:  20,
		MaxFactor:   2,
	}
}

// Next returns the interval that follows current after a query with hits results.
func (p IntervalPolicy) Next(current time.Duration, hits int) time.Duration {
	if current <= 0 {
		current = p.MinInterval
	}
	maxFactor := p.MaxFactor
	if maxFactor <= 1 {
		maxFactor = 2
	}

	factor := maxFactor
	if hits > 0 {
		factor = float64(p.TargetHits) / float64(hits)
		factor = min(max(factor, 1/maxFactor), maxFactor)
	}

	next := time.Duration(float64(current) * factor)
	// rounding must not erase the direction of the adjustment
	if factor > 1 && next <= current {
		next = current + 1
	}
	if factor < 1 && next >= current {
		next = current - 1
	}
	return min(max(next, p.MinInterval), p.MaxInterval)
}

// Record updates the tag after a query issued at now that returned hits
// results with maxID as the highest tweet id.
func (t *Tag) Record(policy IntervalPolicy, now time.Time, hits int, maxID ID) {
	t.Interval = policy.Next(t.Interval, hits)
	t.LastQuery = now
	t.NextEligible = now.Add(t.Interval)
	t.LastHits = hits
	if maxID > t.Cursor {
		t.Cursor = maxID
	}
}

// Postpone pushes the next eligible time back without changing the interval.
// It is used when a query failed and the tag must stay scheduled.
func (t *Tag) Postpone(now time.Time, delay time.Duration) {
	t.NextEligible = now.Add(delay)
}
