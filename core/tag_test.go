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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, "java", NormalizeTerm("  Java "))
	assert.Equal(t, "apache lucene", NormalizeTerm("Apache \t Lucene"))
}

func TestIntervalPolicy_Next(t *testing.T) {
	policy := IntervalPolicy{
		MinInterval: 10 * time.Second,
		MaxInterval: 10 * time.Minute,
		TargetHits:  20,
		MaxFactor:   2,
	}

	tests := []struct {
		name    string
		current time.Duration
		hits    int
		check   func(t *testing.T, next time.Duration)
	}{
		{
			name:    "zero hits lengthens",
			current: time.Minute,
			hits:    0,
			check: func(t *testing.T, next time.Duration) {
				assert.Greater(t, next, time.Minute)
			},
		},
		{
			name:    "zero hits bounded at max",
			current: 8 * time.Minute,
			hits:    0,
			check: func(t *testing.T, next time.Duration) {
				assert.Equal(t, 10*time.Minute, next)
			},
		},
		{
			name:    "hits above target shortens",
			current: time.Minute,
			hits:    30,
			check: func(t *testing.T, next time.Duration) {
				assert.Less(t, next, time.Minute)
			},
		},
		{
			name:    "hits above target bounded at min",
			current: 12 * time.Second,
			hits:    500,
			check: func(t *testing.T, next time.Duration) {
				assert.Equal(t, 10*time.Second, next)
			},
		},
		{
			name:    "few hits lengthens",
			current: time.Minute,
			hits:    5,
			check: func(t *testing.T, next time.Duration) {
				assert.Equal(t, 2*time.Minute, next)
			},
		},
		{
			name:    "on target keeps interval",
			current: time.Minute,
			hits:    20,
			check: func(t *testing.T, next time.Duration) {
				assert.Equal(t, time.Minute, next)
			},
		},
		{
			name:    "unset interval starts at min",
			current: 0,
			hits:    20,
			check: func(t *testing.T, next time.Duration) {
				assert.Equal(t, 10*time.Second, next)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, policy.Next(tt.current, tt.hits))
		})
	}
}

func TestIntervalPolicy_Monotonic(t *testing.T) {
	policy := DefaultIntervalPolicy()
	prev := policy.Next(5*time.Minute, 0)
	for hits := 1; hits < 100; hits++ {
		next := policy.Next(5*time.Minute, hits)
		assert.LessOrEqual(t, next, prev, "hits=%d", hits)
		prev = next
	}
}

func TestTag_Record(t *testing.T) {
	now := time.Now()
	tag := NewTag("Java", time.Minute)
	assert.True(t, tag.Eligible(now))

	tag.Record(DefaultIntervalPolicy(), now, 0, 42)

	assert.Equal(t, "java", tag.Term)
	assert.Equal(t, ID(42), tag.Cursor)
	assert.Equal(t, now, tag.LastQuery)
	assert.Equal(t, tag.LastQuery.Add(tag.Interval), tag.NextEligible)
	assert.Greater(t, tag.Interval, time.Minute)
	assert.False(t, tag.Eligible(now))

	// cursor never moves backwards
	tag.Record(DefaultIntervalPolicy(), now, 3, 10)
	assert.Equal(t, ID(42), tag.Cursor)
}

func TestTag_Postpone(t *testing.T) {
	now := time.Now()
	tag := NewTag("go", time.Minute)
	tag.Postpone(now, 5*time.Second)
	assert.Equal(t, time.Minute, tag.Interval)
	assert.Equal(t, now.Add(5*time.Second), tag.NextEligible)
}
