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


package ingestion

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/twingest/core"
)

// NamedQueue is a bounded FIFO of packages from one producer.
type NamedQueue struct {
	name   string
	weight int
	ch     chan core.TweetPackage
	tweets atomic.Int64
}

func newNamedQueue(name string, capacity, weight int) *NamedQueue {
	return &NamedQueue{
		name:   name,
		weight: weight,
		ch:     make(chan core.TweetPackage, capacity),
	}
}

// Name returns the name the queue was registered under.
func (q *NamedQueue) Name() string { return q.name }

// Weight returns the maximum number of packages drained per cycle.
func (q *NamedQueue) Weight() int { return q.weight }

// Len returns the number of packages waiting.
func (q *NamedQueue) Len() int { return len(q.ch) }

// Pending returns the number of tweets across waiting packages.
func (q *NamedQueue) Pending() int { return max(int(q.tweets.Load()), 0) }

// Cap returns the queue capacity.
func (q *NamedQueue) Cap() int { return cap(q.ch) }

// Put appends a package, blocking while the queue is full.
func (q *NamedQueue) Put(ctx context.Context, pkg core.TweetPackage) error {
	select {
	case q.ch <- pkg:
		q.tweets.Add(int64(pkg.Len()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// take removes a package without blocking.
func (q *NamedQueue) take() (core.TweetPackage, bool) {
	select {
	case pkg := <-q.ch:
		q.tweets.Add(-int64(pkg.Len()))
		return pkg, true
	default:
		return core.TweetPackage{}, false
	}
}
