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
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
)

// Stats is a snapshot of ingestion counters.
type Stats struct {
	Batches    int64 `json:"batches"`
	Committed  int64 `json:"committed"`
	Forwarded  int64 `json:"forwarded"`
	Dropped    int64 `json:"dropped"`
	Duplicates int64 `json:"duplicates"`
	Linked     int64 `json:"linked"`
}

type counters struct {
	batches    atomic.Int64
	committed  atomic.Int64
	forwarded  atomic.Int64
	dropped    atomic.Int64
	duplicates atomic.Int64
	linked     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Batches:    c.batches.Load(),
		Committed:  c.committed.Load(),
		Forwarded:  c.forwarded.Load(),
		Dropped:    c.dropped.Load(),
		Duplicates: c.duplicates.Load(),
		Linked:     c.linked.Load(),
	}
}

// committer writes batches to the index. Shared by Consumer and IndexWriter.
type committer struct {
	index     storage.Index
	retention time.Duration
	marker    TooOldMarker
	now       func() time.Time
	logger    *slog.Logger
	stats     *counters
}

// commit links replies and retweets to their parents, then writes the batch.
// A failed write drops the whole batch. Returns the number of tweets written.
func (c *committer) commit(ctx context.Context, tweets []*core.Tweet) int {
	if len(tweets) == 0 {
		return 0
	}
	batch := c.link(ctx, tweets)

	var cutoff time.Time
	if c.retention > 0 {
		cutoff = c.now().Add(-c.retention)
	}

	written, err := c.index.Commit(ctx, batch, cutoff)
	if err != nil {
		c.stats.dropped.Add(int64(len(batch)))
		c.logger.Error("commit failed, dropping batch", "batch_size", len(batch), "err", err)
		return 0
	}
	c.stats.committed.Add(int64(len(written)))

	if c.marker != nil && len(written) < len(batch) {
		c.markSkipped(batch, written, cutoff)
	}
	return len(written)
}

// link increments reply and retweet counts on parents found in the batch
// or the index. Parents loaded from the index are appended for re-commit.
func (c *committer) link(ctx context.Context, tweets []*core.Tweet) []*core.Tweet {
	known := make(map[core.ID]*core.Tweet, len(tweets))
	for _, t := range tweets {
		known[t.ID] = t
	}

	var loaded []*core.Tweet
	parent := func(id core.ID) *core.Tweet {
		if p, ok := known[id]; ok {
			return p
		}
		p, err := c.index.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				c.logger.Debug("parent lookup failed", "tweet_id", id, "err", err)
			}
			known[id] = nil
			return nil
		}
		known[id] = p
		loaded = append(loaded, p)
		return p
	}

	for _, t := range tweets {
		if t.InReplyTo != 0 && t.InReplyTo != t.ID {
			if p := parent(t.InReplyTo); p != nil {
				p.ReplyCount++
				c.stats.linked.Add(1)
			}
		}
		if t.RetweetOf != 0 && t.RetweetOf != t.ID {
			if p := parent(t.RetweetOf); p != nil {
				p.RetweetCount++
				c.stats.linked.Add(1)
			}
		}
	}

	if len(loaded) == 0 {
		return tweets
	}
	batch := make([]*core.Tweet, 0, len(tweets)+len(loaded))
	batch = append(batch, tweets...)
	return append(batch, loaded...)
}

// markSkipped marks the links of tweets dropped for age. Tweets the index
// rejected for other reasons are left alone.
func (c *committer) markSkipped(batch, written []*core.Tweet, cutoff time.Time) {
	kept := make(map[core.ID]struct{}, len(written))
	for _, t := range written {
		kept[t.ID] = struct{}{}
	}
	for _, t := range batch {
		if _, ok := kept[t.ID]; ok || t.Persistent || !t.CreatedAt.Before(cutoff) {
			continue
		}
		if url := t.PrimaryURL(); url != "" {
			c.marker.MarkTooOld(url)
		}
	}
}
