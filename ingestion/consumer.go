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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/twingest/agingset"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
	"github.com/poiesic/twingest/waitutil"
)

// Consumer multiplexes registered queues into batches.
type Consumer struct {
	index     storage.Index
	sink      Sink
	committer *committer

	batchSize       int
	batchWindow     time.Duration
	pollInterval    time.Duration
	compactEvery    int
	compactInterval time.Duration
	dedupWindow     time.Duration
	logger          *slog.Logger
	now             func() time.Time

	seenIDs  *agingset.Set[core.ID]
	seenText *agingset.Set[core.Fingerprint]

	mu     sync.RWMutex
	queues []*NamedQueue
	byName map[string]*NamedQueue

	// owned by the Run loop
	lastFlush    time.Time
	sinceCompact int
	lastCompact  time.Time

	running    atomic.Bool
	compacting atomic.Bool
	compactWG  sync.WaitGroup
	stats      counters
}

// NewConsumer creates a Consumer committing to index.
func NewConsumer(index storage.Index, opts ...Option) (*Consumer, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}

	c := &Consumer{
		index:           index,
		batchSize:       defaultBatchSize,
		batchWindow:     defaultBatchWindow,
		pollInterval:    defaultPollInterval,
		compactEvery:    defaultCompactEvery,
		compactInterval: defaultCompactInterval,
		dedupWindow:     defaultDedupWindow,
		logger:          slog.Default(),
		now:             time.Now,
		byName:          make(map[string]*NamedQueue),
	}
	c.committer = &committer{index: index, now: time.Now, stats: &c.stats}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.logger = c.logger.With("component", "consumer")
	c.committer.logger = c.logger
	c.seenIDs = agingset.New[core.ID](dedupMinSize, dedupMaxSize, c.dedupWindow, agingset.WithClock[core.ID](c.now))
	c.seenText = agingset.New[core.Fingerprint](dedupMinSize, dedupMaxSize, c.dedupWindow, agingset.WithClock[core.Fingerprint](c.now))
	c.lastFlush = c.now()
	c.lastCompact = c.lastFlush
	return c, nil
}

// Register creates a named queue. Weight caps how many packages the queue
// contributes to a single batch.
func (c *Consumer) Register(name string, capacity, weight int) (*NamedQueue, error) {
	if name == "" {
		return nil, ErrEmptyQueueName
	}
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if weight < 1 {
		return nil, ErrInvalidWeight
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byName[name]; ok {
		return nil, ErrQueueExists
	}
	q := newNamedQueue(name, capacity, weight)
	c.queues = append(c.queues, q)
	c.byName[name] = q
	c.logger.Debug("queue registered", "queue", name, "capacity", capacity, "weight", weight)
	return q, nil
}

// Queue returns the queue registered under name.
func (c *Consumer) Queue(name string) (*NamedQueue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.byName[name]
	return q, ok
}

// QueueDepths returns the number of waiting packages per queue.
func (c *Consumer) QueueDepths() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	depths := make(map[string]int, len(c.queues))
	for _, q := range c.queues {
		depths[q.name] = q.Len()
	}
	return depths
}

// Stats returns a snapshot of the consumer counters.
func (c *Consumer) Stats() Stats {
	return c.stats.snapshot()
}

// Run drains queues until ctx is done. It returns nil on cancellation and
// waits for a background compaction to finish before returning.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)
	defer c.compactWG.Wait()

	c.logger.Info("consumer started", "batch_size", c.batchSize, "batch_window", c.batchWindow, "sink", c.sink != nil)
	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped", "stats", c.Stats())
			return nil
		}
		if !c.ready() {
			// cancellation is observed at the top of the loop
			_ = waitutil.Sleep(ctx, c.pollInterval)
			continue
		}
		c.cycle(ctx)
	}
}

// ready reports whether a batch should be flushed now. The threshold is
// measured in packages the next cycle can drain, so weights bound it too.
func (c *Consumer) ready() bool {
	drainable := c.drainable()
	if drainable >= c.batchSize {
		return true
	}
	return drainable > 0 && c.now().Sub(c.lastFlush) >= c.batchWindow
}

func (c *Consumer) drainable() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, q := range c.queues {
		total += min(q.Len(), q.weight)
	}
	return total
}

// cycle drains, deduplicates and delivers one batch.
func (c *Consumer) cycle(ctx context.Context) {
	drained := c.drain()
	batch := c.dedupe(drained)
	c.lastFlush = c.now()
	c.stats.batches.Add(1)

	if c.sink != nil {
		c.forward(ctx, batch)
	} else {
		c.committer.commit(ctx, batch)
	}
	c.logger.Debug("batch flushed", "drained", len(drained), "delivered", len(batch))

	c.sinceCompact++
	c.maybeCompact(ctx)
}

// drain takes up to weight packages from every queue.
func (c *Consumer) drain() []*core.Tweet {
	c.mu.RLock()
	queues := c.queues
	c.mu.RUnlock()

	var tweets []*core.Tweet
	for _, q := range queues {
		for i := 0; i < q.weight; i++ {
			pkg, ok := q.take()
			if !ok {
				break
			}
			tweets = append(tweets, pkg.Tweets...)
		}
	}
	return tweets
}

// dedupe drops tweets whose id or text was seen within the dedup window.
// Retweets are identified by id only; their text is the original's.
func (c *Consumer) dedupe(tweets []*core.Tweet) []*core.Tweet {
	out := make([]*core.Tweet, 0, len(tweets))
	byPrint := make(map[core.Fingerprint]*core.Tweet)
	for _, t := range tweets {
		if !c.seenIDs.Add(t.ID) {
			c.stats.duplicates.Add(1)
			continue
		}
		if t.RetweetOf == 0 {
			if fp, ok := core.FingerprintText(t.Text); ok {
				if first, ok := byPrint[fp]; ok {
					first.AddDuplicate(t.ID)
					c.stats.duplicates.Add(1)
					continue
				}
				if !c.seenText.Add(fp) {
					c.stats.duplicates.Add(1)
					continue
				}
				byPrint[fp] = t
			}
		}
		out = append(out, t)
	}
	return out
}

func (c *Consumer) forward(ctx context.Context, batch []*core.Tweet) {
	for i, t := range batch {
		if err := c.sink.Submit(ctx, t); err != nil {
			if ctx.Err() != nil {
				lost := len(batch) - i
				c.stats.dropped.Add(int64(lost))
				c.logger.Warn("shutdown interrupted forwarding", "dropped", lost)
				return
			}
			c.stats.dropped.Add(1)
			c.logger.Warn("sink rejected tweet", "tweet_id", t.ID, "err", err)
			continue
		}
		c.stats.forwarded.Add(1)
	}
}

// maybeCompact starts a background compaction when enough batches or time
// have passed and none is already running.
func (c *Consumer) maybeCompact(ctx context.Context) {
	due := (c.compactEvery > 0 && c.sinceCompact >= c.compactEvery) ||
		(c.compactInterval > 0 && c.now().Sub(c.lastCompact) >= c.compactInterval)
	if !due || !c.compacting.CompareAndSwap(false, true) {
		return
	}
	c.sinceCompact = 0
	c.lastCompact = c.now()

	c.compactWG.Add(1)
	go func() {
		defer c.compactWG.Done()
		defer c.compacting.Store(false)
		start := time.Now()
		if err := c.index.QueueForCompaction(ctx); err != nil {
			c.logger.Error("index compaction failed", "err", err)
			return
		}
		c.logger.Info("index compaction finished", "elapsed", time.Since(start))
	}()
}
