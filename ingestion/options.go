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
	"time"

	"github.com/poiesic/twingest/core"
)

const (
	defaultBatchSize       = 100
	defaultBatchWindow     = 5 * time.Second
	defaultPollInterval    = 250 * time.Millisecond
	defaultCompactEvery    = 1000
	defaultCompactInterval = time.Hour
	defaultDedupWindow     = 6 * time.Hour

	dedupMinSize = 50_000
	dedupMaxSize = 100_000
)

// Sink receives tweets the consumer has drained instead of committing them.
// *resolve.Resolver satisfies it.
type Sink interface {
	Submit(ctx context.Context, tweet *core.Tweet) error
}

// TooOldMarker is told about links whose tweets fell outside retention on commit.
type TooOldMarker interface {
	MarkTooOld(url string)
}

// Option configures a Consumer.
type Option func(*Consumer) error

// WithBatchSize sets the number of drainable packages that triggers a flush.
func WithBatchSize(n int) Option {
	return func(c *Consumer) error {
		if n < 1 {
			return ErrInvalidBatchSize
		}
		c.batchSize = n
		return nil
	}
}

// WithBatchWindow sets the longest time pending tweets wait for a flush.
func WithBatchWindow(d time.Duration) Option {
	return func(c *Consumer) error {
		if d > 0 {
			c.batchWindow = d
		}
		return nil
	}
}

// WithPollInterval sets how long the loop sleeps when there is nothing to flush.
func WithPollInterval(d time.Duration) Option {
	return func(c *Consumer) error {
		if d > 0 {
			c.pollInterval = d
		}
		return nil
	}
}

// WithCompactEvery triggers index compaction after n batches. Zero disables it.
func WithCompactEvery(n int) Option {
	return func(c *Consumer) error {
		c.compactEvery = max(n, 0)
		return nil
	}
}

// WithCompactInterval triggers index compaction after d. Zero disables it.
func WithCompactInterval(d time.Duration) Option {
	return func(c *Consumer) error {
		c.compactInterval = max(d, 0)
		return nil
	}
}

// WithRetention sets the retention horizon passed to the index on commit.
func WithRetention(d time.Duration) Option {
	return func(c *Consumer) error {
		c.committer.retention = d
		return nil
	}
}

// WithDedupWindow sets how long a tweet id or text fingerprint suppresses repeats.
func WithDedupWindow(d time.Duration) Option {
	return func(c *Consumer) error {
		if d > 0 {
			c.dedupWindow = d
		}
		return nil
	}
}

// WithSink forwards drained tweets to sink instead of committing them.
func WithSink(sink Sink) Option {
	return func(c *Consumer) error {
		c.sink = sink
		return nil
	}
}

// WithTooOldMarker reports links of tweets the index rejected for age.
func WithTooOldMarker(marker TooOldMarker) Option {
	return func(c *Consumer) error {
		c.committer.marker = marker
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) error {
		c.now = now
		c.committer.now = now
		return nil
	}
}
