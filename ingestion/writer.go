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
	"github.com/poiesic/twingest/storage"
)

const finalFlushTimeout = 30 * time.Second

// IndexWriter commits tweets arriving on a channel in bounded batches.
// It is the last stage when the Consumer forwards to a resolver.
type IndexWriter struct {
	in          <-chan *core.Tweet
	committer   *committer
	batchSize   int
	batchWindow time.Duration
	logger      *slog.Logger
	stats       counters
}

// WriterOption configures an IndexWriter.
type WriterOption func(*IndexWriter) error

// WithWriterBatchSize sets the batch size that triggers a commit.
func WithWriterBatchSize(n int) WriterOption {
	return func(w *IndexWriter) error {
		if n < 1 {
			return ErrInvalidBatchSize
		}
		w.batchSize = n
		return nil
	}
}

// WithWriterBatchWindow sets the longest time a partial batch waits.
func WithWriterBatchWindow(d time.Duration) WriterOption {
	return func(w *IndexWriter) error {
		if d > 0 {
			w.batchWindow = d
		}
		return nil
	}
}

// WithWriterRetention sets the retention horizon passed to the index.
func WithWriterRetention(d time.Duration) WriterOption {
	return func(w *IndexWriter) error {
		w.committer.retention = d
		return nil
	}
}

// WithWriterTooOldMarker reports links of tweets the index rejected for age.
func WithWriterTooOldMarker(marker TooOldMarker) WriterOption {
	return func(w *IndexWriter) error {
		w.committer.marker = marker
		return nil
	}
}

// WithWriterLogger sets a custom logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *IndexWriter) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewIndexWriter creates an IndexWriter reading from in.
func NewIndexWriter(index storage.Index, in <-chan *core.Tweet, opts ...WriterOption) (*IndexWriter, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if in == nil {
		return nil, ErrInputRequired
	}
	w := &IndexWriter{
		in:          in,
		batchSize:   defaultBatchSize,
		batchWindow: defaultBatchWindow,
		logger:      slog.Default(),
	}
	w.committer = &committer{index: index, now: time.Now, stats: &w.stats}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "index_writer")
	w.committer.logger = w.logger
	return w, nil
}

// Stats returns a snapshot of the writer counters.
func (w *IndexWriter) Stats() Stats {
	return w.stats.snapshot()
}

// Run commits batches until in is closed or ctx is done. Tweets already
// received are flushed before returning.
func (w *IndexWriter) Run(ctx context.Context) error {
	// the window restarts on every flush, size-triggered ones included
	timer := time.NewTimer(w.batchWindow)
	defer timer.Stop()

	batch := make([]*core.Tweet, 0, w.batchSize)
	flush := func(ctx context.Context) {
		timer.Reset(w.batchWindow)
		if len(batch) == 0 {
			return
		}
		w.stats.batches.Add(1)
		w.committer.commit(ctx, batch)
		batch = make([]*core.Tweet, 0, w.batchSize)
	}

	for {
		select {
		case tweet, ok := <-w.in:
			if !ok {
				flush(ctx)
				return nil
			}
			batch = append(batch, tweet)
			if len(batch) >= w.batchSize {
				flush(ctx)
			}
		case <-timer.C:
			flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			flush(final)
			cancel()
			return nil
		}
	}
}
