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


package producer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/poiesic/twingest/waitutil"
)

const (
	defaultMaxPending   = 10
	defaultPendingWait  = time.Second
	defaultErrorBackoff = 30 * time.Second
)

// Batch is the outcome of one Source step.
type Batch struct {
	Tweets []*core.Tweet
	// Delay is how long the runner sleeps before the next step.
	Delay time.Duration
}

// Source produces batches of tweets. Next is only called from the runner's
// goroutine, so implementations need no locking of their own state.
type Source interface {
	Name() string
	Next(ctx context.Context) (Batch, error)
}

// Queue is the output a runner feeds. *ingestion.NamedQueue satisfies it.
type Queue interface {
	Put(ctx context.Context, pkg core.TweetPackage) error
	Len() int
}

// RunnerStats is a snapshot of runner counters.
type RunnerStats struct {
	Packages    int64 `json:"packages"`
	Tweets      int64 `json:"tweets"`
	Errors      int64 `json:"errors"`
	RateLimited int64 `json:"rate_limited"`
}

// Runner drives a Source and packages its output onto a Queue.
type Runner struct {
	id           string
	source       Source
	queue        Queue
	maxPending   int
	pendingWait  time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger

	seq         uint64
	packages    atomic.Int64
	tweets      atomic.Int64
	errors      atomic.Int64
	rateLimited atomic.Int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// WithMaxPending sets how many packages may wait in the queue before the
// runner stops producing.
func WithMaxPending(n int) RunnerOption {
	return func(r *Runner) error {
		r.maxPending = max(n, 0)
		return nil
	}
}

// WithPendingWait sets how often a backed-up queue is rechecked.
func WithPendingWait(d time.Duration) RunnerOption {
	return func(r *Runner) error {
		if d > 0 {
			r.pendingWait = d
		}
		return nil
	}
}

// WithErrorBackoff sets the sleep after a source error that carries no retry hint.
func WithErrorBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) error {
		if d > 0 {
			r.errorBackoff = d
		}
		return nil
	}
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRunner creates a Runner feeding queue from source.
func NewRunner(source Source, queue Queue, opts ...RunnerOption) (*Runner, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}
	r := &Runner{
		id:           uuid.NewString(),
		source:       source,
		queue:        queue,
		maxPending:   defaultMaxPending,
		pendingWait:  defaultPendingWait,
		errorBackoff: defaultErrorBackoff,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "producer", "source", source.Name(), "runner", r.id)
	return r, nil
}

// ID returns the unique id of this runner instance.
func (r *Runner) ID() string { return r.id }

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Packages:    r.packages.Load(),
		Tweets:      r.tweets.Load(),
		Errors:      r.errors.Load(),
		RateLimited: r.rateLimited.Load(),
	}
}

// Run produces until ctx is done. It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("producer started")
	defer r.logger.Info("producer stopped", "packages", r.packages.Load(), "tweets", r.tweets.Load())

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.waitForRoom(ctx); err != nil {
			return nil
		}

		batch, err := r.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			_ = waitutil.Sleep(ctx, r.backoff(err))
			continue
		}

		if len(batch.Tweets) > 0 {
			if err := r.emit(ctx, batch.Tweets); err != nil {
				return nil
			}
		}
		_ = waitutil.Sleep(ctx, batch.Delay)
	}
}

// waitForRoom blocks while the output queue holds more than maxPending packages.
func (r *Runner) waitForRoom(ctx context.Context) error {
	waited := false
	for r.queue.Len() > r.maxPending {
		if !waited {
			r.logger.Debug("output queue full, waiting", "pending", r.queue.Len())
			waited = true
		}
		if err := waitutil.Sleep(ctx, r.pendingWait); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) emit(ctx context.Context, tweets []*core.Tweet) error {
	name := r.source.Name()
	for _, t := range tweets {
		if t.Source == "" {
			t.Source = name
		}
	}
	r.seq++
	if err := r.queue.Put(ctx, core.NewTweetPackage(name, r.seq, tweets)); err != nil {
		return err
	}
	r.packages.Add(1)
	r.tweets.Add(int64(len(tweets)))
	return nil
}

func (r *Runner) backoff(err error) time.Duration {
	r.errors.Add(1)
	if retryAfter, ok := socialapi.RetryAfter(err); ok {
		r.rateLimited.Add(1)
		r.logger.Warn("rate limited", "retry_after", retryAfter, "err", err)
		return retryAfter
	}
	r.logger.Warn("source failed, backing off", "backoff", r.errorBackoff, "err", err)
	return r.errorBackoff
}
