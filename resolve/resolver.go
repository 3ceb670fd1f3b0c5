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


package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/twingest/agingset"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
)

// LinkResolver follows links and extracts page metadata.
type LinkResolver interface {
	// ResolveRedirect follows the redirect chain starting at url and returns the final URL.
	ResolveRedirect(ctx context.Context, url string) (string, error)

	// FetchAndExtract downloads the page at url and returns its preview metadata.
	FetchAndExtract(ctx context.Context, url string) (Preview, error)
}

// Preview is the metadata extracted from a page.
type Preview struct {
	Title     string // display title, og:title when the page has one
	PageTitle string // contents of <title>
	Snippet   string
}

// Resolver resolves the first link of submitted tweets on a pool of workers.
type Resolver struct {
	index storage.Index
	links LinkResolver
	out   chan<- *core.Tweet

	workers         int
	queueSize       int
	redirectTimeout time.Duration
	fetchTimeout    time.Duration
	retention       time.Duration
	junkTitles      map[string]struct{}
	junkQuality     int
	penalty         float64
	logger          *slog.Logger
	now             func() time.Time

	queue  chan *core.Tweet
	tooOld *agingset.Set[string]

	mu      sync.Mutex
	pending map[string]*core.Tweet

	pool    *ants.Pool
	ctx     context.Context
	quit    chan struct{}
	wg      sync.WaitGroup
	live    atomic.Int32
	started atomic.Bool
	stopped atomic.Bool
}

// NewResolver creates a Resolver that forwards every submitted tweet to out.
func NewResolver(index storage.Index, links LinkResolver, out chan<- *core.Tweet, opts ...Option) (*Resolver, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if links == nil {
		return nil, ErrLinkResolverRequired
	}
	if out == nil {
		return nil, ErrOutputRequired
	}

	r := &Resolver{
		index:           index,
		links:           links,
		out:             out,
		workers:         defaultWorkers,
		queueSize:       defaultQueueSize,
		redirectTimeout: defaultRedirectTimeout,
		fetchTimeout:    defaultFetchTimeout,
		junkQuality:     defaultJunkQuality,
		penalty:         defaultQualityPenalty,
		logger:          slog.Default(),
		now:             time.Now,
		pending:         make(map[string]*core.Tweet),
		quit:            make(chan struct{}),
	}
	if err := WithJunkTitles(defaultJunkTitles...)(r); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.logger = r.logger.With("component", "resolver")
	r.queue = make(chan *core.Tweet, r.queueSize)
	r.tooOld = agingset.New[string](tooOldMinSize, tooOldMaxSize, tooOldMaxAge, agingset.WithClock[string](r.now))
	return r, nil
}

// Start launches the workers. Forwarding uses ctx, so cancelling it aborts
// delivery of in-flight tweets; use Stop for an orderly shutdown.
func (r *Resolver) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	pool, err := ants.NewPool(r.workers, ants.WithPanicHandler(func(p any) {
		r.logger.Error("resolver worker died", "panic", p, "live_workers", r.live.Load())
	}))
	if err != nil {
		return err
	}
	r.pool = pool
	r.ctx = ctx

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		r.live.Add(1)
		if err := r.pool.Submit(func() { r.work(ctx, i) }); err != nil {
			r.wg.Done()
			r.live.Add(-1)
			return fmt.Errorf("starting worker %d: %w", i, err)
		}
	}
	r.logger.Info("resolver started", "workers", r.workers, "queue_size", r.queueSize)
	return nil
}

// Stop asks workers to finish their current tweet and exit, then forwards any
// tweets still queued without resolving them.
func (r *Resolver) Stop() {
	if !r.started.Load() || !r.stopped.CompareAndSwap(false, true) {
		return
	}
	close(r.quit)
	r.wg.Wait()
	r.pool.Release()

	drained := 0
	for {
		select {
		case tweet := <-r.queue:
			r.release(tweet)
			r.forward(r.ctx, tweet)
			drained++
		default:
			r.logger.Info("resolver stopped", "drained", drained)
			return
		}
	}
}

// Submit routes a tweet either straight to the output or onto the work queue.
// It blocks while the work queue is full.
func (r *Resolver) Submit(ctx context.Context, tweet *core.Tweet) error {
	if r.stopped.Load() {
		return ErrResolverStopped
	}

	if r.retention > 0 && !tweet.Persistent && tweet.CreatedAt.Before(r.now().Add(-r.retention)) {
		tweet.Obsolete = true
		if url := tweet.PrimaryURL(); url != "" {
			r.MarkTooOld(url)
		}
		return r.forward(ctx, tweet)
	}

	url := tweet.PrimaryURL()
	if url == "" {
		return r.forward(ctx, tweet)
	}

	if r.mergePending(url, tweet) {
		return r.forward(ctx, tweet)
	}

	known, err := r.index.FindByURL(ctx, tweet.OriginalURL())
	if err != nil {
		r.logger.Warn("url lookup failed", "url", tweet.OriginalURL(), "err", err)
	}
	if known || r.tooOld.Contains(url) {
		return r.forward(ctx, tweet)
	}

	if !r.claim(url, tweet) {
		return r.forward(ctx, tweet)
	}

	select {
	case r.queue <- tweet:
		return nil
	case <-ctx.Done():
		r.release(tweet)
		return ctx.Err()
	case <-r.quit:
		r.release(tweet)
		if err := r.forward(ctx, tweet); err != nil {
			return err
		}
		return ErrResolverStopped
	}
}

// MarkTooOld records that url belongs to content past the retention horizon.
func (r *Resolver) MarkTooOld(url string) {
	r.tooOld.Add(url)
}

// Pending returns the number of URLs currently being resolved or queued.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// QueueLen returns the number of tweets waiting for a worker.
func (r *Resolver) QueueLen() int {
	return len(r.queue)
}

// LiveWorkers returns the number of workers still running.
func (r *Resolver) LiveWorkers() int {
	return int(r.live.Load())
}

// mergePending records tweet as a duplicate of the tweet already resolving url.
func (r *Resolver) mergePending(url string, tweet *core.Tweet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.pending[url]
	if !ok {
		return false
	}
	existing.AddDuplicate(tweet.ID)
	return true
}

// claim registers tweet as the one resolving url. If another tweet claimed
// it in the meantime, tweet is merged onto it instead and false is returned.
func (r *Resolver) claim(url string, tweet *core.Tweet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pending[url]; ok {
		existing.AddDuplicate(tweet.ID)
		return false
	}
	r.pending[url] = tweet
	return true
}

// release drops the pending entries owned by tweet under both its original
// and current URL.
func (r *Resolver) release(tweet *core.Tweet) {
	if len(tweet.URLs) == 0 {
		return
	}
	entry := tweet.URLs[0]
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, url := range []string{entry.Original, entry.Current()} {
		if r.pending[url] == tweet {
			delete(r.pending, url)
		}
	}
}

func (r *Resolver) forward(ctx context.Context, tweet *core.Tweet) error {
	select {
	case r.out <- tweet:
		return nil
	case <-ctx.Done():
		r.logger.Warn("tweet dropped on shutdown", "tweet_id", tweet.ID)
		return ctx.Err()
	}
}

func (r *Resolver) work(ctx context.Context, id int) {
	defer r.wg.Done()
	defer r.live.Add(-1)

	logger := r.logger.With("worker", id)
	logger.Debug("worker started")
	for {
		select {
		case <-r.quit:
			logger.Debug("worker exiting")
			return
		case <-ctx.Done():
			return
		case tweet := <-r.queue:
			r.process(ctx, logger, tweet)
		}
	}
}

func (r *Resolver) process(ctx context.Context, logger *slog.Logger, tweet *core.Tweet) {
	defer func() {
		r.release(tweet)
		_ = r.forward(ctx, tweet)
	}()

	entry := &tweet.URLs[0]
	start := r.now()

	redirectCtx, cancel := context.WithTimeout(ctx, r.redirectTimeout)
	final, err := r.links.ResolveRedirect(redirectCtx, entry.Original)
	cancel()
	if err != nil {
		tweet.DegradeQuality(r.penalty)
		logger.Debug("redirect failed", "url", entry.Original, "quality", tweet.Quality, "err", err)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	preview, err := r.links.FetchAndExtract(fetchCtx, final)
	cancel()
	if err != nil {
		entry.Resolve(final, "", "")
		tweet.DegradeQuality(r.penalty)
		logger.Debug("fetch failed", "url", final, "quality", tweet.Quality, "err", err)
		return
	}

	// parked and error pages often only give themselves away in <title>
	if r.isJunk(preview.Title) || r.isJunk(preview.PageTitle) {
		entry.Resolve(final, "", "")
		tweet.Quality = min(tweet.Quality, r.junkQuality)
		logger.Debug("junk title", "url", final, "title", preview.Title, "page_title", preview.PageTitle)
		return
	}

	entry.Resolve(final, preview.Title, preview.Snippet)
	logger.Debug("resolved", "url", entry.Original, "resolved", final, "elapsed", r.now().Sub(start))
}

func (r *Resolver) isJunk(title string) bool {
	if title == "" {
		return false
	}
	_, junk := r.junkTitles[normalizeTitle(title)]
	return junk
}
