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
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/poiesic/twingest/storage"
)

const (
	defaultSearchName      = "search"
	defaultMaxResults      = 100
	defaultMaxPages        = 3
	defaultMinWait         = 2 * time.Second
	defaultEmptyBackoff    = time.Minute
	defaultFailureDelay    = time.Minute
	defaultRefreshInterval = 5 * time.Minute
)

// tagHeap orders tags by NextEligible, earliest first.
type tagHeap []*core.Tag

func (h tagHeap) Len() int { return len(h) }

func (h tagHeap) Less(i, j int) bool {
	if h[i].NextEligible.Equal(h[j].NextEligible) {
		return h[i].Term < h[j].Term
	}
	return h[i].NextEligible.Before(h[j].NextEligible)
}

func (h tagHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *tagHeap) Push(x any) { *h = append(*h, x.(*core.Tag)) }

func (h *tagHeap) Pop() any {
	old := *h
	n := len(old)
	tag := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return tag
}

// SearchSource schedules term queries by adapting each term's interval to
// the number of hits its last query returned.
type SearchSource struct {
	name            string
	searcher        socialapi.Searcher
	tags            storage.TagStore
	policy          core.IntervalPolicy
	maxResults      int
	maxPages        int
	minWait         time.Duration
	emptyBackoff    time.Duration
	failureDelay    time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger
	now             func() time.Time

	queue       tagHeap
	scheduled   map[string]*core.Tag
	lastRefresh time.Time
}

var _ Source = (*SearchSource)(nil)

// SearchOption configures a SearchSource.
type SearchOption func(*SearchSource) error

// WithSearchName sets the source name used for packages and queues.
func WithSearchName(name string) SearchOption {
	return func(s *SearchSource) error {
		if name != "" {
			s.name = name
		}
		return nil
	}
}

// WithIntervalPolicy replaces the interval policy.
func WithIntervalPolicy(policy core.IntervalPolicy) SearchOption {
	return func(s *SearchSource) error {
		if policy.MinInterval <= 0 || policy.MaxInterval < policy.MinInterval {
			return fmt.Errorf("invalid interval bounds [%s, %s]", policy.MinInterval, policy.MaxInterval)
		}
		if policy.TargetHits < 1 {
			return fmt.Errorf("target hits must be positive, got %d", policy.TargetHits)
		}
		s.policy = policy
		return nil
	}
}

// WithMaxResults sets the page size of each query.
func WithMaxResults(n int) SearchOption {
	return func(s *SearchSource) error {
		if n > 0 {
			s.maxResults = n
		}
		return nil
	}
}

// WithMaxPages bounds how many pages one scheduled query may fetch.
func WithMaxPages(n int) SearchOption {
	return func(s *SearchSource) error {
		if n > 0 {
			s.maxPages = n
		}
		return nil
	}
}

// WithMinWait sets the shortest delay suggested while no tag is eligible.
func WithMinWait(d time.Duration) SearchOption {
	return func(s *SearchSource) error {
		if d > 0 {
			s.minWait = d
		}
		return nil
	}
}

// WithEmptyBackoff sets the delay suggested when there are no terms at all.
func WithEmptyBackoff(d time.Duration) SearchOption {
	return func(s *SearchSource) error {
		if d > 0 {
			s.emptyBackoff = d
		}
		return nil
	}
}

// WithFailureDelay sets how far a failed tag is postponed.
func WithFailureDelay(d time.Duration) SearchOption {
	return func(s *SearchSource) error {
		if d > 0 {
			s.failureDelay = d
		}
		return nil
	}
}

// WithRefreshInterval sets how often newly subscribed terms are picked up.
func WithRefreshInterval(d time.Duration) SearchOption {
	return func(s *SearchSource) error {
		if d > 0 {
			s.refreshInterval = d
		}
		return nil
	}
}

// WithSearchLogger sets a custom logger.
func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(s *SearchSource) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSearchClock replaces time.Now, for tests.
func WithSearchClock(now func() time.Time) SearchOption {
	return func(s *SearchSource) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewSearchSource creates a SearchSource over the terms in tags.
func NewSearchSource(searcher socialapi.Searcher, tags storage.TagStore, opts ...SearchOption) (*SearchSource, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if tags == nil {
		return nil, ErrTagStoreRequired
	}
	s := &SearchSource{
		name:            defaultSearchName,
		searcher:        searcher,
		tags:            tags,
		policy:          core.DefaultIntervalPolicy(),
		maxResults:      defaultMaxResults,
		maxPages:        defaultMaxPages,
		minWait:         defaultMinWait,
		emptyBackoff:    defaultEmptyBackoff,
		failureDelay:    defaultFailureDelay,
		refreshInterval: defaultRefreshInterval,
		logger:          slog.Default(),
		now:             time.Now,
		scheduled:       make(map[string]*core.Tag),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search_source")
	return s, nil
}

// Name returns the source name.
func (s *SearchSource) Name() string { return s.name }

// Scheduled returns the number of terms in the schedule.
func (s *SearchSource) Scheduled() int { return len(s.queue) }

// Next queries the earliest eligible term. When no term is eligible it
// returns an empty batch with the time until the next one becomes eligible.
func (s *SearchSource) Next(ctx context.Context) (Batch, error) {
	now := s.now()
	if len(s.queue) == 0 || now.Sub(s.lastRefresh) >= s.refreshInterval {
		if err := s.refresh(ctx, now); err != nil {
			return Batch{}, err
		}
	}
	if len(s.queue) == 0 {
		s.logger.Debug("no terms to search", "backoff", s.emptyBackoff)
		return Batch{Delay: s.emptyBackoff}, nil
	}

	head := s.queue[0]
	if !head.Eligible(now) {
		return Batch{Delay: max(head.NextEligible.Sub(now), s.minWait)}, nil
	}

	tag := heap.Pop(&s.queue).(*core.Tag)
	tweets, maxID, err := s.query(ctx, tag)
	if err != nil {
		var rateLimit *socialapi.RateLimitError
		if !errors.As(err, &rateLimit) {
			tag.Postpone(now, s.failureDelay)
		}
		heap.Push(&s.queue, tag)
		return Batch{}, fmt.Errorf("search %q: %w", tag.Term, err)
	}

	tag.Record(s.policy, now, len(tweets), maxID)
	heap.Push(&s.queue, tag)
	if err := s.tags.SaveTag(ctx, tag); err != nil {
		s.logger.Error("failed to save tag", "term", tag.Term, "err", err)
	}
	s.logger.Debug("term searched", "term", tag.Term, "hits", len(tweets), "interval", tag.Interval)
	return Batch{Tweets: tweets}, nil
}

// query fetches up to maxPages pages of results newer than the tag cursor.
// A page shorter than maxResults ends the query.
func (s *SearchSource) query(ctx context.Context, tag *core.Tag) ([]*core.Tweet, core.ID, error) {
	var all []*core.Tweet
	since := tag.Cursor
	for page := 0; page < s.maxPages; page++ {
		tweets, maxID, err := s.searcher.Search(ctx, tag.Term, s.maxResults, since)
		if err != nil {
			if len(all) > 0 {
				s.logger.Warn("search page failed, keeping earlier pages", "term", tag.Term, "page", page, "err", err)
				break
			}
			return nil, 0, err
		}
		all = append(all, tweets...)
		if len(tweets) < s.maxResults || maxID <= since {
			since = max(since, maxID)
			break
		}
		since = maxID
	}
	return all, since, nil
}

// refresh merges the stored tags and subscribed terms into the schedule.
// Tags already scheduled keep their in-memory state.
func (s *SearchSource) refresh(ctx context.Context, now time.Time) error {
	stored, err := s.tags.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	terms, err := s.tags.SubscribedTerms(ctx)
	if err != nil {
		return fmt.Errorf("list subscribed terms: %w", err)
	}
	s.lastRefresh = now

	added := 0
	for _, tag := range stored {
		if s.schedule(tag) {
			added++
		}
	}
	for _, term := range terms {
		tag := core.NewTag(term, s.policy.MinInterval)
		if tag.Term == "" {
			continue
		}
		if s.schedule(tag) {
			added++
		}
	}
	if added > 0 {
		s.logger.Info("schedule refreshed", "added", added, "scheduled", len(s.queue))
	}
	return nil
}

func (s *SearchSource) schedule(tag *core.Tag) bool {
	if _, ok := s.scheduled[tag.Term]; ok {
		return false
	}
	if tag.Interval <= 0 {
		tag.Interval = s.policy.MinInterval
	}
	s.scheduled[tag.Term] = tag
	heap.Push(&s.queue, tag)
	return true
}
