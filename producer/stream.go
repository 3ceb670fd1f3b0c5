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
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/poiesic/twingest/storage"
)

const (
	defaultStreamName       = "stream"
	defaultHighFrequency    = 30.0 // tweets per minute
	defaultResubscribeEvery = 10 * time.Minute
	defaultPackageSize      = 20
	defaultFlushWait        = 2 * time.Second
	frequencySmoothing      = 0.5
)

// StreamSource reads a live filtered stream for the low-frequency terms.
// Terms busier than the high-frequency threshold are left to the search
// scheduler, which pages through them far more cheaply.
type StreamSource struct {
	name             string
	streamer         socialapi.Streamer
	tags             storage.TagStore
	highFrequency    float64
	resubscribeEvery time.Duration
	packageSize      int
	flushWait        time.Duration
	emptyBackoff     time.Duration
	logger           *slog.Logger
	now              func() time.Time

	live     <-chan *core.Tweet
	cancel   context.CancelFunc
	terms    []string
	openedAt time.Time
	counts   map[string]int
	rates    map[string]float64 // smoothed tweets per minute
}

var _ Source = (*StreamSource)(nil)

// StreamOption configures a StreamSource.
type StreamOption func(*StreamSource) error

// WithStreamName sets the source name.
func WithStreamName(name string) StreamOption {
	return func(s *StreamSource) error {
		if name != "" {
			s.name = name
		}
		return nil
	}
}

// WithHighFrequency sets the tweets-per-minute rate above which a term is
// dropped from the stream.
func WithHighFrequency(perMinute float64) StreamOption {
	return func(s *StreamSource) error {
		if perMinute <= 0 {
			return fmt.Errorf("high frequency must be positive, got %v", perMinute)
		}
		s.highFrequency = perMinute
		return nil
	}
}

// WithResubscribeEvery sets how often the term set is recomputed.
func WithResubscribeEvery(d time.Duration) StreamOption {
	return func(s *StreamSource) error {
		if d > 0 {
			s.resubscribeEvery = d
		}
		return nil
	}
}

// WithPackageSize sets the most tweets returned by one Next call.
func WithPackageSize(n int) StreamOption {
	return func(s *StreamSource) error {
		if n > 0 {
			s.packageSize = n
		}
		return nil
	}
}

// WithFlushWait sets how long Next waits to fill a package.
func WithFlushWait(d time.Duration) StreamOption {
	return func(s *StreamSource) error {
		if d > 0 {
			s.flushWait = d
		}
		return nil
	}
}

// WithStreamEmptyBackoff sets the delay suggested when no term qualifies.
func WithStreamEmptyBackoff(d time.Duration) StreamOption {
	return func(s *StreamSource) error {
		if d > 0 {
			s.emptyBackoff = d
		}
		return nil
	}
}

// WithStreamLogger sets a custom logger.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(s *StreamSource) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithStreamClock replaces time.Now, for tests.
func WithStreamClock(now func() time.Time) StreamOption {
	return func(s *StreamSource) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewStreamSource creates a StreamSource following the terms in tags.
func NewStreamSource(streamer socialapi.Streamer, tags storage.TagStore, opts ...StreamOption) (*StreamSource, error) {
	if streamer == nil {
		return nil, ErrStreamerRequired
	}
	if tags == nil {
		return nil, ErrTagStoreRequired
	}
	s := &StreamSource{
		name:             defaultStreamName,
		streamer:         streamer,
		tags:             tags,
		highFrequency:    defaultHighFrequency,
		resubscribeEvery: defaultResubscribeEvery,
		packageSize:      defaultPackageSize,
		flushWait:        defaultFlushWait,
		emptyBackoff:     defaultEmptyBackoff,
		logger:           slog.Default(),
		now:              time.Now,
		counts:           make(map[string]int),
		rates:            make(map[string]float64),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "stream_source")
	return s, nil
}

// Name returns the source name.
func (s *StreamSource) Name() string { return s.name }

// Terms returns the terms the open stream follows.
func (s *StreamSource) Terms() []string { return slices.Clone(s.terms) }

// Rate returns the smoothed tweets-per-minute estimate for term.
func (s *StreamSource) Rate(term string) float64 { return s.rates[term] }

// Next returns up to packageSize tweets from the live stream, waiting at
// most flushWait for them.
func (s *StreamSource) Next(ctx context.Context) (Batch, error) {
	if s.live == nil || s.now().Sub(s.openedAt) >= s.resubscribeEvery {
		if err := s.resubscribe(ctx); err != nil {
			return Batch{}, err
		}
	}
	if s.live == nil {
		return Batch{Delay: s.emptyBackoff}, nil
	}

	timer := time.NewTimer(s.flushWait)
	defer timer.Stop()

	tweets := make([]*core.Tweet, 0, s.packageSize)
	for len(tweets) < s.packageSize {
		select {
		case tweet, ok := <-s.live:
			if !ok {
				s.close()
				if len(tweets) > 0 {
					return Batch{Tweets: tweets}, nil
				}
				if ctx.Err() != nil {
					return Batch{}, ctx.Err()
				}
				return Batch{}, socialapi.ErrStreamClosed
			}
			s.count(tweet)
			tweets = append(tweets, tweet)
		case <-timer.C:
			return Batch{Tweets: tweets}, nil
		case <-ctx.Done():
			return Batch{Tweets: tweets}, nil
		}
	}
	return Batch{Tweets: tweets}, nil
}

// Close stops the live stream.
func (s *StreamSource) Close() {
	s.close()
}

func (s *StreamSource) count(tweet *core.Tweet) {
	for _, term := range s.terms {
		if socialapi.MatchesAny(tweet, []string{term}) {
			s.counts[term]++
		}
	}
}

// resubscribe folds the counts of the current stream into the rolling
// rates, recomputes the low-frequency term set and reopens the stream.
func (s *StreamSource) resubscribe(ctx context.Context) error {
	now := s.now()
	s.updateRates(now)

	terms, err := s.selectTerms(ctx)
	if err != nil {
		return err
	}
	if s.live != nil && slices.Equal(terms, s.terms) {
		s.openedAt = now
		return nil
	}

	s.close()
	s.terms = nil
	if len(terms) == 0 {
		s.logger.Debug("no low-frequency terms to stream")
		s.openedAt = now
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	live, err := s.streamer.StreamFilter(streamCtx, terms)
	if err != nil {
		cancel()
		return fmt.Errorf("open stream: %w", err)
	}
	s.live = live
	s.cancel = cancel
	s.terms = terms
	s.openedAt = now
	s.logger.Info("stream subscribed", "terms", len(terms))
	return nil
}

func (s *StreamSource) updateRates(now time.Time) {
	if s.live == nil || s.openedAt.IsZero() {
		return
	}
	minutes := now.Sub(s.openedAt).Minutes()
	if minutes <= 0 {
		return
	}
	for _, term := range s.terms {
		s.rates[term] = smooth(s.rates[term], float64(s.counts[term])/minutes)
	}
	clear(s.counts)
}

// selectTerms returns the sorted subscribed terms whose rate is at or below
// the high-frequency threshold. Terms outside the stream are rated from the
// hits of their last search.
func (s *StreamSource) selectTerms(ctx context.Context) ([]string, error) {
	subscribed, err := s.tags.SubscribedTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribed terms: %w", err)
	}
	stored, err := s.tags.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	for _, tag := range stored {
		if tag.Interval <= 0 || slices.Contains(s.terms, tag.Term) {
			continue
		}
		s.rates[tag.Term] = float64(tag.LastHits) / tag.Interval.Minutes()
	}

	terms := make([]string, 0, len(subscribed))
	for _, raw := range subscribed {
		term := core.NormalizeTerm(raw)
		if term == "" || slices.Contains(terms, term) {
			continue
		}
		if s.rates[term] > s.highFrequency {
			continue
		}
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms, nil
}

// close drops the live stream along with the counts gathered on it.
func (s *StreamSource) close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.live = nil
	s.cancel = nil
	clear(s.counts)
}

func smooth(previous, sample float64) float64 {
	if previous == 0 {
		return sample
	}
	return frequencySmoothing*sample + (1-frequencySmoothing)*previous
}
