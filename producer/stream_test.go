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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamer struct {
	mu      sync.Mutex
	opened  [][]string
	streams []chan *core.Tweet
	failed  error
}

func (f *fakeStreamer) StreamFilter(ctx context.Context, terms []string) (<-chan *core.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed != nil {
		return nil, f.failed
	}
	ch := make(chan *core.Tweet, 256)
	f.opened = append(f.opened, terms)
	f.streams = append(f.streams, ch)
	return ch, nil
}

func (f *fakeStreamer) last() chan *core.Tweet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

func (f *fakeStreamer) subscriptions() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.opened...)
}

func TestNewStreamSource_Validation(t *testing.T) {
	tags := newTagRepo(t)

	_, err := NewStreamSource(nil, tags)
	assert.ErrorIs(t, err, ErrStreamerRequired)
	_, err = NewStreamSource(&fakeStreamer{}, nil)
	assert.ErrorIs(t, err, ErrTagStoreRequired)
	_, err = NewStreamSource(&fakeStreamer{}, tags, WithHighFrequency(0))
	assert.Error(t, err)
}

func TestStreamSource_FollowsLowFrequencyTerms(t *testing.T) {
	ctx := context.Background()
	tags := newTagRepo(t)
	for _, term := range []string{"golang", "bitcoin", "zig"} {
		require.NoError(t, tags.Subscribe(ctx, "alice", term))
	}
	busy := core.NewTag("bitcoin", time.Minute)
	busy.LastHits = 100
	require.NoError(t, tags.SaveTag(ctx, busy))

	streamer := &fakeStreamer{}
	s, err := NewStreamSource(streamer, tags, WithFlushWait(10*time.Millisecond))
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"golang", "zig"}}, streamer.subscriptions())
	assert.Equal(t, []string{"golang", "zig"}, s.Terms())
}

func TestStreamSource_SmallPackages(t *testing.T) {
	ctx := context.Background()
	tags := newTagRepo(t)
	require.NoError(t, tags.Subscribe(ctx, "alice", "golang"))

	streamer := &fakeStreamer{}
	s, err := NewStreamSource(streamer, tags, WithPackageSize(2), WithFlushWait(20*time.Millisecond))
	require.NoError(t, err)

	batch, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch.Tweets)

	live := streamer.last()
	for i := 1; i <= 3; i++ {
		live <- core.NewTweet(core.ID(i), "dan", "golang tip", time.Now())
	}
	batch, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 2)

	batch, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 1)
	assert.Len(t, streamer.subscriptions(), 1, "stream stays open between packages")
}

func TestStreamSource_BusyTermLeavesStream(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tags := newTagRepo(t)
	require.NoError(t, tags.Subscribe(ctx, "alice", "golang"))
	require.NoError(t, tags.Subscribe(ctx, "alice", "rustlang"))

	streamer := &fakeStreamer{}
	s, err := NewStreamSource(streamer, tags,
		WithStreamClock(clock.now),
		WithPackageSize(100),
		WithFlushWait(20*time.Millisecond),
		WithResubscribeEvery(time.Minute),
		WithHighFrequency(30))
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	live := streamer.last()
	for i := 1; i <= 100; i++ {
		live <- core.NewTweet(core.ID(i), "dan", "golang rocks", time.Now())
	}
	batch, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 100)

	clock.advance(time.Minute)
	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, s.Rate("golang"), 0.001)
	assert.Equal(t, [][]string{{"golang", "rustlang"}, {"rustlang"}}, streamer.subscriptions())
}

func TestStreamSource_ClosedStreamReopens(t *testing.T) {
	ctx := context.Background()
	tags := newTagRepo(t)
	require.NoError(t, tags.Subscribe(ctx, "alice", "golang"))

	streamer := &fakeStreamer{}
	s, err := NewStreamSource(streamer, tags, WithFlushWait(20*time.Millisecond))
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	close(streamer.last())

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, socialapi.ErrStreamClosed)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, streamer.subscriptions(), 2)
}

func TestStreamSource_ClosedStreamForgetsCounts(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tags := newTagRepo(t)
	require.NoError(t, tags.Subscribe(ctx, "alice", "golang"))

	streamer := &fakeStreamer{}
	s, err := NewStreamSource(streamer, tags,
		WithStreamClock(clock.now),
		WithPackageSize(100),
		WithFlushWait(20*time.Millisecond),
		WithResubscribeEvery(time.Minute),
		WithHighFrequency(30))
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	live := streamer.last()
	for i := 1; i <= 40; i++ {
		live <- core.NewTweet(core.ID(i), "dan", "golang burst", time.Now())
	}
	close(live)
	batch, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 40)

	// reopen, then stay quiet for a full interval
	clock.advance(time.Minute)
	_, err = s.Next(ctx)
	require.NoError(t, err)
	require.Len(t, streamer.subscriptions(), 2)

	clock.advance(time.Minute)
	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.Rate("golang"))
	assert.Equal(t, []string{"golang"}, s.Terms())
	assert.Len(t, streamer.subscriptions(), 2)
}

func TestStreamSource_NoTermsBacksOff(t *testing.T) {
	streamer := &fakeStreamer{failed: errors.New("must not be called")}
	s, err := NewStreamSource(streamer, newTagRepo(t), WithStreamEmptyBackoff(time.Minute))
	require.NoError(t, err)

	batch, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, batch.Delay)
}
