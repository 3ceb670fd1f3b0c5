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
	"sync"
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMarker struct {
	mu   sync.Mutex
	urls []string
}

func (m *recordingMarker) MarkTooOld(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
}

func newTestCommitter(index *recordingIndex, retention time.Duration, marker TooOldMarker) (*committer, *counters) {
	stats := &counters{}
	return &committer{
		index:     index,
		retention: retention,
		marker:    marker,
		now:       time.Now,
		logger:    discardLogger(),
		stats:     stats,
	}, stats
}

func TestCommitter_LinksParentsFromIndex(t *testing.T) {
	index := newRecordingIndex()
	ctx := context.Background()
	now := time.Now().UTC()

	parent := core.NewTweet(1, "alice", "original thought", now)
	_, err := index.Commit(ctx, []*core.Tweet{parent}, time.Time{})
	require.NoError(t, err)

	c, stats := newTestCommitter(index, 0, nil)

	reply := core.NewTweet(2, "bob", "@alice agreed", now)
	reply.InReplyTo = 1
	retweet := core.NewTweet(3, "carol", "RT @alice original thought", now)
	retweet.RetweetOf = 1
	orphan := core.NewTweet(4, "dave", "replying to nobody", now)
	orphan.InReplyTo = 999

	written := c.commit(ctx, []*core.Tweet{reply, retweet, orphan})
	assert.Equal(t, 4, written, "parent is re-committed with the batch")

	stored, err := index.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ReplyCount)
	assert.Equal(t, 1, stored.RetweetCount)
	assert.Equal(t, int64(2), stats.linked.Load())
}

func TestCommitter_MarksSkippedLinksTooOld(t *testing.T) {
	index := newRecordingIndex()
	marker := &recordingMarker{}
	c, stats := newTestCommitter(index, 24*time.Hour, marker)
	now := time.Now().UTC()

	fresh := core.NewTweet(1, "alice", "fresh https://t.co/new", now)
	stale := core.NewTweet(2, "bob", "stale https://t.co/old", now.Add(-72*time.Hour))
	pinned := core.NewTweet(3, "carol", "pinned https://t.co/pin", now.Add(-72*time.Hour))
	pinned.Persistent = true

	written := c.commit(context.Background(), []*core.Tweet{fresh, stale, pinned})
	assert.Equal(t, 2, written)
	assert.Equal(t, []string{"https://t.co/old"}, marker.urls)
	assert.Equal(t, int64(2), stats.committed.Load())

	index.mu.Lock()
	defer index.mu.Unlock()
	require.Len(t, index.cutoffs, 1)
	assert.WithinDuration(t, now.Add(-24*time.Hour), index.cutoffs[0], time.Minute)
}

func TestCommitter_InvalidTweetDoesNotSinkBatch(t *testing.T) {
	index := newRecordingIndex()
	marker := &recordingMarker{}
	c, stats := newTestCommitter(index, 24*time.Hour, marker)
	now := time.Now().UTC()

	good := core.NewTweet(1, "alice", "fine https://t.co/ok", now)
	broken := core.NewTweet(2, "bob", "broken https://t.co/bad", now)
	broken.Text = ""

	assert.Equal(t, 1, c.commit(context.Background(), []*core.Tweet{good, broken}))
	assert.Equal(t, int64(1), stats.committed.Load())
	assert.Zero(t, stats.dropped.Load())
	assert.Empty(t, marker.urls, "rejected tweets are not too old")

	_, err := index.FindByID(context.Background(), 1)
	assert.NoError(t, err)
}

func TestCommitter_EmptyBatch(t *testing.T) {
	index := newRecordingIndex()
	c, _ := newTestCommitter(index, 0, nil)
	assert.Equal(t, 0, c.commit(context.Background(), nil))
	assert.Empty(t, index.commitSizes())
}
