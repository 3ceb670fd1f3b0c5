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
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timelineCall struct {
	user  string
	since core.ID
}

type fakeFeed struct {
	timelines   map[string][]*core.Tweet
	failUser    string
	friendCalls map[string]int
	calls       []timelineCall
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{timelines: make(map[string][]*core.Tweet), friendCalls: make(map[string]int)}
}

func (f *fakeFeed) GetFriends(ctx context.Context, user string) ([]core.ID, error) {
	f.friendCalls[user]++
	return []core.ID{1, 2, 3}, nil
}

func (f *fakeFeed) GetHomeTimeline(ctx context.Context, user string, max int, since core.ID) ([]*core.Tweet, error) {
	f.calls = append(f.calls, timelineCall{user, since})
	if user == f.failUser {
		return nil, errors.New("unauthorized")
	}
	var out []*core.Tweet
	for _, t := range f.timelines[user] {
		if t.ID > since && len(out) < max {
			out = append(out, t)
		}
	}
	return out, nil
}

func newCursorRepo(t *testing.T) *badger.CursorRepository {
	t.Helper()
	_, _, cursors, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return cursors
}

func TestNewUserSource_Validation(t *testing.T) {
	cursors := newCursorRepo(t)

	_, err := NewUserSource(nil, cursors, []string{"a"})
	assert.ErrorIs(t, err, ErrFeedRequired)
	_, err = NewUserSource(newFakeFeed(), nil, []string{"a"})
	assert.ErrorIs(t, err, ErrCursorStoreRequired)
	_, err = NewUserSource(newFakeFeed(), cursors, []string{"", ""})
	assert.ErrorIs(t, err, ErrEmptyRoster)
}

func TestUserSource_RotatesAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	cursors := newCursorRepo(t)
	feed := newFakeFeed()
	feed.timelines["ann"] = tweets(10, 11)
	feed.timelines["ben"] = tweets(20)

	u, err := NewUserSource(feed, cursors, []string{"ann", "ben", "ann"}, WithRotationDelay(3*time.Second))
	require.NoError(t, err)

	batch, err := u.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 2)
	assert.Equal(t, 3*time.Second, batch.Delay)

	batch, err = u.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 1)

	// back to ann, nothing new since the cursor
	batch, err = u.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch.Tweets)

	assert.Equal(t, []timelineCall{{"ann", 0}, {"ben", 0}, {"ann", 11}}, feed.calls)

	saved, err := cursors.LoadCursor(ctx, TimelineCursorKey("ann"))
	require.NoError(t, err)
	assert.Equal(t, core.ID(11), saved)
	assert.Equal(t, []core.ID{1, 2, 3}, u.Friends("ann"))
	assert.Equal(t, 1, feed.friendCalls["ann"], "friends are cached between rotations")
}

func TestUserSource_ResumesFromStoredCursor(t *testing.T) {
	ctx := context.Background()
	cursors := newCursorRepo(t)
	require.NoError(t, cursors.SaveCursor(ctx, TimelineCursorKey("ann"), 10))

	feed := newFakeFeed()
	feed.timelines["ann"] = tweets(10, 11)
	u, err := NewUserSource(feed, cursors, []string{"ann"})
	require.NoError(t, err)

	batch, err := u.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Tweets, 1)
	assert.Equal(t, core.ID(11), batch.Tweets[0].ID)
}

func TestUserSource_FailingUserDoesNotBlockRotation(t *testing.T) {
	ctx := context.Background()
	feed := newFakeFeed()
	feed.failUser = "ann"
	feed.timelines["ben"] = tweets(20)

	u, err := NewUserSource(feed, newCursorRepo(t), []string{"ann", "ben"})
	require.NoError(t, err)

	_, err = u.Next(ctx)
	assert.Error(t, err)

	batch, err := u.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Tweets, 1)
}

func TestUserSource_FriendsRefresh(t *testing.T) {
	clock := newClock()
	feed := newFakeFeed()
	u, err := NewUserSource(feed, newCursorRepo(t), []string{"ann"},
		WithFriendsRefresh(time.Hour), WithUsersClock(clock.now))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = u.Next(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, feed.friendCalls["ann"])

	clock.advance(time.Hour)
	_, err = u.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, feed.friendCalls["ann"])
}
