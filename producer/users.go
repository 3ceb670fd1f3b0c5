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
	defaultUsersName      = "users"
	defaultTimelineSize   = 200
	defaultRotationDelay  = time.Minute
	defaultFriendsRefresh = time.Hour
)

// TimelineCursorKey is the cursor store key of a user's home timeline.
func TimelineCursorKey(user string) string {
	return "timeline:" + user
}

// UserSource rotates through a roster of authenticated users and reads
// each one's home timeline since the last tweet seen.
type UserSource struct {
	name           string
	feed           socialapi.UserFeed
	cursors        storage.CursorStore
	roster         []string
	timelineSize   int
	rotationDelay  time.Duration
	friendsRefresh time.Duration
	logger         *slog.Logger
	now            func() time.Time

	next      int
	since     map[string]core.ID
	friends   map[string][]core.ID
	friendsAt map[string]time.Time
}

var _ Source = (*UserSource)(nil)

// UserOption configures a UserSource.
type UserOption func(*UserSource) error

// WithUsersName sets the source name.
func WithUsersName(name string) UserOption {
	return func(u *UserSource) error {
		if name != "" {
			u.name = name
		}
		return nil
	}
}

// WithTimelineSize sets how many tweets are requested per timeline read.
func WithTimelineSize(n int) UserOption {
	return func(u *UserSource) error {
		if n > 0 {
			u.timelineSize = n
		}
		return nil
	}
}

// WithRotationDelay sets the delay between two users.
func WithRotationDelay(d time.Duration) UserOption {
	return func(u *UserSource) error {
		if d > 0 {
			u.rotationDelay = d
		}
		return nil
	}
}

// WithFriendsRefresh sets how often a user's friend list is reloaded.
func WithFriendsRefresh(d time.Duration) UserOption {
	return func(u *UserSource) error {
		if d > 0 {
			u.friendsRefresh = d
		}
		return nil
	}
}

// WithUsersLogger sets a custom logger.
func WithUsersLogger(logger *slog.Logger) UserOption {
	return func(u *UserSource) error {
		if logger == nil {
			logger = slog.Default()
		}
		u.logger = logger
		return nil
	}
}

// WithUsersClock replaces time.Now, for tests.
func WithUsersClock(now func() time.Time) UserOption {
	return func(u *UserSource) error {
		if now != nil {
			u.now = now
		}
		return nil
	}
}

// NewUserSource creates a UserSource over roster. Duplicate and empty names
// are dropped.
func NewUserSource(feed socialapi.UserFeed, cursors storage.CursorStore, roster []string, opts ...UserOption) (*UserSource, error) {
	if feed == nil {
		return nil, ErrFeedRequired
	}
	if cursors == nil {
		return nil, ErrCursorStoreRequired
	}
	users := make([]string, 0, len(roster))
	for _, user := range roster {
		if user != "" && !slices.Contains(users, user) {
			users = append(users, user)
		}
	}
	if len(users) == 0 {
		return nil, ErrEmptyRoster
	}

	u := &UserSource{
		name:           defaultUsersName,
		feed:           feed,
		cursors:        cursors,
		roster:         users,
		timelineSize:   defaultTimelineSize,
		rotationDelay:  defaultRotationDelay,
		friendsRefresh: defaultFriendsRefresh,
		logger:         slog.Default(),
		now:            time.Now,
		since:          make(map[string]core.ID),
		friends:        make(map[string][]core.ID),
		friendsAt:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	u.logger = u.logger.With("component", "user_source")
	return u, nil
}

// Name returns the source name.
func (u *UserSource) Name() string { return u.name }

// Friends returns the last loaded friend ids of user.
func (u *UserSource) Friends(user string) []core.ID {
	return slices.Clone(u.friends[user])
}

// Next reads the timeline of the next user in the rotation. A failing user
// does not hold up the others: the rotation advances before any call is made.
func (u *UserSource) Next(ctx context.Context) (Batch, error) {
	user := u.roster[u.next]
	u.next = (u.next + 1) % len(u.roster)

	if err := u.refreshFriends(ctx, user); err != nil {
		return Batch{}, err
	}

	since, err := u.cursor(ctx, user)
	if err != nil {
		return Batch{}, err
	}
	tweets, err := u.feed.GetHomeTimeline(ctx, user, u.timelineSize, since)
	if err != nil {
		return Batch{}, fmt.Errorf("home timeline of %s: %w", user, err)
	}

	maxID := since
	for _, t := range tweets {
		maxID = max(maxID, t.ID)
	}
	if maxID > since {
		u.since[user] = maxID
		if err := u.cursors.SaveCursor(ctx, TimelineCursorKey(user), maxID); err != nil {
			u.logger.Error("failed to save timeline cursor", "user", user, "err", err)
		}
	}
	u.logger.Debug("timeline read", "user", user, "tweets", len(tweets), "since", since)
	return Batch{Tweets: tweets, Delay: u.rotationDelay}, nil
}

func (u *UserSource) cursor(ctx context.Context, user string) (core.ID, error) {
	if since, ok := u.since[user]; ok {
		return since, nil
	}
	since, err := u.cursors.LoadCursor(ctx, TimelineCursorKey(user))
	if err != nil {
		return 0, fmt.Errorf("load cursor of %s: %w", user, err)
	}
	u.since[user] = since
	return since, nil
}

func (u *UserSource) refreshFriends(ctx context.Context, user string) error {
	now := u.now()
	if at, ok := u.friendsAt[user]; ok && now.Sub(at) < u.friendsRefresh {
		return nil
	}
	friends, err := u.feed.GetFriends(ctx, user)
	if err != nil {
		return fmt.Errorf("friends of %s: %w", user, err)
	}
	u.friends[user] = friends
	u.friendsAt[user] = now
	u.logger.Debug("friends loaded", "user", user, "count", len(friends))
	return nil
}
