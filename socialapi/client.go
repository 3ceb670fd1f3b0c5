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


package socialapi

import (
	"context"

	"github.com/poiesic/twingest/core"
)

// Searcher runs term queries.
type Searcher interface {
	// Search returns up to maxResults tweets matching term with ids above since,
	// and the highest id seen (since when nothing new was found).
	Search(ctx context.Context, term string, maxResults int, since core.ID) ([]*core.Tweet, core.ID, error)
}

// Streamer opens filtered live streams.
type Streamer interface {
	// StreamFilter delivers tweets matching any of terms until ctx is done
	// or the stream fails, at which point the channel is closed.
	StreamFilter(ctx context.Context, terms []string) (<-chan *core.Tweet, error)
}

// UserFeed reads the social graph and timelines of authenticated users.
type UserFeed interface {
	// GetFriends returns the ids of the accounts user follows.
	GetFriends(ctx context.Context, user string) ([]core.ID, error)

	// GetHomeTimeline returns up to max tweets newer than since from user's home timeline.
	GetHomeTimeline(ctx context.Context, user string, max int, since core.ID) ([]*core.Tweet, error)
}

// Client is the complete social API.
type Client interface {
	Searcher
	Streamer
	UserFeed
}
