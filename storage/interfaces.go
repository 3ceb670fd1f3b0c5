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


package storage

import (
	"context"
	"time"

	"github.com/poiesic/twingest/core"
)

// Index is the search index tweets are committed to.
// Implementations must be thread-safe and idempotent on tweet id.
type Index interface {
	// Commit writes a batch of tweets in a single operation.
	// Tweets created before retentionCutoff are skipped unless Persistent.
	// Returns the tweets that were actually written.
	Commit(ctx context.Context, tweets []*core.Tweet, retentionCutoff time.Time) ([]*core.Tweet, error)

	// QueueForCompaction asks the index to compact its storage.
	// It may run for a long time and should be called off the ingestion path.
	QueueForCompaction(ctx context.Context) error

	// FindByURL reports whether a committed tweet links to url,
	// either as its original or its resolved form.
	FindByURL(ctx context.Context, url string) (bool, error)

	// FindByID retrieves a committed tweet.
	// Returns ErrNotFound if the tweet doesn't exist.
	FindByID(ctx context.Context, id core.ID) (*core.Tweet, error)
}

// TagStore persists search terms and their scheduling state.
type TagStore interface {
	// ListTags returns all known tags ordered by term.
	ListTags(ctx context.Context) ([]*core.Tag, error)

	// SaveTag inserts or replaces a tag keyed by its term.
	SaveTag(ctx context.Context, tag *core.Tag) error

	// SubscribedTerms returns the terms currently subscribed to by users.
	SubscribedTerms(ctx context.Context) ([]string, error)

	// Subscribe records that user follows term.
	Subscribe(ctx context.Context, user, term string) error

	// Unsubscribe removes a subscription.
	// Returns ErrNotFound if the subscription doesn't exist.
	Unsubscribe(ctx context.Context, user, term string) error
}

// CursorStore persists per-key "since" cursors for polling producers.
type CursorStore interface {
	// LoadCursor returns the stored cursor for key, or 0 if none exists.
	LoadCursor(ctx context.Context, key string) (core.ID, error)

	// SaveCursor stores cursor for key.
	SaveCursor(ctx context.Context, key string, cursor core.ID) error
}
