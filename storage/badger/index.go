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


package badger

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
)

// IndexRepository implements storage.Index for BadgerDB.
type IndexRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.Index = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(backend *Backend) *IndexRepository {
	return &IndexRepository{
		backend: backend,
		logger:  backend.logger.With("repository", "index"),
	}
}

// Commit stores a batch of tweets in one transaction.
// Tweets created before retentionCutoff are skipped unless marked persistent.
// Invalid tweets are logged and skipped; neither kind is in the returned slice.
// Writing an already indexed tweet replaces the stored document.
func (r *IndexRepository) Commit(ctx context.Context, tweets []*core.Tweet, retentionCutoff time.Time) ([]*core.Tweet, error) {
	written := make([]*core.Tweet, 0, len(tweets))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, tweet := range tweets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !tweet.Persistent && tweet.CreatedAt.Before(retentionCutoff) {
				continue
			}
			if err := core.ValidateTweet(tweet); err != nil {
				r.logger.Warn("skipping invalid tweet", "tweet_id", tweet.ID, "err", err)
				continue
			}

			if err := tx.Set(makeTweetKey(tweet.ID), storage.MarshalTweet(tweet)); err != nil {
				return err
			}

			// Both the short link and its resolution point back at the tweet
			idValue := storage.MarshalID(tweet.ID)
			for _, entry := range tweet.URLs {
				if err := tx.Set(makeTweetURLKey(entry.Original), idValue); err != nil {
					return err
				}
				if entry.IsResolved() && entry.Resolved != entry.Original {
					if err := tx.Set(makeTweetURLKey(entry.Resolved), idValue); err != nil {
						return err
					}
				}
			}
			written = append(written, tweet)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return written, nil
}

// QueueForCompaction runs value log garbage collection synchronously.
func (r *IndexRepository) QueueForCompaction(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	rewritten, err := r.backend.Compact()
	if err != nil {
		return err
	}
	r.logger.Debug("compaction finished", "files_rewritten", rewritten, "elapsed", time.Since(start))
	return nil
}

// FindByURL reports whether any committed tweet references url.
func (r *IndexRepository) FindByURL(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, storage.ErrInvalidQuery
	}
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		found, err = exists(tx, makeTweetURLKey(url))
		return err
	}, false)
	return found, err
}

// FindByID retrieves a committed tweet by its ID.
func (r *IndexRepository) FindByID(ctx context.Context, id core.ID) (*core.Tweet, error) {
	if id == 0 {
		return nil, storage.ErrInvalidQuery
	}
	var tweet *core.Tweet
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		tweet, err = get(tx, makeTweetKey(id), storage.UnmarshalTweet)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return tweet, nil
}

// Count returns the number of indexed tweets.
func (r *IndexRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(tweetDocPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
