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
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
)

// TagRepository implements storage.TagStore for BadgerDB.
type TagRepository struct {
	backend *Backend
}

var _ storage.TagStore = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository.
func NewTagRepository(backend *Backend) *TagRepository {
	return &TagRepository{
		backend: backend,
	}
}

// ListTags returns all stored tags in term order.
func (r *TagRepository) ListTags(ctx context.Context) ([]*core.Tag, error) {
	var tags []*core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTagPrefix()
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				tag, err := storage.UnmarshalTag(val)
				if err != nil {
					return err
				}
				tags = append(tags, tag)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// SaveTag inserts or replaces a tag. The term is normalized before storing.
func (r *TagRepository) SaveTag(ctx context.Context, tag *core.Tag) error {
	tag.Term = core.NormalizeTerm(tag.Term)
	if err := core.ValidateTag(tag); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeTagKey(tag.Term), storage.MarshalTag(tag)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// SubscribedTerms returns every term with at least one subscriber.
func (r *TagRepository) SubscribedTerms(ctx context.Context) ([]string, error) {
	var terms []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeSubscriptionCountPrefix()
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			terms = append(terms, string(key[len(prefix):]))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return terms, nil
}

// Subscribe records that user follows term. Subscribing twice is a no-op.
func (r *TagRepository) Subscribe(ctx context.Context, user, term string) error {
	term = core.NormalizeTerm(term)
	if user == "" || term == "" {
		return storage.ErrInvalidQuery
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		subKey := makeSubscriptionKey(term, user)
		found, err := exists(tx, subKey)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		if err := tx.Set(subKey, []byte{}); err != nil {
			return err
		}
		if err := adjustCount(tx, makeSubscriptionCountKey(term), 1); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Unsubscribe removes a subscription. Returns storage.ErrNotFound if user
// does not follow term.
func (r *TagRepository) Unsubscribe(ctx context.Context, user, term string) error {
	term = core.NormalizeTerm(term)
	if user == "" || term == "" {
		return storage.ErrInvalidQuery
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		subKey := makeSubscriptionKey(term, user)
		found, err := exists(tx, subKey)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		if err := tx.Delete(subKey); err != nil {
			return err
		}
		if err := adjustCount(tx, makeSubscriptionCountKey(term), -1); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// adjustCount adds delta to the counter at key, deleting it when it reaches zero.
func adjustCount(tx *badger.Txn, key []byte, delta int64) error {
	count, err := get(tx, key, decodeCount)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	count += delta
	if count <= 0 {
		return tx.Delete(key)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return tx.Set(key, buf)
}

func decodeCount(val []byte) (int64, error) {
	if len(val) != 8 {
		return 0, storage.ErrSerializationFailed
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}
