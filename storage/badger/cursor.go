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
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
)

// CursorRepository implements storage.CursorStore for BadgerDB.
type CursorRepository struct {
	backend *Backend
}

var _ storage.CursorStore = (*CursorRepository)(nil)

// NewCursorRepository creates a new CursorRepository.
func NewCursorRepository(backend *Backend) *CursorRepository {
	return &CursorRepository{
		backend: backend,
	}
}

// SaveCursor persists the cursor for a producer key.
func (r *CursorRepository) SaveCursor(ctx context.Context, key string, cursor core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCursorKey(key), storage.MarshalID(cursor)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCursor retrieves the cursor for a producer key.
// Returns 0 if no cursor has been saved.
func (r *CursorRepository) LoadCursor(ctx context.Context, key string) (core.ID, error) {
	var cursor core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		cursor, err = get(tx, makeCursorKey(key), storage.UnmarshalID)
		if errors.Is(err, storage.ErrNotFound) {
			cursor = 0
			return nil
		}
		return err
	}, false)
	return cursor, err
}
