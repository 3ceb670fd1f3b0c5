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
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) (*TagRepository, *CursorRepository) {
	t.Helper()
	_, tags, cursors, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return tags, cursors
}

func TestTagRepository_SaveAndList(t *testing.T) {
	tags, _ := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, tags.SaveTag(ctx, core.NewTag("Lucene", time.Minute)))
	require.NoError(t, tags.SaveTag(ctx, core.NewTag("java", 2*time.Minute)))

	updated := core.NewTag("lucene", 5*time.Minute)
	updated.Cursor = 77
	require.NoError(t, tags.SaveTag(ctx, updated))

	list, err := tags.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "java", list[0].Term)
	assert.Equal(t, "lucene", list[1].Term)
	assert.Equal(t, 5*time.Minute, list[1].Interval)
	assert.Equal(t, core.ID(77), list[1].Cursor)
}

func TestTagRepository_SaveInvalid(t *testing.T) {
	tags, _ := newTestStores(t)
	err := tags.SaveTag(context.Background(), &core.Tag{Term: "  ", Interval: time.Minute})
	assert.ErrorIs(t, err, core.ErrInvalidTag)
}

func TestTagRepository_Subscriptions(t *testing.T) {
	tags, _ := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, tags.Subscribe(ctx, "alice", "golang"))
	require.NoError(t, tags.Subscribe(ctx, "bob", "GoLang"))
	require.NoError(t, tags.Subscribe(ctx, "bob", "rust"))
	// repeat subscription does not double count
	require.NoError(t, tags.Subscribe(ctx, "bob", "rust"))

	terms, err := tags.SubscribedTerms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "rust"}, terms)

	require.NoError(t, tags.Unsubscribe(ctx, "bob", "rust"))
	require.NoError(t, tags.Unsubscribe(ctx, "alice", "golang"))

	terms, err = tags.SubscribedTerms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, terms)

	err = tags.Unsubscribe(ctx, "alice", "golang")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = tags.Subscribe(ctx, "", "golang")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestCursorRepository(t *testing.T) {
	_, cursors := newTestStores(t)
	ctx := context.Background()

	cursor, err := cursors.LoadCursor(ctx, "friends:alice")
	require.NoError(t, err)
	assert.Equal(t, core.ID(0), cursor)

	require.NoError(t, cursors.SaveCursor(ctx, "friends:alice", 1234))
	require.NoError(t, cursors.SaveCursor(ctx, "timeline:alice", 99))

	cursor, err = cursors.LoadCursor(ctx, "friends:alice")
	require.NoError(t, err)
	assert.Equal(t, core.ID(1234), cursor)
}
