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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewIndexWriter_Validation(t *testing.T) {
	in := make(chan *core.Tweet)
	_, err := NewIndexWriter(nil, in)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = NewIndexWriter(newRecordingIndex(), nil)
	assert.ErrorIs(t, err, ErrInputRequired)
	_, err = NewIndexWriter(newRecordingIndex(), in, WithWriterBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestIndexWriter_BatchesBySize(t *testing.T) {
	index := newRecordingIndex()
	in := make(chan *core.Tweet, 10)
	w, err := NewIndexWriter(index, in,
		WithWriterBatchSize(3),
		WithWriterBatchWindow(time.Hour),
		WithWriterLogger(discardLogger()),
	)
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		in <- tweetN(i)
	}
	close(in)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []int{3, 3, 1}, index.commitSizes(), "closing the input flushes the remainder")
	assert.Equal(t, int64(7), w.Stats().Committed)
	assert.Equal(t, int64(3), w.Stats().Batches)
}

func TestIndexWriter_FlushesOnWindow(t *testing.T) {
	index := newRecordingIndex()
	in := make(chan *core.Tweet, 10)
	w, err := NewIndexWriter(index, in,
		WithWriterBatchSize(100),
		WithWriterBatchWindow(20*time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	in <- tweetN(1)
	in <- tweetN(2)
	require.Eventually(t, func() bool { return len(index.commitSizes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, index.commitSizes())

	cancel()
	assert.NoError(t, <-done)
}

func TestIndexWriter_WindowRestartsAfterSizeFlush(t *testing.T) {
	index := newRecordingIndex()
	in := make(chan *core.Tweet, 10)
	window := 150 * time.Millisecond
	w, err := NewIndexWriter(index, in,
		WithWriterBatchSize(5),
		WithWriterBatchWindow(window),
		WithWriterLogger(discardLogger()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	// land just before the first window expires
	time.Sleep(window - 20*time.Millisecond)
	for i := 1; i <= 6; i++ {
		in <- tweetN(i)
	}
	require.Eventually(t, func() bool { return len(index.commitSizes()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	index.mu.Lock()
	gap := index.commitTimes[1].Sub(index.commitTimes[0])
	index.mu.Unlock()
	assert.Equal(t, []int{5, 1}, index.commitSizes())
	assert.GreaterOrEqual(t, gap, window-10*time.Millisecond, "remainder waited a full window after the size flush")
}

func TestIndexWriter_FlushesOnCancel(t *testing.T) {
	index := newRecordingIndex()
	in := make(chan *core.Tweet, 10)
	marker := &recordingMarker{}
	w, err := NewIndexWriter(index, in,
		WithWriterBatchSize(100),
		WithWriterBatchWindow(time.Hour),
		WithWriterRetention(time.Hour),
		WithWriterTooOldMarker(marker),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	in <- tweetN(1)
	in <- core.NewTweet(2, "bob", "ancient https://t.co/old", time.Now().Add(-2*time.Hour))
	require.Eventually(t, func() bool { return len(in) == 0 }, time.Second, time.Millisecond)
	// give the writer a moment to append the last received tweet
	time.Sleep(10 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int{2}, index.commitSizes())
	assert.Equal(t, []string{"https://t.co/old"}, marker.urls)
}
