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


package kafkastream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader replays a fixed set of messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
	failAfter bool
	cfg       kafka.ReaderConfig
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	fail := r.failAfter
	r.mu.Unlock()
	if fail {
		return kafka.Message{}, errors.New("broker gone")
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func relayMessage(t *testing.T, offset int64, id core.ID, text string) kafka.Message {
	t.Helper()
	data, err := socialapi.EncodeRelayTweet(core.NewTweet(id, "alice", text, time.Now()))
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: data}
}

func newTestStreamer(t *testing.T, reader *fakeReader) *Streamer {
	t.Helper()
	s, err := New([]string{"localhost:9092"}, "tweets", withReaderFactory(func(cfg kafka.ReaderConfig) messageReader {
		reader.cfg = cfg
		return reader
	}))
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "tweets")
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = New([]string{"localhost:9092"}, "")
	assert.ErrorIs(t, err, ErrNoTopic)

	s, err := New([]string{"localhost:9092"}, "tweets")
	require.NoError(t, err)
	assert.Contains(t, s.groupID, "twingest-stream-")
}

func TestStreamFilter_FiltersByTerm(t *testing.T) {
	reader := &fakeReader{
		messages: []kafka.Message{
			relayMessage(t, 1, 10, "all about Lucene"),
			relayMessage(t, 2, 11, "nothing relevant"),
			{Offset: 3, Value: []byte("garbage")},
			relayMessage(t, 4, 12, "golang tips"),
		},
	}
	s := newTestStreamer(t, reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.StreamFilter(ctx, []string{"Lucene", " GoLang "})
	require.NoError(t, err)
	assert.Equal(t, "tweets", reader.cfg.Topic)
	assert.Equal(t, s.groupID, reader.cfg.GroupID)

	var got []core.ID
	for len(got) < 2 {
		select {
		case tweet := <-ch:
			assert.Equal(t, "stream", tweet.Source)
			got = append(got, tweet.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tweets")
		}
	}
	assert.Equal(t, []core.ID{10, 12}, got)

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 4
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	for range ch {
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	assert.True(t, reader.closed)
}

func TestStreamFilter_ClosesOnReaderFailure(t *testing.T) {
	reader := &fakeReader{failAfter: true}
	s := newTestStreamer(t, reader)

	ch, err := s.StreamFilter(context.Background(), []string{"java"})
	require.NoError(t, err)

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after reader failure")
	}
}
