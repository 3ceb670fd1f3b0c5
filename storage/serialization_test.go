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
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestURLEntryRoundTrip(t *testing.T) {
	entry := core.URLEntry{Start: 5, End: 28, Original: "https://t.co/abc"}
	entry.Resolve("https://www.example.org/post/1", "A post", "First paragraph")

	tweet := &core.Tweet{
		ID:      1,
		Text:    "read https://t.co/abc today",
		URLs:    []core.URLEntry{entry},
		Quality: core.MaxQuality,
	}

	decoded, err := UnmarshalTweet(MarshalTweet(tweet))
	require.NoError(t, err)
	require.Len(t, decoded.URLs, 1)

	got := decoded.URLs[0]
	assert.Equal(t, entry.Start, got.Start)
	assert.Equal(t, entry.End, got.End)
	assert.Equal(t, entry.Original, got.Original)
	assert.Equal(t, entry.Resolved, got.Resolved)
	assert.Equal(t, entry.Title, got.Title)
	assert.Equal(t, entry.Snippet, got.Snippet)
	assert.Equal(t, "example.org", got.Domain)
}

func TestMarshalUnmarshalTweet(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name  string
		tweet *core.Tweet
	}{
		{
			name:  "minimal tweet",
			tweet: &core.Tweet{ID: 1, Text: "hello", CreatedAt: now, Quality: 100},
		},
		{
			name: "full tweet",
			tweet: &core.Tweet{
				ID:           99,
				Text:         "RT @bob #go https://t.co/x",
				Author:       "alice",
				CreatedAt:    now,
				URLs:         []core.URLEntry{{Start: 12, End: 26, Original: "https://t.co/x"}},
				Mentions:     []string{"bob"},
				Hashtags:     []string{"go"},
				RetweetCount: 3,
				ReplyCount:   2,
				Quality:      64,
				Persistent:   true,
				Obsolete:     true,
				Duplicates:   []core.ID{5, 6},
				InReplyTo:    10,
				RetweetOf:    11,
				Source:       "search",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalTweet(MarshalTweet(tt.tweet))
			require.NoError(t, err)
			assert.Equal(t, tt.tweet, decoded)
		})
	}
}

func TestUnmarshalTweet_Truncated(t *testing.T) {
	data := MarshalTweet(&core.Tweet{ID: 1, Text: "hello world", Author: "alice", Quality: 100})
	_, err := UnmarshalTweet(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalTag(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	tag := &core.Tag{
		Term:         "lucene",
		Interval:     90 * time.Second,
		Cursor:       12345,
		LastQuery:    now,
		NextEligible: now.Add(90 * time.Second),
		LastHits:     7,
	}

	decoded, err := UnmarshalTag(MarshalTag(tag))
	require.NoError(t, err)
	assert.Equal(t, tag, decoded)
}
