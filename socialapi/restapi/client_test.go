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


package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createdAt = "Sat Mar 01 12:00:00 +0000 2025"

func relay(id, text string) socialapi.RelayTweet {
	return socialapi.RelayTweet{ID: id, Text: text, Author: "erin", CreatedAt: createdAt}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/1.1", "app-token", WithUserToken("erin", "erin-token"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("", "token")
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestClient_Search(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/search/tweets.json", r.URL.Path)
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "50", r.URL.Query().Get("count"))
		assert.Equal(t, "100", r.URL.Query().Get("since_id"))
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(searchResponse{Statuses: []socialapi.RelayTweet{
			relay("105", "golang 1 https://go.dev"),
			relay("", "missing id"),
			relay("103", "golang 2"),
		}})
	})

	tweets, maxID, err := c.Search(context.Background(), "golang", 50, 100)
	require.NoError(t, err)
	require.Len(t, tweets, 2)
	assert.Equal(t, core.ID(105), maxID)
	assert.Equal(t, "https://go.dev", tweets[0].OriginalURL())
}

func TestClient_SearchStatusObjects(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statuses":[
			{"id_str":"20","full_text":"RT @bob: shipping today","created_at":"Sat Mar 01 12:00:00 +0000 2025",
			 "user":{"id_str":"7","screen_name":"alice","name":"Alice"},
			 "retweeted_status":{"id_str":"9","full_text":"shipping today","user":{"screen_name":"bob"}},
			 "retweet_count":3,"entities":{"urls":[]}},
			{"id_str":"21","full_text":"","created_at":"Sat Mar 01 12:00:00 +0000 2025","user":{"screen_name":"carol"}}
		],"search_metadata":{"count":2}}`))
	})

	tweets, maxID, err := c.Search(context.Background(), "shipping", 10, 0)
	require.NoError(t, err)
	require.Len(t, tweets, 1, "a status without text is skipped")
	assert.Equal(t, core.ID(20), maxID)
	assert.Equal(t, "alice", tweets[0].Author)
	assert.Equal(t, core.ID(9), tweets[0].RetweetOf)
	assert.Equal(t, 3, tweets[0].RetweetCount)
}

func TestClient_SearchNothingNew(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statuses":[]}`))
	})

	tweets, maxID, err := c.Search(context.Background(), "quiet", 10, 77)
	require.NoError(t, err)
	assert.Empty(t, tweets)
	assert.Equal(t, core.ID(77), maxID)
}

func TestClient_GetFriends(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/friends/ids.json", r.URL.Path)
		assert.Equal(t, "Bearer erin-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ids":["1","x","3"]}`))
	})

	ids, err := c.GetFriends(context.Background(), "erin")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1, 3}, ids)
}

func TestClient_GetHomeTimeline(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/statuses/home_timeline.json", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("since_id"))
		json.NewEncoder(w).Encode([]socialapi.RelayTweet{relay("9", "morning")})
	})

	tweets, err := c.GetHomeTimeline(context.Background(), "erin", 20, 0)
	require.NoError(t, err)
	require.Len(t, tweets, 1)
	assert.Equal(t, "morning", tweets[0].Text)
}

func TestClient_HomeTimelineNeedsToken(t *testing.T) {
	c, err := New("http://localhost", "")
	require.NoError(t, err)

	_, err = c.GetHomeTimeline(context.Background(), "nobody", 20, 0)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestClient_RateLimited(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rate-Limit-Reset", strconv.FormatInt(now.Add(90*time.Second).Unix(), 10))
		w.Header().Set("X-Rate-Limit-Remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c, err := New(srv.URL, "app-token", WithHTTPClient(srv.Client()), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, _, err = c.Search(context.Background(), "golang", 10, 0)
	retryAfter, ok := socialapi.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, retryAfter)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.GetFriends(context.Background(), "erin")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "upstream down")
}
