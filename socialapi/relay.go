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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/twingest/core"
)

// createdAtLayout is the timestamp format used by the legacy tweet payload.
const createdAtLayout = "Mon Jan 02 15:04:05 +0000 2006"

// RelayTweet is the JSON form of a tweet. Stream collectors relay the flat
// form; the REST API returns the v1.1 status object, where the author and the
// retweeted status are nested. Decoding accepts both.
type RelayTweet struct {
	ID              string      `json:"id_str"`
	Text            string      `json:"full_text"`
	Author          string      `json:"screen_name,omitempty"`
	User            *StatusUser `json:"user,omitempty"`
	CreatedAt       string      `json:"created_at"`
	InReplyTo       string      `json:"in_reply_to_status_id_str,omitempty"`
	RetweetOf       string      `json:"retweeted_status_id_str,omitempty"`
	RetweetedStatus *StatusRef  `json:"retweeted_status,omitempty"`
	RetweetCount    int         `json:"retweet_count"`
	ReplyCount      int         `json:"reply_count"`
}

// StatusUser is the part of a v1.1 user object that is kept.
type StatusUser struct {
	ScreenName string `json:"screen_name"`
}

// StatusRef identifies an embedded v1.1 status.
type StatusRef struct {
	ID string `json:"id_str"`
}

// DecodeRelayTweet parses a relayed JSON payload into a tweet.
func DecodeRelayTweet(data []byte) (*core.Tweet, error) {
	var raw RelayTweet
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRelayTweet, err)
	}
	return raw.Tweet()
}

// EncodeRelayTweet renders a tweet in its relay form.
func EncodeRelayTweet(tweet *core.Tweet) ([]byte, error) {
	raw := RelayTweet{
		ID:           formatID(tweet.ID),
		Text:         tweet.Text,
		Author:       tweet.Author,
		CreatedAt:    tweet.CreatedAt.UTC().Format(createdAtLayout),
		InReplyTo:    formatID(tweet.InReplyTo),
		RetweetOf:    formatID(tweet.RetweetOf),
		RetweetCount: tweet.RetweetCount,
		ReplyCount:   tweet.ReplyCount,
	}
	return json.Marshal(raw)
}

// Tweet converts the relay form into a core tweet with entities extracted.
func (r RelayTweet) Tweet() (*core.Tweet, error) {
	id, err := parseID(r.ID)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: id %q", ErrInvalidRelayTweet, r.ID)
	}
	createdAt, err := time.Parse(createdAtLayout, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %w", ErrInvalidRelayTweet, err)
	}

	if strings.TrimSpace(r.Text) == "" {
		return nil, fmt.Errorf("%w: id %s: empty text", ErrInvalidRelayTweet, r.ID)
	}

	author := r.Author
	if author == "" && r.User != nil {
		author = r.User.ScreenName
	}
	retweetOf := r.RetweetOf
	if retweetOf == "" && r.RetweetedStatus != nil {
		retweetOf = r.RetweetedStatus.ID
	}

	tweet := core.NewTweet(id, author, r.Text, createdAt.UTC())
	tweet.RetweetCount = r.RetweetCount
	tweet.ReplyCount = r.ReplyCount
	if tweet.InReplyTo, err = parseID(r.InReplyTo); err != nil {
		return nil, fmt.Errorf("%w: in_reply_to: %w", ErrInvalidRelayTweet, err)
	}
	if tweet.RetweetOf, err = parseID(retweetOf); err != nil {
		return nil, fmt.Errorf("%w: retweeted_status: %w", ErrInvalidRelayTweet, err)
	}
	return tweet, nil
}

// MatchesAny reports whether tweet text contains any of terms, ignoring case.
// Terms are expected to be normalized.
func MatchesAny(tweet *core.Tweet, terms []string) bool {
	text := strings.ToLower(tweet.Text)
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func parseID(s string) (core.ID, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return core.ID(v), err
}

func formatID(id core.ID) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}
