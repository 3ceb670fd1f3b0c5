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


// Package restapi implements the polling side of the social API over a
// JSON REST endpoint speaking the legacy v1.1 payloads.
package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
)

var (
	// ErrNoBaseURL is returned when a client is created without an endpoint.
	ErrNoBaseURL = errors.New("base url required")

	// ErrNoToken is returned when no bearer token is known for a call.
	ErrNoToken = errors.New("no access token")

	// ErrUnexpectedStatus is returned for non-success responses other than 429.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

const maxErrorBody = 4 << 10

// Client calls search, friends and home timeline endpoints.
type Client struct {
	base       *url.URL
	appToken   string
	userTokens map[string]string
	http       *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

var (
	_ socialapi.Searcher = (*Client)(nil)
	_ socialapi.UserFeed = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithUserToken sets the bearer token used for user's timeline and friends.
func WithUserToken(user, token string) Option {
	return func(c *Client) {
		c.userTokens[user] = token
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client for the API rooted at baseURL. appToken authorizes
// searches and is the fallback for users without their own token.
func New(baseURL, appToken string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		base:       base,
		appToken:   appToken,
		userTokens: make(map[string]string),
		http:       &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "restapi")
	return c, nil
}

type searchResponse struct {
	Statuses []socialapi.RelayTweet `json:"statuses"`
}

// Search queries search/tweets.json.
func (c *Client) Search(ctx context.Context, term string, maxResults int, since core.ID) ([]*core.Tweet, core.ID, error) {
	params := url.Values{}
	params.Set("q", term)
	params.Set("count", strconv.Itoa(maxResults))
	params.Set("tweet_mode", "extended")
	if since > 0 {
		params.Set("since_id", strconv.FormatUint(uint64(since), 10))
	}

	var resp searchResponse
	if err := c.get(ctx, "search/tweets.json", params, c.appToken, &resp); err != nil {
		return nil, since, err
	}
	tweets := c.convert(resp.Statuses)
	maxID := since
	for _, t := range tweets {
		maxID = max(maxID, t.ID)
	}
	return tweets, maxID, nil
}

type idsResponse struct {
	IDs []string `json:"ids"`
}

// GetFriends queries friends/ids.json for user.
func (c *Client) GetFriends(ctx context.Context, user string) ([]core.ID, error) {
	params := url.Values{}
	params.Set("screen_name", user)
	params.Set("stringify_ids", "true")

	var resp idsResponse
	if err := c.get(ctx, "friends/ids.json", params, c.tokenFor(user), &resp); err != nil {
		return nil, err
	}
	ids := make([]core.ID, 0, len(resp.IDs))
	for _, raw := range resp.IDs {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.logger.Warn("skipping malformed friend id", "user", user, "id", raw)
			continue
		}
		ids = append(ids, core.ID(id))
	}
	return ids, nil
}

// GetHomeTimeline queries statuses/home_timeline.json with user's token.
func (c *Client) GetHomeTimeline(ctx context.Context, user string, max int, since core.ID) ([]*core.Tweet, error) {
	token := c.tokenFor(user)
	if token == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoToken, user)
	}
	params := url.Values{}
	params.Set("count", strconv.Itoa(max))
	params.Set("tweet_mode", "extended")
	if since > 0 {
		params.Set("since_id", strconv.FormatUint(uint64(since), 10))
	}

	var resp []socialapi.RelayTweet
	if err := c.get(ctx, "statuses/home_timeline.json", params, token, &resp); err != nil {
		return nil, err
	}
	return c.convert(resp), nil
}

func (c *Client) tokenFor(user string) string {
	if token, ok := c.userTokens[user]; ok {
		return token
	}
	return c.appToken
}

// convert drops payloads that do not decode instead of failing the page.
func (c *Client) convert(raw []socialapi.RelayTweet) []*core.Tweet {
	tweets := make([]*core.Tweet, 0, len(raw))
	for _, r := range raw {
		tweet, err := r.Tweet()
		if err != nil {
			c.logger.Warn("skipping malformed tweet", "id", r.ID, "err", err)
			continue
		}
		tweets = append(tweets, tweet)
	}
	return tweets
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, token string, out any) error {
	target := c.base.JoinPath(endpoint)
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", endpoint, c.rateLimitError(resp.Header))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: %w: %s: %s", endpoint, ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

// rateLimitError reads the x-rate-limit-reset unix timestamp and the
// remaining call count.
func (c *Client) rateLimitError(h http.Header) *socialapi.RateLimitError {
	var reset time.Time
	if ts, err := strconv.ParseInt(h.Get("X-Rate-Limit-Reset"), 10, 64); err == nil {
		reset = time.Unix(ts, 0)
	}
	remaining, _ := strconv.Atoi(h.Get("X-Rate-Limit-Remaining"))
	return socialapi.NewRateLimitError(reset, remaining, c.now())
}
