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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStreamClosed indicates the live stream ended.
	ErrStreamClosed = errors.New("stream closed")

	// ErrInvalidRelayTweet indicates a relayed tweet could not be decoded.
	ErrInvalidRelayTweet = errors.New("invalid relayed tweet")
)

// DefaultRetryAfter is used when a rate limit response carries no reset hint.
const DefaultRetryAfter = 15 * time.Minute

// RateLimitError is returned when the API refuses a call because the
// caller's rate window is exhausted.
type RateLimitError struct {
	RetryAfter time.Duration
	Remaining  int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %d remaining, retry after %s", e.Remaining, e.RetryAfter)
}

// NewRateLimitError builds a RateLimitError from the window reset time.
// A reset in the past or a zero reset falls back to DefaultRetryAfter.
func NewRateLimitError(reset time.Time, remaining int, now time.Time) *RateLimitError {
	retryAfter := DefaultRetryAfter
	if !reset.IsZero() && reset.After(now) {
		retryAfter = reset.Sub(now)
	}
	return &RateLimitError{RetryAfter: retryAfter, Remaining: remaining}
}

// RetryAfter extracts the retry hint from err if it wraps a RateLimitError.
func RetryAfter(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}
