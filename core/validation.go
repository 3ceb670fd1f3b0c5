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


package core

import (
	"fmt"
	"unicode/utf8"
)

// ValidateTweet validates a Tweet according to domain rules.
//
// Validation rules:
//   - ID must not be zero
//   - Text must not be empty
//   - Quality must be within 0-100
//   - every URL entry span must lie within the text
//
// NOT validated (populated by the resolver):
//   - resolved URL, title, snippet and domain
func ValidateTweet(tweet *Tweet) error {
	if tweet == nil {
		return fmt.Errorf("%w: tweet is nil", ErrInvalidTweet)
	}

	if tweet.ID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTweet, ErrZeroID)
	}

	if tweet.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTweet, ErrEmptyText)
	}

	if tweet.Quality < 0 || tweet.Quality > MaxQuality {
		return fmt.Errorf("%w: %w", ErrInvalidTweet, ErrInvalidQuality)
	}

	length := utf8.RuneCountInString(tweet.Text)
	for i, u := range tweet.URLs {
		if u.Start < 0 || u.End > length || u.Start >= u.End {
			return fmt.Errorf("%w: entry %d: %w", ErrInvalidTweet, i, ErrInvalidSpan)
		}
	}

	return nil
}

// ValidateTag validates a Tag according to domain rules.
func ValidateTag(tag *Tag) error {
	if tag == nil {
		return fmt.Errorf("%w: tag is nil", ErrInvalidTag)
	}

	if tag.Term == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTag, ErrEmptyTerm)
	}

	if tag.Interval <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTag, ErrInvalidInterval)
	}

	return nil
}
