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

import "errors"

// Domain validation errors
var (
	// ErrInvalidTweet indicates a Tweet failed validation.
	ErrInvalidTweet = errors.New("invalid tweet")

	// ErrInvalidTag indicates a Tag failed validation.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrZeroID indicates a tweet without a source-assigned id.
	ErrZeroID = errors.New("tweet id cannot be zero")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidQuality indicates a quality score outside 0-100.
	ErrInvalidQuality = errors.New("quality must be between 0 and 100")

	// ErrInvalidSpan indicates a URL entry span outside the tweet text.
	ErrInvalidSpan = errors.New("url span out of range")

	// ErrEmptyTerm indicates a tag without a term.
	ErrEmptyTerm = errors.New("tag term cannot be empty")

	// ErrInvalidInterval indicates a non-positive query interval.
	ErrInvalidInterval = errors.New("tag interval must be positive")
)

// errInvalidLength indicates an encoded collection length the input cannot hold.
var errInvalidLength = errors.New("invalid encoded collection length")
