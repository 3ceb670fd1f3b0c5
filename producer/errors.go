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


package producer

import "errors"

var (
	// ErrSourceRequired is returned when a runner is created without a source.
	ErrSourceRequired = errors.New("source required")

	// ErrQueueRequired is returned when a runner is created without an output queue.
	ErrQueueRequired = errors.New("output queue required")

	// ErrSearcherRequired is returned when a search source has no searcher.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrTagStoreRequired is returned when a search source has no tag store.
	ErrTagStoreRequired = errors.New("tag store required")

	// ErrFeedRequired is returned when a user source has no user feed.
	ErrFeedRequired = errors.New("user feed required")

	// ErrCursorStoreRequired is returned when a user source has no cursor store.
	ErrCursorStoreRequired = errors.New("cursor store required")

	// ErrEmptyRoster is returned when a user source has no users.
	ErrEmptyRoster = errors.New("user roster is empty")

	// ErrStreamerRequired is returned when a stream source has no streamer.
	ErrStreamerRequired = errors.New("streamer required")
)
