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


// Package storage provides the storage abstraction layer for twingest.
//
// This package defines the interfaces the pipeline depends on without tying
// it to a concrete backend:
//
//   - Index: the search index batches of tweets are committed to
//   - TagStore: persisted search terms and user subscriptions
//   - CursorStore: per-key polling cursors for producers
//
// It also owns the index document format. Tweets and tags are encoded with
// MUS serializers (see core.TweetMUS and core.TagMUS); MarshalTweet and
// UnmarshalTweet are the only entry points backends should use.
//
// # Usage
//
// Open a BadgerDB-backed index and tag store:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	index := badger.NewIndexRepository(backend)
//	tags := badger.NewTagRepository(backend)
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
