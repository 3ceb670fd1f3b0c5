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


package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/twingest/core"
)

// Key prefixes for different data types
const (
	tweetDocPrefix    = "twdoc"
	tweetURLPrefix    = "twurl"
	tagPrefix         = "tag"
	subscriptionPfx   = "sub"
	subscriptionCount = "subcnt"
	cursorPrefix      = "cur"
)

// makeTweetKey generates a key for an index document by tweet ID.
// Format: prefix:id with the id big-endian so keys sort numerically.
func makeTweetKey(id core.ID) []byte {
	prefix := tweetDocPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTweetURLKey generates a key for the URL index.
// Format: prefix:url
func makeTweetURLKey(url string) []byte {
	return []byte(tweetURLPrefix + ":" + url)
}

// makeTagKey generates a key for a tag by its normalized term.
func makeTagKey(term string) []byte {
	return []byte(tagPrefix + ":" + term)
}

// makeTagPrefix returns the prefix shared by all tag keys.
func makeTagPrefix() []byte {
	return []byte(tagPrefix + ":")
}

// makeSubscriptionKey generates a composite key for a user subscription.
// Format: prefix:term\x00user
func makeSubscriptionKey(term, user string) []byte {
	return []byte(fmt.Sprintf("%s:%s\x00%s", subscriptionPfx, term, user))
}

// makeSubscriptionCountKey generates the key holding how many users follow term.
func makeSubscriptionCountKey(term string) []byte {
	return []byte(subscriptionCount + ":" + term)
}

// makeSubscriptionCountPrefix returns the prefix shared by subscription counters.
func makeSubscriptionCountPrefix() []byte {
	return []byte(subscriptionCount + ":")
}

// makeCursorKey generates a key for a producer cursor.
func makeCursorKey(key string) []byte {
	return []byte(cursorPrefix + ":" + key)
}
