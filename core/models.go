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
	"net/url"
	"slices"
	"strings"
	"time"
)

// ID is the source-assigned numeric identifier of a tweet.
type ID uint64

// MaxQuality is the quality score every tweet starts with.
const MaxQuality = 100

// Tweet is a single short post as it flows through the pipeline.
// Producers create it, the resolver fills in URL entries and quality,
// and the index writer links replies and retweets by id.
type Tweet struct {
	ID           ID
	Text         string
	Author       string
	CreatedAt    time.Time
	URLs         []URLEntry
	Mentions     []string
	Hashtags     []string
	RetweetCount int
	ReplyCount   int
	Quality      int  // 0-100, decays on resolution failure
	Persistent   bool // never dropped by age-based filtering
	Obsolete     bool // older than the retention horizon when it reached the resolver
	Duplicates   []ID // tweets carrying the same link or content
	InReplyTo    ID
	RetweetOf    ID
	Source       string // name of the producer that fetched it
}

// NewTweet creates a tweet with full quality and entities extracted from text.
func NewTweet(id ID, author, text string, createdAt time.Time) *Tweet {
	ent := ExtractEntities(text)
	return &Tweet{
		ID:        id,
		Text:      text,
		Author:    author,
		CreatedAt: createdAt,
		URLs:      ent.Links,
		Mentions:  ent.Mentions,
		Hashtags:  ent.Hashtags,
		Quality:   MaxQuality,
	}
}

// PrimaryURL returns the URL that identifies the tweet for resolution.
// It is the resolved form of the first link when available, the original otherwise.
func (t *Tweet) PrimaryURL() string {
	if len(t.URLs) == 0 {
		return ""
	}
	return t.URLs[0].Current()
}

// OriginalURL returns the first link exactly as it appeared in the text.
func (t *Tweet) OriginalURL() string {
	if len(t.URLs) == 0 {
		return ""
	}
	return t.URLs[0].Original
}

// AddDuplicate records id as a duplicate of t. Self references and repeats are ignored.
func (t *Tweet) AddDuplicate(id ID) {
	if id == t.ID || slices.Contains(t.Duplicates, id) {
		return
	}
	t.Duplicates = append(t.Duplicates, id)
}

// DegradeQuality multiplies the quality score by factor, rounding to nearest.
func (t *Tweet) DegradeQuality(factor float64) {
	q := int(float64(t.Quality)*factor + 0.5)
	if q >= t.Quality && t.Quality > 0 {
		q = t.Quality - 1
	}
	t.Quality = max(q, 0)
}

// URLEntry is a link found in a tweet's text.
// The resolved fields stay empty until the resolver has processed the link.
type URLEntry struct {
	Start    int // rune offset, inclusive
	End      int // rune offset, exclusive
	Original string
	Resolved string
	Title    string
	Snippet  string
	Domain   string
}

// Current returns the resolved URL if set, otherwise the original.
func (u URLEntry) Current() string {
	if u.Resolved != "" {
		return u.Resolved
	}
	return u.Original
}

// IsResolved reports whether the entry has been written by the resolver.
func (u URLEntry) IsResolved() bool {
	return u.Resolved != ""
}

// Resolve writes the resolution result onto the entry.
// The domain is derived from the resolved URL.
func (u *URLEntry) Resolve(resolved, title, snippet string) {
	u.Resolved = resolved
	u.Title = title
	u.Snippet = snippet
	u.Domain = DomainOf(resolved)
}

// DomainOf returns the lower-cased host of rawURL without a leading "www.".
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// TweetPackage is an immutable bundle of tweets from one producer cycle.
type TweetPackage struct {
	Source    string
	Seq       uint64
	CreatedAt time.Time
	Tweets    []*Tweet
}

// NewTweetPackage creates a package stamped with the current time.
func NewTweetPackage(source string, seq uint64, tweets []*Tweet) TweetPackage {
	return TweetPackage{
		Source:    source,
		Seq:       seq,
		CreatedAt: time.Now(),
		Tweets:    slices.Clip(tweets),
	}
}

// Len returns the number of tweets in the package.
func (p TweetPackage) Len() int {
	return len(p.Tweets)
}

// Age returns how long the package has been in the pipeline.
func (p TweetPackage) Age() time.Duration {
	return time.Since(p.CreatedAt)
}
