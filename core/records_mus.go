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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the index document format. Field order is part of the
// on-disk format; append new fields at the end only.
var (
	IDMUS       = idMUS{}
	URLEntryMUS = urlEntryMUS{}
	TweetMUS    = tweetMUS{}
	TagMUS      = tagMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type urlEntryMUS struct{}

func (urlEntryMUS) Marshal(v URLEntry, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Start, bs)
	n += varint.Int.Marshal(v.End, bs[n:])
	n += ord.String.Marshal(v.Original, bs[n:])
	n += ord.String.Marshal(v.Resolved, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Snippet, bs[n:])
	n += ord.String.Marshal(v.Domain, bs[n:])
	return
}

func (urlEntryMUS) Unmarshal(bs []byte) (v URLEntry, n int, err error) {
	r := musReader{bs: bs}
	v = r.urlEntry()
	return v, r.n, r.err
}

func (urlEntryMUS) Size(v URLEntry) (size int) {
	size = varint.Int.Size(v.Start)
	size += varint.Int.Size(v.End)
	size += ord.String.Size(v.Original)
	size += ord.String.Size(v.Resolved)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Snippet)
	size += ord.String.Size(v.Domain)
	return
}

type tweetMUS struct{}

func (tweetMUS) Marshal(v Tweet, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.Author, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += varint.Int.Marshal(len(v.URLs), bs[n:])
	for _, u := range v.URLs {
		n += URLEntryMUS.Marshal(u, bs[n:])
	}
	n += marshalStrings(v.Mentions, bs[n:])
	n += marshalStrings(v.Hashtags, bs[n:])
	n += varint.Int.Marshal(v.RetweetCount, bs[n:])
	n += varint.Int.Marshal(v.ReplyCount, bs[n:])
	n += varint.Int.Marshal(v.Quality, bs[n:])
	n += ord.Bool.Marshal(v.Persistent, bs[n:])
	n += ord.Bool.Marshal(v.Obsolete, bs[n:])
	n += varint.Int.Marshal(len(v.Duplicates), bs[n:])
	for _, id := range v.Duplicates {
		n += IDMUS.Marshal(id, bs[n:])
	}
	n += IDMUS.Marshal(v.InReplyTo, bs[n:])
	n += IDMUS.Marshal(v.RetweetOf, bs[n:])
	n += ord.String.Marshal(v.Source, bs[n:])
	return
}

func (tweetMUS) Unmarshal(bs []byte) (v Tweet, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.id()
	v.Text = r.string()
	v.Author = r.string()
	v.CreatedAt = r.time()
	if count := r.len(); count > 0 {
		v.URLs = make([]URLEntry, count)
		for i := range v.URLs {
			v.URLs[i] = r.urlEntry()
		}
	}
	v.Mentions = r.strings()
	v.Hashtags = r.strings()
	v.RetweetCount = r.int()
	v.ReplyCount = r.int()
	v.Quality = r.int()
	v.Persistent = r.bool()
	v.Obsolete = r.bool()
	if count := r.len(); count > 0 {
		v.Duplicates = make([]ID, count)
		for i := range v.Duplicates {
			v.Duplicates[i] = r.id()
		}
	}
	v.InReplyTo = r.id()
	v.RetweetOf = r.id()
	v.Source = r.string()
	return v, r.n, r.err
}

func (tweetMUS) Size(v Tweet) (size int) {
	size = IDMUS.Size(v.ID)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.Author)
	size += sizeTime(v.CreatedAt)
	size += varint.Int.Size(len(v.URLs))
	for _, u := range v.URLs {
		size += URLEntryMUS.Size(u)
	}
	size += sizeStrings(v.Mentions)
	size += sizeStrings(v.Hashtags)
	size += varint.Int.Size(v.RetweetCount)
	size += varint.Int.Size(v.ReplyCount)
	size += varint.Int.Size(v.Quality)
	size += ord.Bool.Size(v.Persistent)
	size += ord.Bool.Size(v.Obsolete)
	size += varint.Int.Size(len(v.Duplicates))
	for _, id := range v.Duplicates {
		size += IDMUS.Size(id)
	}
	size += IDMUS.Size(v.InReplyTo)
	size += IDMUS.Size(v.RetweetOf)
	size += ord.String.Size(v.Source)
	return
}

type tagMUS struct{}

func (tagMUS) Marshal(v Tag, bs []byte) (n int) {
	n = ord.String.Marshal(v.Term, bs)
	n += varint.Int64.Marshal(int64(v.Interval), bs[n:])
	n += IDMUS.Marshal(v.Cursor, bs[n:])
	n += marshalTime(v.LastQuery, bs[n:])
	n += marshalTime(v.NextEligible, bs[n:])
	n += varint.Int.Marshal(v.LastHits, bs[n:])
	return
}

func (tagMUS) Unmarshal(bs []byte) (v Tag, n int, err error) {
	r := musReader{bs: bs}
	v.Term = r.string()
	v.Interval = time.Duration(r.int64())
	v.Cursor = r.id()
	v.LastQuery = r.time()
	v.NextEligible = r.time()
	v.LastHits = r.int()
	return v, r.n, r.err
}

func (tagMUS) Size(v Tag) (size int) {
	size = ord.String.Size(v.Term)
	size += varint.Int64.Size(int64(v.Interval))
	size += IDMUS.Size(v.Cursor)
	size += sizeTime(v.LastQuery)
	size += sizeTime(v.NextEligible)
	size += varint.Int.Size(v.LastHits)
	return
}

// Times are stored as Unix microseconds; the zero time is stored as 0.
func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(timeToMicro(t), bs)
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(timeToMicro(t))
}

func marshalStrings(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return
}

func sizeStrings(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return
}

// musReader decodes consecutive fields, stopping at the first error.
type musReader struct {
	bs  []byte
	n   int
	err error
}

func (r *musReader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) id() ID {
	if r.err != nil {
		return 0
	}
	v, n, err := IDMUS.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *musReader) time() time.Time {
	micro := r.int64()
	if r.err != nil || micro == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micro).UTC()
}

// len reads a collection length and rejects values the remaining input cannot hold.
func (r *musReader) len() int {
	l := r.int()
	if r.err == nil && (l < 0 || l > len(r.bs)-r.n) {
		r.err = errInvalidLength
		return 0
	}
	return l
}

func (r *musReader) strings() []string {
	count := r.len()
	if count == 0 {
		return nil
	}
	v := make([]string, count)
	for i := range v {
		v[i] = r.string()
	}
	return v
}

func (r *musReader) urlEntry() URLEntry {
	return URLEntry{
		Start:    r.int(),
		End:      r.int(),
		Original: r.string(),
		Resolved: r.string(),
		Title:    r.string(),
		Snippet:  r.string(),
		Domain:   r.string(),
	}
}
