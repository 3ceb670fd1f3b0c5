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
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	linkRe    = regexp.MustCompile(`https?://[^\s<>"]+`)
	mentionRe = regexp.MustCompile(`(?:^|[^\w@])@(\w{1,15})`)
	hashtagRe = regexp.MustCompile(`(?:^|[^\w#&])#(\w*[\p{L}_]\w*)`)
)

// maxEntities bounds how many entities of one kind are taken from a tweet.
const maxEntities = 16

// Entities holds the links, mentions and hashtags found in a text.
type Entities struct {
	Links    []URLEntry
	Mentions []string
	Hashtags []string
}

// ExtractEntities scans text for links, @mentions and #hashtags.
// Link spans are rune offsets into text. Mentions and hashtags are
// lower-cased and de-duplicated in order of appearance.
func ExtractEntities(text string) Entities {
	var ent Entities

	for _, loc := range linkRe.FindAllStringIndex(text, maxEntities) {
		raw := strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)]}'")
		end := loc[0] + len(raw)
		ent.Links = append(ent.Links, URLEntry{
			Start:    utf8.RuneCountInString(text[:loc[0]]),
			End:      utf8.RuneCountInString(text[:end]),
			Original: raw,
		})
	}

	ent.Mentions = collectGroup(mentionRe, text)
	ent.Hashtags = collectGroup(hashtagRe, text)
	return ent
}

func collectGroup(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := strings.ToLower(m[1])
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == maxEntities {
			break
		}
	}
	return out
}
