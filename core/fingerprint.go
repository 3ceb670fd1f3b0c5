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
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint identifies near-identical tweet content.
type Fingerprint uint64

// FingerprintText hashes the normalized text of a tweet with BLAKE2b.
// Links, mentions, case, punctuation and whitespace are ignored so that
// retweets and reposts with a different short link produce the same value.
// ok is false when nothing is left after normalization, e.g. a bare link.
func FingerprintText(text string) (fp Fingerprint, ok bool) {
	normalized := normalizeForFingerprint(text)
	if normalized == "" {
		return 0, false
	}
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(normalized))
	return Fingerprint(binary.LittleEndian.Uint64(h.Sum(nil))), true
}

func normalizeForFingerprint(text string) string {
	text = linkRe.ReplaceAllString(text, " ")
	fields := strings.Fields(strings.ToLower(text))
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "@") || f == "rt" {
			continue
		}
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
