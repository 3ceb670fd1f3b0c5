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


// Package socialapi declares the social network API surface the producers
// consume, and the wire form tweets take when relayed between processes.
//
// Transport and authentication are left to implementations. The producer
// package depends only on the narrow interfaces here (Searcher, Streamer,
// UserFeed), so tests can substitute fakes for any of them.
//
// A rate-limited call must return a *RateLimitError so callers can honour the
// server's retry-after hint:
//
//	var rle *socialapi.RateLimitError
//	if errors.As(err, &rle) {
//	    waitutil.Sleep(ctx, rle.RetryAfter)
//	}
package socialapi
