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


// Package resolve enriches tweets with the destination of their links.
//
// A Resolver accepts tweets through Submit and hands those that need work to
// a fixed pool of workers. Each worker follows the redirect chain of the
// tweet's first link, fetches the landing page and extracts a title and a
// snippet. Whatever happens, success, junk page, timeout or panic, the tweet
// is forwarded to the output channel exactly once.
//
// At most one resolution is in flight per URL. A tweet arriving with a URL
// that is already being resolved is recorded as a duplicate on the pending
// tweet and forwarded immediately.
//
// # Usage
//
//	out := make(chan *core.Tweet, 1024)
//	r, err := resolve.NewResolver(index, resolve.NewHTTPLinkResolver(), out,
//	    resolve.WithWorkers(5),
//	    resolve.WithRetention(30*24*time.Hour),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	defer r.Stop()
//
//	err = r.Submit(ctx, tweet) // blocks while the work queue is full
package resolve
