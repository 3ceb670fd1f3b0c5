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


// Package producer pulls tweets from the social API and feeds them to the
// ingestion queues.
//
// A Runner owns the loop: it waits while its output queue is backed up,
// asks its Source for the next batch, packages the tweets and sleeps for the
// delay the source suggested. Rate limit errors make it sleep for the
// server's retry-after hint; other errors cause a short fixed backoff. A
// Runner never exits because of a source error.
//
// Three sources are provided:
//
//   - SearchSource schedules term queries adaptively. Terms that return many
//     hits are queried more often, quiet terms less often.
//   - UserSource walks a roster of authenticated users and reads their home
//     timelines.
//   - StreamSource reads a live filtered stream for the low-frequency terms
//     and leaves the busy ones to the search scheduler.
package producer
