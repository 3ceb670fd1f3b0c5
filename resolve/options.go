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


package resolve

import (
	"log/slog"
	"strings"
	"time"
)

const (
	defaultWorkers         = 5
	defaultQueueSize       = 1000
	defaultRedirectTimeout = 10 * time.Second
	defaultFetchTimeout    = 15 * time.Second
	defaultQualityPenalty  = 0.8
	defaultJunkQuality     = 10

	tooOldMinSize = 5000
	tooOldMaxSize = 10000
	tooOldMaxAge  = 24 * time.Hour
)

// defaultJunkTitles are page titles served by error pages and parked domains.
var defaultJunkTitles = []string{
	"404 not found",
	"page not found",
	"403 forbidden",
	"access denied",
	"domain for sale",
	"this domain is for sale",
	"account suspended",
	"just a moment...",
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithWorkers sets the number of resolution workers. Default is 5.
func WithWorkers(n int) Option {
	return func(r *Resolver) error {
		if n < 1 {
			return ErrInvalidWorkers
		}
		r.workers = n
		return nil
	}
}

// WithQueueSize sets the capacity of the work queue. Submit blocks when it is full.
func WithQueueSize(size int) Option {
	return func(r *Resolver) error {
		if size < 1 {
			size = 1
		}
		r.queueSize = size
		return nil
	}
}

// WithRedirectTimeout bounds how long following a redirect chain may take.
func WithRedirectTimeout(d time.Duration) Option {
	return func(r *Resolver) error {
		if d > 0 {
			r.redirectTimeout = d
		}
		return nil
	}
}

// WithFetchTimeout bounds how long fetching and extracting a page may take.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) error {
		if d > 0 {
			r.fetchTimeout = d
		}
		return nil
	}
}

// WithRetention sets the index retention horizon. Tweets older than this are
// forwarded without resolution and marked obsolete. Zero disables the check.
func WithRetention(d time.Duration) Option {
	return func(r *Resolver) error {
		r.retention = d
		return nil
	}
}

// WithJunkTitles replaces the list of titles that mark a page as junk.
// Matching is case-insensitive on the trimmed title.
func WithJunkTitles(titles ...string) Option {
	return func(r *Resolver) error {
		r.junkTitles = make(map[string]struct{}, len(titles))
		for _, title := range titles {
			r.junkTitles[normalizeTitle(title)] = struct{}{}
		}
		return nil
	}
}

// WithJunkQuality sets the quality assigned to tweets linking to junk pages.
func WithJunkQuality(q int) Option {
	return func(r *Resolver) error {
		r.junkQuality = max(q, 0)
		return nil
	}
}

// WithQualityPenalty sets the factor applied to quality when resolution fails.
func WithQualityPenalty(factor float64) Option {
	return func(r *Resolver) error {
		if factor <= 0 || factor >= 1 {
			return ErrInvalidPenalty
		}
		r.penalty = factor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) error {
		r.now = now
		return nil
	}
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
