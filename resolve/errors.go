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

import "errors"

var (
	// ErrIndexRequired indicates the index was not provided.
	ErrIndexRequired = errors.New("index is required")

	// ErrLinkResolverRequired indicates the link resolver was not provided.
	ErrLinkResolverRequired = errors.New("link resolver is required")

	// ErrOutputRequired indicates the output channel was not provided.
	ErrOutputRequired = errors.New("output channel is required")

	// ErrInvalidWorkers indicates a non-positive worker count.
	ErrInvalidWorkers = errors.New("worker count must be greater than 0")

	// ErrInvalidPenalty indicates a quality penalty outside (0, 1).
	ErrInvalidPenalty = errors.New("quality penalty must be between 0 and 1")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("resolver already started")

	// ErrResolverStopped indicates the resolver no longer accepts work.
	ErrResolverStopped = errors.New("resolver stopped")

	// ErrUnexpectedStatus indicates the remote server answered with an error status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML indicates the landing page is not an HTML document.
	ErrNotHTML = errors.New("content is not HTML")
)
