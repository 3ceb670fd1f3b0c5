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


package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when an index is not provided.
	ErrIndexRequired = errors.New("index required")

	// ErrInputRequired is returned when the index writer has no input channel.
	ErrInputRequired = errors.New("input channel required")

	// ErrQueueExists is returned when a queue name is registered twice.
	ErrQueueExists = errors.New("queue already registered")

	// ErrEmptyQueueName is returned when a queue is registered without a name.
	ErrEmptyQueueName = errors.New("queue name required")

	// ErrInvalidWeight is returned when a queue weight is not positive.
	ErrInvalidWeight = errors.New("queue weight must be greater than 0")

	// ErrInvalidCapacity is returned when a queue capacity is not positive.
	ErrInvalidCapacity = errors.New("queue capacity must be greater than 0")

	// ErrInvalidBatchSize is returned when a batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrAlreadyRunning is returned when Run is called on a running consumer.
	ErrAlreadyRunning = errors.New("already running")
)
