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


// Package kafkastream implements socialapi.Streamer on top of a Kafka topic
// that stream collectors relay raw tweets into.
package kafkastream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/socialapi"
	"github.com/poiesic/twingest/waitutil"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBufferSize    = 256
	defaultCommitRetries = 3
	defaultCommitBackoff = 200 * time.Millisecond
)

var (
	// ErrNoBrokers indicates the streamer was configured without brokers.
	ErrNoBrokers = errors.New("at least one broker is required")

	// ErrNoTopic indicates the streamer was configured without a topic.
	ErrNoTopic = errors.New("topic is required")
)

// messageReader is the subset of *kafka.Reader the streamer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Streamer reads relayed tweets from Kafka and filters them by term.
type Streamer struct {
	brokers    []string
	topic      string
	groupID    string
	bufferSize int
	logger     *slog.Logger
	newReader  func(kafka.ReaderConfig) messageReader
}

var _ socialapi.Streamer = (*Streamer)(nil)

// Option configures a Streamer.
type Option func(*Streamer) error

// WithGroupID sets the consumer group. Defaults to a per-process random group.
func WithGroupID(groupID string) Option {
	return func(s *Streamer) error {
		s.groupID = groupID
		return nil
	}
}

// WithBufferSize sets the capacity of the channel returned by StreamFilter.
func WithBufferSize(size int) Option {
	return func(s *Streamer) error {
		if size > 0 {
			s.bufferSize = size
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) error {
		s.logger = logger
		return nil
	}
}

func withReaderFactory(factory func(kafka.ReaderConfig) messageReader) Option {
	return func(s *Streamer) error {
		s.newReader = factory
		return nil
	}
}

// New creates a Streamer for topic on brokers.
func New(brokers []string, topic string, opts ...Option) (*Streamer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	s := &Streamer{
		brokers:    brokers,
		topic:      topic,
		groupID:    "twingest-stream-" + uuid.NewString(),
		bufferSize: defaultBufferSize,
		logger:     slog.Default(),
		newReader: func(cfg kafka.ReaderConfig) messageReader {
			return kafka.NewReader(cfg)
		},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "kafkastream", "topic", topic)
	return s, nil
}

// StreamFilter starts reading the topic and delivers tweets whose text
// contains any of terms. The channel closes when ctx is done or the reader fails.
func (s *Streamer) StreamFilter(ctx context.Context, terms []string) (<-chan *core.Tweet, error) {
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		if n := core.NormalizeTerm(term); n != "" {
			normalized = append(normalized, n)
		}
	}

	reader := s.newReader(kafka.ReaderConfig{
		Brokers:     s.brokers,
		Topic:       s.topic,
		GroupID:     s.groupID,
		StartOffset: kafka.LastOffset,
	})
	out := make(chan *core.Tweet, s.bufferSize)

	s.logger.Info("stream subscribed", "group", s.groupID, "terms", len(normalized))
	go s.pump(ctx, reader, normalized, out)
	return out, nil
}

func (s *Streamer) pump(ctx context.Context, reader messageReader, terms []string, out chan<- *core.Tweet) {
	defer close(out)
	defer func() {
		if err := reader.Close(); err != nil {
			s.logger.Warn("failed to close reader", "err", err)
		}
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("stream read failed", "err", err)
			}
			return
		}

		tweet, err := socialapi.DecodeRelayTweet(msg.Value)
		switch {
		case err != nil:
			s.logger.Warn("skipping undecodable message", "offset", msg.Offset, "err", err)
		case socialapi.MatchesAny(tweet, terms):
			tweet.Source = "stream"
			select {
			case out <- tweet:
			case <-ctx.Done():
				return
			}
		}

		err = waitutil.RetryWithBackoff(ctx, func(ctx context.Context) error {
			return reader.CommitMessages(ctx, msg)
		}, defaultCommitRetries, defaultCommitBackoff)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("offset commit failed", "offset", msg.Offset, "err", err)
		}
	}
}
