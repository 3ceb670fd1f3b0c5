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


// Package config holds the twingest runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/twingest/core"
	"gopkg.in/yaml.v3"
)

const (
	apiURLEnv       = "TWINGEST_API_URL"
	apiTokenEnv     = "TWINGEST_API_TOKEN"
	databasePathEnv = "TWINGEST_DB_PATH"
	kafkaBrokersEnv = "TWINGEST_KAFKA_BROKERS"
	statusAddrEnv   = "TWINGEST_STATUS_ADDR"
)

// Config holds configuration for every pipeline stage.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Search    SearchConfig    `yaml:"search"`
	Users     UsersConfig     `yaml:"users"`
	Stream    StreamConfig    `yaml:"stream"`

	// StatusAddr is the listen address of the status endpoint. Empty disables it.
	StatusAddr string `yaml:"statusAddr"`
}

// DatabaseConfig locates the badger store.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inMemory"`
}

// APIConfig points at the REST social API.
type APIConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Token   string `yaml:"token"`
	// UserTokens maps roster users to their own bearer tokens.
	UserTokens map[string]string `yaml:"userTokens"`
}

// KafkaConfig describes the relayed firehose topic used for streaming.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupId"`
}

// QueueConfig sizes the ingestion queue of one producer.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
	// Weight is the most packages the queue contributes to one batch.
	Weight int `yaml:"weight"`
	// MaxPending is the backlog at which the producer stops fetching.
	MaxPending int `yaml:"maxPending"`
}

// IngestionConfig tunes the consumer and the index writer.
type IngestionConfig struct {
	BatchSize       int           `yaml:"batchSize"`
	BatchWindow     time.Duration `yaml:"batchWindow"`
	CompactEvery    int           `yaml:"compactEvery"`
	CompactInterval time.Duration `yaml:"compactInterval"`
	Retention       time.Duration `yaml:"retention"`
	DedupWindow     time.Duration `yaml:"dedupWindow"`
	WriterBatchSize int           `yaml:"writerBatchSize"`
}

// ResolverConfig tunes link resolution.
type ResolverConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queueSize"`
	RedirectTimeout time.Duration `yaml:"redirectTimeout"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout"`
	QualityPenalty  float64       `yaml:"qualityPenalty"`
	JunkQuality     int           `yaml:"junkQuality"`
	JunkTitles      []string      `yaml:"junkTitles"`
}

// SearchConfig tunes the adaptive search scheduler.
type SearchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MinInterval time.Duration `yaml:"minInterval"`
	MaxInterval time.Duration `yaml:"maxInterval"`
	TargetHits  int           `yaml:"targetHits"`
	MaxResults  int           `yaml:"maxResults"`
	MaxPages    int           `yaml:"maxPages"`
	Queue       QueueConfig   `yaml:"queue"`
}

// UsersConfig tunes the timeline rotation.
type UsersConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Roster        []string      `yaml:"roster"`
	RotationDelay time.Duration `yaml:"rotationDelay"`
	Queue         QueueConfig   `yaml:"queue"`
}

// StreamConfig tunes the live stream.
type StreamConfig struct {
	Enabled bool `yaml:"enabled"`
	// HighFrequency is the tweets-per-minute rate above which a term is
	// left to the search scheduler.
	HighFrequency    float64       `yaml:"highFrequency"`
	ResubscribeEvery time.Duration `yaml:"resubscribeEvery"`
	PackageSize      int           `yaml:"packageSize"`
	Queue            QueueConfig   `yaml:"queue"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDatabasePath sets the badger directory.
func WithDatabasePath(path string) ConfigOption {
	return func(c *Config) {
		c.Database.Path = path
	}
}

// WithInMemory keeps the index in memory only.
func WithInMemory(inMemory bool) ConfigOption {
	return func(c *Config) {
		c.Database.InMemory = inMemory
	}
}

// WithAPI sets the REST API endpoint and application token.
func WithAPI(baseURL, token string) ConfigOption {
	return func(c *Config) {
		c.API.BaseURL = baseURL
		c.API.Token = token
	}
}

// WithKafka sets the firehose brokers and topic.
func WithKafka(brokers []string, topic string) ConfigOption {
	return func(c *Config) {
		c.Kafka.Brokers = brokers
		c.Kafka.Topic = topic
	}
}

// WithStatusAddr sets the status endpoint address.
func WithStatusAddr(addr string) ConfigOption {
	return func(c *Config) {
		c.StatusAddr = addr
	}
}

// DefaultConfig returns a Config with the defaults of every stage.
// Search is the only producer enabled by default.
func DefaultConfig() *Config {
	policy := core.DefaultIntervalPolicy()
	return &Config{
		Database: DatabaseConfig{Path: "./twingest-data"},
		Kafka:    KafkaConfig{Topic: "tweets.firehose"},
		Ingestion: IngestionConfig{
			BatchSize:       100,
			BatchWindow:     5 * time.Second,
			CompactEvery:    1000,
			CompactInterval: time.Hour,
			Retention:       30 * 24 * time.Hour,
			DedupWindow:     6 * time.Hour,
			WriterBatchSize: 100,
		},
		Resolver: ResolverConfig{
			Workers:         5,
			QueueSize:       1000,
			RedirectTimeout: 10 * time.Second,
			FetchTimeout:    15 * time.Second,
			QualityPenalty:  0.8,
			JunkQuality:     10,
		},
		Search: SearchConfig{
			Enabled:     true,
			MinInterval: policy.MinInterval,
			MaxInterval: policy.MaxInterval,
			TargetHits:  policy.TargetHits,
			MaxResults:  100,
			MaxPages:    3,
			Queue:       QueueConfig{Capacity: 50, Weight: 4, MaxPending: 10},
		},
		Users: UsersConfig{
			RotationDelay: time.Minute,
			Queue:         QueueConfig{Capacity: 50, Weight: 2, MaxPending: 10},
		},
		Stream: StreamConfig{
			HighFrequency:    30,
			ResubscribeEvery: 10 * time.Minute,
			PackageSize:      20,
			Queue:            QueueConfig{Capacity: 200, Weight: 8, MaxPending: 100},
		},
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path yields the defaults with overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiURLEnv); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(apiTokenEnv); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv(statusAddrEnv); v != "" {
		c.StatusAddr = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IntervalPolicy returns the search interval policy described by the config.
func (c *Config) IntervalPolicy() core.IntervalPolicy {
	policy := core.DefaultIntervalPolicy()
	policy.MinInterval = c.Search.MinInterval
	policy.MaxInterval = c.Search.MaxInterval
	policy.TargetHits = c.Search.TargetHits
	return policy
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	var errs []error
	if !c.Database.InMemory && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required unless database.inMemory is set"))
	}
	if c.Ingestion.BatchSize < 1 {
		errs = append(errs, errors.New("ingestion.batchSize must be positive"))
	}
	if c.Ingestion.BatchWindow <= 0 {
		errs = append(errs, errors.New("ingestion.batchWindow must be positive"))
	}
	if c.Resolver.Workers < 1 {
		errs = append(errs, errors.New("resolver.workers must be positive"))
	}
	if c.Resolver.QualityPenalty <= 0 || c.Resolver.QualityPenalty > 1 {
		errs = append(errs, errors.New("resolver.qualityPenalty must be in (0, 1]"))
	}
	if !c.Search.Enabled && !c.Users.Enabled && !c.Stream.Enabled {
		errs = append(errs, errors.New("at least one of search, users or stream must be enabled"))
	}
	if (c.Search.Enabled || c.Users.Enabled) && c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.baseUrl is required for search and users"))
	}
	if c.Search.Enabled {
		if c.Search.MinInterval <= 0 || c.Search.MaxInterval < c.Search.MinInterval {
			errs = append(errs, errors.New("search interval bounds are invalid"))
		}
		if c.Search.TargetHits < 1 {
			errs = append(errs, errors.New("search.targetHits must be positive"))
		}
		errs = append(errs, c.Search.Queue.validate("search")...)
	}
	if c.Users.Enabled {
		if len(c.Users.Roster) == 0 {
			errs = append(errs, errors.New("users.roster is empty"))
		}
		errs = append(errs, c.Users.Queue.validate("users")...)
	}
	if c.Stream.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.brokers and kafka.topic are required for stream"))
		}
		if c.Stream.HighFrequency <= 0 {
			errs = append(errs, errors.New("stream.highFrequency must be positive"))
		}
		errs = append(errs, c.Stream.Queue.validate("stream")...)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (q QueueConfig) validate(name string) []error {
	var errs []error
	if q.Capacity < 1 {
		errs = append(errs, fmt.Errorf("%s.queue.capacity must be positive", name))
	}
	if q.Weight < 1 {
		errs = append(errs, fmt.Errorf("%s.queue.weight must be positive", name))
	}
	return errs
}
