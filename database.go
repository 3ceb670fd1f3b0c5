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


package twingest

import (
	"log/slog"

	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/ingestion"
	"github.com/poiesic/twingest/producer"
	"github.com/poiesic/twingest/resolve"
	"github.com/poiesic/twingest/socialapi"
	"github.com/poiesic/twingest/storage"
	"github.com/poiesic/twingest/storage/badger"
)

// Database owns the badger store and the repositories built on it.
type Database struct {
	backend *badger.Backend
	index   *badger.IndexRepository
	tags    *badger.TagRepository
	cursors *badger.CursorRepository
	logger  *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	inMemory bool
	logger   *slog.Logger
}

// WithInMemory keeps all data in memory; the file path is ignored.
func WithInMemory(inMemory bool) DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = inMemory
	}
}

// WithDatabaseLogger sets a custom logger.
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	return &Database{
		backend: backend,
		index:   badger.NewIndexRepository(backend),
		tags:    badger.NewTagRepository(backend),
		cursors: badger.NewCursorRepository(backend),
		logger:  options.logger.With("component", "database"),
	}, nil
}

func (db *Database) Close() error {
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Index() storage.Index {
	return db.index
}

func (db *Database) TagStore() storage.TagStore {
	return db.tags
}

func (db *Database) CursorStore() storage.CursorStore {
	return db.cursors
}

func (db *Database) NewConsumer(opts ...ingestion.Option) (*ingestion.Consumer, error) {
	return ingestion.NewConsumer(db.index, opts...)
}

func (db *Database) NewIndexWriter(in <-chan *core.Tweet, opts ...ingestion.WriterOption) (*ingestion.IndexWriter, error) {
	return ingestion.NewIndexWriter(db.index, in, opts...)
}

func (db *Database) NewResolver(links resolve.LinkResolver, out chan<- *core.Tweet, opts ...resolve.Option) (*resolve.Resolver, error) {
	return resolve.NewResolver(db.index, links, out, opts...)
}

func (db *Database) NewSearchSource(searcher socialapi.Searcher, opts ...producer.SearchOption) (*producer.SearchSource, error) {
	return producer.NewSearchSource(searcher, db.tags, opts...)
}

func (db *Database) NewUserSource(feed socialapi.UserFeed, roster []string, opts ...producer.UserOption) (*producer.UserSource, error) {
	return producer.NewUserSource(feed, db.cursors, roster, opts...)
}

func (db *Database) NewStreamSource(streamer socialapi.Streamer, opts ...producer.StreamOption) (*producer.StreamSource, error) {
	return producer.NewStreamSource(streamer, db.tags, opts...)
}
