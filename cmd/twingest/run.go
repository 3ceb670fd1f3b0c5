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


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/poiesic/twingest"
	"github.com/poiesic/twingest/config"
	"github.com/poiesic/twingest/core"
	"github.com/poiesic/twingest/ingestion"
	"github.com/poiesic/twingest/producer"
	"github.com/poiesic/twingest/resolve"
	"github.com/poiesic/twingest/socialapi/kafkastream"
	"github.com/poiesic/twingest/socialapi/restapi"
	"github.com/urfave/cli/v2"
)

const statusShutdownTimeout = 5 * time.Second

// pipeline holds every running stage.
type pipeline struct {
	db       *twingest.Database
	consumer *ingestion.Consumer
	resolver *resolve.Resolver
	writer   *ingestion.IndexWriter
	resolved chan *core.Tweet
	runners  map[string]*producer.Runner
	closers  []func()
}

var _ statusSource = (*pipeline)(nil)

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return p.run(ctx, cfg.StatusAddr)
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	db, err := twingest.NewDatabase(cfg.Database.Path, twingest.WithInMemory(cfg.Database.InMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	p := &pipeline{
		db:       db,
		resolved: make(chan *core.Tweet, cfg.Resolver.QueueSize),
		runners:  make(map[string]*producer.Runner),
	}
	if err := p.wire(cfg); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func (p *pipeline) wire(cfg *config.Config) error {
	resolverOpts := []resolve.Option{
		resolve.WithWorkers(cfg.Resolver.Workers),
		resolve.WithQueueSize(cfg.Resolver.QueueSize),
		resolve.WithRedirectTimeout(cfg.Resolver.RedirectTimeout),
		resolve.WithFetchTimeout(cfg.Resolver.FetchTimeout),
		resolve.WithRetention(cfg.Ingestion.Retention),
		resolve.WithQualityPenalty(cfg.Resolver.QualityPenalty),
		resolve.WithJunkQuality(cfg.Resolver.JunkQuality),
	}
	if len(cfg.Resolver.JunkTitles) > 0 {
		resolverOpts = append(resolverOpts, resolve.WithJunkTitles(cfg.Resolver.JunkTitles...))
	}
	resolver, err := p.db.NewResolver(resolve.NewHTTPLinkResolver(), p.resolved, resolverOpts...)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}
	p.resolver = resolver

	p.writer, err = p.db.NewIndexWriter(p.resolved,
		ingestion.WithWriterBatchSize(cfg.Ingestion.WriterBatchSize),
		ingestion.WithWriterBatchWindow(cfg.Ingestion.BatchWindow),
		ingestion.WithWriterRetention(cfg.Ingestion.Retention),
		ingestion.WithWriterTooOldMarker(resolver))
	if err != nil {
		return fmt.Errorf("create index writer: %w", err)
	}

	p.consumer, err = p.db.NewConsumer(
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithBatchWindow(cfg.Ingestion.BatchWindow),
		ingestion.WithCompactEvery(cfg.Ingestion.CompactEvery),
		ingestion.WithCompactInterval(cfg.Ingestion.CompactInterval),
		ingestion.WithRetention(cfg.Ingestion.Retention),
		ingestion.WithDedupWindow(cfg.Ingestion.DedupWindow),
		ingestion.WithSink(resolver),
		ingestion.WithTooOldMarker(resolver))
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	var api *restapi.Client
	if cfg.Search.Enabled || cfg.Users.Enabled {
		apiOpts := []restapi.Option{}
		for user, token := range cfg.API.UserTokens {
			apiOpts = append(apiOpts, restapi.WithUserToken(user, token))
		}
		if api, err = restapi.New(cfg.API.BaseURL, cfg.API.Token, apiOpts...); err != nil {
			return fmt.Errorf("create api client: %w", err)
		}
	}

	if cfg.Search.Enabled {
		source, err := p.db.NewSearchSource(api,
			producer.WithIntervalPolicy(cfg.IntervalPolicy()),
			producer.WithMaxResults(cfg.Search.MaxResults),
			producer.WithMaxPages(cfg.Search.MaxPages))
		if err != nil {
			return fmt.Errorf("create search source: %w", err)
		}
		if err := p.addRunner(source, cfg.Search.Queue); err != nil {
			return err
		}
	}

	if cfg.Users.Enabled {
		source, err := p.db.NewUserSource(api, cfg.Users.Roster,
			producer.WithRotationDelay(cfg.Users.RotationDelay))
		if err != nil {
			return fmt.Errorf("create user source: %w", err)
		}
		if err := p.addRunner(source, cfg.Users.Queue); err != nil {
			return err
		}
	}

	if cfg.Stream.Enabled {
		streamerOpts := []kafkastream.Option{}
		if cfg.Kafka.GroupID != "" {
			streamerOpts = append(streamerOpts, kafkastream.WithGroupID(cfg.Kafka.GroupID))
		}
		streamer, err := kafkastream.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, streamerOpts...)
		if err != nil {
			return fmt.Errorf("create streamer: %w", err)
		}
		source, err := p.db.NewStreamSource(streamer,
			producer.WithHighFrequency(cfg.Stream.HighFrequency),
			producer.WithResubscribeEvery(cfg.Stream.ResubscribeEvery),
			producer.WithPackageSize(cfg.Stream.PackageSize))
		if err != nil {
			return fmt.Errorf("create stream source: %w", err)
		}
		p.closers = append(p.closers, source.Close)
		if err := p.addRunner(source, cfg.Stream.Queue); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) addRunner(source producer.Source, qc config.QueueConfig) error {
	queue, err := p.consumer.Register(source.Name(), qc.Capacity, qc.Weight)
	if err != nil {
		return fmt.Errorf("register queue %s: %w", source.Name(), err)
	}
	runner, err := producer.NewRunner(source, queue, producer.WithMaxPending(qc.MaxPending))
	if err != nil {
		return fmt.Errorf("create runner %s: %w", source.Name(), err)
	}
	p.runners[source.Name()] = runner
	return nil
}

// run starts every stage and blocks until ctx is done. Producers and the
// consumer stop first; the resolver then drains into the writer, which
// flushes once its input is closed.
func (p *pipeline) run(ctx context.Context, statusAddr string) error {
	// workers finish in-flight links after ctx ends; Stop ends them
	if err := p.resolver.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start resolver: %w", err)
	}

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- p.writer.Run(context.WithoutCancel(ctx))
	}()

	var wg sync.WaitGroup
	errs := make(chan error, len(p.runners)+1)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	start("consumer", p.consumer.Run)
	for name, runner := range p.runners {
		start(name, runner.Run)
	}

	if statusAddr != "" {
		app := newStatusApp(p)
		go func() {
			if err := app.Listen(statusAddr); err != nil {
				slog.Error("status endpoint failed", "addr", statusAddr, "err", err)
			}
		}()
		defer func() {
			if err := app.ShutdownWithTimeout(statusShutdownTimeout); err != nil {
				slog.Warn("status endpoint shutdown failed", "err", err)
			}
		}()
	}

	slog.Info("pipeline started", "producers", len(p.runners), "status_addr", statusAddr)
	<-ctx.Done()
	slog.Info("shutting down")

	wg.Wait()
	close(errs)
	p.resolver.Stop()
	close(p.resolved)

	var runErrs []error
	for err := range errs {
		runErrs = append(runErrs, err)
	}
	if err := <-writerDone; err != nil {
		runErrs = append(runErrs, fmt.Errorf("writer: %w", err))
	}
	slog.Info("pipeline stopped", "consumer", p.consumer.Stats(), "writer", p.writer.Stats())
	return errors.Join(runErrs...)
}

func (p *pipeline) close() {
	for _, closeFn := range p.closers {
		closeFn()
	}
	if err := p.db.Close(); err != nil {
		slog.Warn("failed to close database", "err", err)
	}
}

func (p *pipeline) QueueDepths() map[string]int { return p.consumer.QueueDepths() }

func (p *pipeline) ConsumerStats() ingestion.Stats { return p.consumer.Stats() }

func (p *pipeline) WriterStats() ingestion.Stats { return p.writer.Stats() }

func (p *pipeline) ResolverPending() int { return p.resolver.Pending() }

func (p *pipeline) ResolverQueueLen() int { return p.resolver.QueueLen() }

func (p *pipeline) ProducerStats() map[string]producer.RunnerStats {
	stats := make(map[string]producer.RunnerStats, len(p.runners))
	for name, runner := range p.runners {
		stats[name] = runner.Stats()
	}
	return stats
}
