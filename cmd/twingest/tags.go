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
	"text/tabwriter"
	"time"

	"github.com/poiesic/twingest"
	"github.com/poiesic/twingest/config"
	"github.com/poiesic/twingest/storage"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the configured file and applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	if c.IsSet("in-memory") {
		cfg.Database.InMemory = c.Bool("in-memory")
	}
	if c.IsSet("status-addr") {
		cfg.StatusAddr = c.String("status-addr")
	}
	return cfg, nil
}

func openTags(c *cli.Context) (storage.TagStore, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Path == "" {
		return nil, nil, errors.New("database path is required")
	}
	db, err := twingest.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db.TagStore(), func() { db.Close() }, nil
}

func subscriptionArgs(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", fmt.Errorf("expected <user> <term>, got %d arguments", c.NArg())
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

func subscribeCommand(c *cli.Context) error {
	user, term, err := subscriptionArgs(c)
	if err != nil {
		return err
	}
	tags, closeFn, err := openTags(c)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := tags.Subscribe(context.Background(), user, term); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s subscribed to %q\n", user, term)
	return nil
}

func unsubscribeCommand(c *cli.Context) error {
	user, term, err := subscriptionArgs(c)
	if err != nil {
		return err
	}
	tags, closeFn, err := openTags(c)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := tags.Unsubscribe(context.Background(), user, term); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s is not subscribed to %q", user, term)
		}
		return fmt.Errorf("unsubscribe: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s unsubscribed from %q\n", user, term)
	return nil
}

func tagsCommand(c *cli.Context) error {
	tags, closeFn, err := openTags(c)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	stored, err := tags.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	subscribed, err := tags.SubscribedTerms(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TERM\tINTERVAL\tLAST HITS\tNEXT QUERY\tCURSOR")
	seen := make(map[string]bool, len(stored))
	for _, tag := range stored {
		seen[tag.Term] = true
		next := "now"
		if !tag.NextEligible.IsZero() {
			next = tag.NextEligible.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", tag.Term, tag.Interval, tag.LastHits, next, tag.Cursor)
	}
	for _, term := range subscribed {
		if !seen[term] {
			fmt.Fprintf(w, "%s\t-\t-\tnot yet queried\t-\n", term)
		}
	}
	return w.Flush()
}
