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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	dbFlag := &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (overrides the config file)",
		EnvVars: []string{databasePathEnv},
	}
	return &cli.App{
		Name:  "twingest",
		Usage: "Tweet ingestion pipeline with adaptive search scheduling and link resolution",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"TWINGEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before anything else",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the whole ingestion pipeline",
				Action: runCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "status-addr",
						Usage: "Listen address of the status endpoint, e.g. :8080",
					},
					&cli.BoolFlag{
						Name:  "in-memory",
						Usage: "Keep the index in memory only",
					},
				},
			},
			{
				Name:      "subscribe",
				Usage:     "Subscribe a user to a search term",
				ArgsUsage: "<user> <term>",
				Action:    subscribeCommand,
				Flags:     []cli.Flag{dbFlag},
			},
			{
				Name:      "unsubscribe",
				Usage:     "Remove a user's subscription to a search term",
				ArgsUsage: "<user> <term>",
				Action:    unsubscribeCommand,
				Flags:     []cli.Flag{dbFlag},
			},
			{
				Name:   "tags",
				Usage:  "List search terms with their scheduling state",
				Action: tagsCommand,
				Flags:  []cli.Flag{dbFlag},
			},
		},
	}
}

// setup loads the .env file and configures the default logger.
func setup(c *cli.Context) error {
	if err := loadEnvFile(c.String("env-file")); err != nil {
		return err
	}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
