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
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/poiesic/twingest/ingestion"
	"github.com/poiesic/twingest/producer"
)

// statusSource is what the status endpoint reports on.
type statusSource interface {
	QueueDepths() map[string]int
	ConsumerStats() ingestion.Stats
	WriterStats() ingestion.Stats
	ResolverPending() int
	ResolverQueueLen() int
	ProducerStats() map[string]producer.RunnerStats
}

type statusResponse struct {
	Queues    map[string]int                  `json:"queues"`
	Consumer  ingestion.Stats                 `json:"consumer"`
	Writer    ingestion.Stats                 `json:"writer"`
	Resolver  resolverStatus                  `json:"resolver"`
	Producers map[string]producer.RunnerStats `json:"producers"`
}

type resolverStatus struct {
	Pending int `json:"pending"`
	Queued  int `json:"queued"`
}

func newStatusApp(src statusSource) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "twingest",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{
			Queues:   src.QueueDepths(),
			Consumer: src.ConsumerStats(),
			Writer:   src.WriterStats(),
			Resolver: resolverStatus{
				Pending: src.ResolverPending(),
				Queued:  src.ResolverQueueLen(),
			},
			Producers: src.ProducerStats(),
		})
	})
	return app
}
