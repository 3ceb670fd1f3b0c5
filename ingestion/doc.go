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


// Package ingestion moves tweets from producers into the index.
//
// Producers register a NamedQueue with the Consumer and Put TweetPackages on
// it. The Consumer's single loop waits until enough tweets are pending, or
// the batch window has elapsed, then drains each queue up to its weight,
// removes duplicates and either commits the batch or hands every tweet to a
// Sink such as the link resolver.
//
// When a Sink is used, an IndexWriter collects the sink's output into
// size and time bounded batches and commits them.
//
// A failed commit drops the batch. It is logged with its size and counted in
// Stats, and the pipeline moves on.
//
// # Usage
//
//	consumer, err := ingestion.NewConsumer(index,
//	    ingestion.WithBatchSize(200),
//	    ingestion.WithBatchWindow(5*time.Second),
//	    ingestion.WithSink(resolver),
//	)
//	if err != nil {
//	    return err
//	}
//	queue, err := consumer.Register("search", 100, 3)
//	if err != nil {
//	    return err
//	}
//	go consumer.Run(ctx)
//
//	err = queue.Put(ctx, core.NewTweetPackage("search", seq, tweets))
package ingestion
