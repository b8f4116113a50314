// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// Handler receives every successfully validated, persisted event, e.g. to
// feed C5's online-metrics hook (spec.md §2 dataflow). Handler errors are
// logged only — they never fail ingest.
type Handler func(ctx context.Context, e eventtypes.Event)

// Consumer wires the bus, validation, dead-lettering, backpressure, and a
// fixed pool of per-shard worker goroutines. Every message for a given
// userId is routed to the same shard via rendezvous hashing, so ordering
// within a user is preserved without a full rehash when the shard count
// changes (spec.md §5's per-user ordering guarantee).
type Consumer struct {
	bus         Bus
	store       events.Store
	deadLetters *DeadLetterSink
	handler     Handler
	backpress   *BackpressureController
	log         zerolog.Logger

	shardCount int
	shards     []chan Message
	router     *rendezvous.Rendezvous
}

// NewConsumer builds a Consumer with shardCount worker goroutines (the
// "concurrency" the backpressure thresholds of spec.md §4.4 are derived
// from: pauseAt=5*shardCount, resumeAt=2*shardCount).
func NewConsumer(bus Bus, store events.Store, deadLetters *DeadLetterSink, handler Handler, topics []string, shardCount int, log zerolog.Logger) *Consumer {
	if shardCount <= 0 {
		shardCount = 4
	}
	nodes := make([]string, shardCount)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
	}
	c := &Consumer{
		bus:         bus,
		store:       store,
		deadLetters: deadLetters,
		handler:     handler,
		log:         log,
		shardCount:  shardCount,
		shards:      make([]chan Message, shardCount),
		router:      rendezvous.New(nodes, xxhashSeeded),
	}
	c.backpress = NewBackpressureController(bus, topics, shardCount, log)
	for i := range c.shards {
		c.shards[i] = make(chan Message, 1)
	}
	return c
}

// xxhashSeeded adapts cespare/xxhash to the rendezvous.Hasher shape
// (s string, seed uint64) -> uint64.
func xxhashSeeded(s string, seed uint64) uint64 {
	return xxhash.Sum64String(s) ^ seed
}

// Run dispatches incoming bus messages to shard workers until ctx is
// canceled or the bus channel closes, then waits for in-flight work to
// drain. Each shard worker processes its channel strictly in order,
// serializing all events for the users rendezvous-routed to it.
func (c *Consumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < c.shardCount; i++ {
		shard := c.shards[i]
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-shard:
					if !ok {
						return nil
					}
					c.process(ctx, msg)
					c.backpress.OnComplete(ctx)
				}
			}
		})
	}

	g.Go(func() error {
		defer func() {
			for _, s := range c.shards {
				close(s)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-c.bus.Messages():
				if !ok {
					return nil
				}
				shardKey := c.shardFor(msg)
				c.backpress.OnDispatch(ctx)
				select {
				case c.shards[shardKey] <- msg:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	return g.Wait()
}

// shardFor extracts userId cheaply (without full validation) to route the
// message; validation proper happens in process() on the worker goroutine.
func (c *Consumer) shardFor(msg Message) int {
	var probe struct {
		UserID string `json:"userId"`
	}
	_ = json.Unmarshal(msg.Value, &probe)
	node := c.router.Lookup(probe.UserID)
	idx, err := strconv.Atoi(node)
	if err != nil {
		return 0
	}
	return idx
}

func (c *Consumer) process(ctx context.Context, msg Message) {
	e, err := ValidateAndNormalize(msg.Value)
	if err != nil {
		c.deadLetters.Append(DeadLetter{
			Payload:    json.RawMessage(msg.Value),
			Reason:     err.Error(),
			ReceivedAt: time.Now(),
		})
		return
	}
	if err := c.store.Append(ctx, e); err != nil {
		c.deadLetters.Append(DeadLetter{
			Payload:    json.RawMessage(msg.Value),
			Reason:     fmt.Sprintf("store append failed: %v", err),
			ReceivedAt: time.Now(),
		})
		return
	}
	if c.handler != nil {
		c.handler(ctx, e)
	}
}

// Close releases the backpressure controller's VSA resources.
func (c *Consumer) Close() { c.backpress.Close() }
