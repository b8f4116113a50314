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

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/etalazz/rec-engine/internal/recengine/config"
	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
	"github.com/etalazz/rec-engine/internal/recengine/serving"
)

const redisKeyPrefix = "rec-engine"
const redisOpTimeout = 2 * time.Second

// buildStores selects the durable backend for the event store, registry,
// and trace store from EVENT_STORE_DB, the same adapter-string selector
// idea as the teacher's persistence.BuildPersister. EVENT_STORE_URI
// supplies the DSN/connection string for whichever backend is selected.
//
//   - "" / "memory": everything in-process (default; no external dependency).
//   - "postgres": durable raw event log; registry and traces stay in-memory,
//     since neither has a Postgres-backed implementation.
//   - "redis": durable registry + trace store (both support Redis); the
//     event store stays in-memory, since it has no Redis-backed implementation.
func buildStores(cfg config.Config) (events.Store, registry.Store, serving.TraceStore, error) {
	switch strings.ToLower(cfg.EventStoreDB) {
	case "", "memory":
		return events.NewMemoryStore(0), registry.NewMemoryStore(), serving.NewMemoryTraceStore(), nil

	case "postgres", "postgresql":
		if cfg.EventStoreURI == "" {
			return nil, nil, nil, fmt.Errorf("EVENT_STORE_URI is required when EVENT_STORE_DB=postgres")
		}
		db, err := sqlx.Connect("postgres", cfg.EventStoreURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres event store: %w", err)
		}
		return events.NewPostgresStore(db, 0), registry.NewMemoryStore(), serving.NewMemoryTraceStore(), nil

	case "redis":
		if cfg.EventStoreURI == "" {
			return nil, nil, nil, fmt.Errorf("EVENT_STORE_URI is required when EVENT_STORE_DB=redis")
		}
		opt, err := redis.ParseURL(cfg.EventStoreURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse redis connection uri: %w", err)
		}
		client := redis.NewClient(opt)
		reg := registry.NewRedisStore(client, redisKeyPrefix)
		traces := serving.NewRedisTraceStore(client, redisKeyPrefix, redisOpTimeout)
		return events.NewMemoryStore(0), reg, traces, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown EVENT_STORE_DB backend %q", cfg.EventStoreDB)
	}
}
