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

// Package events implements the Event Store Facade (spec.md §4.2, C1):
// append-only raw-event writes; time/type/user/item/variant indexed reads;
// funnel/item-trend/engagement aggregations; a row-cap safety bound with a
// partial-results flag instead of unbounded buffering.
//
// The hot in-memory tier is grounded on the teacher's
// internal/ratelimiter/core/store.go: a sync.Map-backed structure with a
// fast Load-before-allocate path. An optional Postgres-backed durable tier
// (events/postgres.go) makes the "durable event store" external
// collaborator concrete, the way the teacher's persistence package makes
// Redis/Postgres/Kafka persisters concrete behind one interface.
package events

import (
	"context"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// DefaultRowCap is the default safety bound on any single scan (spec.md §4.2).
const DefaultRowCap = 100_000

// Filter selects a subset of events within a Range/scan call. A nil/zero
// field means "no constraint on this dimension".
type Filter struct {
	Type    eventtypes.Type
	Types   []eventtypes.Type
	UserID  string
	ItemID  string
	Variant string
}

func (f Filter) matches(e eventtypes.Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if e.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ItemID != "" && e.ItemID != f.ItemID && e.Payload.ItemID != f.ItemID {
		return false
	}
	if f.Variant != "" && e.Payload.Variant != f.Variant {
		return false
	}
	return true
}

// RangeResult wraps a scan's events plus the row-cap safety flag.
type RangeResult struct {
	Events  []eventtypes.Event
	Partial bool
}

// FunnelResult is the output of AggregateFunnel: counts per event type,
// plus the number of distinct users observed.
type FunnelResult struct {
	CountsByType  map[eventtypes.Type]int64
	DistinctUsers int64
	Partial       bool
}

// ItemTrendResult is the output of AggregateItemTrend.
type ItemTrendResult struct {
	RecommendCount   int64
	InteractionCount int64
	DistinctItems    int64
	Partial          bool
}

// EngagementResult is the output of AggregateUserEngagement.
type EngagementResult struct {
	DistinctUsers    int64
	EventsPerUser    float64
	ActiveUserCounts map[string]int64
	Partial          bool
}

// Store is the Event Store Facade contract. Every call may suspend (§5);
// implementations must carry ctx through to any I/O.
type Store interface {
	Append(ctx context.Context, e eventtypes.Event) error
	Range(ctx context.Context, from, to time.Time, filter Filter) (RangeResult, error)
	AggregateFunnel(ctx context.Context, from time.Time, variant string) (FunnelResult, error)
	AggregateItemTrend(ctx context.Context, from time.Time, itemID string) (ItemTrendResult, error)
	AggregateUserEngagement(ctx context.Context, from time.Time) (EngagementResult, error)
}
