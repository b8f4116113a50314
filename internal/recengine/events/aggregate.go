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

package events

import (
	"context"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// The aggregation logic is written once against the Store interface so
// every backend (MemoryStore, PostgresStore) gets identical grouping
// semantics by recomputing from raw Range reads, the same division of
// labor the teacher's persistence adapters use: storage stays dumb, the
// core recomputes derived views.

// aggregateFunnelFromRange groups events since from by type, optionally
// filtered to a single variant, and counts distinct users (spec.md §4.2).
func aggregateFunnelFromRange(ctx context.Context, s Store, from time.Time, variant string) (FunnelResult, error) {
	res, err := s.Range(ctx, from, farFuture(), Filter{Variant: variant})
	if err != nil {
		return FunnelResult{}, err
	}
	counts := map[eventtypes.Type]int64{}
	users := map[string]struct{}{}
	for _, e := range res.Events {
		counts[e.Type]++
		if e.UserID != "" {
			users[e.UserID] = struct{}{}
		}
	}
	return FunnelResult{CountsByType: counts, DistinctUsers: int64(len(users)), Partial: res.Partial}, nil
}

// aggregateItemTrendFromRange counts recommend exposures vs. interactions
// for a single item (or all items if itemID is empty), plus distinct items.
func aggregateItemTrendFromRange(ctx context.Context, s Store, from time.Time, itemID string) (ItemTrendResult, error) {
	res, err := s.Range(ctx, from, farFuture(), Filter{})
	if err != nil {
		return ItemTrendResult{}, err
	}
	var recCount, interCount int64
	items := map[string]struct{}{}
	for _, e := range res.Events {
		switch e.Type {
		case eventtypes.TypeRecommend:
			for _, it := range e.Payload.Items {
				if itemID == "" || it == itemID {
					recCount++
					items[it] = struct{}{}
				}
			}
		case eventtypes.TypePlay, eventtypes.TypeView:
			id := e.Payload.ItemID
			if id == "" {
				id = e.ItemID
			}
			if itemID == "" || id == itemID {
				interCount++
				if id != "" {
					items[id] = struct{}{}
				}
			}
		}
	}
	return ItemTrendResult{
		RecommendCount:   recCount,
		InteractionCount: interCount,
		DistinctItems:    int64(len(items)),
		Partial:          res.Partial,
	}, nil
}

// aggregateUserEngagementFromRange counts distinct users and mean
// events-per-user since from.
func aggregateUserEngagementFromRange(ctx context.Context, s Store, from time.Time) (EngagementResult, error) {
	res, err := s.Range(ctx, from, farFuture(), Filter{})
	if err != nil {
		return EngagementResult{}, err
	}
	perUser := map[string]int64{}
	for _, e := range res.Events {
		if e.UserID == "" {
			continue
		}
		perUser[e.UserID]++
	}
	total := int64(0)
	for _, c := range perUser {
		total += c
	}
	avg := 0.0
	if len(perUser) > 0 {
		avg = float64(total) / float64(len(perUser))
	}
	return EngagementResult{
		DistinctUsers:    int64(len(perUser)),
		EventsPerUser:    avg,
		ActiveUserCounts: perUser,
		Partial:          res.Partial,
	}, nil
}

// AggregateFunnel implements Store for MemoryStore.
func (s *MemoryStore) AggregateFunnel(ctx context.Context, from time.Time, variant string) (FunnelResult, error) {
	return aggregateFunnelFromRange(ctx, s, from, variant)
}

// AggregateItemTrend implements Store for MemoryStore.
func (s *MemoryStore) AggregateItemTrend(ctx context.Context, from time.Time, itemID string) (ItemTrendResult, error) {
	return aggregateItemTrendFromRange(ctx, s, from, itemID)
}

// AggregateUserEngagement implements Store for MemoryStore.
func (s *MemoryStore) AggregateUserEngagement(ctx context.Context, from time.Time) (EngagementResult, error) {
	return aggregateUserEngagementFromRange(ctx, s, from)
}

// farFuture stands in for "now" as a range upper bound far enough out that
// it never clips in-memory data written during the same process lifetime.
func farFuture() time.Time {
	return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
}
