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
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// Postgres schema (reference, applied out of band — DDL ownership lives
// with the external collaborator per spec.md §1):
//
// CREATE TABLE IF NOT EXISTS raw_events (
//   seq        BIGSERIAL PRIMARY KEY,
//   type       TEXT NOT NULL,
//   user_id    TEXT NOT NULL DEFAULT '',
//   item_id    TEXT NOT NULL DEFAULT '',
//   ts         TIMESTAMPTZ NOT NULL,
//   variant    TEXT NOT NULL DEFAULT '',
//   payload    JSONB NOT NULL DEFAULT '{}'
// );
// CREATE INDEX IF NOT EXISTS idx_raw_events_ts_type ON raw_events(ts, type);
// CREATE INDEX IF NOT EXISTS idx_raw_events_ts_type_variant ON raw_events(ts, type, variant);
// CREATE INDEX IF NOT EXISTS idx_raw_events_user_ts ON raw_events(user_id, ts);
// CREATE INDEX IF NOT EXISTS idx_raw_events_item_ts ON raw_events(item_id, ts);
// CREATE INDEX IF NOT EXISTS idx_raw_events_type_ts_desc ON raw_events(type, ts DESC);
// CREATE INDEX IF NOT EXISTS idx_raw_events_variant_ts ON raw_events(variant, ts);

// PostgresStore is the durable backing tier for the Event Store Facade,
// making the "durable event store" external collaborator of spec.md §1
// concrete. It applies the same idempotent-transaction discipline as the
// teacher's persistence.PostgresPersister (insert-then-conditionally-update),
// adapted here to a strictly additive append rather than a delta commit.
type PostgresStore struct {
	db     *sqlx.DB
	rowCap int
}

// NewPostgresStore wraps an existing *sqlx.DB. rowCap<=0 uses DefaultRowCap.
func NewPostgresStore(db *sqlx.DB, rowCap int) *PostgresStore {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &PostgresStore{db: db, rowCap: rowCap}
}

type eventRow struct {
	Seq     int64     `db:"seq"`
	Type    string    `db:"type"`
	UserID  string    `db:"user_id"`
	ItemID  string    `db:"item_id"`
	Ts      time.Time `db:"ts"`
	Variant string    `db:"variant"`
	Payload []byte    `db:"payload"`
}

func (r eventRow) toEvent() (eventtypes.Event, error) {
	var p eventtypes.Payload
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return eventtypes.Event{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return eventtypes.Event{
		Type:    eventtypes.Type(r.Type),
		UserID:  r.UserID,
		ItemID:  r.ItemID,
		Ts:      r.Ts,
		Payload: p,
		Seq:     uint64(r.Seq),
	}, nil
}

// Append inserts one row. It is durable on return: the write happens
// inside the call, not deferred to a background flush, per spec.md §4.2's
// "durable on return" contract.
func (s *PostgresStore) Append(ctx context.Context, e eventtypes.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	itemID := e.ItemID
	if itemID == "" {
		itemID = e.Payload.ItemID
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO raw_events(type, user_id, item_id, ts, variant, payload) VALUES ($1,$2,$3,$4,$5,$6)`,
		string(e.Type), e.UserID, itemID, e.Ts, e.Payload.Variant, payload)
	if err != nil {
		return fmt.Errorf("insert raw_events: %w", err)
	}
	return nil
}

// Range runs a bounded, ts-ordered query using the same filter dimensions
// as MemoryStore.Filter. It fetches rowCap+1 rows to detect truncation
// without a separate COUNT(*) round trip.
func (s *PostgresStore) Range(ctx context.Context, from, to time.Time, filter Filter) (RangeResult, error) {
	q := `SELECT seq, type, user_id, item_id, ts, variant, payload FROM raw_events WHERE ts >= $1 AND ts <= $2`
	args := []interface{}{from, to}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		q += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		q += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if filter.Variant != "" {
		args = append(args, filter.Variant)
		q += fmt.Sprintf(" AND variant = $%d", len(args))
	}
	q += " ORDER BY ts ASC, seq ASC LIMIT " + fmt.Sprint(s.rowCap+1)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return RangeResult{}, fmt.Errorf("select raw_events: %w", err)
	}

	partial := false
	if len(rows) > s.rowCap {
		rows = rows[:s.rowCap]
		partial = true
	}

	out := make([]eventtypes.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toEvent()
		if err != nil {
			return RangeResult{}, err
		}
		if len(filter.Types) > 0 {
			matched := false
			for _, t := range filter.Types {
				if ev.Type == t {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, ev)
	}
	return RangeResult{Events: out, Partial: partial}, nil
}

// AggregateFunnel, AggregateItemTrend, and AggregateUserEngagement reuse
// the same in-process grouping logic as MemoryStore by scanning through
// Range: the teacher's own adapters (redis.go, postgres.go) keep
// aggregation out of the storage layer and let the core recompute it from
// raw reads, which is the same division of labor applied here.
func (s *PostgresStore) AggregateFunnel(ctx context.Context, from time.Time, variant string) (FunnelResult, error) {
	return aggregateFunnelFromRange(ctx, s, from, variant)
}

func (s *PostgresStore) AggregateItemTrend(ctx context.Context, from time.Time, itemID string) (ItemTrendResult, error) {
	return aggregateItemTrendFromRange(ctx, s, from, itemID)
}

func (s *PostgresStore) AggregateUserEngagement(ctx context.Context, from time.Time) (EngagementResult, error) {
	return aggregateUserEngagementFromRange(ctx, s, from)
}
