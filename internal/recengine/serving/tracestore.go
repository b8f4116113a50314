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

package serving

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
)

// TraceStore persists prediction traces, keyed uniquely by RequestID.
// Re-upserting the same RequestID overwrites (spec.md §3's lifecycle note
// and §5's last-writer-wins concurrency rule) — unlike the registry's
// serving-state document, there is no compare-and-swap hazard here, so
// every backend can commit with a single unconditional write.
type TraceStore interface {
	PutTrace(ctx context.Context, t eventtypes.Trace) error
	GetTrace(ctx context.Context, requestID string) (eventtypes.Trace, bool, error)
}

// MemoryTraceStore is the default in-process TraceStore.
type MemoryTraceStore struct {
	mu     sync.RWMutex
	traces map[string]eventtypes.Trace
}

func NewMemoryTraceStore() *MemoryTraceStore {
	return &MemoryTraceStore{traces: make(map[string]eventtypes.Trace)}
}

func (s *MemoryTraceStore) PutTrace(_ context.Context, t eventtypes.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.RequestID] = t
	return nil
}

func (s *MemoryTraceStore) GetTrace(_ context.Context, requestID string) (eventtypes.Trace, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[requestID]
	return t, ok, nil
}

// RedisTraceStore stores each trace as a JSON string at keyPrefix:requestID,
// reusing the teacher's persistence/redis.go choice of go-redis as the
// document-store client. Unlike RedisStore.SetServingVersion (registry/redis.go),
// the write here is a plain Set: an overwrite is the correct, specified
// behavior, so no Watch/TxPipelined retry loop is needed.
type RedisTraceStore struct {
	client    *redis.Client
	keyPrefix string
	opTimeout time.Duration
}

func NewRedisTraceStore(client *redis.Client, keyPrefix string, opTimeout time.Duration) *RedisTraceStore {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &RedisTraceStore{client: client, keyPrefix: keyPrefix, opTimeout: opTimeout}
}

func (s *RedisTraceStore) key(requestID string) string {
	return s.keyPrefix + ":trace:" + requestID
}

func (s *RedisTraceStore) PutTrace(ctx context.Context, t eventtypes.Trace) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	data, err := json.Marshal(t)
	if err != nil {
		return recerr.Wrap(recerr.CodeInternal, "marshal trace", err)
	}
	if err := s.client.Set(ctx, s.key(t.RequestID), data, 0).Err(); err != nil {
		return recerr.Wrap(recerr.CodeStoreUnavailable, "put trace", err)
	}
	return nil
}

func (s *RedisTraceStore) GetTrace(ctx context.Context, requestID string) (eventtypes.Trace, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(requestID)).Bytes()
	if err == redis.Nil {
		return eventtypes.Trace{}, false, nil
	}
	if err != nil {
		return eventtypes.Trace{}, false, recerr.Wrap(recerr.CodeStoreUnavailable, "get trace", err)
	}
	var t eventtypes.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return eventtypes.Trace{}, false, recerr.Wrap(recerr.CodeInternal, "unmarshal trace", err)
	}
	return t, true, nil
}
