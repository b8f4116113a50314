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
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/logging"
)

func TestConsumer_ValidMessagesPersistAndInvalidOnesDeadLetter(t *testing.T) {
	bus := newFakeBus()
	store := events.NewMemoryStore(0)

	f, err := os.CreateTemp(t.TempDir(), "deadletters-*.jsonl")
	require.NoError(t, err)
	dl, err := NewDeadLetterSink(f.Name())
	require.NoError(t, err)
	defer dl.Close()

	var mu sync.Mutex
	var seen []eventtypes.Event
	handler := func(_ context.Context, e eventtypes.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	}

	c := NewConsumer(bus, store, dl, handler, []string{"events"}, 2, logging.Nop())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	bus.ch <- Message{Value: []byte(`{"type":"view","userId":"u1","ts":"2026-01-01T00:00:00Z","payload":{"itemId":"a"}}`)}
	bus.ch <- Message{Value: []byte(`{"type":"bogus","userId":"u1","ts":"2026-01-01T00:00:00Z"}`)}

	require.Eventually(t, func() bool {
		res, _ := store.Range(ctx, time.Time{}, time.Now().Add(time.Hour), events.Filter{})
		return len(res.Events) == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, dl.Flush())
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Contains(t, string(data), "unknown event type")

	close(bus.ch)
	cancel()
	<-done
}

func TestConsumer_PerUserOrderingWithinShard(t *testing.T) {
	bus := newFakeBus()
	store := events.NewMemoryStore(0)
	f, err := os.CreateTemp(t.TempDir(), "deadletters-*.jsonl")
	require.NoError(t, err)
	dl, err := NewDeadLetterSink(f.Name())
	require.NoError(t, err)
	defer dl.Close()

	c := NewConsumer(bus, store, dl, nil, []string{"events"}, 4, logging.Nop())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	const n = 20
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano)
		bus.ch <- Message{Value: []byte(fmt.Sprintf(`{"type":"view","userId":"same-user","ts":%q,"payload":{"itemId":"item-%d"}}`, ts, i))}
	}

	require.Eventually(t, func() bool {
		res, _ := store.Range(ctx, time.Time{}, time.Now().Add(time.Hour), events.Filter{UserID: "same-user"})
		return len(res.Events) == n
	}, 2*time.Second, 5*time.Millisecond)

	res, err := store.Range(ctx, time.Time{}, time.Now().Add(time.Hour), events.Filter{UserID: "same-user"})
	require.NoError(t, err)
	for i, e := range res.Events {
		require.Equal(t, fmt.Sprintf("item-%d", i), e.Payload.ItemID, "events for one user must persist in arrival order")
	}

	close(bus.ch)
	cancel()
	<-done
}
