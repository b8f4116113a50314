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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/logging"
)

type fakeBus struct {
	mu      sync.Mutex
	ch      chan Message
	pauses  int32
	resumes int32
}

func newFakeBus() *fakeBus {
	return &fakeBus{ch: make(chan Message, 64)}
}

func (b *fakeBus) Messages() <-chan Message { return b.ch }
func (b *fakeBus) Pause(_ context.Context, _ []string) error {
	atomic.AddInt32(&b.pauses, 1)
	return nil
}
func (b *fakeBus) Resume(_ context.Context, _ []string) error {
	atomic.AddInt32(&b.resumes, 1)
	return nil
}

func TestBackpressureController_PausesAtHighWatermarkAndResumesAtLow(t *testing.T) {
	bus := newFakeBus()
	concurrency := 2
	c := NewBackpressureController(bus, []string{"events"}, concurrency, logging.Nop())
	defer c.Close()
	ctx := context.Background()

	// pauseAt = 5*2 = 10; the 11th dispatch exceeds it.
	for i := 0; i < 11; i++ {
		c.OnDispatch(ctx)
	}
	require.True(t, c.Paused())
	require.EqualValues(t, 1, atomic.LoadInt32(&bus.pauses))

	// resumeAt = 2*2 = 4; complete down to 3 in-flight, below it.
	for i := 0; i < 8; i++ {
		c.OnComplete(ctx)
	}
	require.False(t, c.Paused())
	require.EqualValues(t, 1, atomic.LoadInt32(&bus.resumes))
}

func TestBackpressureController_DoesNotPauseBelowThreshold(t *testing.T) {
	bus := newFakeBus()
	c := NewBackpressureController(bus, []string{"events"}, 10, logging.Nop())
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.OnDispatch(ctx)
	}
	require.False(t, c.Paused())
	require.EqualValues(t, 0, atomic.LoadInt32(&bus.pauses))
}
