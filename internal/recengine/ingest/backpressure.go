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
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/etalazz/rec-engine/pkg/vsa"
)

// BackpressureController tracks in-flight ingest work and pauses/resumes
// the bus around the thresholds spec.md §4.4 fixes: it pauses once
// in-flight work exceeds pauseAt = 5x concurrency and resumes once it drops
// below resumeAt = 2x concurrency.
//
// It reuses pkg/vsa.VSA as the in-flight counter the same way the teacher's
// Worker uses it as a commit-delta accumulator: scalar holds pauseAt (an
// immutable ceiling), Update(+1)/Update(-1) track dispatch/completion, and
// State()'s vector is compared against the watermark gap.
// The high/low "armed" hysteresis that gated the teacher's commit decision
// gates the pause/resume decision here instead, to avoid the same rapid
// on/off flapping at the boundary.
type BackpressureController struct {
	inflight *vsa.VSA
	pauseAt  int64
	resumeAt int64
	armed    atomic.Bool // true => eligible to pause once we exceed pauseAt
	paused   atomic.Bool
	bus      Bus
	topics   []string
	log      zerolog.Logger
}

// NewBackpressureController derives (pauseAt, resumeAt) from concurrency
// per spec.md §4.4's fixed ratios.
func NewBackpressureController(bus Bus, topics []string, concurrency int, log zerolog.Logger) *BackpressureController {
	pauseAt := int64(5 * concurrency)
	resumeAt := int64(2 * concurrency)
	c := &BackpressureController{
		inflight: vsa.New(pauseAt),
		pauseAt:  pauseAt,
		resumeAt: resumeAt,
		bus:      bus,
		topics:   topics,
		log:      log,
	}
	c.armed.Store(true)
	return c
}

// OnDispatch must be called once per message handed to a worker.
func (c *BackpressureController) OnDispatch(ctx context.Context) {
	c.inflight.Update(1)
	c.checkPause(ctx)
}

// OnComplete must be called once per message finishing processing
// (success or failure — both free a slot).
func (c *BackpressureController) OnComplete(ctx context.Context) {
	c.inflight.Update(-1)
	c.checkResume(ctx)
}

func (c *BackpressureController) currentInflight() int64 {
	_, vector := c.inflight.State()
	if vector < 0 {
		return -vector
	}
	return vector
}

func (c *BackpressureController) checkPause(ctx context.Context) {
	n := c.currentInflight()
	if n > c.pauseAt {
		if c.armed.Load() {
			c.armed.Store(false)
			if !c.paused.Load() {
				c.paused.Store(true)
				c.log.Info().Int64("inflight", n).Int64("pause_at", c.pauseAt).Msg("ingest backpressure: pausing bus")
				if err := c.bus.Pause(ctx, c.topics); err != nil {
					c.log.Error().Err(err).Msg("ingest backpressure: pause failed")
				}
			}
		}
	}
}

func (c *BackpressureController) checkResume(ctx context.Context) {
	n := c.currentInflight()
	if n < c.resumeAt {
		if !c.armed.Load() {
			c.armed.Store(true)
			if c.paused.Load() {
				c.paused.Store(false)
				c.log.Info().Int64("inflight", n).Int64("resume_at", c.resumeAt).Msg("ingest backpressure: resuming bus")
				if err := c.bus.Resume(ctx, c.topics); err != nil {
					c.log.Error().Err(err).Msg("ingest backpressure: resume failed")
				}
			}
		}
	}
}

// Paused reports the current pause state, for health/metrics reporting.
func (c *BackpressureController) Paused() bool { return c.paused.Load() }

// Close releases the underlying in-flight counter.
func (c *BackpressureController) Close() { c.inflight.Close() }
