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

// Package serving implements the Serving Engine (spec.md §4.5, C5): variant
// assignment, artifact lookup, top-N scoring, trace persistence, and
// recommend-event emission, following the fetch-act-telemetry handler shape
// of the teacher's api.Server.handleCheckRateLimit.
package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/metrics"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
	"github.com/etalazz/rec-engine/internal/recengine/variant"
)

// PredictionError wraps a recommend failure with the requestId the caller
// must still see (spec.md §4.5: "any error in steps 1-4 ... surfaced to the
// caller with the requestId").
type PredictionError struct {
	RequestID string
	Err       error
}

func (e *PredictionError) Error() string { return e.Err.Error() }
func (e *PredictionError) Unwrap() error { return e.Err }

// Result is the response contract of POST /recommendations.
type Result struct {
	RequestID       string
	Variant         eventtypes.ServingVariant
	ModelVersion    string
	DataSnapshotID  string
	Recommendations []eventtypes.Recommendation
}

// Engine ties together C2 (registry), the trace store, and C1 (event
// emission) behind one call. Registry lookups run through a circuit breaker
// so a degraded registry fails fast instead of stacking up latency under
// backpressure (spec.md §5); trace and event-store writes do not.
type Engine struct {
	registry             registry.Store
	traces               TraceStore
	eventsS              events.Store
	breaker              *gobreaker.CircuitBreaker[eventtypes.Artifact]
	pipelineGitSha       string
	containerImageDigest string
	log                  zerolog.Logger
}

// Option configures non-required Engine fields.
type Option func(*Engine)

func WithPipelineGitSha(sha string) Option {
	return func(e *Engine) { e.pipelineGitSha = sha }
}

func WithContainerImageDigest(digest string) Option {
	return func(e *Engine) { e.containerImageDigest = digest }
}

// NewEngine constructs an Engine. The breaker trips after 5 consecutive
// registry lookup failures and half-opens after 10s, records each state
// transition in rec_breaker_state, and follows the same
// fail-fast posture the teacher reserves for backing-store calls rather
// than for the hot in-memory VSA path.
func NewEngine(reg registry.Store, traces TraceStore, eventsS events.Store, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		traces:   traces,
		eventsS:  eventsS,
		log:      log,
	}
	e.breaker = gobreaker.NewCircuitBreaker[eventtypes.Artifact](gobreaker.Settings{
		Name:        "rec-engine-serving",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(to.String()).Inc()
		},
	})
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend implements spec.md §4.5's six steps.
func (e *Engine) Recommend(ctx context.Context, userID string, n int) (Result, error) {
	requestID := uuid.NewString()
	if n <= 0 {
		n = 10
	}
	start := time.Now()

	v := variant.Assign(userID)

	artifact, err := e.fetchArtifactForVariant(ctx, v)
	if err != nil {
		return Result{RequestID: requestID}, &PredictionError{RequestID: requestID, Err: err}
	}

	recs := scoreTopN(artifact.Counts, n)

	result := Result{
		RequestID:       requestID,
		Variant:         v,
		ModelVersion:    artifact.Version,
		DataSnapshotID:  artifact.DataSnapshotID,
		Recommendations: recs,
	}

	trace := eventtypes.Trace{
		RequestID:            requestID,
		UserID:               userID,
		Variant:              v,
		ModelVersion:         artifact.Version,
		DataSnapshotID:       artifact.DataSnapshotID,
		PipelineGitSha:       e.pipelineGitSha,
		ContainerImageDigest: e.containerImageDigest,
		Recommendations:      recs,
		CreatedAt:            start,
	}
	trace.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
	if err := e.traces.PutTrace(ctx, trace); err != nil {
		e.log.Error().Err(err).Str("requestId", requestID).Msg("serving: trace persist failed")
	}

	e.emitRecommendEvent(ctx, userID, v, artifact.Version, recs, requestID, n)

	return result, nil
}

// fetchArtifactForVariant resolves the serving version for v then loads its
// artifact, both calls routed through the shared breaker.
func (e *Engine) fetchArtifactForVariant(ctx context.Context, v eventtypes.ServingVariant) (eventtypes.Artifact, error) {
	return e.breaker.Execute(func() (eventtypes.Artifact, error) {
		version, err := e.registry.GetServingVersion(ctx, v)
		if err != nil {
			return eventtypes.Artifact{}, err
		}
		if version == "" {
			return eventtypes.Artifact{}, recerr.New(recerr.CodeNotFound, "no serving version available")
		}
		artifact, ok, err := e.registry.GetArtifact(ctx, version)
		if err != nil {
			return eventtypes.Artifact{}, err
		}
		if !ok {
			return eventtypes.Artifact{}, recerr.New(recerr.CodeNotFound, "artifact not found: "+version)
		}
		return artifact, nil
	})
}

// emitRecommendEvent appends a synthetic recommend event to C1. Per
// spec.md §4.5 this must never fail the caller: errors are logged only.
func (e *Engine) emitRecommendEvent(ctx context.Context, userID string, v eventtypes.ServingVariant, modelVersion string, recs []eventtypes.Recommendation, requestID string, limit int) {
	items := make([]string, len(recs))
	for i, r := range recs {
		items[i] = r.ItemID
	}
	evt := eventtypes.Event{
		Type:   eventtypes.TypeRecommend,
		UserID: userID,
		Ts:     time.Now(),
		Payload: eventtypes.Payload{
			Items:        items,
			Variant:      string(v),
			RequestID:    requestID,
			ModelVersion: modelVersion,
			Limit:        limit,
		},
	}
	if err := e.eventsS.Append(ctx, evt); err != nil {
		e.log.Error().Err(err).Str("requestId", requestID).Msg("serving: recommend event emission failed")
	}
}
