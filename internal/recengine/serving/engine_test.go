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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/logging"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
)

func seedArtifact(t *testing.T, reg registry.Store, version string, counts map[string]float64) {
	t.Helper()
	require.NoError(t, reg.PutArtifact(context.Background(), eventtypes.Artifact{
		Version:        version,
		Status:         eventtypes.StatusStaging,
		Counts:         counts,
		TrainedAt:      time.Now(),
		DataSnapshotID: "snap-1",
	}))
	_, err := reg.SetServingVersion(context.Background(), version, registry.TargetAll)
	require.NoError(t, err)
}

func TestEngine_RecommendReturnsTopNSortedDescending(t *testing.T) {
	reg := registry.NewMemoryStore()
	seedArtifact(t, reg, "0.0.1", map[string]float64{
		"a": 3, "b": 9, "c": 9, "d": 1,
	})
	traces := NewMemoryTraceStore()
	store := events.NewMemoryStore(0)

	eng := NewEngine(reg, traces, store, logging.Nop())
	result, err := eng.Recommend(context.Background(), "u1", 3)
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 3)
	require.Equal(t, "b", result.Recommendations[0].ItemID) // tie b/c -> itemId asc
	require.Equal(t, "c", result.Recommendations[1].ItemID)
	require.Equal(t, "a", result.Recommendations[2].ItemID)
	require.Equal(t, "0.0.1", result.ModelVersion)
	require.NotEmpty(t, result.RequestID)
}

func TestEngine_RecommendPersistsTraceAndEmitsEvent(t *testing.T) {
	reg := registry.NewMemoryStore()
	seedArtifact(t, reg, "0.0.1", map[string]float64{"x": 1})
	traces := NewMemoryTraceStore()
	store := events.NewMemoryStore(0)

	eng := NewEngine(reg, traces, store, logging.Nop())
	result, err := eng.Recommend(context.Background(), "u2", 5)
	require.NoError(t, err)

	trace, ok, err := traces.GetTrace(context.Background(), result.RequestID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u2", trace.UserID)

	res, err := store.Range(context.Background(), time.Time{}, time.Now().Add(time.Hour), events.Filter{Type: eventtypes.TypeRecommend})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	require.Equal(t, result.RequestID, res.Events[0].Payload.RequestID)
}

func TestEngine_RecommendWithNoArtifactFailsWithRequestID(t *testing.T) {
	reg := registry.NewMemoryStore()
	traces := NewMemoryTraceStore()
	store := events.NewMemoryStore(0)

	eng := NewEngine(reg, traces, store, logging.Nop())
	_, err := eng.Recommend(context.Background(), "u3", 5)
	require.Error(t, err)

	var predErr *PredictionError
	require.ErrorAs(t, err, &predErr)
	require.NotEmpty(t, predErr.RequestID)
	require.Equal(t, recerr.CodeNotFound, recerr.CodeOf(err))
}

func TestEngine_RecommendDefaultsLimitWhenNonPositive(t *testing.T) {
	reg := registry.NewMemoryStore()
	counts := map[string]float64{}
	for i := 0; i < 15; i++ {
		counts[string(rune('a'+i))] = float64(i)
	}
	seedArtifact(t, reg, "0.0.1", counts)
	traces := NewMemoryTraceStore()
	store := events.NewMemoryStore(0)

	eng := NewEngine(reg, traces, store, logging.Nop())
	result, err := eng.Recommend(context.Background(), "u4", 0)
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 10)
}
