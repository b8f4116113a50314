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

package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

func appendEvent(t *testing.T, store events.Store, typ eventtypes.Type, itemID string, items []string, ts time.Time) {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), eventtypes.Event{
		Type:   typ,
		ItemID: itemID,
		Ts:     ts,
		Payload: eventtypes.Payload{
			Items: items,
		},
	}))
}

func TestEvaluate_EmptyUniverseReportsNoLoopsOrAnomalies(t *testing.T) {
	store := events.NewMemoryStore(0)
	a := NewAnalyzer(store)
	result, err := a.Evaluate(context.Background(), 168)
	require.NoError(t, err)
	require.Equal(t, 0, result.Loops.FeedbackLoops)
	require.Equal(t, 0.0, result.Loops.AvgCycleTimeHours)
	require.Equal(t, "no_anomalies", result.AnomalySummary.Summary)
	require.Empty(t, result.AnomalySummary.Anomalies)
}

func TestEvaluate_CyclePresentFlagsShortFeedbackCycle(t *testing.T) {
	store := events.NewMemoryStore(0)
	t0 := time.Now().Add(-time.Hour)
	appendEvent(t, store, eventtypes.TypeRecommend, "", []string{"item1"}, t0)
	appendEvent(t, store, eventtypes.TypePlay, "item1", nil, t0.Add(5*time.Second))
	appendEvent(t, store, eventtypes.TypeRecommend, "", []string{"item1"}, t0.Add(10*time.Second))

	a := NewAnalyzer(store)
	result, err := a.Evaluate(context.Background(), 168)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Loops.FeedbackLoops, 1)
	require.Greater(t, result.Loops.AvgCycleTimeHours, 0.0)

	require.Equal(t, "anomalies_detected", result.AnomalySummary.Summary)
	found := false
	for _, an := range result.AnomalySummary.Anomalies {
		if an.Type == "short_feedback_cycle" {
			found = true
		}
	}
	require.True(t, found)
}

func TestBuildAmplification_InfiniteRatioWhenNoPriorInteractions(t *testing.T) {
	store := events.NewMemoryStore(0)
	t0 := time.Now().Add(-time.Hour)
	appendEvent(t, store, eventtypes.TypeRecommend, "", []string{"item1"}, t0)
	appendEvent(t, store, eventtypes.TypeView, "item1", nil, t0.Add(time.Minute))
	appendEvent(t, store, eventtypes.TypeView, "item1", nil, t0.Add(2*time.Minute))

	a := NewAnalyzer(store)
	result, err := a.Evaluate(context.Background(), 168)
	require.NoError(t, err)
	require.Len(t, result.Amplification.TopAmplified, 1)
	require.True(t, result.Amplification.TopAmplified[0].Ratio > 1e300, "expected an effectively-infinite ratio")
	require.Equal(t, 0.0, result.Amplification.MeanFiniteRatio, "the sole ratio is infinite so mean-of-finite is 0")
}

func TestBuildAmplification_FiniteRatioMeanExcludesInfinite(t *testing.T) {
	store := events.NewMemoryStore(0)
	t0 := time.Now().Add(-time.Hour)
	// item1: 2 interactions before first rec, 4 after => ratio 2.0
	appendEvent(t, store, eventtypes.TypeView, "item1", nil, t0)
	appendEvent(t, store, eventtypes.TypeView, "item1", nil, t0.Add(time.Second))
	appendEvent(t, store, eventtypes.TypeRecommend, "", []string{"item1"}, t0.Add(2*time.Second))
	for i := 0; i < 4; i++ {
		appendEvent(t, store, eventtypes.TypeView, "item1", nil, t0.Add(time.Duration(3+i)*time.Second))
	}

	a := NewAnalyzer(store)
	result, err := a.Evaluate(context.Background(), 168)
	require.NoError(t, err)
	require.InDelta(t, 2.0, result.Amplification.MeanFiniteRatio, 1e-9)
}

func TestBuildAmplification_TopAmplifiedOrderedDescending(t *testing.T) {
	store := events.NewMemoryStore(0)
	t0 := time.Now().Add(-time.Hour)
	seedItem := func(item string, before, after int) {
		for i := 0; i < before; i++ {
			appendEvent(t, store, eventtypes.TypeView, item, nil, t0.Add(time.Duration(i)*time.Millisecond))
		}
		appendEvent(t, store, eventtypes.TypeRecommend, "", []string{item}, t0.Add(100*time.Millisecond))
		for i := 0; i < after; i++ {
			appendEvent(t, store, eventtypes.TypeView, item, nil, t0.Add(time.Duration(200+i)*time.Millisecond))
		}
	}
	seedItem("low", 10, 5)  // ratio 0.5
	seedItem("high", 2, 10) // ratio 5

	a := NewAnalyzer(store)
	result, err := a.Evaluate(context.Background(), 168)
	require.NoError(t, err)
	require.True(t, len(result.Amplification.TopAmplified) >= 2)
	require.Equal(t, "high", result.Amplification.TopAmplified[0].ItemID)
}
