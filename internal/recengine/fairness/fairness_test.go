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

package fairness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
)

func seedRecommend(t *testing.T, store events.Store, variant string, items []string, ts time.Time) {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), eventtypes.Event{
		Type: eventtypes.TypeRecommend,
		Ts:   ts,
		Payload: eventtypes.Payload{
			Items:   items,
			Variant: variant,
		},
	}))
}

func TestExposures_ShareSumsToOne(t *testing.T) {
	store := events.NewMemoryStore(0)
	now := time.Now()
	seedRecommend(t, store, "control", []string{"a", "b"}, now)
	seedRecommend(t, store, "control", []string{"a", "c"}, now)

	a := NewAnalyzer(store)
	m, err := a.Exposures(context.Background(), 1, "control")
	require.NoError(t, err)

	var sum float64
	for _, s := range m.ExposureShare {
		sum += s
	}
	require.InDelta(t, 1.0, sum, 1e-9)
	require.Equal(t, 3, m.Coverage)
}

func TestExposures_RejectsWindowBeyondRawCap(t *testing.T) {
	store := events.NewMemoryStore(0)
	a := NewAnalyzer(store)
	_, err := a.Exposures(context.Background(), maxRawWindowHours+1, "control")
	require.Equal(t, recerr.CodeRangeTooLarge, recerr.CodeOf(err))
}

func TestExposures_CachesWithinTTL(t *testing.T) {
	store := events.NewMemoryStore(0)
	now := time.Now()
	seedRecommend(t, store, "control", []string{"a"}, now)

	a := NewAnalyzer(store)
	first, err := a.Exposures(context.Background(), 1, "control")
	require.NoError(t, err)

	seedRecommend(t, store, "control", []string{"b"}, now)
	second, err := a.Exposures(context.Background(), 1, "control")
	require.NoError(t, err)
	require.Equal(t, first, second, "second call within TTL should return the cached result")
}

func TestGiniCoefficient_EmptyIsZero(t *testing.T) {
	require.Equal(t, 0.0, giniCoefficient(map[string]float64{}))
}

func TestGiniCoefficient_PerfectEqualityIsZero(t *testing.T) {
	g := giniCoefficient(map[string]float64{"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25})
	require.InDelta(t, 0.0, g, 1e-9)
}

func TestGiniCoefficient_BetweenZeroAndOne(t *testing.T) {
	g := giniCoefficient(map[string]float64{"a": 0.9, "b": 0.05, "c": 0.05})
	require.GreaterOrEqual(t, g, 0.0)
	require.LessOrEqual(t, g, 1.0)
}

func TestDiversity_SkippedForEmptyItemsRecordedZeroForSingle(t *testing.T) {
	store := events.NewMemoryStore(0)
	now := time.Now()
	seedRecommend(t, store, "control", []string{}, now)
	seedRecommend(t, store, "control", []string{"a"}, now)
	seedRecommend(t, store, "control", []string{"a", "b"}, now)

	a := NewAnalyzer(store)
	m, err := a.Exposures(context.Background(), 1, "control")
	require.NoError(t, err)
	// (0 for single-item list + 1.0 for 2 distinct of 2) / 2 events = 0.5
	require.InDelta(t, 0.5, m.Diversity, 1e-9)
}

func TestEvaluateFairness_RejectsWindowBeyondComparisonCap(t *testing.T) {
	store := events.NewMemoryStore(0)
	a := NewAnalyzer(store)
	_, err := a.EvaluateFairness(context.Background(), maxComparisonWindowHours+1)
	require.Equal(t, recerr.CodeRangeTooLarge, recerr.CodeOf(err))
}

func TestEvaluateFairness_FairWhenGiniClose(t *testing.T) {
	store := events.NewMemoryStore(0)
	now := time.Now()
	seedRecommend(t, store, "control", []string{"a", "b"}, now)
	seedRecommend(t, store, "treatment", []string{"c", "d"}, now)

	a := NewAnalyzer(store)
	result, err := a.EvaluateFairness(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "fair", result.Summary.ExposureFairness)
}
