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

package experiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

func rec(user string, ts time.Time, variant string, items ...string) eventtypes.Event {
	return eventtypes.Event{
		Type:   eventtypes.TypeRecommend,
		UserID: user,
		Ts:     ts,
		Payload: eventtypes.Payload{
			Items:   items,
			Variant: variant,
		},
	}
}

func play(user, item string, ts time.Time) eventtypes.Event {
	return eventtypes.Event{
		Type:   eventtypes.TypePlay,
		UserID: user,
		ItemID: item,
		Ts:     ts,
	}
}

func TestAttribute_CreditsMatchingPlayWithinWindow(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []eventtypes.Event{
		rec("u1", t0, "control", "item1"),
		play("u1", "item1", t0.Add(5*time.Minute)),
	}
	counts := attribute(events, 15*time.Minute)
	require.EqualValues(t, 1, counts.exposures["control"])
	require.EqualValues(t, 1, counts.successes["control"])
}

func TestAttribute_NoCreditWhenInteractionAfterExpiry(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []eventtypes.Event{
		rec("u1", t0, "control", "item1"),
		play("u1", "item1", t0.Add(20*time.Minute)),
	}
	counts := attribute(events, 15*time.Minute)
	require.EqualValues(t, 1, counts.exposures["control"])
	require.EqualValues(t, 0, counts.successes["control"])
}

func TestAttribute_NoCreditWhenItemNotInList(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []eventtypes.Event{
		rec("u1", t0, "control", "item1"),
		play("u1", "item2", t0.Add(time.Minute)),
	}
	counts := attribute(events, 15*time.Minute)
	require.EqualValues(t, 0, counts.successes["control"])
}

func TestAttribute_EmptyItemsCreditsAnyInteraction(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []eventtypes.Event{
		rec("u1", t0, "treatment"),
		play("u1", "anything", t0.Add(time.Minute)),
	}
	counts := attribute(events, 15*time.Minute)
	require.EqualValues(t, 1, counts.successes["treatment"])
}

func TestAttribute_NewerRecommendOverwritesEarlierWindow(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []eventtypes.Event{
		rec("u1", t0, "control", "item1"),
		rec("u1", t0.Add(time.Minute), "treatment", "item2"),
		play("u1", "item1", t0.Add(2*time.Minute)),
		play("u1", "item2", t0.Add(3*time.Minute)),
	}
	counts := attribute(events, 15*time.Minute)
	require.EqualValues(t, 1, counts.exposures["control"])
	require.EqualValues(t, 1, counts.exposures["treatment"])
	require.EqualValues(t, 0, counts.successes["control"], "earlier window was overwritten, item1 play should not credit")
	require.EqualValues(t, 1, counts.successes["treatment"])
}

func TestAttribute_ScanIsOrderIndependentOfInputOrdering(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inOrder := []eventtypes.Event{
		rec("u1", t0, "control", "item1"),
		play("u1", "item1", t0.Add(time.Minute)),
	}
	reversed := []eventtypes.Event{inOrder[1], inOrder[0]}

	a := attribute(inOrder, 15*time.Minute)
	b := attribute(reversed, 15*time.Minute)
	require.Equal(t, a.successes, b.successes)
}
