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
	"sort"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// openWindow is the per-user bookkeeping the attribution scan carries
// forward (spec.md §4.6): the recommended items eligible to credit a
// success, the expiry, and the variant that gets credited.
type openWindow struct {
	items   map[string]bool
	expires time.Time
	variant eventtypes.ServingVariant
}

func (w openWindow) matches(itemID string) bool {
	if len(w.items) == 0 {
		return true
	}
	return w.items[itemID]
}

// attributionCounts holds per-variant exposures and successes produced by
// one scan.
type attributionCounts struct {
	exposures map[eventtypes.ServingVariant]int64
	successes map[eventtypes.ServingVariant]int64
}

func newAttributionCounts() attributionCounts {
	return attributionCounts{
		exposures: map[eventtypes.ServingVariant]int64{},
		successes: map[eventtypes.ServingVariant]int64{},
	}
}

// attribute implements spec.md §4.6's core invariant: events MUST be
// consumed in strict ts-ascending order (ties broken by insertion order,
// i.e. Seq, per §3). A recommend event opens/overwrites the user's window;
// a play/view event within the window's expiry credits and consumes it.
func attribute(events []eventtypes.Event, successWindow time.Duration) attributionCounts {
	sorted := make([]eventtypes.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ts.Equal(sorted[j].Ts) {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].Ts.Before(sorted[j].Ts)
	})

	counts := newAttributionCounts()
	windows := map[string]openWindow{}

	for _, e := range sorted {
		switch e.Type {
		case eventtypes.TypeRecommend:
			v := eventtypes.ServingVariant(e.Payload.Variant)
			items := map[string]bool{}
			for _, it := range e.Payload.Items {
				items[it] = true
			}
			if e.ItemID != "" {
				items[e.ItemID] = true
			}
			windows[e.UserID] = openWindow{
				items:   items,
				expires: e.Ts.Add(successWindow),
				variant: v,
			}
			counts.exposures[v]++
		case eventtypes.TypePlay, eventtypes.TypeView:
			itemID := e.ItemID
			if itemID == "" {
				itemID = e.Payload.ItemID
			}
			w, ok := windows[e.UserID]
			if !ok {
				continue
			}
			if e.Ts.After(w.expires) {
				delete(windows, e.UserID)
				continue
			}
			if w.matches(itemID) {
				counts.successes[w.variant]++
				delete(windows, e.UserID)
			}
		}
	}
	return counts
}
