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
	"sort"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// scoreTopN takes an artifact's counts as (itemId, score) pairs, sorts by
// score descending with itemId-ascending tiebreak, and returns the first n
// (spec.md §4.5 step 4).
func scoreTopN(counts map[string]float64, n int) []eventtypes.Recommendation {
	recs := make([]eventtypes.Recommendation, 0, len(counts))
	for item, score := range counts {
		recs = append(recs, eventtypes.Recommendation{ItemID: item, Score: score})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ItemID < recs[j].ItemID
	})
	if n > 0 && len(recs) > n {
		recs = recs[:n]
	}
	return recs
}
