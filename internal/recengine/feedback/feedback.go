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

// Package feedback implements the Feedback-Loop Analyzer (spec.md §4.8,
// C8): per-item cycle detection (firstRecommended -> firstInteracted ->
// secondRecommended), amplification ratios, and anomaly flags, scanned
// over the same raw event store as C7.
package feedback

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// posInf marks an amplification ratio where there were zero pre-recommendation
// interactions and at least one post-recommendation interaction (spec.md §4.8).
var posInf = math.Inf(1)

// Loop is one completed (firstRec, firstInteraction, secondRec) triple for
// an item.
type Loop struct {
	ItemID            string
	FirstRecommended  time.Time
	FirstInteracted   time.Time
	SecondRecommended time.Time
	CycleTimeHours    float64
}

// LoopSummary is the aggregate over all detected loops.
type LoopSummary struct {
	FeedbackLoops     int
	AvgCycleTimeHours float64
	Loops             []Loop
}

// AmplificationEntry is one item's pre/post-recommendation interaction
// ratio.
type AmplificationEntry struct {
	ItemID string
	Before int64
	After  int64
	Ratio  float64 // math.Inf(1) when Before==0 && After>0
}

// AmplificationSummary is the aggregate amplification output.
type AmplificationSummary struct {
	MeanFiniteRatio float64
	TopAmplified    []AmplificationEntry
}

// Anomaly is one flagged anomaly (spec.md §4.8).
type Anomaly struct {
	Type     string
	Severity string
	ItemID   string
	Detail   string
}

// AnomalySummary bundles the flags with the required summary string.
type AnomalySummary struct {
	Summary   string // "anomalies_detected" | "no_anomalies"
	Anomalies []Anomaly
}

// Result is the full analyzer output.
type Result struct {
	Loops          LoopSummary
	Amplification  AmplificationSummary
	AnomalySummary AnomalySummary
}

// itemState is the per-item scan bookkeeping.
type itemState struct {
	firstRecommended  time.Time
	firstInteracted   time.Time
	secondRecommended time.Time
	hasFirstRec       bool
	hasFirstInteract  bool
	hasSecondRec      bool
	before            int64
	after             int64
}

// Analyzer scans C1 for recommend/play/view events over a window.
type Analyzer struct {
	store events.Store
}

func NewAnalyzer(store events.Store) *Analyzer {
	return &Analyzer{store: store}
}

// Evaluate implements spec.md §4.8's scan-and-accumulate over
// [now-windowHours, now] in ascending ts order.
func (a *Analyzer) Evaluate(ctx context.Context, windowHours int) (Result, error) {
	now := time.Now()
	from := now.Add(-time.Duration(windowHours) * time.Hour)

	res, err := a.store.Range(ctx, from, now, events.Filter{
		Types: []eventtypes.Type{eventtypes.TypeRecommend, eventtypes.TypePlay, eventtypes.TypeView},
	})
	if err != nil {
		return Result{}, err
	}

	items := map[string]*itemState{}
	var totalRecSlots int64
	itemSlotCount := map[string]int64{}

	getState := func(id string) *itemState {
		s, ok := items[id]
		if !ok {
			s = &itemState{}
			items[id] = s
		}
		return s
	}

	for _, e := range res.Events {
		switch e.Type {
		case eventtypes.TypeRecommend:
			for _, itemID := range e.Payload.Items {
				totalRecSlots++
				itemSlotCount[itemID]++
				s := getState(itemID)
				if !s.hasFirstRec {
					s.firstRecommended = e.Ts
					s.hasFirstRec = true
				} else if s.hasFirstInteract && !s.hasSecondRec {
					s.secondRecommended = e.Ts
					s.hasSecondRec = true
				}
			}
		case eventtypes.TypePlay, eventtypes.TypeView:
			itemID := e.ItemID
			if itemID == "" {
				itemID = e.Payload.ItemID
			}
			if itemID == "" {
				continue
			}
			s := getState(itemID)
			if !s.hasFirstRec {
				s.before++
				continue
			}
			if !s.hasFirstInteract && e.Ts.After(s.firstRecommended) {
				s.firstInteracted = e.Ts
				s.hasFirstInteract = true
			}
			if s.hasFirstInteract {
				s.after++
			} else {
				s.before++
			}
		}
	}

	loops := buildLoops(items)
	amplification, allAmplified := buildAmplification(items)
	anomalies := detectAnomalies(loops, allAmplified, itemSlotCount, totalRecSlots)

	return Result{
		Loops:          loops,
		Amplification:  amplification,
		AnomalySummary: anomalies,
	}, nil
}

func buildLoops(items map[string]*itemState) LoopSummary {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var loops []Loop
	var cycleSum float64
	for _, id := range ids {
		s := items[id]
		if !(s.hasFirstRec && s.hasFirstInteract && s.hasSecondRec) {
			continue
		}
		cycleTime := s.secondRecommended.Sub(s.firstRecommended)
		hours := cycleTime.Hours()
		loops = append(loops, Loop{
			ItemID:            id,
			FirstRecommended:  s.firstRecommended,
			FirstInteracted:   s.firstInteracted,
			SecondRecommended: s.secondRecommended,
			CycleTimeHours:    hours,
		})
		cycleSum += hours
	}

	avg := 0.0
	if len(loops) > 0 {
		avg = cycleSum / float64(len(loops))
	}
	return LoopSummary{FeedbackLoops: len(loops), AvgCycleTimeHours: avg, Loops: loops}
}

func buildAmplification(items map[string]*itemState) (AmplificationSummary, []AmplificationEntry) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]AmplificationEntry, 0, len(ids))
	var finiteSum float64
	var finiteCount int
	for _, id := range ids {
		s := items[id]
		if s.before == 0 && s.after == 0 {
			continue
		}
		ratio := 0.0
		switch {
		case s.before == 0 && s.after > 0:
			ratio = posInf
		default:
			if s.before > 0 {
				ratio = float64(s.after) / float64(s.before)
				finiteSum += ratio
				finiteCount++
			}
		}
		entries = append(entries, AmplificationEntry{ItemID: id, Before: s.before, After: s.after, Ratio: ratio})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Ratio > entries[j].Ratio })

	top := entries
	if len(top) > 10 {
		top = top[:10]
	}

	mean := 0.0
	if finiteCount > 0 {
		mean = finiteSum / float64(finiteCount)
	}
	return AmplificationSummary{MeanFiniteRatio: mean, TopAmplified: top}, entries
}

func detectAnomalies(loops LoopSummary, allAmplified []AmplificationEntry, itemSlotCount map[string]int64, totalRecSlots int64) AnomalySummary {
	var anomalies []Anomaly

	for _, l := range loops.Loops {
		if l.CycleTimeHours < 1.0 {
			anomalies = append(anomalies, Anomaly{
				Type:     "short_feedback_cycle",
				Severity: "high",
				ItemID:   l.ItemID,
				Detail:   "feedback cycle under 1 hour",
			})
		}
	}

	for _, e := range allAmplified {
		if e.Ratio > 10 && e.Ratio != posInf {
			anomalies = append(anomalies, Anomaly{
				Type:     "extreme_amplification",
				Severity: "medium",
				ItemID:   e.ItemID,
				Detail:   "amplification ratio exceeds 10x",
			})
		}
	}

	if totalRecSlots > 0 {
		type kv struct {
			id    string
			count int64
		}
		kvs := make([]kv, 0, len(itemSlotCount))
		for id, c := range itemSlotCount {
			kvs = append(kvs, kv{id, c})
		}
		sort.Slice(kvs, func(i, j int) bool { return kvs[i].count > kvs[j].count })
		if len(kvs) > 10 {
			kvs = kvs[:10]
		}
		var top int64
		for _, e := range kvs {
			top += e.count
		}
		if float64(top)/float64(totalRecSlots) > 0.5 {
			anomalies = append(anomalies, Anomaly{
				Type:     "high_concentration",
				Severity: "medium",
				Detail:   "top-10 items carry over half of all recommendation slots",
			})
		}
	}

	summary := "no_anomalies"
	if len(anomalies) > 0 {
		summary = "anomalies_detected"
	}
	return AnomalySummary{Summary: summary, Anomalies: anomalies}
}
