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

// Package fairness implements the Fairness Analyzer (spec.md §4.7, C7):
// exposure share, intra-list diversity, coverage, Shannon entropy, and
// Gini over the recommend-event stream, with a 5-minute TTL cache keyed by
// (windowHours, variant).
package fairness

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
)

const (
	maxRawWindowHours        = 720
	maxComparisonWindowHours = 168
	cacheTTL                 = 5 * time.Minute
)

// VariantMetrics is one variant's exposure/diversity/Gini breakdown.
type VariantMetrics struct {
	ExposureShare map[string]float64
	Coverage      int
	Diversity     float64
	Entropy       float64
	Gini          float64
	TotalExposure int64
	Failed        bool
}

// ComparisonSummary is evaluateFairness's cross-variant verdict.
type ComparisonSummary struct {
	ExposureFairness    string // "fair" | "unfair"
	DiversityComparison string // "similar" | "different"
}

// Result is the full output of one EvaluateFairness call.
type Result struct {
	Control   VariantMetrics
	Treatment VariantMetrics
	Summary   ComparisonSummary
}

type cacheKey struct {
	windowHours int
	variant     string
}

type cacheEntry struct {
	metrics   VariantMetrics
	expiresAt time.Time
}

// Analyzer reads recommend events from C1 and caches per-(windowHours,
// variant) results for cacheTTL, mirroring the teacher's
// telemetry/churn read-triggered, no-background-goroutine refresh shape.
type Analyzer struct {
	store events.Store

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

func NewAnalyzer(store events.Store) *Analyzer {
	return &Analyzer{store: store, cache: map[cacheKey]cacheEntry{}}
}

// Exposures computes raw exposure-share/diversity/coverage/entropy/Gini for
// one variant ("" selects all variants) over windowHours. Safety cap:
// windowHours > maxRawWindowHours => recerr.CodeRangeTooLarge.
func (a *Analyzer) Exposures(ctx context.Context, windowHours int, variant string) (VariantMetrics, error) {
	if windowHours > maxRawWindowHours {
		return VariantMetrics{}, recerr.New(recerr.CodeRangeTooLarge, "windowHours exceeds raw exposure cap")
	}
	key := cacheKey{windowHours: windowHours, variant: variant}
	if m, ok := a.cached(key); ok {
		return m, nil
	}
	m, err := a.compute(ctx, windowHours, variant)
	if err != nil {
		return VariantMetrics{}, err
	}
	a.remember(key, m)
	return m, nil
}

func (a *Analyzer) cached(key cacheKey) (VariantMetrics, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return VariantMetrics{}, false
	}
	return entry.metrics, true
}

func (a *Analyzer) remember(key cacheKey, m VariantMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[key] = cacheEntry{metrics: m, expiresAt: time.Now().Add(cacheTTL)}
}

func (a *Analyzer) compute(ctx context.Context, windowHours int, variant string) (VariantMetrics, error) {
	now := time.Now()
	from := now.Add(-time.Duration(windowHours) * time.Hour)
	filter := events.Filter{Type: eventtypes.TypeRecommend}
	if variant != "" {
		filter.Variant = variant
	}
	result, err := a.store.Range(ctx, from, now, filter)
	if err != nil {
		return VariantMetrics{}, err
	}

	exposureCount := map[string]int64{}
	var total int64
	var diversitySum float64
	var diversityEvents int

	for _, e := range result.Events {
		items := e.Payload.Items
		for _, it := range items {
			exposureCount[it]++
			total++
		}
		k := len(items)
		if k > 1 {
			distinct := map[string]bool{}
			for _, it := range items {
				distinct[it] = true
			}
			diversitySum += float64(len(distinct)) / float64(k)
			diversityEvents++
		} else if k == 1 {
			// single-item lists count as 0 diversity (spec behavior, not
			// skipped) — see open question on this biasing the mean.
			diversityEvents++
		}
	}

	share := map[string]float64{}
	if total > 0 {
		for item, c := range exposureCount {
			share[item] = float64(c) / float64(total)
		}
	}

	diversity := 0.0
	if diversityEvents > 0 {
		diversity = diversitySum / float64(diversityEvents)
	}

	return VariantMetrics{
		ExposureShare: share,
		Coverage:      len(exposureCount),
		Diversity:     diversity,
		Entropy:       shannonEntropy(share),
		Gini:          giniCoefficient(share),
		TotalExposure: total,
	}, nil
}

// shannonEntropy computes base-2 Shannon entropy over the exposure-share
// distribution (spec.md §4.7).
func shannonEntropy(share map[string]float64) float64 {
	var h float64
	for _, p := range share {
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	return h
}

// giniCoefficient computes the Gini coefficient of the (positive) exposure
// shares per spec.md §4.7's exact formula: sort ascending, then
// G = Σ|xi-xj| / (2 n^2 xbar). Empty distribution => 0.
func giniCoefficient(share map[string]float64) float64 {
	values := make([]float64, 0, len(share))
	var sum float64
	for _, v := range share {
		if v <= 0 {
			continue
		}
		values = append(values, v)
		sum += v
	}
	n := len(values)
	if n == 0 || sum == 0 {
		return 0
	}
	sort.Float64s(values)
	mean := sum / float64(n)

	var absDiffSum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := values[i] - values[j]
			if d < 0 {
				d = -d
			}
			absDiffSum += d
		}
	}
	return absDiffSum / (2 * float64(n) * float64(n) * mean)
}

// EvaluateFairness compares control and treatment. windowHours for the
// full comparison is capped tighter than raw exposure
// (maxComparisonWindowHours). If one side's scan fails, its metrics are
// returned zeroed and Failed=true, but the response still returns
// (spec.md §4.7's partial-failure semantics).
func (a *Analyzer) EvaluateFairness(ctx context.Context, windowHours int) (Result, error) {
	if windowHours > maxComparisonWindowHours {
		return Result{}, recerr.New(recerr.CodeRangeTooLarge, "windowHours exceeds fairness comparison cap")
	}

	control, controlErr := a.Exposures(ctx, windowHours, string(eventtypes.VariantControl))
	if controlErr != nil {
		control = VariantMetrics{Failed: true}
	}
	treatment, treatmentErr := a.Exposures(ctx, windowHours, string(eventtypes.VariantTreatment))
	if treatmentErr != nil {
		treatment = VariantMetrics{Failed: true}
	}

	exposureFairness := "unfair"
	if math.Abs(control.Gini-treatment.Gini) < 0.1 {
		exposureFairness = "fair"
	}
	diversityComparison := "different"
	if math.Abs(control.Diversity-treatment.Diversity) < 0.1 {
		diversityComparison = "similar"
	}

	return Result{
		Control:   control,
		Treatment: treatment,
		Summary: ComparisonSummary{
			ExposureFairness:    exposureFairness,
			DiversityComparison: diversityComparison,
		},
	}, nil
}
