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

// Package experiment implements the Experiment Engine (spec.md §4.6, C6):
// per-user success-window attribution over the raw event store, followed
// by a two-proportion z-test that decides ship/rollback/keep-running.
package experiment

import (
	"context"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
)

// DefaultAlpha is the default significance level (spec.md §4.6).
const DefaultAlpha = 0.05

// VariantSummary is one variant's row in Summary.
type VariantSummary struct {
	Version        string
	Exposures      int64
	Successes      int64
	ConversionRate float64
}

// Summary is the output of Summarize (spec.md §4.6).
type Summary struct {
	Control   VariantSummary
	Treatment VariantSummary
	Stats     ZTestResult
}

// Engine reads raw events from C1 and resolves serving versions from C2
// to label the summary rows.
type Engine struct {
	eventsStore   events.Store
	registryStore registry.Store
	successWindow time.Duration
	alpha         float64
}

func NewEngine(eventsStore events.Store, registryStore registry.Store, successWindow time.Duration, alpha float64) *Engine {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	return &Engine{
		eventsStore:   eventsStore,
		registryStore: registryStore,
		successWindow: successWindow,
		alpha:         alpha,
	}
}

// Summarize scans [now-windowHours, now] in ts-ascending order, attributes
// successes per spec.md §4.6, then runs the two-proportion z-test between
// control and treatment.
func (e *Engine) Summarize(ctx context.Context, windowHours int) (Summary, error) {
	now := time.Now()
	from := now.Add(-time.Duration(windowHours) * time.Hour)

	result, err := e.eventsStore.Range(ctx, from, now, events.Filter{
		Types: []eventtypes.Type{eventtypes.TypeRecommend, eventtypes.TypePlay, eventtypes.TypeView},
	})
	if err != nil {
		return Summary{}, err
	}

	counts := attribute(result.Events, e.successWindow)

	controlVersion, _ := e.registryStore.GetServingVersion(ctx, eventtypes.VariantControl)
	treatmentVersion, _ := e.registryStore.GetServingVersion(ctx, eventtypes.VariantTreatment)

	n1 := counts.exposures[eventtypes.VariantControl]
	s1 := counts.successes[eventtypes.VariantControl]
	n2 := counts.exposures[eventtypes.VariantTreatment]
	s2 := counts.successes[eventtypes.VariantTreatment]

	stats := twoProportionZTest(n1, s1, n2, s2, e.alpha)

	return Summary{
		Control: VariantSummary{
			Version:        controlVersion,
			Exposures:      n1,
			Successes:      s1,
			ConversionRate: safeRate(s1, n1),
		},
		Treatment: VariantSummary{
			Version:        treatmentVersion,
			Exposures:      n2,
			Successes:      s2,
			ConversionRate: safeRate(s2, n2),
		},
		Stats: stats,
	}, nil
}

func safeRate(successes, exposures int64) float64 {
	if exposures == 0 {
		return 0
	}
	return float64(successes) / float64(exposures)
}
