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

// Package registry implements the Registry Store (spec.md §4.3, C2): a
// versioned model-artifact state machine plus the singleton serving-state
// document that serving and experimentation both read.
//
// The in-memory Store is the default/test backend: plain maps guarded by a
// single sync.RWMutex. An optional Redis-backed Store performs the
// serving-state read-modify-write with optimistic locking (WATCH on the
// artifacts and serving-state keys, a pipelined MULTI/EXEC commit, and a
// retry when the transaction fails on a concurrent change).
package registry

import (
	"context"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
)

// Target enumerates the traffic-switch scopes accepted by SetServingVersion.
type Target string

const (
	TargetAll       Target = "all"
	TargetControl   Target = "control"
	TargetTreatment Target = "treatment"
)

// Bump enumerates the semver-like component ComputeNextVersion increments.
type Bump string

const (
	BumpPatch Bump = "patch"
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

// Store is the Registry Store contract. Every call may suspend (§5).
type Store interface {
	ListModels(ctx context.Context) ([]eventtypes.Artifact, error)
	GetArtifact(ctx context.Context, version string) (eventtypes.Artifact, bool, error)
	PutArtifact(ctx context.Context, a eventtypes.Artifact) error
	GetServingState(ctx context.Context) (eventtypes.ServingState, error)
	// GetServingVersion resolves variants[variant] ?? defaultVersion ??
	// (latest active) ?? (newest) ?? "" per spec.md §4.3.
	GetServingVersion(ctx context.Context, variant eventtypes.ServingVariant) (string, error)
	// SetServingVersion drives the artifact + serving-state transitions of
	// the §4.3 table. Unknown target => recerr.CodeInvalidTarget; unknown
	// version => recerr.CodeNotFound.
	SetServingVersion(ctx context.Context, version string, target Target) (eventtypes.ServingState, error)
	// ComputeNextVersion increments the latest artifact's version. With no
	// artifacts the starting point is "0.0.0", so a minor bump yields "0.1.0"
	// and a patch bump "0.0.1".
	ComputeNextVersion(ctx context.Context, bump Bump) (string, error)
}

func validTarget(t Target) bool {
	switch t {
	case TargetAll, TargetControl, TargetTreatment:
		return true
	default:
		return false
	}
}

// applyTransition mutates artifacts and state in place per the §4.3 table.
// Shared by every Store implementation so the state-machine logic itself is
// written once.
func applyTransition(artifacts map[string]eventtypes.Artifact, state eventtypes.ServingState, version string, target Target, now time.Time) (map[string]eventtypes.Artifact, eventtypes.ServingState, error) {
	if !validTarget(target) {
		return nil, eventtypes.ServingState{}, recerr.New(recerr.CodeInvalidTarget, "unknown target: "+string(target))
	}
	chosen, ok := artifacts[version]
	if !ok {
		return nil, eventtypes.ServingState{}, recerr.New(recerr.CodeNotFound, "unknown version: "+version)
	}

	switch target {
	case TargetAll:
		for v, a := range artifacts {
			if a.Status == eventtypes.StatusActive || a.Status == eventtypes.StatusShadow {
				a.Status = eventtypes.StatusArchived
				artifacts[v] = a
			}
		}
		chosen.Status = eventtypes.StatusActive
		artifacts[version] = chosen
		state.DefaultVersion = version
		if state.Variants == nil {
			state.Variants = map[eventtypes.ServingVariant]string{}
		}
		state.Variants[eventtypes.VariantControl] = version
		state.Variants[eventtypes.VariantTreatment] = version
	case TargetControl:
		for v, a := range artifacts {
			if a.Status == eventtypes.StatusActive {
				a.Status = eventtypes.StatusArchived
				artifacts[v] = a
			}
		}
		chosen.Status = eventtypes.StatusActive
		artifacts[version] = chosen
		if state.Variants == nil {
			state.Variants = map[eventtypes.ServingVariant]string{}
		}
		state.Variants[eventtypes.VariantControl] = version
		state.DefaultVersion = version
	case TargetTreatment:
		chosen.Status = eventtypes.StatusShadow
		artifacts[version] = chosen
		if state.Variants == nil {
			state.Variants = map[eventtypes.ServingVariant]string{}
		}
		state.Variants[eventtypes.VariantTreatment] = version
	}
	state.UpdatedAt = now
	return artifacts, state, nil
}

// resolveServingVersion implements the §4.3 lookup chain:
// variants[variant] ?? defaultVersion ?? (latest active) ?? (newest) ?? "".
func resolveServingVersion(artifacts map[string]eventtypes.Artifact, state eventtypes.ServingState, variant eventtypes.ServingVariant) string {
	if v, ok := state.Variants[variant]; ok && v != "" {
		return v
	}
	if state.DefaultVersion != "" {
		return state.DefaultVersion
	}
	var latestActive eventtypes.Artifact
	haveActive := false
	var newest eventtypes.Artifact
	haveAny := false
	for _, a := range artifacts {
		if !haveAny || a.TrainedAt.After(newest.TrainedAt) {
			newest = a
			haveAny = true
		}
		if a.Status == eventtypes.StatusActive && (!haveActive || a.TrainedAt.After(latestActive.TrainedAt)) {
			latestActive = a
			haveActive = true
		}
	}
	if haveActive {
		return latestActive.Version
	}
	if haveAny {
		return newest.Version
	}
	return ""
}
