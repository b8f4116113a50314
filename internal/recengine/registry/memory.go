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

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// MemoryStore is the default, in-process Registry Store. One mutex guards
// both the artifact map and the serving-state singleton since SetServingVersion
// must update them atomically with respect to readers (spec.md §5: "no
// cross-document atomicity is required" for the variants map alone, but we
// still serialize the pair so a reader never observes an artifact flipped to
// active without the serving-state pointing at it).
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]eventtypes.Artifact
	state     eventtypes.ServingState
}

// NewMemoryStore returns an empty registry with a zero-value serving state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: map[string]eventtypes.Artifact{},
		state:     eventtypes.ServingState{Variants: map[eventtypes.ServingVariant]string{}},
	}
}

func (s *MemoryStore) ListModels(_ context.Context) ([]eventtypes.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]eventtypes.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) GetArtifact(_ context.Context, version string) (eventtypes.Artifact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[version]
	return a, ok, nil
}

// PutArtifact registers a new artifact version (typically called once by
// the offline training collaborator's output, per spec.md §1). Re-putting
// an existing version overwrites it.
func (s *MemoryStore) PutArtifact(_ context.Context, a eventtypes.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Status == "" {
		a.Status = eventtypes.StatusStaging
	}
	s.artifacts[a.Version] = a
	return nil
}

func (s *MemoryStore) GetServingState(_ context.Context) (eventtypes.ServingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state), nil
}

func (s *MemoryStore) GetServingVersion(_ context.Context, variant eventtypes.ServingVariant) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolveServingVersion(s.artifacts, s.state, variant), nil
}

func (s *MemoryStore) SetServingVersion(_ context.Context, version string, target Target) (eventtypes.ServingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifacts, state, err := applyTransition(s.artifacts, s.state, version, target, time.Now())
	if err != nil {
		return eventtypes.ServingState{}, err
	}
	s.artifacts = artifacts
	s.state = state
	return cloneState(s.state), nil
}

func (s *MemoryStore) ComputeNextVersion(_ context.Context, bump Bump) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := "0.0.0"
	for v := range s.artifacts {
		if compareSemver(v, latest) > 0 {
			latest = v
		}
	}
	return bumpVersion(latest, bump), nil
}

func cloneState(s eventtypes.ServingState) eventtypes.ServingState {
	out := eventtypes.ServingState{DefaultVersion: s.DefaultVersion, UpdatedAt: s.UpdatedAt}
	out.Variants = make(map[eventtypes.ServingVariant]string, len(s.Variants))
	for k, v := range s.Variants {
		out.Variants[k] = v
	}
	return out
}
