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

// Package admin implements the Control Plane (spec.md §4.9, C9): a thin
// pass-through to the Registry Store for listModels/getServingState/
// setServingVersion. Authentication is a pre-shared-key header, external
// to the core per spec.md §4.9 — this package only accepts the resulting
// authorization boolean.
package admin

import (
	"context"
	"crypto/subtle"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
)

// Plane is the Control Plane. It holds no auth state of itself; callers
// authenticate the request and only invoke Plane methods once authorized.
type Plane struct {
	registry registry.Store
}

func NewPlane(reg registry.Store) *Plane {
	return &Plane{registry: reg}
}

func (p *Plane) ListModels(ctx context.Context) ([]eventtypes.Artifact, error) {
	return p.registry.ListModels(ctx)
}

func (p *Plane) GetServingState(ctx context.Context) (eventtypes.ServingState, error) {
	return p.registry.GetServingState(ctx)
}

func (p *Plane) SetServingVersion(ctx context.Context, version string, target registry.Target) (eventtypes.ServingState, error) {
	return p.registry.SetServingVersion(ctx, version, target)
}

// CheckAdminKey performs a constant-time comparison of the presented key
// against the configured admin key, so timing differences can't leak key
// bytes to a prober. An empty configured key always denies (fail closed).
func CheckAdminKey(configured, presented string) error {
	if configured == "" {
		return recerr.New(recerr.CodeUnauthorized, "admin API key not configured")
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return recerr.New(recerr.CodeUnauthorized, "invalid admin key")
	}
	return nil
}
