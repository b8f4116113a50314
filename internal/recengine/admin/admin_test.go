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

package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
)

func TestCheckAdminKey_RejectsEmptyConfigured(t *testing.T) {
	err := CheckAdminKey("", "anything")
	require.Equal(t, recerr.CodeUnauthorized, recerr.CodeOf(err))
}

func TestCheckAdminKey_RejectsMismatch(t *testing.T) {
	err := CheckAdminKey("correct-key", "wrong-key")
	require.Equal(t, recerr.CodeUnauthorized, recerr.CodeOf(err))
}

func TestCheckAdminKey_AcceptsMatch(t *testing.T) {
	require.NoError(t, CheckAdminKey("correct-key", "correct-key"))
}

func TestPlane_SetServingVersionDelegatesToRegistry(t *testing.T) {
	reg := registry.NewMemoryStore()
	require.NoError(t, reg.PutArtifact(context.Background(), eventtypes.Artifact{
		Version:   "0.0.1",
		Status:    eventtypes.StatusStaging,
		Counts:    map[string]float64{"a": 1},
		TrainedAt: time.Now(),
	}))

	p := NewPlane(reg)
	state, err := p.SetServingVersion(context.Background(), "0.0.1", registry.TargetAll)
	require.NoError(t, err)
	require.Equal(t, "0.0.1", state.DefaultVersion)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)

	got, err := p.GetServingState(context.Background())
	require.NoError(t, err)
	require.Equal(t, state.DefaultVersion, got.DefaultVersion)
}
