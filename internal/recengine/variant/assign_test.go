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

package variant

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

func TestAssign_EmptyUserIsControl(t *testing.T) {
	require.Equal(t, eventtypes.VariantControl, Assign(""))
}

func TestAssign_Deterministic(t *testing.T) {
	ids := []string{"u1", "u2", "alice", "bob", "00000000-0000-0000-0000-000000000001"}
	for _, id := range ids {
		first := Assign(id)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Assign(id), "Assign(%q) is not stable across repeated calls", id)
		}
	}
}

func TestAssign_OnlyTwoBuckets(t *testing.T) {
	for i := 0; i < 200; i++ {
		v := Assign(fmt.Sprintf("user-%d", i))
		if v != eventtypes.VariantControl && v != eventtypes.VariantTreatment {
			t.Fatalf("Assign returned unexpected variant %q", v)
		}
	}
}

// TestAssign_RoughlyBalanced checks the population-level split lands close
// to 50/50 across a large synthetic user set, the property spec.md §8
// requires of the assignment contract (not an exact guarantee for any
// single small sample, but should hold within a few points at n=20000).
func TestAssign_RoughlyBalanced(t *testing.T) {
	const n = 20000
	var control int
	for i := 0; i < n; i++ {
		if Assign(fmt.Sprintf("balance-user-%d", i)) == eventtypes.VariantControl {
			control++
		}
	}
	frac := float64(control) / float64(n)
	assert.InDeltaf(t, 0.5, frac, 0.05, "control fraction %.4f too far from 0.5", frac)
}
