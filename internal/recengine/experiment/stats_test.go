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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTwoProportionZTest_ShipOnSignificantPositiveDelta(t *testing.T) {
	// 100 recs/variant; 30 successes control, 55 successes treatment
	// (spec.md §8 scenario 3): delta ~= 0.25, p < 0.05, decision ship.
	res := twoProportionZTest(100, 30, 100, 55, 0.05)
	require.InDelta(t, 0.25, res.Delta, 1e-9)
	require.Less(t, res.PValue, 0.05)
	require.Equal(t, DecisionShip, res.Decision)
}

func TestTwoProportionZTest_RollbackOnSignificantNegativeDelta(t *testing.T) {
	res := twoProportionZTest(100, 55, 100, 30, 0.05)
	require.Less(t, res.Delta, 0.0)
	require.Less(t, res.PValue, 0.05)
	require.Equal(t, DecisionRollback, res.Decision)
}

func TestTwoProportionZTest_InsufficientDataWhenEitherGroupEmpty(t *testing.T) {
	res := twoProportionZTest(0, 0, 10, 5, 0.05)
	require.Equal(t, DecisionInsufficient, res.Decision)

	res = twoProportionZTest(10, 5, 0, 0, 0.05)
	require.Equal(t, DecisionInsufficient, res.Decision)
}

func TestTwoProportionZTest_KeepRunningWhenNotSignificant(t *testing.T) {
	res := twoProportionZTest(100, 30, 100, 32, 0.05)
	require.Equal(t, DecisionKeepRunning, res.Decision)
}

func TestStdNormalCDF_KnownValues(t *testing.T) {
	require.InDelta(t, 0.5, stdNormalCDF(0), 1e-9)
	require.InDelta(t, 0.8413, stdNormalCDF(1), 1e-4)
	require.InDelta(t, 0.9772, stdNormalCDF(2), 1e-4)
}
