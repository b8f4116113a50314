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

import "math"

// Abramowitz-Stegun erf approximation constants (spec.md §4.6). The exact
// constants are a reproducibility contract: any other erf implementation
// would shift p-values at the margin.
const (
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
	asP  = 0.3275911
)

func erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}
	t := 1.0 / (1.0 + asP*x)
	y := 1.0 - (((((asA5*t+asA4)*t)+asA3)*t+asA2)*t+asA1)*t*math.Exp(-x*x)
	return sign * y
}

// stdNormalCDF is Φ, the standard normal cumulative distribution function,
// computed from erf per spec.md §4.6.
func stdNormalCDF(z float64) float64 {
	return 0.5 * (1 + erf(z/math.Sqrt2))
}

// Decision is the ship/rollback/keep-running outcome of a two-proportion
// significance test.
type Decision string

const (
	DecisionShip         Decision = "ship"
	DecisionRollback     Decision = "rollback"
	DecisionKeepRunning  Decision = "keep-running"
	DecisionInsufficient Decision = "insufficient-data"
)

// ZTestResult carries the full two-proportion z-test output (spec.md §4.6).
type ZTestResult struct {
	Delta    float64
	Z        float64
	PValue   float64
	CILow    float64
	CIHigh   float64
	Decision Decision
}

// twoProportionZTest implements spec.md §4.6 verbatim: pooled proportion,
// standard error, z statistic, two-tailed p-value via Φ, a 95% CI on the
// delta, and the ship/rollback/keep-running decision rule at significance
// level alpha.
func twoProportionZTest(n1, s1, n2, s2 int64, alpha float64) ZTestResult {
	if n1 == 0 || n2 == 0 {
		return ZTestResult{Decision: DecisionInsufficient}
	}
	p1 := float64(s1) / float64(n1)
	p2 := float64(s2) / float64(n2)
	pooled := float64(s1+s2) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return ZTestResult{Delta: p2 - p1, Decision: DecisionInsufficient}
	}

	z := (p2 - p1) / se
	pValue := 2 * (1 - stdNormalCDF(math.Abs(z)))
	delta := p2 - p1
	ciSE := math.Sqrt(p1*(1-p1)/float64(n1) + p2*(1-p2)/float64(n2))
	ciLow := delta - 1.96*ciSE
	ciHigh := delta + 1.96*ciSE

	decision := DecisionKeepRunning
	if pValue < alpha && delta > 0 {
		decision = DecisionShip
	} else if pValue < alpha && delta < 0 {
		decision = DecisionRollback
	}

	return ZTestResult{
		Delta:    delta,
		Z:        z,
		PValue:   pValue,
		CILow:    ciLow,
		CIHigh:   ciHigh,
		Decision: decision,
	}
}
