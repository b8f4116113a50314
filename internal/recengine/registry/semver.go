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
	"fmt"
	"strconv"
	"strings"
)

// parseSemver parses a strict "x.y.z" version; malformed input parses as
// the zero version, so a missing registry bumps from 0.0.0.
func parseSemver(v string) (major, minor, patch int) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return 0, 0, 0
	}
	major, _ = strconv.Atoi(parts[0])
	minor, _ = strconv.Atoi(parts[1])
	patch, _ = strconv.Atoi(parts[2])
	return major, minor, patch
}

// bumpVersion increments v by the given component, defaulting to minor.
func bumpVersion(v string, bump Bump) string {
	major, minor, patch := parseSemver(v)
	switch bump {
	case BumpPatch:
		patch++
	case BumpMajor:
		major++
		minor = 0
		patch = 0
	case BumpMinor, "":
		minor++
		patch = 0
	default:
		minor++
		patch = 0
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// compareSemver returns -1, 0, 1 as a is less than, equal to, or greater
// than b.
func compareSemver(a, b string) int {
	aMaj, aMin, aPatch := parseSemver(a)
	bMaj, bMin, bPatch := parseSemver(b)
	if aMaj != bMaj {
		return sign(aMaj - bMaj)
	}
	if aMin != bMin {
		return sign(aMin - bMin)
	}
	return sign(aPatch - bPatch)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
