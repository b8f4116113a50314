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

// Package variant implements the deterministic user -> {control, treatment}
// assignment (spec.md §4.1). The algorithm is a contract: a cryptographic
// digest of the UTF-8 user id bytes, bucketed by the parity of the digest's
// first byte, so the bucket is stable across processes and language
// implementations.
package variant

import (
	"crypto/sha256"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// Assign is pure and deterministic. Empty userId always lands in control.
func Assign(userID string) eventtypes.ServingVariant {
	if userID == "" {
		return eventtypes.VariantControl
	}
	sum := sha256.Sum256([]byte(userID))
	if sum[0]%2 == 0 {
		return eventtypes.VariantControl
	}
	return eventtypes.VariantTreatment
}
