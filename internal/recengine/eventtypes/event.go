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

// Package eventtypes defines the raw-event and model-artifact shapes shared
// by every rec-engine component (spec.md §3). Raw events are modeled as a
// tagged union over Type, normalized at the boundary (ingest) so the rest
// of the system never branches on whether payload.items held bare strings
// or {itemId} objects.
package eventtypes

import "time"

// Type enumerates the allowed raw-event kinds.
type Type string

const (
	TypeRecommend Type = "recommend"
	TypePlay      Type = "play"
	TypeView      Type = "view"
	TypeSkip      Type = "skip"
)

// ValidTypes is the full allowed set, used by ingest schema validation.
var ValidTypes = map[Type]bool{
	TypeRecommend: true,
	TypePlay:      true,
	TypeView:      true,
	TypeSkip:      true,
}

// Payload is the normalized event payload. Items is populated only on the
// recommend arm of the union; ItemID is populated on play/view/skip.
type Payload struct {
	Items        []string `json:"items,omitempty"`
	ItemID       string   `json:"itemId,omitempty"`
	Variant      string   `json:"variant,omitempty"`
	RequestID    string   `json:"requestId,omitempty"`
	ModelVersion string   `json:"modelVersion,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// Event is the atom of the system: `{ type, userId, itemId?, ts, payload? }`.
type Event struct {
	Type    Type      `json:"type"`
	UserID  string    `json:"userId"`
	ItemID  string    `json:"itemId,omitempty"`
	Ts      time.Time `json:"ts"`
	Payload Payload   `json:"payload,omitempty"`
	// Seq breaks ties when two events share Ts; assigned by the store on
	// append in insertion order, per spec.md §3's ordering invariant.
	Seq uint64 `json:"-"`
}

// ArtifactStatus enumerates the model-artifact lifecycle states.
type ArtifactStatus string

const (
	StatusStaging  ArtifactStatus = "staging"
	StatusActive   ArtifactStatus = "active"
	StatusShadow   ArtifactStatus = "shadow"
	StatusArchived ArtifactStatus = "archived"
)

// Artifact is a versioned model artifact (spec.md §3).
type Artifact struct {
	Version              string             `json:"version"`
	Status               ArtifactStatus     `json:"status"`
	Counts               map[string]float64 `json:"counts"`
	TrainedAt            time.Time          `json:"trainedAt"`
	Metrics              map[string]float64 `json:"metrics,omitempty"`
	DataSnapshotID       string             `json:"dataSnapshotId"`
	PipelineGitSha       string             `json:"pipelineGitSha"`
	ContainerImageDigest string             `json:"containerImageDigest"`
	ArtifactURI          string             `json:"artifactUri"`
}

// ServingVariant is the A/B bucket key used throughout serving state.
type ServingVariant string

const (
	VariantControl   ServingVariant = "control"
	VariantTreatment ServingVariant = "treatment"
)

// ServingState is the singleton document id=model-serving-state.
type ServingState struct {
	DefaultVersion string                    `json:"defaultVersion"`
	Variants       map[ServingVariant]string `json:"variants"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// Recommendation is a single scored item slot in a serving response.
type Recommendation struct {
	ItemID string  `json:"itemId"`
	Score  float64 `json:"score"`
}

// Trace is a per-request provenance record, keyed uniquely by RequestID.
type Trace struct {
	RequestID            string                 `json:"requestId"`
	UserID               string                 `json:"userId"`
	Variant              ServingVariant         `json:"variant"`
	ModelVersion         string                 `json:"modelVersion"`
	DataSnapshotID       string                 `json:"dataSnapshotId"`
	PipelineGitSha       string                 `json:"pipelineGitSha"`
	ContainerImageDigest string                 `json:"containerImageDigest"`
	Recommendations      []Recommendation       `json:"recommendations"`
	LatencyMs            float64                `json:"latencyMs"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
}
