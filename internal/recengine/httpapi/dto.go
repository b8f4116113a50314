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

package httpapi

import "github.com/etalazz/rec-engine/internal/recengine/eventtypes"

type recommendRequest struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit,omitempty"`
}

type recommendResponse struct {
	RequestID       string                      `json:"requestId"`
	Variant         eventtypes.ServingVariant   `json:"variant"`
	ModelVersion    string                      `json:"modelVersion"`
	DataSnapshotID  string                      `json:"dataSnapshotId"`
	Recommendations []eventtypes.Recommendation `json:"recommendations"`
}

type switchModelRequest struct {
	Version string `json:"version"`
	Target  string `json:"target"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}
