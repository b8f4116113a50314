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

package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// wireEvent mirrors eventtypes.Event but accepts both a bare timestamp
// string and the dynamic payload.items union (bare string ids or
// {itemId} objects), normalized here at the ingest boundary per spec.md §9
// ("normalize at the boundary into a single shape before the core sees it").
type wireEvent struct {
	Type    string      `json:"type"`
	UserID  string      `json:"userId"`
	ItemID  string      `json:"itemId"`
	Ts      string      `json:"ts"`
	Payload wirePayload `json:"payload"`
}

type wirePayload struct {
	Items        []json.RawMessage `json:"items"`
	ItemID       string            `json:"itemId"`
	Variant      string            `json:"variant"`
	RequestID    string            `json:"requestId"`
	ModelVersion string            `json:"modelVersion"`
	Limit        int               `json:"limit"`
}

// normalizeItems accepts each entry as either a bare string id or an
// {"itemId": "..."} object.
func normalizeItems(raw []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			ItemID string `json:"itemId"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return nil, fmt.Errorf("payload.items entry is neither a string nor {itemId}: %w", err)
		}
		out = append(out, obj.ItemID)
	}
	return out, nil
}

// ValidateAndNormalize parses and validates a raw bus message body against
// the schema of spec.md §3: required type/userId/ts, type in the allowed
// set, ts parseable. Returns the normalized Event on success.
func ValidateAndNormalize(body []byte) (eventtypes.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return eventtypes.Event{}, fmt.Errorf("invalid json: %w", err)
	}
	if w.Type == "" {
		return eventtypes.Event{}, fmt.Errorf("missing required field: type")
	}
	if w.UserID == "" {
		return eventtypes.Event{}, fmt.Errorf("missing required field: userId")
	}
	if w.Ts == "" {
		return eventtypes.Event{}, fmt.Errorf("missing required field: ts")
	}
	t := eventtypes.Type(w.Type)
	if !eventtypes.ValidTypes[t] {
		return eventtypes.Event{}, fmt.Errorf("unknown event type: %q", w.Type)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Ts)
	if err != nil {
		return eventtypes.Event{}, fmt.Errorf("unparseable ts %q: %w", w.Ts, err)
	}

	items, err := normalizeItems(w.Payload.Items)
	if err != nil {
		return eventtypes.Event{}, err
	}
	if t == eventtypes.TypeRecommend && len(items) == 0 {
		return eventtypes.Event{}, fmt.Errorf("recommend event missing required payload.items")
	}
	if (t == eventtypes.TypePlay || t == eventtypes.TypeView) && w.Payload.ItemID == "" && w.ItemID == "" {
		return eventtypes.Event{}, fmt.Errorf("%s event missing required itemId", w.Type)
	}

	return eventtypes.Event{
		Type:   t,
		UserID: w.UserID,
		ItemID: w.ItemID,
		Ts:     ts,
		Payload: eventtypes.Payload{
			Items:        items,
			ItemID:       w.Payload.ItemID,
			Variant:      w.Payload.Variant,
			RequestID:    w.Payload.RequestID,
			ModelVersion: w.Payload.ModelVersion,
			Limit:        w.Payload.Limit,
		},
	}, nil
}
