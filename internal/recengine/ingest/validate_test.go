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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

func TestValidateAndNormalize_RecommendWithBareStringItems(t *testing.T) {
	body := []byte(`{"type":"recommend","userId":"u1","ts":"2026-01-01T00:00:00Z","payload":{"items":["a","b"],"variant":"control"}}`)
	e, err := ValidateAndNormalize(body)
	require.NoError(t, err)
	require.Equal(t, eventtypes.TypeRecommend, e.Type)
	require.Equal(t, []string{"a", "b"}, e.Payload.Items)
}

func TestValidateAndNormalize_RecommendWithObjectItems(t *testing.T) {
	body := []byte(`{"type":"recommend","userId":"u1","ts":"2026-01-01T00:00:00Z","payload":{"items":[{"itemId":"a"},{"itemId":"b"}]}}`)
	e, err := ValidateAndNormalize(body)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, e.Payload.Items)
}

func TestValidateAndNormalize_MissingRequiredFields(t *testing.T) {
	cases := map[string][]byte{
		"missing type":   []byte(`{"userId":"u1","ts":"2026-01-01T00:00:00Z"}`),
		"missing userId": []byte(`{"type":"view","ts":"2026-01-01T00:00:00Z","payload":{"itemId":"a"}}`),
		"missing ts":     []byte(`{"type":"view","userId":"u1","payload":{"itemId":"a"}}`),
		"unknown type":   []byte(`{"type":"bogus","userId":"u1","ts":"2026-01-01T00:00:00Z"}`),
		"bad ts":         []byte(`{"type":"view","userId":"u1","ts":"not-a-time","payload":{"itemId":"a"}}`),
		"invalid json":   []byte(`{not json`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateAndNormalize(body)
			require.Error(t, err)
		})
	}
}

func TestValidateAndNormalize_RecommendMissingItemsRejected(t *testing.T) {
	body := []byte(`{"type":"recommend","userId":"u1","ts":"2026-01-01T00:00:00Z","payload":{}}`)
	_, err := ValidateAndNormalize(body)
	require.Error(t, err)
}

func TestValidateAndNormalize_ViewRequiresItemID(t *testing.T) {
	body := []byte(`{"type":"view","userId":"u1","ts":"2026-01-01T00:00:00Z","payload":{}}`)
	_, err := ValidateAndNormalize(body)
	require.Error(t, err)

	body = []byte(`{"type":"view","userId":"u1","ts":"2026-01-01T00:00:00Z","payload":{"itemId":"a"}}`)
	e, err := ValidateAndNormalize(body)
	require.NoError(t, err)
	require.Equal(t, "a", e.Payload.ItemID)
}
