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
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
)

// RedisStore is the durable Registry Store backend. Artifacts live in a
// Redis hash (registry:artifacts, field=version); the serving-state
// singleton lives at a single JSON-string key. SetServingVersion applies
// the same read-transition-write it would apply in memory, but under a
// redis.Client.Watch optimistic transaction so a concurrent writer never
// silently loses an update — the teacher's persistence/redis.go protects
// idempotency with SETNX; here the thing we must protect is the
// read-modify-write of the singleton document, so we use WATCH/MULTI
// instead of SETNX, same "don't let two writers race a shared key"
// discipline applied to a different hazard.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	opTimeout time.Duration
}

const (
	redisArtifactsHashSuffix = ":artifacts"
	redisStateKeySuffix      = ":serving-state"
)

// NewRedisStore wraps an existing *redis.Client. keyPrefix namespaces all
// registry keys (e.g. "registry"); empty defaults to "registry".
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "registry"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, opTimeout: 5 * time.Second}
}

func (s *RedisStore) artifactsKey() string { return s.keyPrefix + redisArtifactsHashSuffix }
func (s *RedisStore) stateKey() string     { return s.keyPrefix + redisStateKeySuffix }

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *RedisStore) ListModels(ctx context.Context) ([]eventtypes.Artifact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := s.client.HGetAll(ctx, s.artifactsKey()).Result()
	if err != nil {
		return nil, recerr.Wrap(recerr.CodeStoreUnavailable, "redis hgetall artifacts", err)
	}
	out := make([]eventtypes.Artifact, 0, len(raw))
	for _, v := range raw {
		var a eventtypes.Artifact
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, recerr.Wrap(recerr.CodeInternal, "decode artifact", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisStore) GetArtifact(ctx context.Context, version string) (eventtypes.Artifact, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := s.client.HGet(ctx, s.artifactsKey(), version).Result()
	if err == redis.Nil {
		return eventtypes.Artifact{}, false, nil
	}
	if err != nil {
		return eventtypes.Artifact{}, false, recerr.Wrap(recerr.CodeStoreUnavailable, "redis hget artifact", err)
	}
	var a eventtypes.Artifact
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return eventtypes.Artifact{}, false, recerr.Wrap(recerr.CodeInternal, "decode artifact", err)
	}
	return a, true, nil
}

func (s *RedisStore) PutArtifact(ctx context.Context, a eventtypes.Artifact) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if a.Status == "" {
		a.Status = eventtypes.StatusStaging
	}
	b, err := json.Marshal(a)
	if err != nil {
		return recerr.Wrap(recerr.CodeInternal, "encode artifact", err)
	}
	if err := s.client.HSet(ctx, s.artifactsKey(), a.Version, b).Err(); err != nil {
		return recerr.Wrap(recerr.CodeStoreUnavailable, "redis hset artifact", err)
	}
	return nil
}

func (s *RedisStore) loadAll(ctx context.Context) (map[string]eventtypes.Artifact, eventtypes.ServingState, error) {
	raw, err := s.client.HGetAll(ctx, s.artifactsKey()).Result()
	if err != nil {
		return nil, eventtypes.ServingState{}, err
	}
	artifacts := make(map[string]eventtypes.Artifact, len(raw))
	for v, blob := range raw {
		var a eventtypes.Artifact
		if err := json.Unmarshal([]byte(blob), &a); err != nil {
			return nil, eventtypes.ServingState{}, err
		}
		artifacts[v] = a
	}
	state := eventtypes.ServingState{Variants: map[eventtypes.ServingVariant]string{}}
	stateRaw, err := s.client.Get(ctx, s.stateKey()).Result()
	if err != nil && err != redis.Nil {
		return nil, eventtypes.ServingState{}, err
	}
	if err == nil {
		if err := json.Unmarshal([]byte(stateRaw), &state); err != nil {
			return nil, eventtypes.ServingState{}, err
		}
	}
	return artifacts, state, nil
}

func (s *RedisStore) GetServingState(ctx context.Context) (eventtypes.ServingState, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, state, err := s.loadAll(ctx)
	if err != nil {
		return eventtypes.ServingState{}, recerr.Wrap(recerr.CodeStoreUnavailable, "redis load serving state", err)
	}
	return state, nil
}

func (s *RedisStore) GetServingVersion(ctx context.Context, variant eventtypes.ServingVariant) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	artifacts, state, err := s.loadAll(ctx)
	if err != nil {
		return "", recerr.Wrap(recerr.CodeStoreUnavailable, "redis load registry", err)
	}
	return resolveServingVersion(artifacts, state, variant), nil
}

// SetServingVersion retries the read-transition-write under WATCH until it
// commits without a concurrent writer touching either key in between.
func (s *RedisStore) SetServingVersion(ctx context.Context, version string, target Target) (eventtypes.ServingState, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const maxAttempts = 8
	var result eventtypes.ServingState
	for attempt := 0; attempt < maxAttempts; attempt++ {
		txErr := s.client.Watch(ctx, func(tx *redis.Tx) error {
			artifacts, state, err := s.loadAllTx(ctx, tx)
			if err != nil {
				return err
			}
			newArtifacts, newState, applyErr := applyTransition(artifacts, state, version, target, time.Now())
			if applyErr != nil {
				return applyErr
			}
			stateBlob, err := json.Marshal(newState)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for v, a := range newArtifacts {
					blob, err := json.Marshal(a)
					if err != nil {
						return err
					}
					pipe.HSet(ctx, s.artifactsKey(), v, blob)
				}
				pipe.Set(ctx, s.stateKey(), stateBlob, 0)
				return nil
			})
			if err != nil {
				return err
			}
			result = newState
			return nil
		}, s.artifactsKey(), s.stateKey())

		if txErr == nil {
			return result, nil
		}
		if recerr.CodeOf(txErr) == recerr.CodeInvalidTarget || recerr.CodeOf(txErr) == recerr.CodeNotFound {
			return eventtypes.ServingState{}, txErr
		}
		if txErr == redis.TxFailedErr {
			continue // optimistic conflict: another writer touched the keys, retry
		}
		return eventtypes.ServingState{}, recerr.Wrap(recerr.CodeStoreUnavailable, "redis watch transaction", txErr)
	}
	return eventtypes.ServingState{}, recerr.New(recerr.CodeStoreUnavailable, "redis setServingVersion exceeded retry budget")
}

func (s *RedisStore) loadAllTx(ctx context.Context, tx *redis.Tx) (map[string]eventtypes.Artifact, eventtypes.ServingState, error) {
	raw, err := tx.HGetAll(ctx, s.artifactsKey()).Result()
	if err != nil {
		return nil, eventtypes.ServingState{}, err
	}
	artifacts := make(map[string]eventtypes.Artifact, len(raw))
	for v, blob := range raw {
		var a eventtypes.Artifact
		if err := json.Unmarshal([]byte(blob), &a); err != nil {
			return nil, eventtypes.ServingState{}, err
		}
		artifacts[v] = a
	}
	state := eventtypes.ServingState{Variants: map[eventtypes.ServingVariant]string{}}
	stateRaw, err := tx.Get(ctx, s.stateKey()).Result()
	if err != nil && err != redis.Nil {
		return nil, eventtypes.ServingState{}, err
	}
	if err == nil {
		if err := json.Unmarshal([]byte(stateRaw), &state); err != nil {
			return nil, eventtypes.ServingState{}, err
		}
	}
	return artifacts, state, nil
}

func (s *RedisStore) ComputeNextVersion(ctx context.Context, bump Bump) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	artifacts, _, err := s.loadAll(ctx)
	if err != nil {
		return "", recerr.Wrap(recerr.CodeStoreUnavailable, "redis load registry", err)
	}
	latest := "0.0.0"
	for v := range artifacts {
		if compareSemver(v, latest) > 0 {
			latest = v
		}
	}
	return bumpVersion(latest, bump), nil
}
