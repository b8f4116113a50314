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

// Package config loads the environment variables enumerated in spec.md §6
// into a single immutable snapshot, the same process-lifetime-registry idea
// as the teacher's core.SetThreshold*/getThresholdSnapshot functions, but
// populated once at startup instead of mutated by flag parsing afterward.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable snapshot read once at process startup.
type Config struct {
	EventStoreURI string
	EventStoreDB  string
	BusBroker     string
	BusTopic      string
	BusKey        string
	BusSecret     string
	BusGroupID    string
	BusSASLMech   string

	RecSuccessMinutes    int
	OnlineMetricWindow   time.Duration
	ModelAdminAPIKey     string
	PipelineGitSHA       string
	ContainerImageDigest string

	HTTPAddr    string
	MetricsAddr string
	DevMode     bool
}

// RecSuccessWindow returns the configured success-attribution window as a
// time.Duration (spec.md §4.6's recSuccessMs).
func (c Config) RecSuccessWindow() time.Duration {
	return time.Duration(c.RecSuccessMinutes) * time.Minute
}

// Load reads the §6 environment variables (with EVENT_STORE_URI-style
// keys translated to Viper's env binding) and applies spec-mandated
// defaults: REC_SUCCESS_MINUTES=15, ONLINE_METRIC_WINDOW_MIN=30.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("REC_SUCCESS_MINUTES", 15)
	v.SetDefault("ONLINE_METRIC_WINDOW_MIN", 30)
	v.SetDefault("HTTP_ADDR", ":8080")

	return Config{
		EventStoreURI:        v.GetString("EVENT_STORE_URI"),
		EventStoreDB:         v.GetString("EVENT_STORE_DB"),
		BusBroker:            v.GetString("BUS_BROKER"),
		BusTopic:             v.GetString("BUS_TOPIC"),
		BusKey:               v.GetString("BUS_KEY"),
		BusSecret:            v.GetString("BUS_SECRET"),
		BusGroupID:           v.GetString("BUS_GROUP_ID"),
		BusSASLMech:          v.GetString("BUS_SASL_MECHANISM"),
		RecSuccessMinutes:    v.GetInt("REC_SUCCESS_MINUTES"),
		OnlineMetricWindow:   time.Duration(v.GetInt("ONLINE_METRIC_WINDOW_MIN")) * time.Minute,
		ModelAdminAPIKey:     v.GetString("MODEL_ADMIN_API_KEY"),
		PipelineGitSHA:       v.GetString("PIPELINE_GIT_SHA"),
		ContainerImageDigest: v.GetString("CONTAINER_IMAGE_DIGEST"),
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		MetricsAddr:          v.GetString("METRICS_ADDR"),
		DevMode:              v.GetBool("REC_ENGINE_DEV"),
	}
}
