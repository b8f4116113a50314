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

// Package metrics registers the Prometheus series mandated by spec.md
// §4.9: prediction latency, request/error counters, and an uptime gauge.
// Global package-level collectors, eagerly registered in init, follow the
// teacher's telemetry/churn/prom_counters.go shape.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionLatencyMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rec_prediction_latency_ms",
		Help:    "Serving-path prediction latency in milliseconds, by variant",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"variant"})

	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_requests_total",
		Help: "Total requests handled, by stage",
	}, []string{"stage"})

	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_errors_total",
		Help: "Total request errors, by stage",
	}, []string{"stage"})

	UptimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rec_uptime_seconds",
		Help: "Seconds since process start",
	})

	// BreakerState is not spec-mandated; it surfaces the serving engine's
	// circuit breaker transitions alongside the required series, the way
	// the teacher carries its own churn KPIs next to demo-standard ones.
	BreakerState = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_breaker_state",
		Help: "Circuit breaker state transitions observed, by state",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(PredictionLatencyMs, RequestsTotal, ErrorsTotal, UptimeSeconds, BreakerState)
}

// Handler exposes the registered collectors for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// TrackUptime starts a ticker that updates rec_uptime_seconds from start
// until done is closed, following the teacher's exporter-loop pattern of a
// ticker goroutine that stops on a signal channel.
func TrackUptime(done <-chan struct{}, start time.Time) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			UptimeSeconds.Set(time.Since(start).Seconds())
		case <-done:
			return
		}
	}
}
