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

// Package main wires every rec-engine component into a single process:
// the ingest consumer, the serving engine, the on-demand analyzers, the
// control plane, and the HTTP surface. Startup/shutdown choreography
// follows the teacher's cmd/ratelimiter-api/main.go: background components
// start first, the HTTP server listens in a goroutine, then the process
// blocks on an OS signal and tears down in reverse order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/etalazz/rec-engine/internal/recengine/admin"
	"github.com/etalazz/rec-engine/internal/recengine/config"
	"github.com/etalazz/rec-engine/internal/recengine/experiment"
	"github.com/etalazz/rec-engine/internal/recengine/fairness"
	"github.com/etalazz/rec-engine/internal/recengine/feedback"
	"github.com/etalazz/rec-engine/internal/recengine/httpapi"
	"github.com/etalazz/rec-engine/internal/recengine/ingest"
	"github.com/etalazz/rec-engine/internal/recengine/logging"
	"github.com/etalazz/rec-engine/internal/recengine/metrics"
	"github.com/etalazz/rec-engine/internal/recengine/serving"
)

func main() {
	root := &cobra.Command{
		Use:   "rec-engine",
		Short: "MLOps recommendation pipeline: ingest, serve, evaluate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg := config.Load()
	log := logging.New(cfg.DevMode, "info")

	evs, reg, traces, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	deadLetterPath := "rec-engine-deadletters.jsonl"
	deadLetters, err := ingest.NewDeadLetterSink(deadLetterPath)
	if err != nil {
		return fmt.Errorf("open dead-letter sink: %w", err)
	}
	defer deadLetters.Close()

	// No concrete broker client exists anywhere in the retrieval pack (see
	// DESIGN.md's ingest entry), so the default wiring here is a local,
	// in-process Bus: a production deployment swaps this for a real
	// BUS_BROKER client behind the same ingest.Bus interface.
	bus := newLocalBus()
	consumer := ingest.NewConsumer(bus, evs, deadLetters, nil, []string{cfg.BusTopic}, 4, log)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Run(ctx) }()

	servingEngine := serving.NewEngine(reg, traces, evs, log,
		serving.WithPipelineGitSha(cfg.PipelineGitSHA),
		serving.WithContainerImageDigest(cfg.ContainerImageDigest),
	)
	experimentEngine := experiment.NewEngine(evs, reg, cfg.RecSuccessWindow(), 0)
	fairnessAnalyzer := fairness.NewAnalyzer(evs)
	feedbackAnalyzer := feedback.NewAnalyzer(evs)
	adminPlane := admin.NewPlane(reg)

	server := httpapi.NewServer(
		servingEngine,
		experimentEngine,
		fairnessAnalyzer,
		feedbackAnalyzer,
		evs,
		traces,
		adminPlane,
		cfg.ModelAdminAPIKey,
		1,
		3,
		cfg.DevMode,
		log,
	)

	uptimeDone := make(chan struct{})
	go metrics.TrackUptime(uptimeDone, time.Now())
	defer close(uptimeDone)

	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe(addr) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("rec-engine: shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("rec-engine: http server exited")
		}
	}

	cancel()
	select {
	case err := <-consumerDone:
		if err != nil {
			log.Error().Err(err).Msg("rec-engine: ingest consumer exited with error")
		}
	case <-time.After(5 * time.Second):
		log.Warn().Msg("rec-engine: ingest consumer did not stop in time")
	}

	log.Info().Msg("rec-engine: stopped")
	return nil
}

// localBus is the default ingest.Bus when no external broker is
// configured: an in-process channel with no-op pause/resume, matching the
// teacher's MockPersister stand-in for out-of-process collaborators.
type localBus struct {
	ch chan ingest.Message
}

func newLocalBus() *localBus {
	return &localBus{ch: make(chan ingest.Message, 256)}
}

func (b *localBus) Messages() <-chan ingest.Message { return b.ch }

func (b *localBus) Pause(ctx context.Context, topics []string) error  { return nil }
func (b *localBus) Resume(ctx context.Context, topics []string) error { return nil }
