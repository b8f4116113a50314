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

// Package httpapi implements the HTTP Surface (spec.md §4.9/§6, C10): one
// route per use case over C5-C9, JSON bodies, generalized from the
// teacher's api.Server (Server struct wrapping the core + RegisterRoutes +
// ListenAndServe) from an http.ServeMux to gorilla/mux so path params like
// {id} and {requestId} don't need manual parsing.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/etalazz/rec-engine/internal/recengine/admin"
	"github.com/etalazz/rec-engine/internal/recengine/events"
	"github.com/etalazz/rec-engine/internal/recengine/experiment"
	"github.com/etalazz/rec-engine/internal/recengine/fairness"
	"github.com/etalazz/rec-engine/internal/recengine/feedback"
	"github.com/etalazz/rec-engine/internal/recengine/metrics"
	"github.com/etalazz/rec-engine/internal/recengine/recerr"
	"github.com/etalazz/rec-engine/internal/recengine/registry"
	"github.com/etalazz/rec-engine/internal/recengine/serving"
)

// defaultWindowHours is used when a caller omits windowHours; spec.md is
// silent on a default, only on the caps (see DESIGN.md).
const defaultWindowHours = 24

// experimentID is the only experiment identifier §6 defines.
const experimentID = "rec-engine"

// Server wraps every query-side component (C5-C9) behind one HTTP surface,
// the same shape as the teacher's Server wrapping core.Store.
type Server struct {
	serving    *serving.Engine
	experiment *experiment.Engine
	fairness   *fairness.Analyzer
	feedback   *feedback.Analyzer
	events     events.Store
	traces     serving.TraceStore
	admin      *admin.Plane
	adminKey   string
	adminLimit *rate.Limiter
	devMode    bool
	log        zerolog.Logger
}

// NewServer constructs a Server. adminRatePerSec/adminBurst configure the
// token-bucket throttle guarding /admin/switch-model.
func NewServer(
	servingEngine *serving.Engine,
	experimentEngine *experiment.Engine,
	fairnessAnalyzer *fairness.Analyzer,
	feedbackAnalyzer *feedback.Analyzer,
	eventsStore events.Store,
	traces serving.TraceStore,
	adminPlane *admin.Plane,
	adminKey string,
	adminRatePerSec float64,
	adminBurst int,
	devMode bool,
	log zerolog.Logger,
) *Server {
	if adminRatePerSec <= 0 {
		adminRatePerSec = 1
	}
	if adminBurst <= 0 {
		adminBurst = 3
	}
	return &Server{
		serving:    servingEngine,
		experiment: experimentEngine,
		fairness:   fairnessAnalyzer,
		feedback:   feedbackAnalyzer,
		events:     eventsStore,
		traces:     traces,
		admin:      adminPlane,
		adminKey:   adminKey,
		adminLimit: rate.NewLimiter(rate.Limit(adminRatePerSec), adminBurst),
		devMode:    devMode,
		log:        log,
	}
}

// RegisterRoutes wires every §6 endpoint onto r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/recommendations", s.handleRecommend).Methods(http.MethodPost)
	r.HandleFunc("/experiments/{id}/summary", s.handleExperimentSummary).Methods(http.MethodGet)
	r.HandleFunc("/fairness", s.handleFairness).Methods(http.MethodGet)
	r.HandleFunc("/feedback-loops", s.handleFeedbackLoops).Methods(http.MethodGet)
	r.HandleFunc("/telemetry/{kind}", s.handleTelemetry).Methods(http.MethodGet)
	r.HandleFunc("/traces/{requestId}", s.handleGetTrace).Methods(http.MethodGet)
	r.HandleFunc("/admin/models", s.withAdminAuth(s.handleListModels)).Methods(http.MethodGet)
	r.HandleFunc("/admin/switch-model", s.withAdminAuth(s.handleSwitchModel)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// ListenAndServe starts the HTTP server with the teacher's timeout
// posture (ReadTimeout/WriteTimeout/IdleTimeout), returning only once the
// listener stops or fails.
func (s *Server) ListenAndServe(addr string) error {
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("httpapi: listening")
	return httpServer.ListenAndServe()
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "recommend", recerr.New(recerr.CodeValidation, "invalid JSON body"))
		return
	}
	if req.UserID == "" {
		s.writeError(w, "recommend", recerr.New(recerr.CodeValidation, "userId_required"))
		return
	}

	metrics.RequestsTotal.WithLabelValues("recommend").Inc()
	start := time.Now()
	result, err := s.serving.Recommend(r.Context(), req.UserID, req.Limit)
	metrics.PredictionLatencyMs.WithLabelValues(string(result.Variant)).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		requestID := ""
		var predErr *serving.PredictionError
		if errors.As(err, &predErr) {
			requestID = predErr.RequestID
		}
		s.writeErrorWithRequestID(w, "recommend", recerr.Wrap(recerr.CodeOf(err), "prediction_failed", err), requestID)
		return
	}

	s.writeJSON(w, http.StatusOK, recommendResponse{
		RequestID:       result.RequestID,
		Variant:         result.Variant,
		ModelVersion:    result.ModelVersion,
		DataSnapshotID:  result.DataSnapshotID,
		Recommendations: result.Recommendations,
	})
}

func (s *Server) handleExperimentSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id != experimentID {
		s.writeError(w, "experiment-summary", recerr.New(recerr.CodeNotFound, "unknown experiment: "+id))
		return
	}
	windowHours := windowHoursParam(r)
	summary, err := s.experiment.Summarize(r.Context(), windowHours)
	if err != nil {
		s.writeError(w, "experiment-summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFairness(w http.ResponseWriter, r *http.Request) {
	windowHours := windowHoursParam(r)
	variant := r.URL.Query().Get("variant")
	if variant != "" {
		vm, err := s.fairness.Exposures(r.Context(), windowHours, variant)
		if err != nil {
			s.writeError(w, "fairness", err)
			return
		}
		s.writeJSON(w, http.StatusOK, vm)
		return
	}
	result, err := s.fairness.EvaluateFairness(r.Context(), windowHours)
	if err != nil {
		s.writeError(w, "fairness", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFeedbackLoops(w http.ResponseWriter, r *http.Request) {
	windowHours := windowHoursParam(r)
	result, err := s.feedback.Evaluate(r.Context(), windowHours)
	if err != nil {
		s.writeError(w, "feedback-loops", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	windowHours := windowHoursParam(r)
	from := time.Now().Add(-time.Duration(windowHours) * time.Hour)

	switch kind {
	case "conversion-funnel":
		result, err := s.events.AggregateFunnel(r.Context(), from, r.URL.Query().Get("variant"))
		if err != nil {
			s.writeError(w, "telemetry", err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	case "item-trends":
		result, err := s.events.AggregateItemTrend(r.Context(), from, r.URL.Query().Get("itemId"))
		if err != nil {
			s.writeError(w, "telemetry", err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	case "user-engagement":
		result, err := s.events.AggregateUserEngagement(r.Context(), from)
		if err != nil {
			s.writeError(w, "telemetry", err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	default:
		s.writeError(w, "telemetry", recerr.New(recerr.CodeNotFound, "unknown telemetry kind: "+kind))
	}
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]
	trace, ok, err := s.traces.GetTrace(r.Context(), requestID)
	if err != nil {
		s.writeError(w, "traces", err)
		return
	}
	if !ok {
		s.writeError(w, "traces", recerr.New(recerr.CodeNotFound, "trace not found: "+requestID))
		return
	}
	s.writeJSON(w, http.StatusOK, trace)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.admin.ListModels(r.Context())
	if err != nil {
		s.writeError(w, "admin", err)
		return
	}
	s.writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	var req switchModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "admin", recerr.New(recerr.CodeValidation, "invalid JSON body"))
		return
	}
	state, err := s.admin.SetServingVersion(r.Context(), req.Version, registry.Target(req.Target))
	if err != nil {
		s.writeError(w, "admin", err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// withAdminAuth enforces the pre-shared-key header (spec.md §4.9) and the
// token-bucket throttle before calling next.
func (s *Server) withAdminAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.adminLimit.Allow() {
			s.writeError(w, "admin", recerr.New(recerr.CodeUnauthorized, "admin request rate exceeded"))
			return
		}
		presented := r.Header.Get("X-Admin-Key")
		if err := admin.CheckAdminKey(s.adminKey, presented); err != nil {
			s.writeError(w, "admin", err)
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("httpapi: response encode failed")
	}
}

// writeError maps err onto the §7 propagation policy and increments the
// per-stage error counter. Cause detail is only logged, and only echoed to
// the body when devMode is set (spec.md §7).
func (s *Server) writeError(w http.ResponseWriter, stage string, err error) {
	s.writeErrorWithRequestID(w, stage, err, "")
}

func (s *Server) writeErrorWithRequestID(w http.ResponseWriter, stage string, err error, requestID string) {
	code := recerr.CodeOf(err)
	status := recerr.HTTPStatus(code)
	if status >= 500 {
		metrics.ErrorsTotal.WithLabelValues(stage).Inc()
	}
	s.log.Error().Err(err).Str("stage", stage).Str("requestId", requestID).Msg("httpapi: request failed")

	resp := errorResponse{Code: string(code), RequestID: requestID}
	if s.devMode {
		resp.Message = err.Error()
	}
	s.writeJSON(w, status, resp)
}

func windowHoursParam(r *http.Request) int {
	raw := r.URL.Query().Get("windowHours")
	if raw == "" {
		return defaultWindowHours
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h <= 0 {
		return defaultWindowHours
	}
	return h
}
