// Copyright 2025 CareFlow
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

package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"careflow/platform/shared/logger"
	"careflow/platform/shared/types"
)

// apiServer exposes the orchestrator over HTTP.
type apiServer struct {
	orchestrator *CareOrchestrator
	router       *mux.Router
	log          *logger.Logger
	jwtSecret    []byte
	startTime    time.Time
}

// newAPIServer builds the server and its routes. When jwtSecret is
// non-empty the API routes require a bearer token; health and metrics
// stay open for probes and scrapers.
func newAPIServer(orchestrator *CareOrchestrator, jwtSecret []byte) *apiServer {
	s := &apiServer{
		orchestrator: orchestrator,
		router:       mux.NewRouter(),
		log:          logger.New("api"),
		jwtSecret:    jwtSecret,
		startTime:    time.Now(),
	}

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if len(jwtSecret) > 0 {
		api.Use(s.jwtMiddleware)
	}
	api.HandleFunc("/workflow", s.workflowHandler).Methods("POST")
	api.HandleFunc("/triage", s.triageHandler).Methods("POST")
	api.HandleFunc("/patients/{id}", s.patientHandler).Methods("GET")
	api.HandleFunc("/status", s.statusHandler).Methods("GET")
	api.HandleFunc("/workflows/history", s.historyHandler).Methods("GET")
	api.HandleFunc("/monitoring/cycle", s.monitoringCycleHandler).Methods("POST")
	api.HandleFunc("/monitoring/{id}", s.monitorHandler).Methods("GET")

	return s
}

func (s *apiServer) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.orchestrator.GetStatus()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"components": map[string]interface{}{
			"orchestrator": "healthy",
			"audit_logger": s.orchestrator.Audit().IsHealthy(),
			"agents":       len(status.Agents),
		},
	})
}

func (s *apiServer) workflowHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var intake types.PatientIntake
	if err := json.NewDecoder(r.Body).Decode(&intake); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.orchestrator.RunWorkflow(r.Context(), intake)
	promWorkflowsTotal.WithLabelValues(result.Status).Inc()
	promWorkflowDuration.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.log.ErrorWithErr(intake.PatientID, result.WorkflowID, "Workflow failed", err, nil)
		s.writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) triageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patient_id"`
		Symptoms  string `json:"symptoms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.orchestrator.QuickTriage(req.PatientID, req.Symptoms)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	promTriageByUrgency.WithLabelValues(strconv.Itoa(result.UrgencyLevel)).Inc()
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) patientHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	record, ok := s.orchestrator.Patients().Lookup(patientID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("patient %s not found", patientID))
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *apiServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orchestrator.GetStatus())
}

func (s *apiServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": s.orchestrator.WorkflowHistory(limit),
	})
}

func (s *apiServer) monitoringCycleHandler(w http.ResponseWriter, r *http.Request) {
	results, err := s.orchestrator.RunMonitoringCycle(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"patients_checked": len(results),
		"results":          results,
	})
}

func (s *apiServer) monitorHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	mon, ok := s.orchestrator.registry.Get(patientID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("patient %s is not enrolled in monitoring", patientID))
		return
	}
	s.writeJSON(w, http.StatusOK, mon)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.ErrorWithErr("", "", "Failed to encode response", err, nil)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
