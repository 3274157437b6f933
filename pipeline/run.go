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
	"context"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"careflow/platform/llm"
	"careflow/platform/monitor"
)

// Prometheus metrics
var (
	promWorkflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careflow_workflows_total",
			Help: "Total number of care workflows by terminal status",
		},
		[]string{"status"},
	)
	promWorkflowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "careflow_workflow_duration_milliseconds",
			Help:    "Workflow duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
	)
	promTriageByUrgency = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careflow_triage_by_urgency_total",
			Help: "Total number of triage assessments by urgency tier",
		},
		[]string{"urgency"},
	)
	promAgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careflow_agent_calls_total",
			Help: "Total number of LLM agent calls",
		},
		[]string{"provider", "status"},
	)
)

func init() {
	prometheus.MustRegister(promWorkflowsTotal)
	prometheus.MustRegister(promWorkflowDuration)
	prometheus.MustRegister(promTriageByUrgency)
	prometheus.MustRegister(promAgentCalls)
}

// Run boots the care platform service.
//
// Environment variables:
//   - PORT: HTTP listen port (default 8081)
//   - DATABASE_URL: PostgreSQL URL for audit and monitor persistence (optional)
//   - REDIS_ADDR: Redis address for session caching (optional)
//   - REDIS_PASSWORD: Redis password (optional)
//   - BEDROCK_REGION: AWS Bedrock region; mock provider is used when unset
//   - BEDROCK_MODEL: Bedrock model identifier (optional)
//   - JWT_SECRET: enables bearer-token auth on API routes when set
//   - CARE_AGENT_CONFIG_DIR: directory of agent YAML configs (optional)
func Run() {
	log.Println("Starting CareFlow Platform...")

	orchestrator, err := bootstrapOrchestrator()
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	defer orchestrator.Audit().Shutdown()

	server := newAPIServer(orchestrator, []byte(os.Getenv("JWT_SECRET")))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := getEnv("PORT", "8081")
	log.Printf("CareFlow Platform listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, c.Handler(server.router)))
}

func bootstrapOrchestrator() (*CareOrchestrator, error) {
	var provider llm.Provider
	if region := os.Getenv("BEDROCK_REGION"); region != "" {
		bedrock, err := llm.NewBedrockProvider(region, os.Getenv("BEDROCK_MODEL"))
		if err != nil {
			log.Printf("Bedrock unavailable, falling back to mock provider: %v", err)
			provider = llm.NewMockProvider()
		} else {
			provider = bedrock
		}
	} else {
		provider = llm.NewMockProvider()
	}
	log.Printf("LLM provider: %s", provider.Name())

	var sessions llm.SessionStore
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cache, err := NewRedisSessionCache(addr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			log.Printf("Redis unavailable, using in-memory sessions: %v", err)
			sessions = NewMemorySessionCache()
		} else {
			sessions = cache
			log.Printf("Session cache: redis at %s", addr)
		}
	} else {
		sessions = NewMemorySessionCache()
	}

	registry := monitor.NewRegistry()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL != "" {
		store, err := monitor.NewPostgresStore(databaseURL)
		if err != nil {
			log.Printf("Monitor persistence unavailable: %v", err)
		} else {
			registry.AttachStore(store)
			if err := registry.LoadFromStore(context.Background()); err != nil {
				log.Printf("Failed to load persisted monitors: %v", err)
			}
		}
	}

	agents := NewCareAgentRegistry()
	if dir := os.Getenv("CARE_AGENT_CONFIG_DIR"); dir != "" {
		if err := agents.LoadFromDirectory(dir); err != nil {
			log.Fatalf("Failed to load agent configs from %s: %v", dir, err)
		}
		log.Printf("Loaded agent configs from %s", dir)
	}

	return NewCareOrchestrator(OrchestratorConfig{
		Patients:   NewPatientDirectory(),
		Agents:     agents,
		Client:     llm.NewAgentClient(provider, sessions),
		Registry:   registry,
		Dispatcher: NewLogDispatcher(),
		Audit:      NewWorkflowAuditLogger(databaseURL),
		Metrics:    NewPipelineMetricsCollector(),
	})
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
