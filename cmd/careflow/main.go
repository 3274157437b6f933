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

// Package main is the entry point for the CareFlow Platform service.
//
// The service runs a five-stage clinical care pipeline:
// - Triage: symptom assessment and urgency classification
// - Diagnosis: clinical picture aggregation and specialist routing
// - Treatment: plan drafting behind a medication safety gate
// - Documentation and Scheduling: run concurrently after treatment
// - Follow-up: longitudinal monitoring with care-team alerting
//
// Usage:
//
//	./careflow
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8081)
//	DATABASE_URL - PostgreSQL connection string (optional)
//	REDIS_ADDR - Redis address for session caching (optional)
//	BEDROCK_REGION - AWS Bedrock region (optional; mock provider when unset)
//	JWT_SECRET - enables bearer-token auth when set
//	CARE_AGENT_CONFIG_DIR - directory of agent YAML configs (optional)
package main

import (
	"careflow/platform/pipeline"
)

func main() {
	pipeline.Run()
}
