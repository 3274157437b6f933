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

// Package pipeline implements the clinical care coordination pipeline:
// a five-stage workflow (triage, diagnosis, treatment, documentation and
// scheduling in parallel, follow-up) driven by LLM care agents and
// deterministic keyword heuristics.
//
// The CareOrchestrator sequences the stages and handles the two early
// exits: emergency escalation after triage and safety review after the
// treatment safety gate. Follow-up monitoring state lives in the monitor
// package; this package runs the per-patient monitoring checks against
// it and dispatches any alerts they raise.
//
// The HTTP surface (Run and the api handlers) exposes the workflow,
// triage, patient lookup, status, and monitoring-cycle operations.
package pipeline
