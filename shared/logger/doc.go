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

/*
Package logger provides structured JSON logging for CareFlow components.

# Overview

The logger package outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (pipeline, monitor, llm, ...)
  - Instance ID and container name (for distributed tracing)
  - Patient ID (for care correlation)
  - Workflow ID (for run correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("pipeline")

Log messages with patient and workflow context:

	log.Info("P001", "WF-20250115103000", "Stage completed", map[string]interface{}{
	    "stage": "triage",
	})

Log with duration tracking:

	start := time.Now()
	// ... run a stage ...
	log.InfoWithDuration("P001", wfID, "Workflow completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
