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
	"sort"
	"sync"
	"time"
)

// PipelineMetricsCollector aggregates per-stage and per-workflow
// metrics for the orchestrator status endpoint.
type PipelineMetricsCollector struct {
	metrics *PipelineMetrics
	mu      sync.RWMutex
}

// PipelineMetrics represents collected metrics
type PipelineMetrics struct {
	StageMetrics      map[string]*StageMetrics `json:"stage_metrics"`
	WorkflowsByStatus map[string]int64         `json:"workflows_by_status"`
	UrgencyCounts     map[int]int64            `json:"urgency_counts"`
	AlertsDispatched  int64                    `json:"alerts_dispatched"`
	CollectionStarted time.Time                `json:"collection_started"`
	LastResetTime     time.Time                `json:"last_reset_time"`
}

// StageMetrics tracks metrics per pipeline stage
type StageMetrics struct {
	TotalRuns     int64         `json:"total_runs"`
	SuccessCount  int64         `json:"success_count"`
	ErrorCount    int64         `json:"error_count"`
	AvgDuration   time.Duration `json:"avg_duration_ms"`
	P95Duration   time.Duration `json:"p95_duration_ms"`
	durations     []time.Duration
	totalDuration time.Duration
}

// NewPipelineMetricsCollector creates an empty collector.
func NewPipelineMetricsCollector() *PipelineMetricsCollector {
	now := time.Now()
	return &PipelineMetricsCollector{
		metrics: &PipelineMetrics{
			StageMetrics:      make(map[string]*StageMetrics),
			WorkflowsByStatus: make(map[string]int64),
			UrgencyCounts:     make(map[int]int64),
			CollectionStarted: now,
			LastResetTime:     now,
		},
	}
}

// RecordStage records one stage execution.
func (c *PipelineMetricsCollector) RecordStage(stage string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sm, exists := c.metrics.StageMetrics[stage]
	if !exists {
		sm = &StageMetrics{durations: make([]time.Duration, 0, 1000)}
		c.metrics.StageMetrics[stage] = sm
	}

	sm.TotalRuns++
	if err != nil {
		sm.ErrorCount++
	} else {
		sm.SuccessCount++
	}

	sm.totalDuration += duration
	sm.durations = append(sm.durations, duration)
	// Keep only the last 1000 samples for percentile calculation
	if len(sm.durations) > 1000 {
		sm.durations = sm.durations[len(sm.durations)-1000:]
	}

	sm.AvgDuration = sm.totalDuration / time.Duration(sm.TotalRuns)
	sm.P95Duration = percentile(sm.durations, 0.95)
}

// RecordWorkflow records a terminal workflow status and triage urgency.
func (c *PipelineMetricsCollector) RecordWorkflow(status string, urgencyLevel int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.WorkflowsByStatus[status]++
	if urgencyLevel > 0 {
		c.metrics.UrgencyCounts[urgencyLevel]++
	}
}

// RecordAlert counts one dispatched care-team alert.
func (c *PipelineMetricsCollector) RecordAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.AlertsDispatched++
}

// Snapshot returns a deep copy of the current metrics.
func (c *PipelineMetricsCollector) Snapshot() *PipelineMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &PipelineMetrics{
		StageMetrics:      make(map[string]*StageMetrics, len(c.metrics.StageMetrics)),
		WorkflowsByStatus: make(map[string]int64, len(c.metrics.WorkflowsByStatus)),
		UrgencyCounts:     make(map[int]int64, len(c.metrics.UrgencyCounts)),
		AlertsDispatched:  c.metrics.AlertsDispatched,
		CollectionStarted: c.metrics.CollectionStarted,
		LastResetTime:     c.metrics.LastResetTime,
	}
	for stage, sm := range c.metrics.StageMetrics {
		snapshot.StageMetrics[stage] = &StageMetrics{
			TotalRuns:    sm.TotalRuns,
			SuccessCount: sm.SuccessCount,
			ErrorCount:   sm.ErrorCount,
			AvgDuration:  sm.AvgDuration,
			P95Duration:  sm.P95Duration,
		}
	}
	for status, count := range c.metrics.WorkflowsByStatus {
		snapshot.WorkflowsByStatus[status] = count
	}
	for urgency, count := range c.metrics.UrgencyCounts {
		snapshot.UrgencyCounts[urgency] = count
	}
	return snapshot
}

// Reset clears all counters but preserves the collection start time.
func (c *PipelineMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.StageMetrics = make(map[string]*StageMetrics)
	c.metrics.WorkflowsByStatus = make(map[string]int64)
	c.metrics.UrgencyCounts = make(map[int]int64)
	c.metrics.AlertsDispatched = 0
	c.metrics.LastResetTime = time.Now()
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
