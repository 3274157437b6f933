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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAgentConfigYAML = `
apiVersion: careflow.io/v1
kind: CareAgentConfig
metadata:
  name: oncology-pilot
  description: Oncology-specific pipeline agents
spec:
  agents:
    - name: oncology-triage
      stage: triage
      description: Oncology-aware triage
      system_prompt: You are an oncology triage nurse.
      llm:
        provider: bedrock
        model: anthropic.claude-3-sonnet
        temperature: 0.2
        max_tokens: 400
`

func TestParseValidConfig(t *testing.T) {
	config, err := ParseCareAgentConfig([]byte(validAgentConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "careflow.io/v1", config.APIVersion)
	assert.Equal(t, "oncology-pilot", config.Metadata.Name)
	require.Len(t, config.Spec.Agents, 1)

	agent := config.Spec.Agents[0]
	assert.Equal(t, "oncology-triage", agent.Name)
	assert.Equal(t, "triage", agent.Stage)
	require.NotNil(t, agent.LLM)
	assert.Equal(t, 400, agent.LLM.MaxTokens)
}

func TestParseRejectsWrongAPIVersion(t *testing.T) {
	yaml := `
apiVersion: other.io/v1
kind: CareAgentConfig
metadata:
  name: test
spec:
  agents:
    - name: a
      stage: triage
`
	_, err := ParseCareAgentConfig([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "careflow.io/")
}

func TestParseRejectsWrongKind(t *testing.T) {
	yaml := `
apiVersion: careflow.io/v1
kind: SomethingElse
metadata:
  name: test
spec:
  agents:
    - name: a
      stage: triage
`
	_, err := ParseCareAgentConfig([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CareAgentConfig")
}

func TestParseRejectsInvalidStage(t *testing.T) {
	yaml := `
apiVersion: careflow.io/v1
kind: CareAgentConfig
metadata:
  name: test
spec:
  agents:
    - name: a
      stage: billing
`
	_, err := ParseCareAgentConfig([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid stage")
}

func TestParseRejectsDuplicateAgentNames(t *testing.T) {
	yaml := `
apiVersion: careflow.io/v1
kind: CareAgentConfig
metadata:
  name: test
spec:
  agents:
    - name: a
      stage: triage
    - name: a
      stage: diagnosis
`
	_, err := ParseCareAgentConfig([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent name")
}

func TestParseRejectsTemperatureOutOfRange(t *testing.T) {
	yaml := `
apiVersion: careflow.io/v1
kind: CareAgentConfig
metadata:
  name: test
spec:
  agents:
    - name: a
      stage: triage
      llm:
        temperature: 3.5
`
	_, err := ParseCareAgentConfig([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
}

func TestParseRejectsMissingAgents(t *testing.T) {
	yaml := `
apiVersion: careflow.io/v1
kind: CareAgentConfig
metadata:
  name: test
spec:
  agents: []
`
	_, err := ParseCareAgentConfig([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one agent")
}

func TestRegistryHasDefaultAgents(t *testing.T) {
	r := NewCareAgentRegistry()

	names := r.AgentNames()
	assert.Contains(t, names, "triage-nurse")
	assert.Contains(t, names, "diagnostician")
	assert.Contains(t, names, "treatment-planner")
	assert.Contains(t, names, "medical-scribe")
	assert.Contains(t, names, "care-coordinator")

	for _, stage := range []string{"triage", "diagnosis", "treatment", "documentation", "followup"} {
		_, ok := r.ForStage(stage)
		assert.True(t, ok, "stage %s should have a default agent", stage)
	}
}

func TestTreatmentStageLeadIsPlanner(t *testing.T) {
	r := NewCareAgentRegistry()

	// Two default agents serve the treatment stage; the planner leads
	// it, the education writer only supports it.
	agent, ok := r.ForStage("treatment")
	require.True(t, ok)
	assert.Equal(t, "treatment-planner", agent.Name)

	writer, ok := r.Get("education-writer")
	require.True(t, ok)
	assert.Equal(t, "treatment", writer.Stage)
}

const multiTreatmentConfigYAML = `
apiVersion: careflow.io/v1
kind: CareAgentConfig
metadata:
  name: treatment-team
spec:
  agents:
    - name: oncology-planner
      stage: treatment
      description: Oncology treatment planning
      system_prompt: Draft oncology treatment plans for physician approval.
    - name: oncology-educator
      stage: treatment
      description: Oncology patient education
      system_prompt: Write plain-language oncology education material.
`

func TestConfigFirstAgentPerStageLeads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "treatment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(multiTreatmentConfigYAML), 0o644))

	r := NewCareAgentRegistry()
	require.NoError(t, r.LoadFromDirectory(dir))

	// The first configured agent for a stage displaces the default
	// lead; later agents in the same file do not shadow it.
	agent, ok := r.ForStage("treatment")
	require.True(t, ok)
	assert.Equal(t, "oncology-planner", agent.Name)

	_, ok = r.Get("oncology-educator")
	assert.True(t, ok)
}

func TestRegistryLoadFromDirectoryOverridesStage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oncology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validAgentConfigYAML), 0o644))

	r := NewCareAgentRegistry()
	require.NoError(t, r.LoadFromDirectory(dir))

	agent, ok := r.ForStage("triage")
	require.True(t, ok)
	assert.Equal(t, "oncology-triage", agent.Name)

	// Defaults survive for stages the directory does not cover.
	_, ok = r.ForStage("diagnosis")
	assert.True(t, ok)

	stats := r.Stats()
	assert.Equal(t, dir, stats.ConfigDir)
	assert.Equal(t, int64(1), stats.ReloadCount)
	assert.False(t, stats.LastReload.IsZero())
}

func TestRegistryLoadRejectsMissingDirectory(t *testing.T) {
	r := NewCareAgentRegistry()

	err := r.LoadFromDirectory(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRegistryLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("kind: Wrong"), 0o644))

	r := NewCareAgentRegistry()
	err := r.LoadFromDirectory(dir)
	require.Error(t, err)

	// A failed load leaves the previous agent set intact.
	_, ok := r.Get("triage-nurse")
	assert.True(t, ok)
}
