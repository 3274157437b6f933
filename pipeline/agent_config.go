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
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// CareAgentConfigFile represents a complete care-agent configuration
// file following the Kubernetes-style apiVersion/kind pattern
type CareAgentConfigFile struct {
	APIVersion string              `yaml:"apiVersion"`
	Kind       string              `yaml:"kind"`
	Metadata   CareAgentMetadata   `yaml:"metadata"`
	Spec       CareAgentConfigSpec `yaml:"spec"`
}

// CareAgentMetadata contains identification and description for the config
type CareAgentMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CareAgentConfigSpec defines the agents contributed by a config file
type CareAgentConfigSpec struct {
	Agents []CareAgentDef `yaml:"agents"`
}

// CareAgentDef defines a single pipeline agent
type CareAgentDef struct {
	Name         string          `yaml:"name"`
	Stage        string          `yaml:"stage"`
	Description  string          `yaml:"description"`
	SystemPrompt string          `yaml:"system_prompt"`
	LLM          *AgentLLMConfig `yaml:"llm,omitempty"`
}

// AgentLLMConfig specifies model settings for an agent
type AgentLLMConfig struct {
	Provider    string  `yaml:"provider"`    // bedrock, mock
	Model       string  `yaml:"model"`       // model identifier
	Temperature float64 `yaml:"temperature"` // 0.0 - 2.0
	MaxTokens   int     `yaml:"max_tokens"`  // Maximum response tokens
}

// Configuration constants
const (
	// MaxLLMTemperature is the maximum allowed temperature for LLM calls
	MaxLLMTemperature = 2.0

	// DefaultAgentMaxTokens is applied when a config omits max_tokens
	DefaultAgentMaxTokens = 500

	// DefaultAgentTemperature is applied when a config omits temperature
	DefaultAgentTemperature = 0.3
)

// ValidStages lists the pipeline stages an agent may serve
var ValidStages = map[string]bool{
	"triage":        true,
	"diagnosis":     true,
	"treatment":     true,
	"documentation": true,
	"scheduling":    true,
	"followup":      true,
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// LoadCareAgentConfig loads and parses a care-agent configuration file
func LoadCareAgentConfig(path string) (*CareAgentConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return ParseCareAgentConfig(data)
}

// ParseCareAgentConfig parses YAML data into a CareAgentConfigFile
func ParseCareAgentConfig(data []byte) (*CareAgentConfigFile, error) {
	var config CareAgentConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateCareAgentConfig(&config); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &config, nil
}

// ValidateCareAgentConfig validates a configuration for correctness
func ValidateCareAgentConfig(config *CareAgentConfigFile) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if !strings.HasPrefix(config.APIVersion, "careflow.io/") {
		return fmt.Errorf("invalid apiVersion: must start with 'careflow.io/', got '%s'", config.APIVersion)
	}

	if config.Kind != "CareAgentConfig" {
		return fmt.Errorf("invalid kind: expected 'CareAgentConfig', got '%s'", config.Kind)
	}

	if config.Metadata.Name == "" {
		return fmt.Errorf("metadata validation failed: name is required")
	}
	if !identifierPattern.MatchString(config.Metadata.Name) {
		return fmt.Errorf("metadata validation failed: name '%s' must be lowercase alphanumeric with hyphens", config.Metadata.Name)
	}

	if len(config.Spec.Agents) == 0 {
		return fmt.Errorf("spec validation failed: at least one agent is required")
	}

	agentNames := make(map[string]bool)
	for i, agent := range config.Spec.Agents {
		if err := validateCareAgent(&agent); err != nil {
			return fmt.Errorf("agent %d (%s) invalid: %w", i, agent.Name, err)
		}
		if agentNames[agent.Name] {
			return fmt.Errorf("duplicate agent name: %s", agent.Name)
		}
		agentNames[agent.Name] = true
	}

	return nil
}

func validateCareAgent(agent *CareAgentDef) error {
	if agent.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !identifierPattern.MatchString(agent.Name) {
		return fmt.Errorf("name '%s' must be lowercase alphanumeric with hyphens and underscores", agent.Name)
	}

	if agent.Stage == "" {
		return fmt.Errorf("stage is required")
	}
	if !ValidStages[agent.Stage] {
		return fmt.Errorf("invalid stage '%s': must be one of triage, diagnosis, treatment, documentation, scheduling, followup", agent.Stage)
	}

	if agent.LLM != nil {
		if agent.LLM.Temperature < 0 || agent.LLM.Temperature > MaxLLMTemperature {
			return fmt.Errorf("temperature %.2f out of range [0, %.1f]", agent.LLM.Temperature, MaxLLMTemperature)
		}
		if agent.LLM.MaxTokens < 0 {
			return fmt.Errorf("max_tokens cannot be negative")
		}
	}

	return nil
}
