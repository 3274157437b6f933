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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CareAgentRegistry manages care-agent configurations with thread-safe
// access and supports hot reload for development environments.
type CareAgentRegistry struct {
	agents      map[string]*CareAgentDef // agent_name -> definition
	byStage     map[string]*CareAgentDef // stage -> lead agent (first declared wins)
	configDir   string
	mu          sync.RWMutex // Protects agents, byStage
	lastReload  time.Time
	reloadCount int64 // Atomic counter for reload operations
}

// CareAgentRegistryStats provides statistics about the registry
type CareAgentRegistryStats struct {
	AgentCount  int       `json:"agent_count"`
	StageCount  int       `json:"stage_count"`
	ConfigDir   string    `json:"config_dir"`
	LastReload  time.Time `json:"last_reload"`
	ReloadCount int64     `json:"reload_count"`
}

// defaultCareAgents are the built-in agents used when no configuration
// directory is provided. The first agent declared for a stage leads it;
// the education writer supports the treatment stage without driving it.
func defaultCareAgents() []*CareAgentDef {
	return []*CareAgentDef{
		{
			Name:         "triage-nurse",
			Stage:        "triage",
			Description:  "Assesses symptom severity and assigns an urgency tier",
			SystemPrompt: "You are an experienced triage nurse. Assess the reported symptoms, note any concerning findings, and summarize the presentation for the diagnosing clinician. Do not diagnose.",
		},
		{
			Name:         "diagnostician",
			Stage:        "diagnosis",
			Description:  "Produces a differential assessment from the clinical picture",
			SystemPrompt: "You are a diagnostic physician assistant. Review the clinical picture and produce a concise differential assessment with reasoning. Flag findings that warrant specialist input.",
		},
		{
			Name:         "treatment-planner",
			Stage:        "treatment",
			Description:  "Drafts a treatment plan for physician approval",
			SystemPrompt: "You are a clinical pharmacist and treatment planner. Draft a conservative treatment plan for the working assessment. Every plan requires physician approval.",
		},
		{
			Name:         "education-writer",
			Stage:        "treatment",
			Description:  "Writes plain-language patient education material",
			SystemPrompt: "You write patient education material at an eighth-grade reading level. Explain the treatment plan clearly and warmly without medical jargon.",
		},
		{
			Name:         "medical-scribe",
			Stage:        "documentation",
			Description:  "Drafts SOAP-format clinical notes",
			SystemPrompt: "You are a medical scribe. Draft a SOAP-format clinical note from the encounter data. Mark the note as a draft requiring physician attestation.",
		},
		{
			Name:         "care-coordinator",
			Stage:        "followup",
			Description:  "Writes patient check-in and outreach messages",
			SystemPrompt: "You are a care coordinator. Write brief, supportive check-in messages to patients. Escalate concerns to the care team rather than giving medical advice.",
		},
	}
}

// NewCareAgentRegistry creates a registry populated with the built-in
// default agents.
func NewCareAgentRegistry() *CareAgentRegistry {
	r := &CareAgentRegistry{
		agents:  make(map[string]*CareAgentDef),
		byStage: make(map[string]*CareAgentDef),
	}
	r.install(defaultCareAgents())
	return r
}

func (r *CareAgentRegistry) install(agents []*CareAgentDef) {
	for _, agent := range agents {
		r.agents[agent.Name] = agent
		if _, claimed := r.byStage[agent.Stage]; !claimed {
			r.byStage[agent.Stage] = agent
		}
	}
}

// LoadFromDirectory loads all YAML agent configurations from a
// directory, replacing the current set atomically on success.
func (r *CareAgentRegistry) LoadFromDirectory(dir string) error {
	return r.LoadFromDirectoryWithContext(context.Background(), dir)
}

// LoadFromDirectoryWithContext loads configurations with context
// support for cancellation.
func (r *CareAgentRegistry) LoadFromDirectoryWithContext(ctx context.Context, dir string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		return fmt.Errorf("failed to access directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	files, err := findYAMLFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}

	// Start from the defaults so a partial config set still yields a
	// complete pipeline.
	newAgents := make(map[string]*CareAgentDef)
	newByStage := make(map[string]*CareAgentDef)
	for _, agent := range defaultCareAgents() {
		newAgents[agent.Name] = agent
		if _, claimed := newByStage[agent.Stage]; !claimed {
			newByStage[agent.Stage] = agent
		}
	}

	// A configured agent displaces the default stage lead, but among
	// configured agents the first declared for a stage wins.
	configStages := make(map[string]bool)
	for _, file := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		config, err := LoadCareAgentConfig(file)
		if err != nil {
			return fmt.Errorf("failed to load config %s: %w", file, err)
		}

		for i := range config.Spec.Agents {
			agent := config.Spec.Agents[i]
			newAgents[agent.Name] = &agent
			if !configStages[agent.Stage] {
				newByStage[agent.Stage] = &agent
				configStages[agent.Stage] = true
			}
		}
	}

	r.mu.Lock()
	r.agents = newAgents
	r.byStage = newByStage
	r.configDir = dir
	r.lastReload = time.Now()
	atomic.AddInt64(&r.reloadCount, 1)
	r.mu.Unlock()

	return nil
}

func findYAMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Get returns the agent with the given name.
func (r *CareAgentRegistry) Get(name string) (*CareAgentDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	return agent, ok
}

// ForStage returns the agent serving the given pipeline stage.
func (r *CareAgentRegistry) ForStage(stage string) (*CareAgentDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.byStage[stage]
	return agent, ok
}

// AgentNames returns the registered agent names, sorted.
func (r *CareAgentRegistry) AgentNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns statistics about the registry.
func (r *CareAgentRegistry) Stats() CareAgentRegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CareAgentRegistryStats{
		AgentCount:  len(r.agents),
		StageCount:  len(r.byStage),
		ConfigDir:   r.configDir,
		LastReload:  r.lastReload,
		ReloadCount: atomic.LoadInt64(&r.reloadCount),
	}
}
