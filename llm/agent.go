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

package llm

import (
	"context"
	"fmt"
	"time"

	"careflow/platform/shared/logger"
)

// SessionStore records agent conversation turns keyed by session ID.
// Implementations may be backed by Redis or an in-process map; failures
// to record a turn must not fail the agent call.
type SessionStore interface {
	Append(ctx context.Context, sessionID, role, text string) error
	Transcript(ctx context.Context, sessionID string) ([]SessionTurn, error)
}

// SessionTurn is one recorded conversation turn.
type SessionTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AgentResult is the typed outcome of a successful agent execution.
// Failures are reported through the error return of Execute, never as
// response text.
type AgentResult struct {
	AgentName  string        `json:"agent_name"`
	SessionID  string        `json:"session_id"`
	Content    string        `json:"content"`
	Model      string        `json:"model"`
	TokensUsed int           `json:"tokens_used"`
	Latency    time.Duration `json:"latency"`
}

// AgentClient executes named care agents against an LLM provider,
// recording conversation turns in the session store.
type AgentClient struct {
	provider Provider
	sessions SessionStore
	log      *logger.Logger
}

// NewAgentClient creates an agent client. sessions may be nil, in which
// case no transcripts are recorded.
func NewAgentClient(provider Provider, sessions SessionStore) *AgentClient {
	return &AgentClient{
		provider: provider,
		sessions: sessions,
		log:      logger.New("agent-client"),
	}
}

// Provider returns the underlying provider.
func (c *AgentClient) Provider() Provider { return c.provider }

// Execute runs one agent turn: the prompt is sent to the provider under
// the agent's system prompt, and both sides of the exchange are appended
// to the session transcript.
func (c *AgentClient) Execute(ctx context.Context, agentName, sessionID, systemPrompt, prompt string, maxTokens int, temperature float64) (*AgentResult, error) {
	if c.provider == nil {
		return nil, fmt.Errorf("agent %s: no provider configured", agentName)
	}

	c.recordTurn(ctx, sessionID, "user", prompt)

	resp, err := c.provider.Complete(ctx, CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentName, err)
	}

	c.recordTurn(ctx, sessionID, "assistant", resp.Content)

	return &AgentResult{
		AgentName:  agentName,
		SessionID:  sessionID,
		Content:    resp.Content,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
		Latency:    resp.Latency,
	}, nil
}

// recordTurn appends a transcript turn. Store failures are logged and
// swallowed: losing a transcript line must not fail the care workflow.
func (c *AgentClient) recordTurn(ctx context.Context, sessionID, role, text string) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Append(ctx, sessionID, role, text); err != nil {
		c.log.Warn("", "", "Failed to record session turn", map[string]interface{}{
			"session_id": sessionID,
			"role":       role,
			"error":      err.Error(),
		})
	}
}
