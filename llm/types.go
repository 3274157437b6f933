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
	"fmt"
	"time"
)

// ProviderType identifies the type of LLM provider.
type ProviderType string

const (
	// ProviderTypeBedrock represents AWS Bedrock managed models.
	ProviderTypeBedrock ProviderType = "bedrock"

	// ProviderTypeMock represents the deterministic in-process mock.
	ProviderTypeMock ProviderType = "mock"

	// ProviderTypeCustom represents a custom/third-party provider.
	ProviderTypeCustom ProviderType = "custom"
)

// CompletionRequest encapsulates all parameters for a completion request.
// This is the unified request type used across all providers.
type CompletionRequest struct {
	// Prompt is the input text.
	Prompt string `json:"prompt"`

	// SystemPrompt is an optional system message that sets agent behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the maximum number of tokens in the response.
	// If 0, provider defaults are used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64 `json:"temperature,omitempty"`

	// TopP is the nucleus sampling parameter.
	TopP float64 `json:"top_p,omitempty"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`

	// Metadata contains provider-specific options.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse contains the result of a completion.
type CompletionResponse struct {
	// Content is the generated text response.
	Content string `json:"content"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// TokensUsed is total token consumption reported by the provider.
	TokensUsed int `json:"tokens_used"`

	// Latency is wall-clock time for the provider call.
	Latency time.Duration `json:"latency"`

	// Metadata contains provider-specific response details.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ProviderError wraps a provider failure with the provider name so
// callers can attribute failures in logs and audit records.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
