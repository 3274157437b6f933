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
	"strings"
	"time"
)

// MockProvider is a deterministic in-process provider used for local
// development and tests. It recognizes the KEYWORDS/TRANSCRIPTION prompt
// format produced by MedGen and returns a canned clinical transcription
// echoing the keywords; any other prompt gets a short generic response.
type MockProvider struct {
	name string

	// ForcedErr, when set, is returned from every Complete call.
	// Used by tests to exercise failure paths.
	ForcedErr error
}

// NewMockProvider creates a mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock"}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return m.name }

// Type implements Provider.
func (m *MockProvider) Type() ProviderType { return ProviderTypeMock }

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.ForcedErr != nil {
		return nil, &ProviderError{Provider: m.name, Op: "complete", Err: m.ForcedErr}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: m.name, Op: "complete", Err: err}
	}

	content := mockTranscription(req.Prompt)
	return &CompletionResponse{
		Content:    content,
		Model:      "mock-model",
		TokensUsed: len(strings.Fields(content)),
		Latency:    time.Millisecond,
		Metadata:   map[string]any{"provider": m.name},
	}, nil
}

// HealthCheck implements Provider. The mock is always healthy.
func (m *MockProvider) HealthCheck(ctx context.Context) error { return nil }

func mockTranscription(prompt string) string {
	keywords := "general symptoms"
	if idx := strings.Index(prompt, "KEYWORDS:"); idx >= 0 {
		rest := prompt[idx+len("KEYWORDS:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if kw := strings.TrimSpace(rest); kw != "" {
			keywords = kw
		}
	}

	return `KEYWORDS: ` + keywords + `

TRANSCRIPTION:
The patient presents with ` + keywords + `. Initial assessment was performed.

SUBJECTIVE:
Patient reports symptoms consistent with the presenting complaint.
Duration and severity were noted.

OBJECTIVE:
Vital signs within normal limits. Physical examination performed.
Relevant findings documented.

ASSESSMENT:
Clinical presentation consistent with the reported symptoms.
Differential diagnosis considered.

PLAN:
1. Continue current management
2. Follow-up as scheduled
3. Return if symptoms worsen

Patient educated on warning signs. Questions answered.
Follow-up appointment scheduled.`
}
