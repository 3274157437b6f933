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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSessions is an in-memory SessionStore for tests.
type memSessions struct {
	turns map[string][]SessionTurn
	fail  bool
}

func newMemSessions() *memSessions {
	return &memSessions{turns: make(map[string][]SessionTurn)}
}

func (m *memSessions) Append(ctx context.Context, sessionID, role, text string) error {
	if m.fail {
		return errors.New("session store unavailable")
	}
	m.turns[sessionID] = append(m.turns[sessionID], SessionTurn{Role: role, Text: text})
	return nil
}

func (m *memSessions) Transcript(ctx context.Context, sessionID string) ([]SessionTurn, error) {
	return m.turns[sessionID], nil
}

func TestAgentClientExecute(t *testing.T) {
	sessions := newMemSessions()
	client := NewAgentClient(NewMockProvider(), sessions)

	result, err := client.Execute(context.Background(), "triage", "triage_P001",
		"You are a triage nurse.", "Patient reports mild headache.", 300, 0.7)
	require.NoError(t, err)

	assert.Equal(t, "triage", result.AgentName)
	assert.Equal(t, "triage_P001", result.SessionID)
	assert.NotEmpty(t, result.Content)

	// Both sides of the exchange are recorded.
	turns, err := sessions.Transcript(context.Background(), "triage_P001")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)
}

func TestAgentClientTypedFailure(t *testing.T) {
	bad := NewMockProvider()
	bad.ForcedErr = errors.New("model unavailable")
	client := NewAgentClient(bad, nil)

	result, err := client.Execute(context.Background(), "diagnosis", "s1", "", "prompt", 0, 0)
	require.Error(t, err)
	assert.Nil(t, result)

	// The failure is a typed error, not response text.
	var provErr *ProviderError
	assert.True(t, errors.As(err, &provErr))
}

func TestAgentClientSessionStoreFailureIsNonFatal(t *testing.T) {
	sessions := newMemSessions()
	sessions.fail = true
	client := NewAgentClient(NewMockProvider(), sessions)

	result, err := client.Execute(context.Background(), "treatment", "s2", "", "prompt", 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Content)
}

func TestAgentClientNoProvider(t *testing.T) {
	client := NewAgentClient(nil, nil)
	_, err := client.Execute(context.Background(), "triage", "s3", "", "prompt", 0, 0)
	assert.Error(t, err)
}
