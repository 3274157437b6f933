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
	"sync"
	"time"

	"careflow/platform/shared/logger"
)

// MedGen default generation parameters. These match the fine-tuned
// medical model's training settings and apply when the caller passes
// zero values.
const (
	MedGenDefaultMaxTokens   = 300
	MedGenDefaultTemperature = 0.8
	MedGenDefaultTopP        = 0.9
)

// MedGen wraps a Provider as the medical-language generation collaborator.
// Loading is lazy: the first Generate call health-checks the provider once
// and remembers the result for the process lifetime.
type MedGen struct {
	provider Provider
	log      *logger.Logger

	mu     sync.Mutex
	loaded bool
}

// GenResult is delivered on the channel returned by GenerateAsync.
type GenResult struct {
	Text string
	Err  error
}

// NewMedGen creates a medical-language generation wrapper around provider.
func NewMedGen(provider Provider) *MedGen {
	return &MedGen{
		provider: provider,
		log:      logger.New("medgen"),
	}
}

// Load verifies the underlying provider once. Safe to call concurrently;
// subsequent calls are no-ops.
func (g *MedGen) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loaded {
		return nil
	}
	if g.provider == nil {
		return fmt.Errorf("medgen: no provider configured")
	}
	if err := g.provider.HealthCheck(ctx); err != nil {
		return fmt.Errorf("medgen: provider %s unavailable: %w", g.provider.Name(), err)
	}
	g.loaded = true
	g.log.Info("", "", "Medical generation provider loaded", map[string]interface{}{
		"provider": g.provider.Name(),
	})
	return nil
}

// IsLoaded reports whether the provider passed its load check.
func (g *MedGen) IsLoaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

// Generate produces medical text for the prompt. Zero-valued options fall
// back to the MedGenDefault* constants.
func (g *MedGen) Generate(ctx context.Context, prompt string, maxTokens int, temperature, topP float64) (string, error) {
	if err := g.Load(ctx); err != nil {
		return "", err
	}

	if maxTokens == 0 {
		maxTokens = MedGenDefaultMaxTokens
	}
	if temperature == 0 {
		temperature = MedGenDefaultTemperature
	}
	if topP == 0 {
		topP = MedGenDefaultTopP
	}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return "", err
	}

	g.log.InfoWithDuration("", "", "Generated medical text",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"provider":    g.provider.Name(),
			"tokens_used": resp.TokensUsed,
		})
	return resp.Content, nil
}

// GenerateAsync runs Generate in a goroutine and delivers the result on
// the returned channel. The channel is buffered; the result is never lost
// if the caller is slow to receive.
func (g *MedGen) GenerateAsync(ctx context.Context, prompt string) <-chan GenResult {
	ch := make(chan GenResult, 1)
	go func() {
		text, err := g.Generate(ctx, prompt, 0, 0, 0)
		ch <- GenResult{Text: text, Err: err}
	}()
	return ch
}

// TranscriptionPrompt builds a prompt in the fine-tuned model's training
// format: "KEYWORDS: ...\n\nTRANSCRIPTION:".
func TranscriptionPrompt(keywords, specialty string) string {
	if specialty != "" {
		return fmt.Sprintf("KEYWORDS: %s, %s\n\nTRANSCRIPTION:", keywords, specialty)
	}
	return fmt.Sprintf("KEYWORDS: %s\n\nTRANSCRIPTION:", keywords)
}
