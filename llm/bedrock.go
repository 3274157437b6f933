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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider implements Provider for AWS Bedrock using AWS SDK v2.
// Authentication is AWS Signature V4 via IAM roles.
type BedrockProvider struct {
	client *bedrockruntime.Client
	region string
	model  string
}

// NewBedrockProvider creates a new Bedrock provider.
// Returns an error if AWS config loading fails - callers should handle
// this rather than silently falling back to mock.
func NewBedrockProvider(region, model string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", region, err)
	}

	return &BedrockProvider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		region: region,
		model:  model,
	}, nil
}

// Name implements Provider.
func (p *BedrockProvider) Name() string { return "bedrock" }

// Type implements Provider.
func (p *BedrockProvider) Type() ProviderType { return ProviderTypeBedrock }

// Complete invokes the configured Bedrock model.
func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := buildBedrockRequestBody(req, model)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "build request", Err: err}
	}

	requestJSON, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "marshal request", Err: err}
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "invoke model", Err: err}
	}

	resp, err := parseBedrockResponseBody(output.Body, model)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "parse response", Err: err}
	}

	resp.Model = model
	resp.Latency = time.Since(start)
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["provider"] = "bedrock"
	resp.Metadata["region"] = p.region

	return resp, nil
}

// HealthCheck verifies the client is initialized. Bedrock has no cheap
// ping endpoint; real failures surface on the first InvokeModel.
func (p *BedrockProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return &ProviderError{Provider: p.Name(), Op: "health check", Err: fmt.Errorf("client not initialized")}
	}
	return nil
}

// buildBedrockRequestBody builds the request body for the model family.
func buildBedrockRequestBody(req CompletionRequest, model string) (map[string]any, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	topP := req.TopP
	if topP == 0 {
		topP = 0.9
	}

	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}

	switch detectBedrockModelFamily(model) {
	case "anthropic":
		body := map[string]any{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        maxTokens,
			"temperature":       req.Temperature,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}
		if req.SystemPrompt != "" {
			body["system"] = req.SystemPrompt
		}
		return body, nil
	case "amazon":
		return map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": maxTokens,
				"temperature":   req.Temperature,
				"topP":          topP,
			},
		}, nil
	case "meta":
		return map[string]any{
			"prompt":      prompt,
			"max_gen_len": maxTokens,
			"temperature": req.Temperature,
			"top_p":       topP,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model family for %q", model)
	}
}

// parseBedrockResponseBody parses the response for the model family.
func parseBedrockResponseBody(body []byte, model string) (*CompletionResponse, error) {
	switch detectBedrockModelFamily(model) {
	case "anthropic":
		var parsed struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}
		var sb strings.Builder
		for _, c := range parsed.Content {
			sb.WriteString(c.Text)
		}
		return &CompletionResponse{
			Content:    sb.String(),
			TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}, nil
	case "amazon":
		var parsed struct {
			Results []struct {
				OutputText string `json:"outputText"`
				TokenCount int    `json:"tokenCount"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}
		if len(parsed.Results) == 0 {
			return nil, fmt.Errorf("empty results in response")
		}
		return &CompletionResponse{
			Content:    parsed.Results[0].OutputText,
			TokensUsed: parsed.Results[0].TokenCount,
		}, nil
	case "meta":
		var parsed struct {
			Generation      string `json:"generation"`
			GenerationCount int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}
		return &CompletionResponse{
			Content:    parsed.Generation,
			TokensUsed: parsed.GenerationCount,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model family for %q", model)
	}
}

// detectBedrockModelFamily maps a model ID to its request/response dialect.
func detectBedrockModelFamily(model string) string {
	switch {
	case strings.HasPrefix(model, "anthropic."), strings.Contains(model, ".anthropic."):
		return "anthropic"
	case strings.HasPrefix(model, "amazon."), strings.Contains(model, ".amazon."):
		return "amazon"
	case strings.HasPrefix(model, "meta."), strings.Contains(model, ".meta."):
		return "meta"
	default:
		return "unknown"
	}
}
