// Copyright 2025 The AgentLand Authors
//
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

package judge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash"

// geminiProvider backs the gateway with the Gemini API.
type geminiProvider struct {
	apiKey        string
	modelOverride string
	timeout       time.Duration

	// The genai client wants a context at construction, so it is built
	// lazily on first call.
	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

func newGeminiProvider(cfg GeminiConfig, modelOverride string, timeout time.Duration) *geminiProvider {
	return &geminiProvider{
		apiKey:        cfg.APIKey,
		modelOverride: modelOverride,
		timeout:       timeout,
	}
}

func (p *geminiProvider) Name() string         { return "gemini" }
func (p *geminiProvider) DefaultModel() string { return geminiDefaultModel }
func (p *geminiProvider) Configured() bool     { return p.apiKey != "" }

func (p *geminiProvider) Model() string {
	if p.modelOverride != "" {
		return p.modelOverride
	}
	return geminiDefaultModel
}

func (p *geminiProvider) init(ctx context.Context) (*genai.Client, error) {
	p.initOnce.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     p.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: p.timeout},
		})
	})
	return p.client, p.initErr
}

func (p *geminiProvider) Call(ctx context.Context, req *Request) (*Result, error) {
	if !p.Configured() {
		return nil, &ConfigurationError{Provider: p.Name()}
	}

	client, err := p.init(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini client init failed: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temperature := float32(0)
	if req.Temperature != nil {
		temperature = float32(*req.Temperature)
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     &temperature,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, p.Model(), contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini call failed: %w", err)
	}

	res := &Result{
		Text:     resp.Text(),
		Model:    p.Model(),
		Provider: p.Name(),
	}
	if usage := resp.UsageMetadata; usage != nil {
		res.InputTokens = int(usage.PromptTokenCount)
		res.OutputTokens = int(usage.CandidatesTokenCount)
	}
	return res, nil
}
