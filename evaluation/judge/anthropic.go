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
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultModel = "claude-sonnet-4-20250514"

// anthropicProvider backs the gateway with the Anthropic Messages API.
type anthropicProvider struct {
	apiKey        string
	modelOverride string
	client        anthropic.Client
}

func newAnthropicProvider(cfg AnthropicConfig, modelOverride string, timeout time.Duration) *anthropicProvider {
	p := &anthropicProvider{
		apiKey:        cfg.APIKey,
		modelOverride: modelOverride,
	}
	if p.Configured() {
		p.client = anthropic.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithRequestTimeout(timeout),
		)
	}
	return p
}

func (p *anthropicProvider) Name() string         { return "anthropic" }
func (p *anthropicProvider) DefaultModel() string { return anthropicDefaultModel }
func (p *anthropicProvider) Configured() bool     { return p.apiKey != "" }

func (p *anthropicProvider) Model() string {
	if p.modelOverride != "" {
		return p.modelOverride
	}
	return anthropicDefaultModel
}

func (p *anthropicProvider) Call(ctx context.Context, req *Request) (*Result, error) {
	if !p.Configured() {
		return nil, &ConfigurationError{Provider: p.Name()}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.Model()),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	temperature := 0.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = anthropic.Float(temperature)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	return &Result{
		Text:         text.String(),
		Model:        string(msg.Model),
		Provider:     p.Name(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
