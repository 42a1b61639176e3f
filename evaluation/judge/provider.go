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

// Package judge implements the LLM provider gateway and response parser
// used for LLM-as-judge scoring. The gateway presents one call surface
// over interchangeable backends; each backend normalizes its own
// request/response shape and usage accounting into the common result.
package judge

import (
	"context"
	"fmt"
	"time"
)

const (
	// RoleUser and RoleAssistant are the message roles a judge request
	// may carry. Backends map them onto their own role vocabulary.
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultMaxTokens = 1024
)

// Message is one conversational turn of a judge request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic judge call.
type Request struct {
	System   string
	Messages []Message

	// MaxTokens defaults to 1024 when zero.
	MaxTokens int

	// Temperature defaults to 0 when nil: judges should be as
	// deterministic as the backend allows.
	Temperature *float64

	// Provider overrides the gateway's auto-detection for this call.
	Provider string
}

// Result is the normalized response of a judge call.
type Result struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Provider is one judge-model backend.
type Provider interface {
	// Name is the stable identifier used for overrides and discovery.
	Name() string

	// DefaultModel is the model used when no override is configured.
	DefaultModel() string

	// Configured reports whether the backend has credentials.
	Configured() bool

	// Model returns the model an actual call would use.
	Model() string

	// Call sends the request. The transport must enforce a timeout;
	// a timed-out or erroring call is reported as an error and the
	// caller degrades it to a zero-scored result.
	Call(ctx context.Context, req *Request) (*Result, error)
}

// Info describes a provider for capability discovery.
type Info struct {
	Name         string `json:"name"`
	Configured   bool   `json:"configured"`
	DefaultModel string `json:"default_model"`
}

// ConfigurationError reports that a judge call was attempted with no
// usable provider.
type ConfigurationError struct {
	// Provider is the explicitly requested provider, empty for
	// auto-detection.
	Provider string
}

func (e *ConfigurationError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("judge: provider %q is not configured (missing API key)", e.Provider)
	}
	return "judge: no LLM provider configured; set an API key for your preferred provider"
}

// Config is the explicit gateway configuration. Credentials are passed
// in at construction; the gateway never reads process environment
// itself.
type Config struct {
	// Provider forces a backend by name. Empty enables auto-detection
	// in fixed priority order: anthropic, then gemini.
	Provider string

	// Model overrides every backend's default model.
	Model string

	// Timeout bounds each judge call at the transport layer. Defaults
	// to 60s when zero.
	Timeout time.Duration

	Anthropic AnthropicConfig
	Gemini    GeminiConfig
}

// AnthropicConfig holds the Anthropic backend credentials.
type AnthropicConfig struct {
	APIKey string
}

// GeminiConfig holds the Gemini backend credentials.
type GeminiConfig struct {
	APIKey string
}
