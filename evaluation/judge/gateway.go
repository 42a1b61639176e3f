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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentland/judge"

// Gateway routes judge calls to a configured provider. Selection order:
// an explicit per-call override, then the configured default, then the
// first configured provider in registration order.
type Gateway struct {
	mu        sync.RWMutex
	providers []Provider
	byName    map[string]Provider

	defaultProvider string
	tracer          trace.Tracer
}

// NewGateway builds a gateway with the built-in Anthropic and Gemini
// backends in that priority order.
func NewGateway(cfg Config) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	g := &Gateway{
		byName:          make(map[string]Provider),
		defaultProvider: cfg.Provider,
		tracer:          otel.Tracer(tracerName),
	}
	g.mustRegister(newAnthropicProvider(cfg.Anthropic, cfg.Model, cfg.Timeout))
	g.mustRegister(newGeminiProvider(cfg.Gemini, cfg.Model, cfg.Timeout))
	return g
}

func (g *Gateway) mustRegister(p Provider) {
	if err := g.RegisterProvider(p); err != nil {
		panic(err)
	}
}

// RegisterProvider adds a backend under its unique name. It appears in
// discovery and participates in auto-detection after the built-ins.
func (g *Gateway) RegisterProvider(p Provider) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("judge: provider has no name")
	}
	if _, exists := g.byName[name]; exists {
		return fmt.Errorf("judge: provider %q already registered", name)
	}
	g.providers = append(g.providers, p)
	g.byName[name] = p
	return nil
}

// provider resolves the backend for a call. name empties fall back to
// the configured default, then to the first configured backend.
func (g *Gateway) provider(name string) (Provider, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if name == "" {
		name = g.defaultProvider
	}
	if name != "" {
		p, ok := g.byName[name]
		if !ok {
			return nil, fmt.Errorf("judge: unknown provider %q, available: %s", name, strings.Join(g.namesLocked(), ", "))
		}
		if !p.Configured() {
			return nil, &ConfigurationError{Provider: name}
		}
		return p, nil
	}

	for _, p := range g.providers {
		if p.Configured() {
			return p, nil
		}
	}
	return nil, &ConfigurationError{}
}

func (g *Gateway) namesLocked() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// Call sends the request to the resolved provider.
func (g *Gateway) Call(ctx context.Context, req *Request) (*Result, error) {
	p, err := g.provider(req.Provider)
	if err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "judge.call",
		trace.WithAttributes(
			attribute.String("judge.provider", p.Name()),
			attribute.String("judge.model", p.Model()),
		))
	defer span.End()

	res, err := p.Call(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("judge.input_tokens", res.InputTokens),
		attribute.Int("judge.output_tokens", res.OutputTokens),
	)
	return res, nil
}

// IsAnyConfigured reports whether at least one backend has credentials.
func (g *Gateway) IsAnyConfigured() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, p := range g.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}

// ListConfigured returns the names of all configured backends in
// priority order.
func (g *Gateway) ListConfigured() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var names []string
	for _, p := range g.providers {
		if p.Configured() {
			names = append(names, p.Name())
		}
	}
	return names
}

// ProviderList returns discovery info for every backend, configured or
// not, for the config endpoint and UI.
func (g *Gateway) ProviderList() []Info {
	g.mu.RLock()
	defer g.mu.RUnlock()

	infos := make([]Info, 0, len(g.providers))
	for _, p := range g.providers {
		infos = append(infos, Info{
			Name:         p.Name(),
			Configured:   p.Configured(),
			DefaultModel: p.DefaultModel(),
		})
	}
	return infos
}

// ModelName returns the model the named provider would use, falling
// back through auto-detection. It never fails: with nothing configured
// it reports the first backend's default so run records stay
// describable.
func (g *Gateway) ModelName(provider string) string {
	p, err := g.provider(provider)
	if err == nil {
		return p.Model()
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.providers) > 0 {
		return g.providers[0].Model()
	}
	return ""
}
