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
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
)

type fakeProvider struct {
	name       string
	model      string
	configured bool
	calls      int
	result     *Result
	err        error
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return f.model }
func (f *fakeProvider) Configured() bool     { return f.configured }

func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) Call(ctx context.Context, req *Request) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &Result{Text: "{}", Model: f.model, Provider: f.name}, nil
}

func newTestGateway(t *testing.T, providers ...Provider) *Gateway {
	t.Helper()
	g := &Gateway{
		byName: make(map[string]Provider),
		tracer: otel.Tracer("test"),
	}
	for _, p := range providers {
		if err := g.RegisterProvider(p); err != nil {
			t.Fatalf("RegisterProvider(%s) error = %v", p.Name(), err)
		}
	}
	return g
}

func TestGatewayNoProviderConfigured(t *testing.T) {
	g := newTestGateway(t,
		&fakeProvider{name: "anthropic", model: "claude-sonnet-4-20250514"},
		&fakeProvider{name: "gemini", model: "gemini-2.5-flash"},
	)

	if g.IsAnyConfigured() {
		t.Error("IsAnyConfigured() = true, want false")
	}

	_, err := g.Call(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Call() error = %v, want *ConfigurationError", err)
	}
}

func TestGatewayAutoDetectFirstConfigured(t *testing.T) {
	anthropic := &fakeProvider{name: "anthropic", model: "claude-sonnet-4-20250514"}
	gemini := &fakeProvider{name: "gemini", model: "gemini-2.5-flash", configured: true}
	g := newTestGateway(t, anthropic, gemini)

	res, err := g.Call(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if res.Provider != "gemini" {
		t.Errorf("Call() routed to %q, want gemini", res.Provider)
	}
	if anthropic.calls != 0 || gemini.calls != 1 {
		t.Errorf("call counts = (anthropic %d, gemini %d), want (0, 1)", anthropic.calls, gemini.calls)
	}
}

func TestGatewayExplicitProviderOverride(t *testing.T) {
	anthropic := &fakeProvider{name: "anthropic", model: "claude-sonnet-4-20250514", configured: true}
	gemini := &fakeProvider{name: "gemini", model: "gemini-2.5-flash", configured: true}
	g := newTestGateway(t, anthropic, gemini)

	_, err := g.Call(context.Background(), &Request{
		Provider: "gemini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if gemini.calls != 1 || anthropic.calls != 0 {
		t.Errorf("call counts = (anthropic %d, gemini %d), want (0, 1)", anthropic.calls, gemini.calls)
	}
}

func TestGatewayExplicitProviderUnconfigured(t *testing.T) {
	g := newTestGateway(t,
		&fakeProvider{name: "anthropic", model: "claude-sonnet-4-20250514"},
		&fakeProvider{name: "gemini", model: "gemini-2.5-flash", configured: true},
	)

	_, err := g.Call(context.Background(), &Request{
		Provider: "anthropic",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Call() error = %v, want *ConfigurationError for unconfigured override", err)
	}
}

func TestGatewayRegisterDuplicate(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{name: "anthropic", model: "m"})
	if err := g.RegisterProvider(&fakeProvider{name: "anthropic", model: "m2"}); err == nil {
		t.Error("RegisterProvider() duplicate name, want error")
	}
}

func TestGatewayModelName(t *testing.T) {
	g := newTestGateway(t,
		&fakeProvider{name: "anthropic", model: "claude-sonnet-4-20250514"},
		&fakeProvider{name: "gemini", model: "gemini-2.5-flash", configured: true},
	)

	if got := g.ModelName("anthropic"); got != "claude-sonnet-4-20250514" {
		t.Errorf("ModelName(anthropic) = %q", got)
	}
	// Empty name resolves through the same auto-detection as Call.
	if got := g.ModelName(""); got != "gemini-2.5-flash" {
		t.Errorf("ModelName(\"\") = %q, want gemini-2.5-flash", got)
	}
	// Unknown names fall back to the first registered provider rather
	// than failing; model labels are advisory metadata.
	if got := g.ModelName("nope"); got != "claude-sonnet-4-20250514" {
		t.Errorf("ModelName(nope) = %q, want first provider's model", got)
	}
}

func TestGatewayProviderList(t *testing.T) {
	g := newTestGateway(t,
		&fakeProvider{name: "anthropic", model: "claude-sonnet-4-20250514", configured: true},
		&fakeProvider{name: "gemini", model: "gemini-2.5-flash"},
	)

	list := g.ProviderList()
	if len(list) != 2 {
		t.Fatalf("ProviderList() returned %d entries, want 2", len(list))
	}
	if !list[0].Configured || list[1].Configured {
		t.Errorf("ProviderList() configured flags = (%v, %v), want (true, false)", list[0].Configured, list[1].Configured)
	}

	configured := g.ListConfigured()
	if len(configured) != 1 || configured[0] != "anthropic" {
		t.Errorf("ListConfigured() = %v, want [anthropic]", configured)
	}
}
