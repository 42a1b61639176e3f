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

// Package telemetry configures OpenTelemetry tracing for the
// observability server. The orchestrator traces each evaluation run
// and the judge gateway traces each model call; this package decides
// where those spans go.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

const serviceName = "agentland-observability"

// Service wraps the tracer provider and implements functions for
// telemetry lifecycle management.
type Service interface {
	// SetGlobalOtelProviders registers the configured providers as the
	// global OTel providers.
	SetGlobalOtelProviders()

	// TracerProvider returns the configured TracerProvider or nil.
	TracerProvider() *sdktrace.TracerProvider

	// Shutdown shuts down underlying OTel providers.
	Shutdown(ctx context.Context) error
}

type config struct {
	stdout         bool
	resource       *resource.Resource
	spanProcessors []sdktrace.SpanProcessor
}

// Option customizes telemetry setup.
type Option interface {
	apply(cfg *config) error
}

type optionFunc func(cfg *config) error

func (f optionFunc) apply(cfg *config) error { return f(cfg) }

// WithStdoutExporter writes spans to stdout. Intended for local
// development.
func WithStdoutExporter() Option {
	return optionFunc(func(cfg *config) error {
		cfg.stdout = true
		return nil
	})
}

// WithResource merges the given resource over the defaults.
func WithResource(res *resource.Resource) Option {
	return optionFunc(func(cfg *config) error {
		cfg.resource = res
		return nil
	})
}

// WithSpanProcessor registers an additional span processor.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return optionFunc(func(cfg *config) error {
		cfg.spanProcessors = append(cfg.spanProcessors, p)
		return nil
	})
}

type service struct {
	tracerProvider *sdktrace.TracerProvider
}

// New initializes the telemetry service. With no options and no
// processors the service is a no-op; spans stay local and unexported.
func New(ctx context.Context, opts ...Option) (Service, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	processors := cfg.spanProcessors
	if cfg.stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		processors = append(processors, sdktrace.NewBatchSpanProcessor(exporter))
	}

	if len(processors) == 0 {
		return &service{}, nil
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, p := range processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}

	return &service{tracerProvider: sdktrace.NewTracerProvider(tpOpts...)}, nil
}

func buildResource(ctx context.Context, cfg *config) (*resource.Resource, error) {
	res := resource.Default()

	base, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	res, err = resource.Merge(res, base)
	if err != nil {
		return nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	if cfg.resource != nil {
		res, err = resource.Merge(res, cfg.resource)
		if err != nil {
			return nil, fmt.Errorf("failed to merge with config resource: %w", err)
		}
	}
	return res, nil
}

func (s *service) SetGlobalOtelProviders() {
	if s.tracerProvider != nil {
		otel.SetTracerProvider(s.tracerProvider)
	}
}

func (s *service) TracerProvider() *sdktrace.TracerProvider {
	return s.tracerProvider
}

func (s *service) Shutdown(ctx context.Context) error {
	if s.tracerProvider == nil {
		return nil
	}
	return s.tracerProvider.Shutdown(ctx)
}
