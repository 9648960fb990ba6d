// Copyright 2025 Tom Barlow
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

// Package tracing configures the OpenTelemetry tracer provider used by the
// bridge supervisor and the controller API.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tombee/bridgeshell/internal/config"
)

// Exporter names.
const (
	ExporterConsole  = "console"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds tracing configuration.
type Config struct {
	// Enabled controls whether spans are exported at all.
	Enabled bool

	// ServiceName identifies this process in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter is ExporterConsole or ExporterOTLPHTTP.
	Exporter string

	// Endpoint is the OTLP receiver host:port.
	Endpoint string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool

	// SampleRate is the fraction of root traces kept (0.0 - 1.0).
	SampleRate float64

	// Writer receives console exporter output (default: os.Stdout).
	Writer io.Writer
}

// FromConfig converts the observability section of the config file.
func FromConfig(c config.TracingConfig, serviceName, version string) Config {
	rate := 1.0
	if c.SampleRate != nil {
		rate = *c.SampleRate
	}
	return Config{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Exporter:       c.Exporter,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     rate,
	}
}

// Provider owns the SDK tracer provider. A disabled Provider is a no-op
// and leaves the global provider untouched.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup builds the tracer provider and installs it globally together with
// the W3C trace context propagator.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// No schema URL on the service resource avoids conflicts in Merge.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}

// NewSampler keeps the parent's decision and samples root spans at rate.
func NewSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0.0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}
