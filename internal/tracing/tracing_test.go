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

package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/bridgeshell/internal/config"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestSetup_Disabled(t *testing.T) {
	restoreGlobal(t)
	before := otel.GetTracerProvider()

	p, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_ConsoleExporter(t *testing.T) {
	restoreGlobal(t)

	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "bridgeshell-test",
		ServiceVersion: "0.0.1",
		Exporter:       ExporterConsole,
		SampleRate:     1,
		Writer:         &buf,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "bridge.write")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "bridge.write")
	assert.Contains(t, buf.String(), "bridgeshell-test")
}

func TestSetup_Errors(t *testing.T) {
	restoreGlobal(t)

	_, err := Setup(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown trace exporter")

	_, err = Setup(context.Background(), Config{Enabled: true, Exporter: ExporterOTLPHTTP})
	assert.ErrorContains(t, err, "requires an endpoint")
}

func TestNewSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		Name:          "root",
	}

	assert.Equal(t, sdktrace.RecordAndSample, NewSampler(1).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, NewSampler(0).ShouldSample(params).Decision)
	assert.Contains(t, NewSampler(0.5).Description(), "TraceIDRatioBased")
}

func TestFromConfig(t *testing.T) {
	rate := 0.25
	cfg := FromConfig(config.TracingConfig{
		Enabled:    true,
		Exporter:   ExporterOTLPHTTP,
		Endpoint:   "collector:4318",
		Insecure:   true,
		SampleRate: &rate,
	}, "bridgeshell", "1.0.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.Equal(t, "bridgeshell", cfg.ServiceName)

	assert.Equal(t, 1.0, FromConfig(config.TracingConfig{}, "b", "v").SampleRate)
}
