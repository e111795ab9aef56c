// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for staledoc.
//
// The extraction and check packages record spans and metrics through the
// global otel API. Init installs the providers that make them visible:
// a Prometheus registry for `serve` and `--metrics-file`, and optional span
// export to stdout or an OTLP collector.
//
// # Usage
//
//	p, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer p.Shutdown(context.Background())
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Exporter names accepted by Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

var (
	// ErrNilContext is returned when Init receives a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned for an exporter name staledoc does not
	// support for that signal.
	ErrUnknownExporter = errors.New("unknown exporter")

	// ErrNoRegistry is returned by WriteTextfile when metrics are not
	// collected into a Prometheus registry.
	ErrNoRegistry = errors.New("prometheus metrics not enabled")
)

// Config selects where staledoc's spans and metrics go.
//
// An empty exporter name means ExporterNone.
type Config struct {
	// ServiceName and ServiceVersion label every span and metric.
	ServiceName    string
	ServiceVersion string

	// TraceExporter is ExporterNone, ExporterStdout or ExporterOTLP
	// (`--trace`).
	TraceExporter string

	// MetricExporter is ExporterNone, ExporterPrometheus or ExporterStdout
	// (`--metrics-exporter`; `serve` and `--metrics-file` imply
	// ExporterPrometheus).
	MetricExporter string

	// OTLPEndpoint is the collector address for ExporterOTLP, dialed
	// without TLS when OTLPInsecure is set.
	OTLPEndpoint string
	OTLPInsecure bool

	// Output receives ExporterStdout output. Nil means os.Stderr, which
	// keeps the report on stdout clean.
	Output io.Writer
}

// DefaultConfig exports metrics to Prometheus and no spans.
//
// OTEL_TRACES_EXPORTER and OTEL_EXPORTER_OTLP_ENDPOINT override the span
// exporter and the collector address.
func DefaultConfig() Config {
	cfg := Config{
		ServiceName:    "staledoc",
		ServiceVersion: "dev",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterPrometheus,
		OTLPEndpoint:   "localhost:4317",
		OTLPInsecure:   true,
	}
	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		cfg.TraceExporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	return cfg
}

// Provider is the installed pipeline. Its zero value and a nil *Provider
// both behave as telemetry disabled.
type Provider struct {
	registry *prometheus.Registry
	stops    []func(context.Context) error
}

// Init installs the global tracer and meter providers described by cfg.
//
// Description:
//
//	Instruments obtained from the global otel API before Init, such as the
//	check and extraction metrics, report through the new providers once it
//	returns. Signals whose exporter is ExporterNone keep the otel no-op
//	providers.
//
// Inputs:
//
//	ctx - Context for dialing the OTLP collector.
//	cfg - Exporter selection. See DefaultConfig.
//
// Outputs:
//
//	*Provider - Serves /metrics and the textfile. Call Shutdown to flush.
//	error - ErrNilContext, ErrUnknownExporter, or an exporter failure.
//
// Thread Safety: Call once at startup.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	p := &Provider{}

	spans, err := spanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	if spans != nil {
		tp := trace.NewTracerProvider(trace.WithBatcher(spans), trace.WithResource(res))
		otel.SetTracerProvider(tp)
		p.stops = append(p.stops, tp.Shutdown)
	}

	reader, err := p.metricReader(cfg)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("init meter: %w", err)
	}
	if reader != nil {
		mp := metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res))
		otel.SetMeterProvider(mp)
		p.stops = append(p.stops, mp.Shutdown)
	}

	return p, nil
}

// spanExporter returns nil for ExporterNone.
func spanExporter(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	switch cfg.TraceExporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(cfg.Output), stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}
	return nil, fmt.Errorf("%w: trace exporter %q", ErrUnknownExporter, cfg.TraceExporter)
}

// metricReader returns nil for ExporterNone. ExporterPrometheus also
// records the registry behind MetricsHandler and WriteTextfile, with Go
// runtime and process collectors alongside staledoc's own metrics.
func (p *Provider) metricReader(cfg Config) (metric.Reader, error) {
	switch cfg.MetricExporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reader, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, err
		}
		p.registry = reg
		return reader, nil
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		return metric.NewPeriodicReader(exp), nil
	}
	return nil, fmt.Errorf("%w: metric exporter %q", ErrUnknownExporter, cfg.MetricExporter)
}

// MetricsHandler serves the Prometheus registry, or returns nil when
// metrics go elsewhere.
func (p *Provider) MetricsHandler() http.Handler {
	if g := p.Gatherer(); g != nil {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return nil
}

// Gatherer returns the Prometheus registry, or nil.
func (p *Provider) Gatherer() prometheus.Gatherer {
	if p == nil || p.registry == nil {
		return nil
	}
	return p.registry
}

// WriteTextfile snapshots the registry into path in node_exporter textfile
// format. The file is replaced atomically.
func (p *Provider) WriteTextfile(path string) error {
	g := p.Gatherer()
	if g == nil {
		return ErrNoRegistry
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}

// Shutdown flushes pending spans and metrics and stops the providers.
// Later calls do nothing.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	stops := p.stops
	p.stops = nil

	var errs []error
	for _, stop := range stops {
		errs = append(errs, stop(ctx))
	}
	return errors.Join(errs...)
}

// LoggerWithTrace returns logger annotated with the trace_id and span_id
// of the span in ctx, or logger itself when there is none.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
