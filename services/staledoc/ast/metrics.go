// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for tree extraction.
var (
	tracer = otel.Tracer("staledoc.ast")
	meter  = otel.Meter("staledoc.ast")
)

// Metrics for tree extraction operations.
var (
	extractLatency     metric.Float64Histogram
	extractTotal       metric.Int64Counter
	functionsExtracted metric.Int64Histogram
	extractErrors      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		extractLatency, err = meter.Float64Histogram(
			"staledoc_tree_extract_duration_seconds",
			metric.WithDescription("Duration of tree-sitter signature extraction"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractTotal, err = meter.Int64Counter(
			"staledoc_tree_extract_total",
			metric.WithDescription("Total number of tree extractions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		functionsExtracted, err = meter.Int64Histogram(
			"staledoc_tree_functions_extracted",
			metric.WithDescription("Number of function signatures extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractErrors, err = meter.Int64Counter(
			"staledoc_tree_extract_errors_total",
			metric.WithDescription("Total number of failed tree extractions"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordExtractMetrics records metrics for one extraction.
//
// Parameters:
//   - ctx: Context for metric recording
//   - duration: How long the extraction took
//   - functionCount: Number of signatures handed to the visitor
//   - success: Whether the extraction succeeded
func recordExtractMetrics(ctx context.Context, duration time.Duration, functionCount int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	extractLatency.Record(ctx, duration.Seconds(), attrs)
	extractTotal.Add(ctx, 1, attrs)

	if success {
		functionsExtracted.Record(ctx, int64(functionCount))
	} else {
		extractErrors.Add(ctx, 1)
	}
}

// startExtractSpan creates a span for one extraction.
//
// Returns:
//   - ctx: Context with span
//   - span: The created span (caller must call span.End())
func startExtractSpan(ctx context.Context, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "TreeExtractor.Extract",
		trace.WithAttributes(
			attribute.String("staledoc.strategy", "tree"),
			attribute.Int("staledoc.content_size", contentSize),
		),
	)
}

// setExtractSpanResult sets the result attributes on an extraction span.
func setExtractSpanResult(span trace.Span, functionCount int, hasSyntaxErrors bool) {
	span.SetAttributes(
		attribute.Int("staledoc.function_count", functionCount),
		attribute.Bool("staledoc.syntax_errors", hasSyntaxErrors),
	)
}
