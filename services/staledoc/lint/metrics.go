// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// Package-level tracer and meter for check operations.
var (
	tracer = otel.Tracer("staledoc.lint")
	meter  = otel.Meter("staledoc.lint")
)

// Metrics for check operations.
var (
	checkLatency     metric.Float64Histogram
	functionsChecked metric.Int64Counter
	violationsFound  metric.Int64Counter
	checkFailures    metric.Int64Counter
	cacheLookups     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		checkLatency, err = meter.Float64Histogram(
			"staledoc_check_duration_seconds",
			metric.WithDescription("Duration of single-file checks"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		functionsChecked, err = meter.Int64Counter(
			"staledoc_functions_checked_total",
			metric.WithDescription("Total number of functions checked"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		violationsFound, err = meter.Int64Counter(
			"staledoc_violations_total",
			metric.WithDescription("Total number of non-compliant functions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		checkFailures, err = meter.Int64Counter(
			"staledoc_check_failures_total",
			metric.WithDescription("Total number of files that failed to read or scan"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheLookups, err = meter.Int64Counter(
			"staledoc_cache_lookups_total",
			metric.WithDescription("Result cache lookups by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startCheckSpan creates a span for a single-file check.
func startCheckSpan(ctx context.Context, path string, strategy signature.Strategy) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.CheckSource",
		trace.WithAttributes(
			attribute.String("staledoc.path", path),
			attribute.String("staledoc.strategy", strategy.String()),
		),
	)
}

// setCheckSpanResult sets the result attributes on a check span.
func setCheckSpanResult(span trace.Span, res *FileResult) {
	span.SetAttributes(
		attribute.Int("staledoc.function_count", res.Functions),
		attribute.Int("staledoc.violation_count", len(res.Violations)),
		attribute.Bool("staledoc.compliant", res.Compliant()),
	)
}

// recordCheckMetrics records metrics for a single-file check.
func recordCheckMetrics(ctx context.Context, strategy signature.Strategy, duration time.Duration, res *FileResult, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	strategyAttr := attribute.String("strategy", strategy.String())

	checkLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		strategyAttr,
		attribute.Bool("success", success),
	))
	functionsChecked.Add(ctx, int64(res.Functions), metric.WithAttributes(strategyAttr))

	for _, v := range res.Violations {
		violationsFound.Add(ctx, 1, metric.WithAttributes(
			strategyAttr,
			attribute.String("rule", v.Rule.String()),
		))
	}

	if !success {
		checkFailures.Add(ctx, 1, metric.WithAttributes(strategyAttr))
	}
}

// recordCacheHit counts a result cache lookup.
func recordCacheHit(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
