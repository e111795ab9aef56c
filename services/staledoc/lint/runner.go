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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/staledoc/services/staledoc/ast"
	"github.com/AleutianAI/staledoc/services/staledoc/lexer"
	"github.com/AleutianAI/staledoc/services/staledoc/rules"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// LineFilter limits checks to functions whose checked region, from the
// `def` line through the header colon or the docstring's closing quotes,
// touches a change.
type LineFilter interface {
	Overlaps(path string, start, end int) bool
}

// ResultCache stores results of fully checked files by content key.
//
// Implementations must be safe for concurrent use. Load misses and Store
// failures are not errors: the file is simply checked again.
type ResultCache interface {
	Load(ctx context.Context, key string) (*FileResult, bool)
	Store(ctx context.Context, key string, res *FileResult)
}

// cacheVersion changes whenever extraction or rule semantics change, so
// stale cache entries stop matching.
const cacheVersion = "staledoc-v2"

// =============================================================================
// RUNNER
// =============================================================================

// Runner checks Python sources for stale docstrings.
//
// Description:
//
//	Holds the run-wide configuration: extraction strategy, rule flags,
//	optional changed-lines filter and worker count. It creates a fresh
//	extractor for every file so no mutable state is shared between
//	concurrently checked files.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	strategy    signature.Strategy
	flags       rules.Flags
	filter      LineFilter
	workers     int
	maxFileSize int64
	logger      *slog.Logger
	engine      *rules.Engine
	cache       ResultCache
}

// Option configures the Runner.
type Option func(*Runner)

// WithStrategy selects the extraction strategy.
func WithStrategy(s signature.Strategy) Option {
	return func(r *Runner) {
		r.strategy = s
	}
}

// WithFlags sets the rule flags.
func WithFlags(flags rules.Flags) Option {
	return func(r *Runner) {
		r.flags = flags
	}
}

// WithChangedLines restricts checks to functions accepted by filter.
// A nil filter checks every function.
func WithChangedLines(filter LineFilter) Option {
	return func(r *Runner) {
		r.filter = filter
	}
}

// WithWorkers bounds the number of files checked concurrently. Zero or a
// negative value selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithMaxFileSize sets the largest source the tree strategy accepts.
func WithMaxFileSize(bytes int64) Option {
	return func(r *Runner) {
		r.maxFileSize = bytes
	}
}

// WithCache reuses results of unchanged files. Runs with a changed-lines
// filter bypass the cache.
func WithCache(cache ResultCache) Option {
	return func(r *Runner) {
		r.cache = cache
	}
}

// WithLogger sets the logger for violations and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner.
//
// Inputs:
//
//	opts - Optional configuration options
//
// Outputs:
//
//	*Runner - The configured runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		strategy:    signature.StrategyTree,
		maxFileSize: ast.DefaultMaxFileSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.engine = rules.NewEngine(r.flags, r.logger)
	return r
}

// Strategy returns the configured extraction strategy.
func (r *Runner) Strategy() signature.Strategy {
	return r.strategy
}

// Flags returns the configured rule flags.
func (r *Runner) Flags() rules.Flags {
	return r.flags
}

// Extractor returns a new extractor for strategy configured with the
// runner's options.
func (r *Runner) Extractor(strategy signature.Strategy) signature.Extractor {
	if strategy == signature.StrategyLexer {
		return lexer.NewExtractor(
			lexer.WithSkipVariadic(r.flags.SkipVariadicParams),
			lexer.WithLogger(r.logger),
		)
	}
	return ast.NewTreeExtractor(
		ast.WithSkipVariadic(r.flags.SkipVariadicParams),
		ast.WithMaxFileSize(r.maxFileSize),
		ast.WithLogger(r.logger),
	)
}

func (r *Runner) workerCount() int {
	if r.workers > 0 {
		return r.workers
	}
	return runtime.GOMAXPROCS(0)
}

// =============================================================================
// SINGLE FILE
// =============================================================================

// CheckSource checks one in-memory source with the configured strategy.
//
// Description:
//
//	Extracts every function, applies the changed-lines filter, and runs
//	the rule engine on the rest. Violations are collected in source order.
//
// Inputs:
//
//	ctx - Context for cancellation
//	source - Whole-file Python source
//	path - Label for diagnostics and the changed-lines filter
//
// Outputs:
//
//	*FileResult - Never nil. Holds violations found before any failure.
//	error - ErrScanFailed wrapping the extractor error, or a context error
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) CheckSource(ctx context.Context, source []byte, path string) (*FileResult, error) {
	return r.CheckSourceWith(ctx, source, path, r.strategy)
}

// CheckSourceWith is CheckSource with an explicit strategy.
func (r *Runner) CheckSourceWith(ctx context.Context, source []byte, path string, strategy signature.Strategy) (*FileResult, error) {
	ctx, span := startCheckSpan(ctx, path, strategy)
	defer span.End()
	start := time.Now()

	res := &FileResult{Path: path, Strategy: strategy, Violations: make([]Violation, 0)}
	src := string(source)

	err := r.Extractor(strategy).Extract(ctx, src, func(sig *signature.Signature) error {
		if r.filter != nil && !r.filter.Overlaps(path, sig.Line, max(sig.Line, sig.EndLine)) {
			res.Skipped++
			return nil
		}

		res.Functions++
		if v := r.engine.Check(path, sig, src); !v.Compliant {
			res.Violations = append(res.Violations, newViolation(path, sig, v))
		}
		return nil
	})
	res.Duration = time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.fail(ctxErr)
			recordCheckMetrics(ctx, strategy, res.Duration, res, false)
			return res, ctxErr
		}

		res.fail(fmt.Errorf("%w: %s: %w", ErrScanFailed, path, err))
		r.logScanFailure(path, strategy, err)
		span.RecordError(res.Err)
		recordCheckMetrics(ctx, strategy, res.Duration, res, false)
		return res, res.Err
	}

	setCheckSpanResult(span, res)
	recordCheckMetrics(ctx, strategy, res.Duration, res, true)

	r.logger.Debug("check completed",
		slog.String("path", path),
		slog.String("strategy", strategy.String()),
		slog.Duration("duration", res.Duration),
		slog.Int("functions", res.Functions),
		slog.Int("violations", len(res.Violations)),
	)

	return res, nil
}

// CheckFile reads and checks one file.
func (r *Runner) CheckFile(ctx context.Context, path string) (*FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		res := &FileResult{Path: path, Strategy: r.strategy, Violations: make([]Violation, 0)}
		res.fail(fmt.Errorf("reading %s: %w", path, err))
		r.logger.Warn("file unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return res, res.Err
	}

	if r.cache == nil || r.filter != nil {
		return r.CheckSource(ctx, content, path)
	}

	key := r.cacheKey(path, content)
	if res, ok := r.cache.Load(ctx, key); ok {
		res.Path = path
		res.Cached = true
		recordCacheHit(ctx, true)
		r.logger.Debug("cache hit", slog.String("path", path))
		for i := range res.Violations {
			v := &res.Violations[i]
			r.engine.Report(path, v.Function, v.Line, v.Verdict())
		}
		return res, nil
	}
	recordCacheHit(ctx, false)

	res, err := r.CheckSource(ctx, content, path)
	if err == nil {
		r.cache.Store(ctx, key, res)
	}
	return res, err
}

// cacheKey identifies a check of content under the runner's settings.
func (r *Runner) cacheKey(path string, content []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%+v\x00%d\x00", cacheVersion, r.strategy, r.flags, len(path))
	h.Write([]byte(path))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// logScanFailure separates broken invariants from ordinary structural
// failures in the logs.
func (r *Runner) logScanFailure(path string, strategy signature.Strategy, err error) {
	if ast.IsInvariant(err) {
		r.logger.Error("scan aborted",
			slog.String("path", path),
			slog.String("strategy", strategy.String()),
			slog.String("class", "invariant"),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Warn("scan failed",
		slog.String("path", path),
		slog.String("strategy", strategy.String()),
		slog.String("class", "structural"),
		slog.String("error", err.Error()),
	)
}

// =============================================================================
// MULTIPLE FILES
// =============================================================================

// CheckFiles checks paths on a bounded worker pool.
//
// Description:
//
//	Each file is read and checked independently. A read or scan failure
//	is recorded in that file's result and counted; it never stops other
//	files. Only cancellation of ctx ends the run early.
//
// Inputs:
//
//	ctx - Context for cancellation
//	paths - Files to check
//
// Outputs:
//
//	*RunResult - Per-file results in input order and aggregate counts
//	error - Non-nil only when ctx was canceled
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) CheckFiles(ctx context.Context, paths []string) (*RunResult, error) {
	ctx, span := tracer.Start(ctx, "Runner.CheckFiles")
	defer span.End()
	start := time.Now()

	results := make([]*FileResult, len(paths))
	var functions, violations, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workerCount())

	for i, path := range paths {
		g.Go(func() error {
			res, err := r.CheckFile(gctx, path)
			results[i] = res
			functions.Add(int64(res.Functions))
			violations.Add(int64(len(res.Violations)))
			if err != nil {
				failures.Add(1)
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
			return nil
		})
	}

	err := g.Wait()

	run := &RunResult{
		Files:      results,
		Functions:  functions.Load(),
		Violations: violations.Load(),
		Failures:   failures.Load(),
		Duration:   time.Since(start),
	}

	r.logger.Info("run completed",
		slog.Int("files", len(paths)),
		slog.Int64("functions", run.Functions),
		slog.Int64("violations", run.Violations),
		slog.Int64("failures", run.Failures),
		slog.Duration("duration", run.Duration),
	)

	if err != nil {
		return run, err
	}
	return run, nil
}
