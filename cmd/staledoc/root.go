// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/staledoc/services/staledoc/cache"
	"github.com/AleutianAI/staledoc/services/staledoc/config"
	"github.com/AleutianAI/staledoc/services/staledoc/discovery"
	"github.com/AleutianAI/staledoc/services/staledoc/lint"
	"github.com/AleutianAI/staledoc/services/staledoc/telemetry"
)

// Exit codes.
const (
	exitOK         = 0
	exitViolations = 1
	exitUsage      = 2
)

// exitError carries a process exit code. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app holds the flag values and the resources built from them for one
// invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Persistent flags.
	configPath      string
	strategy        string
	docstringStyle  string
	breakOnEmpty    bool
	succeedNoDoc    bool
	succeedNoArgs   bool
	succeedUntyped  bool
	skipVariadic    bool
	workers         int
	maxFileSize     int64
	include         []string
	exclude         []string
	color           string
	logLevel        string
	logFormat       string
	cacheDir        string
	noCache         bool
	traceExporter   string
	metricsExporter string
	metricsFile     string

	// Command flags.
	format   string
	diffPath string
	addr     string
	debounce time.Duration

	// Resolved in setup.
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Provider
	cache     *cache.Store
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()

	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "staledoc: %v\n", ee.err)
		}
		return ee.code
	}
	// Flag and argument errors from cobra.
	fmt.Fprintf(stderr, "staledoc: %v\nRun 'staledoc --help' for usage.\n", err)
	return exitUsage
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "staledoc [paths...]",
		Short: "Find Python docstrings that no longer match their function signatures",
		Long: `staledoc checks that every Python function documents exactly the
parameters it declares, in Google or NumPy docstring style.

With no subcommand it behaves like "staledoc check".`,
		Args:              cobra.ArbitraryArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runCheck,
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "config file (default: nearest "+config.FileName+")")
	f.StringVar(&a.strategy, "strategy", "", "signature extraction: tree or lexer")
	f.StringVar(&a.docstringStyle, "docstring-style", "", "docstring convention: auto, google or numpy")
	f.BoolVar(&a.breakOnEmpty, "break-on-empty-line", false, "end the args section at its first blank line")
	f.BoolVar(&a.succeedNoDoc, "succeed-if-no-docstring", false, "accept functions without a docstring")
	f.BoolVar(&a.succeedNoArgs, "succeed-if-no-args-section", false, "accept docstrings without an args section")
	f.BoolVar(&a.succeedUntyped, "succeed-if-docstring-untyped", false, "ignore types missing from either side")
	f.BoolVar(&a.skipVariadic, "skip-variadic-params", false, "ignore *args and **kwargs")
	f.IntVarP(&a.workers, "workers", "j", 0, "files checked concurrently (0: all CPUs)")
	f.Int64Var(&a.maxFileSize, "max-file-size", 0, "largest source accepted by the tree strategy, in bytes")
	f.StringSliceVar(&a.include, "include", nil, "globs selecting files in directories")
	f.StringSliceVar(&a.exclude, "exclude", nil, "globs removing files and directories")
	f.StringVar(&a.color, "color", "", "colored output: auto, always or never")
	f.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error or off")
	f.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&a.cacheDir, "cache-dir", "", "result cache directory")
	f.BoolVar(&a.noCache, "no-cache", false, "disable the result cache")
	f.StringVar(&a.traceExporter, "trace", "", "span exporter: none, stdout or otlp")
	f.StringVar(&a.metricsExporter, "metrics-exporter", "", "metric exporter: prometheus, stdout or none")
	f.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	addCheckFlags(root, a)
	root.AddCommand(
		newCheckCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
		newVersionCommand(a),
	)
	return root
}

// =============================================================================
// SETUP
// =============================================================================

// setup resolves configuration, logging, telemetry and the cache.
//
// Precedence: command-line flags, then the project config file, then the
// embedded defaults.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(a.stderr, a.logLevel, a.logFormat)
	if err != nil {
		return usageError(err)
	}
	a.logger = logger
	slog.SetDefault(logger)

	if cmd.Name() == "version" {
		return nil
	}

	path := a.configPath
	if path == "" {
		path = config.Find(configSearchDir(args))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return usageError(err)
	}
	if err := a.applyFlags(cmd, cfg); err != nil {
		return usageError(err)
	}
	a.cfg = cfg

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Output = a.stderr
	if cmd.Flags().Changed("trace") {
		tcfg.TraceExporter = a.traceExporter
	}
	tcfg.MetricExporter = a.metricsExporter
	if tcfg.MetricExporter == "" {
		tcfg.MetricExporter = "none"
		if cmd.Name() == "serve" || a.metricsFile != "" {
			tcfg.MetricExporter = "prometheus"
		}
	}
	p, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return usageError(err)
	}
	a.telemetry = p

	if cfg.Cache.Dir != "" && !a.noCache {
		ccfg := cache.DefaultConfig(cfg.Cache.Dir)
		ccfg.TTL = cfg.Cache.TTL
		ccfg.Logger = logger
		store, err := cache.Open(ccfg)
		if err != nil {
			logger.Warn("result cache unavailable",
				slog.String("dir", cfg.Cache.Dir),
				slog.String("error", err.Error()),
			)
		} else {
			a.cache = store
		}
	}

	logger.Debug("configuration resolved",
		slog.String("config", path),
		slog.String("strategy", cfg.Strategy),
		slog.String("docstring_style", cfg.DocstringStyle),
		slog.Int("workers", cfg.Workers),
	)
	return nil
}

// applyFlags overlays explicitly set flags onto cfg and re-validates it.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("strategy", func() { cfg.Strategy = a.strategy })
	set("docstring-style", func() { cfg.DocstringStyle = a.docstringStyle })
	set("break-on-empty-line", func() { cfg.BreakOnEmptyLine = a.breakOnEmpty })
	set("succeed-if-no-docstring", func() { cfg.SucceedIfNoDocstring = a.succeedNoDoc })
	set("succeed-if-no-args-section", func() { cfg.SucceedIfNoArgsSection = a.succeedNoArgs })
	set("succeed-if-docstring-untyped", func() { cfg.SucceedIfDocstringUntyped = a.succeedUntyped })
	set("skip-variadic-params", func() { cfg.SkipVariadicParams = a.skipVariadic })
	set("workers", func() { cfg.Workers = a.workers })
	set("max-file-size", func() { cfg.MaxFileSize = a.maxFileSize })
	set("include", func() { cfg.Include = a.include })
	set("exclude", func() { cfg.Exclude = a.exclude })
	set("color", func() { cfg.Color = a.color })
	set("cache-dir", func() { cfg.Cache.Dir = a.cacheDir })

	return cfg.Validate()
}

// configSearchDir is where the project config search starts: the first
// path argument, or the working directory.
func configSearchDir(args []string) string {
	if len(args) == 0 {
		return "."
	}
	info, err := os.Stat(args[0])
	if err == nil && info.IsDir() {
		return args[0]
	}
	return filepath.Dir(args[0])
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	if strings.EqualFold(level, "off") {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

// =============================================================================
// SHARED BUILDERS
// =============================================================================

// newRunner builds a runner from the resolved configuration.
func (a *app) newRunner(filter lint.LineFilter) (*lint.Runner, error) {
	strategy, err := a.cfg.StrategyValue()
	if err != nil {
		return nil, err
	}
	flags, err := a.cfg.Flags()
	if err != nil {
		return nil, err
	}

	opts := []lint.Option{
		lint.WithStrategy(strategy),
		lint.WithFlags(flags),
		lint.WithWorkers(a.cfg.Workers),
		lint.WithMaxFileSize(a.cfg.MaxFileSize),
		lint.WithLogger(a.logger),
	}
	if filter != nil {
		opts = append(opts, lint.WithChangedLines(filter))
	}
	if a.cache != nil {
		opts = append(opts, lint.WithCache(a.cache))
	}
	return lint.NewRunner(opts...), nil
}

func (a *app) newWalker() (*discovery.Walker, error) {
	return discovery.NewWalker(a.cfg.Include, a.cfg.Exclude, discovery.WithLogger(a.logger))
}

// close releases everything setup acquired. Metrics are written last so
// they include the whole run.
func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing result cache", slog.String("error", err.Error()))
		}
	}
	if a.telemetry == nil {
		return
	}
	if a.metricsFile != "" {
		if err := a.telemetry.WriteTextfile(a.metricsFile); err != nil {
			fmt.Fprintf(a.stderr, "staledoc: %v\n", err)
		}
	}
	if err := a.telemetry.Shutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
	}
}
