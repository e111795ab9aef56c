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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/staledoc/services/staledoc/discovery"
	"github.com/AleutianAI/staledoc/services/staledoc/lint"
	"github.com/AleutianAI/staledoc/services/staledoc/report"
	"github.com/AleutianAI/staledoc/services/staledoc/watch"
)

func newWatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Check once, then re-check Python files as they change",
		Args:  cobra.ArbitraryArgs,
		RunE:  a.runWatch,
	}
	cmd.Flags().DurationVar(&a.debounce, "debounce", 0, "quiet period before re-checking (default from config, 200ms)")
	cmd.Flags().StringVarP(&a.format, "format", "f", "text", "output format: text or json")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 0 {
		args = []string{"."}
	}
	if cmd.Flags().Changed("debounce") {
		a.cfg.Watch.Debounce = a.debounce
	}

	format, err := report.ParseFormat(a.format)
	if err != nil {
		return usageError(err)
	}
	color, err := report.ParseColorMode(a.cfg.Color)
	if err != nil {
		return usageError(err)
	}
	reporter := report.New(a.stdout, format, color)

	walker, err := a.newWalker()
	if err != nil {
		return usageError(err)
	}
	runner, err := a.newRunner(nil)
	if err != nil {
		return usageError(err)
	}

	files, err := walker.Collect(ctx, args)
	if err != nil {
		if errors.Is(err, discovery.ErrPathNotFound) || errors.Is(err, discovery.ErrBadPattern) {
			return usageError(err)
		}
		return &exitError{code: exitViolations, err: err}
	}
	run, err := runner.CheckFiles(ctx, files)
	if err != nil {
		// Interrupted before the first report.
		return nil
	}
	if err := reporter.Run(run); err != nil {
		return &exitError{code: exitViolations, err: err}
	}

	w, err := watch.New(args, a.recheck(runner, reporter),
		watch.WithDebounce(a.cfg.Watch.Debounce),
		watch.WithFilter(selector(walker, args)),
		watch.WithLogger(a.logger),
	)
	if err != nil {
		return usageError(err)
	}
	return w.Run(ctx)
}

// recheck reports each changed file. Files that became compliant print
// nothing in text mode.
func (a *app) recheck(runner *lint.Runner, reporter *report.Reporter) watch.Handler {
	return func(ctx context.Context, paths []string) {
		for _, p := range paths {
			res, err := runner.CheckFile(ctx, displayPath(p))
			if err != nil && ctx.Err() != nil {
				return
			}
			if err := reporter.File(res); err != nil {
				a.logger.Warn("report failed", slog.String("error", err.Error()))
			}
		}
	}
}

// selector applies the include and exclude globs to watched files, relative
// to the directory root containing them.
func selector(walker *discovery.Walker, roots []string) func(string) bool {
	var dirs []string
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			dirs = append(dirs, abs)
		}
	}
	return func(p string) bool {
		for _, d := range dirs {
			rel, err := filepath.Rel(d, p)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			return walker.Selects(rel)
		}
		return false
	}
}

// displayPath shortens p relative to the working directory when possible.
func displayPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
