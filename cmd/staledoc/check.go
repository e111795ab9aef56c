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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/staledoc/services/staledoc/diffscope"
	"github.com/AleutianAI/staledoc/services/staledoc/discovery"
	"github.com/AleutianAI/staledoc/services/staledoc/lint"
	"github.com/AleutianAI/staledoc/services/staledoc/report"
	"github.com/AleutianAI/staledoc/services/staledoc/watch"
)

func newCheckCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Check files and directories (the default command)",
		Long: `Check every Python file under the given paths, or the current
directory when none are given.

With --diff, only functions whose def line falls inside a changed hunk
are checked. If no paths are given the changed .py files are used.`,
		Example: `  staledoc check src tests/helpers.py
  git diff -U0 main | staledoc check --diff -
  staledoc check --format json --strategy lexer .`,
		Args: cobra.ArbitraryArgs,
		RunE: a.runCheck,
	}
	addCheckFlags(cmd, a)
	return cmd
}

func addCheckFlags(cmd *cobra.Command, a *app) {
	cmd.Flags().StringVarP(&a.format, "format", "f", "text", "output format: text or json")
	cmd.Flags().StringVar(&a.diffPath, "diff", "", "unified diff limiting the check to changed lines (\"-\" for stdin)")
}

func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := report.ParseFormat(a.format)
	if err != nil {
		return usageError(err)
	}
	color, err := report.ParseColorMode(a.cfg.Color)
	if err != nil {
		return usageError(err)
	}

	var filter lint.LineFilter
	paths := args
	if a.diffPath != "" {
		changes, err := diffscope.Load(a.diffPath)
		if err != nil {
			return usageError(err)
		}
		filter = changes
		if len(paths) == 0 {
			paths = changedPythonFiles(changes)
			if len(paths) == 0 {
				a.logger.Info("diff touches no Python files", slog.String("diff", a.diffPath))
			}
		}
	} else if len(paths) == 0 {
		paths = []string{"."}
	}

	walker, err := a.newWalker()
	if err != nil {
		return usageError(err)
	}
	files, err := walker.Collect(ctx, paths)
	if err != nil {
		if errors.Is(err, discovery.ErrPathNotFound) || errors.Is(err, discovery.ErrBadPattern) {
			return usageError(err)
		}
		return &exitError{code: exitViolations, err: err}
	}

	runner, err := a.newRunner(filter)
	if err != nil {
		return usageError(err)
	}
	run, err := runner.CheckFiles(ctx, files)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &exitError{code: exitViolations, err: errors.New("interrupted")}
		}
		return &exitError{code: exitViolations, err: err}
	}

	if err := report.New(a.stdout, format, color).Run(run); err != nil {
		return &exitError{code: exitViolations, err: err}
	}
	if !run.OK() {
		return &exitError{code: exitViolations}
	}
	return nil
}

// changedPythonFiles lists the Python files a diff leaves in place.
func changedPythonFiles(changes *diffscope.Changes) []string {
	var files []string
	for _, f := range changes.Files() {
		if !watch.IsPython(f) {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			continue
		}
		files = append(files, f)
	}
	return files
}
