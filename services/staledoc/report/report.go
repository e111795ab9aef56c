// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders check results for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/AleutianAI/staledoc/services/staledoc/lint"
)

// =============================================================================
// Format & Color
// =============================================================================

// Format selects the output encoding.
type Format int

const (
	// FormatText prints one line per violation.
	FormatText Format = iota

	// FormatJSON prints the whole run as one JSON document.
	FormatJSON
)

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// String returns the format name.
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ColorMode controls ANSI styling of text output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode parses auto, always or never.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(s)); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return ColorAuto, fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
	}
}

// useColor resolves mode against w. Auto enables color only for terminals
// and honours NO_COLOR.
func useColor(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// =============================================================================
// Styles
// =============================================================================

var (
	colorError   = lipgloss.Color("#E74C3C")
	colorWarning = lipgloss.Color("#F4D03F")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorAccent  = lipgloss.Color("#20B9B4")
)

type styles struct {
	location lipgloss.Style
	code     lipgloss.Style
	function lipgloss.Style
	failure  lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	problem  lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.TrueColor)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		location: r.NewStyle().Bold(true),
		code:     r.NewStyle().Foreground(colorError).Bold(true),
		function: r.NewStyle().Foreground(colorAccent),
		failure:  r.NewStyle().Foreground(colorWarning),
		muted:    r.NewStyle().Foreground(colorMuted),
		success:  r.NewStyle().Foreground(colorSuccess).Bold(true),
		problem:  r.NewStyle().Foreground(colorError).Bold(true),
	}
}

// =============================================================================
// Reporter
// =============================================================================

// Reporter writes results to one writer.
//
// Description:
//
//	Text output has one line per violation,
//	`path:line:col: CODE function: message`, one line per failed file and
//	a closing summary. JSON output is the RunResult document.
//
// Thread Safety: Not safe for concurrent use.
type Reporter struct {
	w      io.Writer
	format Format
	styles styles
}

// New creates a reporter for w.
func New(w io.Writer, format Format, mode ColorMode) *Reporter {
	return &Reporter{
		w:      w,
		format: format,
		styles: newStyles(w, format == FormatText && useColor(w, mode)),
	}
}

// Run writes a whole run.
func (r *Reporter) Run(run *lint.RunResult) error {
	if r.format == FormatJSON {
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	for _, res := range run.Files {
		if res == nil {
			continue
		}
		if err := r.file(res); err != nil {
			return err
		}
	}
	return r.summary(run)
}

// File writes the result of one file. Compliant files produce no output
// in text mode.
func (r *Reporter) File(res *lint.FileResult) error {
	if r.format == FormatJSON {
		return json.NewEncoder(r.w).Encode(res)
	}
	return r.file(res)
}

func (r *Reporter) file(res *lint.FileResult) error {
	s := r.styles
	for i := range res.Violations {
		v := &res.Violations[i]
		_, err := fmt.Fprintf(r.w, "%s %s %s %s\n",
			s.location.Render(v.Location()+":"),
			s.code.Render(v.Rule.String()),
			s.function.Render(v.Function+":"),
			v.Message,
		)
		if err != nil {
			return err
		}
	}
	if res.Err != nil {
		_, err := fmt.Fprintf(r.w, "%s %s %s\n",
			s.location.Render(res.Path+":"),
			s.failure.Render("error:"),
			res.Err.Error(),
		)
		return err
	}
	return nil
}

func (r *Reporter) summary(run *lint.RunResult) error {
	s := r.styles
	files := len(run.Files)
	if run.OK() {
		_, err := fmt.Fprintf(r.w, "%s %s\n",
			s.success.Render("ok:"),
			s.muted.Render(fmt.Sprintf("%d functions in %d files, no stale docstrings", run.Functions, files)),
		)
		return err
	}

	parts := []string{plural(run.Violations, "stale docstring")}
	if run.Failures > 0 {
		parts = append(parts, plural(run.Failures, "file failure"))
	}
	_, err := fmt.Fprintf(r.w, "%s %s %s\n",
		s.problem.Render("found"),
		strings.Join(parts, " and "),
		s.muted.Render(fmt.Sprintf("(%d functions in %d files)", run.Functions, files)),
	)
	return err
}

func plural(n int64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
