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
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/staledoc/services/staledoc/rules"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// ErrScanFailed wraps every extraction failure attached to a file.
var ErrScanFailed = errors.New("scan failed")

// =============================================================================
// VIOLATION
// =============================================================================

// Violation is one non-compliant function.
//
// Thread Safety: Immutable after creation.
type Violation struct {
	// Path is the file containing the function.
	Path string `json:"path"`

	// Function is the function name, or "line N" when unknown.
	Function string `json:"function"`

	// Line is the 1-indexed line of the `def` keyword.
	Line int `json:"line"`

	// Column is the 1-indexed column of the `def` keyword.
	Column int `json:"column"`

	// Rule is the failed rule.
	Rule rules.Rule `json:"rule"`

	// Message is the human-readable diagnostic.
	Message string `json:"message"`

	// FunctionParams are the declared parameters, set for args mismatches.
	FunctionParams []signature.Parameter `json:"function_params,omitempty"`

	// DocParams are the documented parameters, set for args mismatches.
	DocParams []signature.Parameter `json:"doc_params,omitempty"`
}

// Verdict rebuilds the rule verdict v was created from.
func (v *Violation) Verdict() rules.Verdict {
	return rules.Verdict{
		Rule:       v.Rule,
		Message:    v.Message,
		Function:   v.FunctionParams,
		Documented: v.DocParams,
	}
}

// Location returns a formatted location string (path:line:col).
func (v *Violation) Location() string {
	return fmt.Sprintf("%s:%d:%d", v.Path, v.Line, v.Column)
}

func newViolation(path string, sig *signature.Signature, v rules.Verdict) Violation {
	return Violation{
		Path:           path,
		Function:       sig.Location.String(),
		Line:           sig.Line,
		Column:         sig.Column + 1,
		Rule:           v.Rule,
		Message:        v.Message,
		FunctionParams: v.Function,
		DocParams:      v.Documented,
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// FileResult is the outcome of checking one file.
//
// Thread Safety: Immutable after creation by the runner.
type FileResult struct {
	// Path labels the file in diagnostics.
	Path string `json:"path"`

	// Strategy is the extraction strategy used.
	Strategy signature.Strategy `json:"strategy"`

	// Functions is the number of functions checked.
	Functions int `json:"functions"`

	// Skipped is the number of functions outside the changed lines.
	Skipped int `json:"skipped,omitempty"`

	// Violations are the non-compliant functions in source order.
	Violations []Violation `json:"violations"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration"`

	// Cached is set when the result was served from a ResultCache.
	Cached bool `json:"cached,omitempty"`

	// Err is the read or scan failure, if any. Violations found before the
	// failure are kept.
	Err error `json:"-"`

	// Error mirrors Err for JSON output.
	Error string `json:"error,omitempty"`
}

// Compliant reports whether the file was fully checked without violations.
func (r *FileResult) Compliant() bool {
	return r.Err == nil && len(r.Violations) == 0
}

func (r *FileResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

// RunResult aggregates a multi-file run.
type RunResult struct {
	// Files holds one result per input path, in input order.
	Files []*FileResult `json:"files"`

	// Functions is the total number of functions checked.
	Functions int64 `json:"functions"`

	// Violations is the total number of non-compliant functions.
	Violations int64 `json:"violations"`

	// Failures is the number of files that could not be read or scanned.
	Failures int64 `json:"failures"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// OK reports whether every function of every file is compliant.
func (r *RunResult) OK() bool {
	return r.Violations == 0 && r.Failures == 0
}
