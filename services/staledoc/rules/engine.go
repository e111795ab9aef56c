// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"log/slog"

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// Engine checks functions against fixed flags and logs every non-compliant
// verdict.
//
// Thread Safety: Safe for concurrent use. Engine holds no mutable state.
type Engine struct {
	flags  Flags
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger selects slog.Default().
func NewEngine(flags Flags, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{flags: flags, logger: logger}
}

// Flags returns the engine's flags.
func (e *Engine) Flags() Flags {
	return e.flags
}

// Check runs the decision table for one function of the file at path.
// The path labels diagnostics only.
func (e *Engine) Check(path string, sig *signature.Signature, source string) Verdict {
	v := Check(sig, source, e.flags)
	if v.Compliant {
		return v
	}

	e.Report(path, sig.Location.String(), sig.Line, v)
	return v
}

// Report logs v at ERROR for the named function at line. Check calls it for
// every violation it finds; callers replaying stored results call it
// directly so the logs match a fresh check.
func (e *Engine) Report(path, function string, line int, v Verdict) {
	attrs := []any{
		slog.String("path", path),
		slog.String("function", function),
		slog.Int("line", line),
		slog.String("rule", v.Rule.String()),
	}
	if v.Rule == RuleArgsMismatch {
		attrs = append(attrs,
			slog.String("function_params", signature.FormatParams(v.Function)),
			slog.String("docstring_params", signature.FormatParams(v.Documented)),
		)
	}
	e.logger.Error(v.Rule.Summary(), attrs...)
}
