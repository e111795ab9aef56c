// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint runs the stale-docstring check over sources and files.
//
// The runner wires an extraction strategy to the rule engine and collects
// per-function violations:
//
//	source → Extractor (tree | lexer) → [diff filter] → rules.Engine → FileResult
//
// Multi-file runs use a bounded worker pool. Files share nothing but two
// atomic counters, and one file's scan failure never affects another file's
// result.
//
// # Usage
//
//	runner := lint.NewRunner(
//	    lint.WithStrategy(signature.StrategyTree),
//	    lint.WithFlags(rules.Flags{SkipVariadicParams: true}),
//	)
//
//	result, err := runner.CheckFiles(ctx, []string{"pkg/mod.py"})
//	if err != nil {
//	    // Context canceled
//	}
//	if !result.OK() {
//	    // At least one violation or file failure
//	}
//
// # Thread Safety
//
// Runner is safe for concurrent use.
package lint
