// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules decides whether a function's docstring still documents its
// signature.
package rules

import (
	"fmt"

	"github.com/AleutianAI/staledoc/services/staledoc/docstring"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// =============================================================================
// FLAGS
// =============================================================================

// Flags are the run-wide switches of the rule engine. They are fixed for a
// run and passed by value.
type Flags struct {
	// BreakOnEmptyLine ends an args section at its first blank line.
	BreakOnEmptyLine bool `json:"break_on_empty_line"`

	// SucceedIfNoDocstring accepts functions without a docstring.
	SucceedIfNoDocstring bool `json:"succeed_if_no_docstring"`

	// SucceedIfNoArgsSection accepts docstrings without an args section.
	SucceedIfNoArgsSection bool `json:"succeed_if_no_args_section"`

	// SucceedIfDocstringUntyped compares types only where both sides have one.
	SucceedIfDocstringUntyped bool `json:"succeed_if_docstring_untyped"`

	// SkipVariadicParams drops `*args` and `**kwargs` on both sides.
	SkipVariadicParams bool `json:"skip_variadic_params"`

	// Style selects the docstring convention.
	Style docstring.Style `json:"docstring_style"`
}

// parseOptions derives the docstring parser options.
func (f Flags) parseOptions() docstring.Options {
	return docstring.Options{
		BreakOnEmptyLine: f.BreakOnEmptyLine,
		SkipVariadic:     f.SkipVariadicParams,
	}
}

// =============================================================================
// RULES & VERDICTS
// =============================================================================

// Rule identifies which check a function failed.
type Rule int

const (
	// RuleNone is the rule of a compliant verdict.
	RuleNone Rule = iota

	// RuleMissingDocstring: the function has no docstring.
	RuleMissingDocstring

	// RuleMissingArgsSection: the docstring has no parseable args section.
	RuleMissingArgsSection

	// RuleArgsMismatch: documented and declared parameters differ.
	RuleArgsMismatch
)

// String returns the diagnostic code of the rule.
func (r Rule) String() string {
	switch r {
	case RuleMissingDocstring:
		return "SD100"
	case RuleMissingArgsSection:
		return "SD101"
	case RuleArgsMismatch:
		return "SD102"
	default:
		return ""
	}
}

// Summary returns the short diagnostic text of the rule.
func (r Rule) Summary() string {
	switch r {
	case RuleMissingDocstring:
		return "docstring missing"
	case RuleMissingArgsSection:
		return "args section missing"
	case RuleArgsMismatch:
		return "args mismatch"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rule) UnmarshalText(text []byte) error {
	switch string(text) {
	case "":
		*r = RuleNone
	case "SD100":
		*r = RuleMissingDocstring
	case "SD101":
		*r = RuleMissingArgsSection
	case "SD102":
		*r = RuleArgsMismatch
	default:
		return fmt.Errorf("unknown rule code %q", text)
	}
	return nil
}

// Verdict is the outcome of checking one function.
//
// Function and Documented are only set for RuleArgsMismatch.
type Verdict struct {
	Compliant  bool
	Rule       Rule
	Message    string
	Function   []signature.Parameter
	Documented []signature.Parameter
}

var compliant = Verdict{Compliant: true}

// =============================================================================
// CHECKS
// =============================================================================

// Check applies the decision table to one extracted function.
//
// Description:
//
//	Evaluated in order:
//	  1. No docstring: compliant iff SucceedIfNoDocstring.
//	  2. No parseable args section: compliant iff SucceedIfNoArgsSection.
//	  3. Documented and declared lists are compared with Compare, lenient
//	     iff SucceedIfDocstringUntyped.
//
// Inputs:
//   - sig: Extracted signature. Not retained.
//   - source: The source sig was extracted from.
//   - flags: Run-wide flags.
//
// Outputs:
//   - Verdict: Never has Compliant set together with a rule.
func Check(sig *signature.Signature, source string, flags Flags) Verdict {
	doc, ok := sig.DocstringText(source)
	return CheckDocstring(sig.Params, doc, ok, flags)
}

// CheckDocstring applies the decision table to a parameter list and the
// raw docstring literal, delimiters included.
func CheckDocstring(params []signature.Parameter, doc string, hasDocstring bool, flags Flags) Verdict {
	if !hasDocstring {
		if flags.SucceedIfNoDocstring {
			return compliant
		}
		return Verdict{Rule: RuleMissingDocstring, Message: RuleMissingDocstring.Summary()}
	}

	documented, ok := docstring.Parse(doc, flags.Style, flags.parseOptions())
	if !ok {
		if flags.SucceedIfNoArgsSection {
			return compliant
		}
		return Verdict{Rule: RuleMissingArgsSection, Message: RuleMissingArgsSection.Summary()}
	}

	if Compare(params, documented, flags.SucceedIfDocstringUntyped) {
		return compliant
	}

	function := append([]signature.Parameter(nil), params...)
	return Verdict{
		Rule: RuleArgsMismatch,
		Message: RuleArgsMismatch.Summary() + ": function " + signature.FormatParams(function) +
			", docstring " + signature.FormatParams(documented),
		Function:   function,
		Documented: documented,
	}
}

// Compare reports whether the documented list matches the declared list.
//
// Description:
//
//	Lengths must be equal in both modes. Names must match position by
//	position. Strict mode also requires the same type or the same absence
//	of type at each position. Lenient mode compares types only where both
//	sides carry one.
func Compare(fn, doc []signature.Parameter, lenient bool) bool {
	if len(fn) != len(doc) {
		return false
	}
	for i := range fn {
		a, b := fn[i], doc[i]
		if a.Name != b.Name {
			return false
		}
		if lenient && (!a.HasType || !b.HasType) {
			continue
		}
		if a.HasType != b.HasType || a.Type != b.Type {
			return false
		}
	}
	return true
}
