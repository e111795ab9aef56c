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
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/staledoc/services/staledoc/docstring"
	"github.com/AleutianAI/staledoc/services/staledoc/lexer"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

var (
	xInt = signature.Typed("x", "int")
	yStr = signature.Typed("y", "str")
	x    = signature.Untyped("x")
	y    = signature.Untyped("y")
)

func strict() Flags {
	return Flags{}
}

func lenient() Flags {
	return Flags{SucceedIfDocstringUntyped: true}
}

func TestCheckDocstring_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		params    []signature.Parameter
		doc       string
		flags     Flags
		compliant bool
		rule      Rule
	}{
		{
			name:      "A strict",
			params:    []signature.Parameter{xInt, y},
			doc:       "\"\"\"D.\n\nArgs:\n    x (int): d.\n    y: d.\n\"\"\"",
			flags:     strict(),
			compliant: true,
		},
		{
			name:      "A lenient",
			params:    []signature.Parameter{xInt, y},
			doc:       "\"\"\"D.\n\nArgs:\n    x (int): d.\n    y: d.\n\"\"\"",
			flags:     lenient(),
			compliant: true,
		},
		{
			name:   "B missing parameter strict",
			params: []signature.Parameter{x, y},
			doc:    "\"\"\"D.\n\nArgs:\n    y: d.\n\"\"\"",
			flags:  strict(),
			rule:   RuleArgsMismatch,
		},
		{
			name:   "B missing parameter lenient",
			params: []signature.Parameter{x, y},
			doc:    "\"\"\"D.\n\nArgs:\n    y: d.\n\"\"\"",
			flags:  lenient(),
			rule:   RuleArgsMismatch,
		},
		{
			name:   "surplus documented parameter lenient",
			params: []signature.Parameter{x},
			doc:    "\"\"\"D.\n\nArgs:\n    x: d.\n    y: d.\n\"\"\"",
			flags:  lenient(),
			rule:   RuleArgsMismatch,
		},
		{
			name:   "C order strict",
			params: []signature.Parameter{xInt, yStr},
			doc:    "\"\"\"D.\n\nArgs:\n    y (str): d.\n    x (int): d.\n\"\"\"",
			flags:  strict(),
			rule:   RuleArgsMismatch,
		},
		{
			name:   "C order lenient",
			params: []signature.Parameter{xInt, yStr},
			doc:    "\"\"\"D.\n\nArgs:\n    y (str): d.\n    x (int): d.\n\"\"\"",
			flags:  lenient(),
			rule:   RuleArgsMismatch,
		},
		{
			name:      "D numpy stops at Returns",
			params:    []signature.Parameter{xInt, y},
			doc:       "\"\"\"Hey.\n\nParameters\n----------\nx: int\n    d.\ny\n    d.\n\nReturns\n------\n...\n\"\"\"",
			flags:     Flags{Style: docstring.StyleNumPy},
			compliant: true,
		},
		{
			name:   "type present on one side only strict",
			params: []signature.Parameter{xInt},
			doc:    "\"\"\"D.\n\nArgs:\n    x: d.\n\"\"\"",
			flags:  strict(),
			rule:   RuleArgsMismatch,
		},
		{
			name:      "type present on one side only lenient",
			params:    []signature.Parameter{xInt},
			doc:       "\"\"\"D.\n\nArgs:\n    x: d.\n\"\"\"",
			flags:     lenient(),
			compliant: true,
		},
		{
			name:   "differing types lenient",
			params: []signature.Parameter{xInt},
			doc:    "\"\"\"D.\n\nArgs:\n    x (str): d.\n\"\"\"",
			flags:  lenient(),
			rule:   RuleArgsMismatch,
		},
		{
			name:   "args section missing",
			params: []signature.Parameter{x},
			doc:    `"""Just prose."""`,
			flags:  strict(),
			rule:   RuleMissingArgsSection,
		},
		{
			name:      "args section missing tolerated",
			params:    []signature.Parameter{x},
			doc:       `"""Just prose."""`,
			flags:     Flags{SucceedIfNoArgsSection: true},
			compliant: true,
		},
		{
			name:      "empty args section matches no parameters",
			params:    nil,
			doc:       "\"\"\"D.\n\nArgs:\n    \n\"\"\"",
			flags:     strict(),
			compliant: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckDocstring(tt.params, tt.doc, true, tt.flags)
			assert.Equal(t, tt.compliant, v.Compliant)
			assert.Equal(t, tt.rule, v.Rule)
			if tt.rule == RuleArgsMismatch {
				assert.Contains(t, v.Message, "args mismatch")
				assert.Equal(t, tt.params, v.Function)
			}
		})
	}
}

func TestCheckDocstring_ScenarioE(t *testing.T) {
	params := []signature.Parameter{xInt, yStr}

	v := CheckDocstring(params, "", false, Flags{SucceedIfNoDocstring: true})
	assert.True(t, v.Compliant)

	v = CheckDocstring(params, "", false, Flags{})
	assert.False(t, v.Compliant)
	assert.Equal(t, RuleMissingDocstring, v.Rule)
	assert.Equal(t, "docstring missing", v.Message)
}

func TestCheckDocstring_OutOfOrder(t *testing.T) {
	flags := Flags{SucceedIfNoDocstring: true, SucceedIfNoArgsSection: true, SucceedIfDocstringUntyped: true, SkipVariadicParams: true}
	params := []signature.Parameter{xInt, yStr}

	google := func(first, second string) string {
		return `
                """
                Hello!

                Args:
                    ` + first + `: Nope.
                    ` + second + `: Hehehe.
                """`
	}
	numpy := func(first, second string) string {
		return `
                """
                Hello!

                Parameters
                ----------
                ` + first + `
                    Nope.
                ` + second + `
                    Hehehe.

                Returns
                ------
                ...
                """`
	}

	flags.Style = docstring.StyleGoogle
	assert.False(t, CheckDocstring(params, google("y", "x"), true, flags).Compliant)
	assert.True(t, CheckDocstring(params, google("x", "y"), true, flags).Compliant)

	flags.Style = docstring.StyleNumPy
	assert.False(t, CheckDocstring(params, numpy("y", "x"), true, flags).Compliant)
	assert.True(t, CheckDocstring(params, numpy("x", "y"), true, flags).Compliant)
}

func TestCheckDocstring_TypedAgainstUntypedEntry(t *testing.T) {
	doc := `
                """
                Hello!

                Args:
                    x (int): Hehehe.
                    y: Nope.

                Returns:
                    ...
                """`
	params := []signature.Parameter{xInt, yStr}

	flags := Flags{SucceedIfDocstringUntyped: true, SkipVariadicParams: true, Style: docstring.StyleGoogle}
	assert.True(t, CheckDocstring(params, doc, true, flags).Compliant)

	flags.SucceedIfDocstringUntyped = false
	v := CheckDocstring(params, doc, true, flags)
	assert.False(t, v.Compliant)
	assert.Equal(t, []signature.Parameter{xInt, y}, v.Documented)
}

func TestCheck_ScenarioF(t *testing.T) {
	check := func(t *testing.T, src string, skip bool) Verdict {
		t.Helper()
		sigs, err := signature.ExtractAll(context.Background(), lexer.NewExtractor(lexer.WithSkipVariadic(skip)), src)
		require.NoError(t, err)
		require.Len(t, sigs, 1)
		return Check(&sigs[0], src, Flags{SkipVariadicParams: skip})
	}

	undocumented := "def f(x, *args, a=\"v\"):\n    \"\"\"D.\n\n    Args:\n        x: d.\n        a: d.\n    \"\"\"\n"
	documented := "def f(x, *args, a=\"v\"):\n    \"\"\"D.\n\n    Args:\n        x: d.\n        *args: d.\n        a: d.\n    \"\"\"\n"

	assert.True(t, check(t, undocumented, true).Compliant)
	assert.True(t, check(t, documented, true).Compliant)

	v := check(t, undocumented, false)
	assert.False(t, v.Compliant)
	assert.Equal(t, []signature.Parameter{x, signature.Untyped("*args"), signature.Untyped("a")}, v.Function)

	assert.True(t, check(t, documented, false).Compliant)
}

func TestCompare(t *testing.T) {
	assert.True(t, Compare(nil, nil, false))
	assert.True(t, Compare([]signature.Parameter{x, y}, []signature.Parameter{x, y}, false))
	assert.False(t, Compare([]signature.Parameter{x, y}, []signature.Parameter{x}, true))
	assert.False(t, Compare([]signature.Parameter{x}, []signature.Parameter{x, y}, true))
	assert.True(t, Compare([]signature.Parameter{signature.Typed("x", "")}, []signature.Parameter{signature.Typed("x", "")}, false))
	assert.False(t, Compare([]signature.Parameter{signature.Typed("x", "")}, []signature.Parameter{x}, false))
}

func TestRule_Codes(t *testing.T) {
	assert.Equal(t, "SD100", RuleMissingDocstring.String())
	assert.Equal(t, "SD101", RuleMissingArgsSection.String())
	assert.Equal(t, "SD102", RuleArgsMismatch.String())
	assert.Equal(t, "", RuleNone.String())

	for _, r := range []Rule{RuleNone, RuleMissingDocstring, RuleMissingArgsSection, RuleArgsMismatch} {
		text, err := r.MarshalText()
		require.NoError(t, err)
		var back Rule
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, r, back)
	}

	var r Rule
	assert.Error(t, r.UnmarshalText([]byte("E501")))
}

func TestEngine_LogsOnlyViolations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	engine := NewEngine(Flags{}, logger)

	src := "def ok(x):\n    \"\"\"D.\n\n    Args:\n        x: d.\n    \"\"\"\n\ndef bad(x, y):\n    \"\"\"D.\n\n    Args:\n        y: d.\n    \"\"\"\n"
	sigs, err := signature.ExtractAll(context.Background(), lexer.NewExtractor(), src)
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	assert.True(t, engine.Check("mod.py", &sigs[0], src).Compliant)
	assert.Empty(t, buf.String())

	v := engine.Check("mod.py", &sigs[1], src)
	assert.False(t, v.Compliant)

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"rule":"SD102"`)
	assert.Contains(t, out, `"function":"bad"`)
	assert.Contains(t, out, `"path":"mod.py"`)
	assert.Contains(t, out, `"function_params":"[x, y]"`)
}

func TestEngine_Report(t *testing.T) {
	var buf bytes.Buffer
	engine := NewEngine(Flags{}, slog.New(slog.NewJSONHandler(&buf, nil)))

	engine.Report("mod.py", "load", 12, Verdict{
		Rule:       RuleArgsMismatch,
		Function:   []signature.Parameter{signature.Untyped("a"), signature.Untyped("b")},
		Documented: []signature.Parameter{signature.Untyped("a")},
	})
	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"function":"load"`)
	assert.Contains(t, out, `"line":12`)
	assert.Contains(t, out, `"docstring_params":"[a]"`)

	buf.Reset()
	engine.Report("mod.py", "line 3", 3, Verdict{Rule: RuleMissingDocstring})
	assert.Contains(t, buf.String(), `"rule":"SD100"`)
	assert.NotContains(t, buf.String(), "function_params")
}
