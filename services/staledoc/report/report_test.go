// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/staledoc/services/staledoc/lint"
	"github.com/AleutianAI/staledoc/services/staledoc/rules"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

func sampleRun() *lint.RunResult {
	stale := &lint.FileResult{
		Path:      "pkg/calc.py",
		Functions: 2,
		Violations: []lint.Violation{
			{
				Path:           "pkg/calc.py",
				Function:       "mul",
				Line:           12,
				Column:         1,
				Rule:           rules.RuleArgsMismatch,
				Message:        "args mismatch: function [a, b, c], docstring [a, b]",
				FunctionParams: []signature.Parameter{signature.Untyped("a"), signature.Untyped("b"), signature.Untyped("c")},
				DocParams:      []signature.Parameter{signature.Untyped("a"), signature.Untyped("b")},
			},
			{
				Path:     "pkg/calc.py",
				Function: "div",
				Line:     40,
				Column:   5,
				Rule:     rules.RuleMissingDocstring,
				Message:  "docstring missing",
			},
		},
	}
	broken := &lint.FileResult{Path: "pkg/broken.py", Violations: []lint.Violation{}, Err: errors.New("scan failed: unexpected end of input")}
	ok := &lint.FileResult{Path: "pkg/ok.py", Functions: 3, Violations: []lint.Violation{}}

	return &lint.RunResult{
		Files:      []*lint.FileResult{stale, broken, ok},
		Functions:  5,
		Violations: 2,
		Failures:   1,
	}
}

func TestReporter_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText, ColorNever).Run(sampleRun()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "pkg/calc.py:12:1: SD102 mul: args mismatch: function [a, b, c], docstring [a, b]", lines[0])
	assert.Equal(t, "pkg/calc.py:40:5: SD100 div: docstring missing", lines[1])
	assert.Equal(t, "pkg/broken.py: error: scan failed: unexpected end of input", lines[2])
	assert.Equal(t, "found 2 stale docstrings and 1 file failure (5 functions in 3 files)", lines[3])
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestReporter_TextCompliant(t *testing.T) {
	var buf bytes.Buffer
	run := &lint.RunResult{Files: []*lint.FileResult{{Path: "a.py", Functions: 1}}, Functions: 1}
	require.NoError(t, New(&buf, FormatText, ColorNever).Run(run))
	assert.Equal(t, "ok: 1 functions in 1 files, no stale docstrings\n", buf.String())
}

func TestReporter_ColorAlways(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText, ColorAlways).Run(sampleRun()))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "SD102")
}

func TestReporter_AutoColorOffForBuffers(t *testing.T) {
	assert.False(t, useColor(&bytes.Buffer{}, ColorAuto))
	assert.True(t, useColor(&bytes.Buffer{}, ColorAlways))
	assert.False(t, useColor(&bytes.Buffer{}, ColorNever))
}

func TestReporter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON, ColorAlways).Run(sampleRun()))
	assert.NotContains(t, buf.String(), "\x1b[")

	var decoded struct {
		Files []struct {
			Path       string `json:"path"`
			Error      string `json:"error"`
			Violations []struct {
				Function       string                `json:"function"`
				Rule           string                `json:"rule"`
				Line           int                   `json:"line"`
				FunctionParams []signature.Parameter `json:"function_params"`
				DocParams      []signature.Parameter `json:"doc_params"`
			} `json:"violations"`
		} `json:"files"`
		Violations int64 `json:"violations"`
		Failures   int64 `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded.Files, 3)
	assert.Equal(t, int64(2), decoded.Violations)
	assert.Equal(t, int64(1), decoded.Failures)

	v := decoded.Files[0].Violations[0]
	assert.Equal(t, "SD102", v.Rule)
	assert.Equal(t, "mul", v.Function)
	assert.Len(t, v.FunctionParams, 3)
	assert.Len(t, v.DocParams, 2)
	assert.Nil(t, decoded.Files[0].Violations[1].FunctionParams)
}

func TestParseFormatAndColor(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)

	m, err := ParseColorMode("")
	require.NoError(t, err)
	assert.Equal(t, ColorAuto, m)
	_, err = ParseColorMode("rainbow")
	assert.Error(t, err)
}
