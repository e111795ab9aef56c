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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/staledoc/services/staledoc/diffscope"
	"github.com/AleutianAI/staledoc/services/staledoc/lexer"
	"github.com/AleutianAI/staledoc/services/staledoc/rules"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

const compliantSource = `def add(a: int, b: int):
    """Add two numbers.

    Args:
        a (int): First.
        b (int): Second.
    """
    return a + b
`

const staleSource = `def add(a: int, b: int):
    """Add two numbers.

    Args:
        a (int): First.
    """
    return a + b


def undocumented(x):
    return x
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func strategies() []signature.Strategy {
	return []signature.Strategy{signature.StrategyTree, signature.StrategyLexer}
}

func TestRunner_CheckSource(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			runner := NewRunner(WithStrategy(strategy), WithLogger(quietLogger()))

			res, err := runner.CheckSource(context.Background(), []byte(compliantSource), "ok.py")
			require.NoError(t, err)
			assert.True(t, res.Compliant())
			assert.Equal(t, 1, res.Functions)
			assert.Equal(t, strategy, res.Strategy)

			res, err = runner.CheckSource(context.Background(), []byte(staleSource), "stale.py")
			require.NoError(t, err)
			assert.False(t, res.Compliant())
			assert.Equal(t, 2, res.Functions)
			require.Len(t, res.Violations, 2)

			mismatch := res.Violations[0]
			assert.Equal(t, "stale.py", mismatch.Path)
			assert.Equal(t, "add", mismatch.Function)
			assert.Equal(t, 1, mismatch.Line)
			assert.Equal(t, 1, mismatch.Column)
			assert.Equal(t, rules.RuleArgsMismatch, mismatch.Rule)
			assert.Equal(t, "stale.py:1:1", mismatch.Location())
			assert.Len(t, mismatch.FunctionParams, 2)
			assert.Len(t, mismatch.DocParams, 1)

			missing := res.Violations[1]
			assert.Equal(t, "undocumented", missing.Function)
			assert.Equal(t, 10, missing.Line)
			assert.Equal(t, rules.RuleMissingDocstring, missing.Rule)
		})
	}
}

func TestRunner_FlagsApply(t *testing.T) {
	runner := NewRunner(
		WithFlags(rules.Flags{SucceedIfNoDocstring: true}),
		WithLogger(quietLogger()),
	)

	res, err := runner.CheckSource(context.Background(), []byte(staleSource), "stale.py")
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, rules.RuleArgsMismatch, res.Violations[0].Rule)
}

type lineSet map[int]bool

func (s lineSet) Overlaps(_ string, start, end int) bool {
	for line := start; line <= end; line++ {
		if s[line] {
			return true
		}
	}
	return false
}

func TestRunner_ChangedLines(t *testing.T) {
	runner := NewRunner(WithChangedLines(lineSet{10: true}), WithLogger(quietLogger()))

	res, err := runner.CheckSource(context.Background(), []byte(staleSource), "stale.py")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Functions)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "undocumented", res.Violations[0].Function)
}

// documentedPair: f spans lines 1-8 before its body, g lines 12-17.
const documentedPair = `def f(
    x,
):
    """D.

    Args:
        x: d.
    """
    return x


def g(a):
    """G.

    Args:
        a: d.
    """
    return a
`

func TestRunner_ChangedLinesCoverDocstring(t *testing.T) {
	tests := []struct {
		name   string
		source string
		diff   string
	}{
		{
			// Args entry for y removed with git diff -U0.
			name: "docstring line deleted",
			source: "def f(x, y):\n" +
				"    \"\"\"D.\n" +
				"\n" +
				"    Args:\n" +
				"        x: d.\n" +
				"    \"\"\"\n" +
				"    return x\n",
			diff: "--- a/mod.py\n" +
				"+++ b/mod.py\n" +
				"@@ -6 +5,0 @@\n" +
				"-        y: d.\n",
		},
		{
			name: "docstring line deleted, start names the gap",
			source: "def f(x, y):\n" +
				"    \"\"\"D.\n" +
				"\n" +
				"    Args:\n" +
				"        x: d.\n" +
				"    \"\"\"\n" +
				"    return x\n",
			diff: "--- a/mod.py\n" +
				"+++ b/mod.py\n" +
				"@@ -6,1 +6,0 @@\n" +
				"-        y: d.\n",
		},
		{
			name: "parameter added mid-header",
			source: "def f(\n" +
				"    x,\n" +
				"    y,\n" +
				"):\n" +
				"    \"\"\"D.\n" +
				"\n" +
				"    Args:\n" +
				"        x: d.\n" +
				"    \"\"\"\n" +
				"    return x\n",
			diff: "--- a/mod.py\n" +
				"+++ b/mod.py\n" +
				"@@ -2,0 +3 @@\n" +
				"+    y,\n",
		},
	}
	for _, tt := range tests {
		for _, strategy := range strategies() {
			t.Run(tt.name+"/"+strategy.String(), func(t *testing.T) {
				changes, err := diffscope.Parse([]byte(tt.diff))
				require.NoError(t, err)

				runner := NewRunner(WithStrategy(strategy), WithChangedLines(changes), WithLogger(quietLogger()))
				res, err := runner.CheckSource(context.Background(), []byte(tt.source), "mod.py")
				require.NoError(t, err)

				assert.Equal(t, 1, res.Functions)
				assert.Zero(t, res.Skipped)
				require.Len(t, res.Violations, 1)
				assert.Equal(t, rules.RuleArgsMismatch, res.Violations[0].Rule)
			})
		}
	}
}

func TestRunner_ChangedLinesIgnoreBody(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			// Line 9 is f's `return`, line 17 is g's docstring.
			runner := NewRunner(WithStrategy(strategy), WithChangedLines(lineSet{9: true}), WithLogger(quietLogger()))
			res, err := runner.CheckSource(context.Background(), []byte(documentedPair), "mod.py")
			require.NoError(t, err)
			assert.Zero(t, res.Functions)
			assert.Equal(t, 2, res.Skipped)

			runner = NewRunner(WithStrategy(strategy), WithChangedLines(lineSet{2: true, 17: true}), WithLogger(quietLogger()))
			res, err = runner.CheckSource(context.Background(), []byte(documentedPair), "mod.py")
			require.NoError(t, err)
			assert.Equal(t, 2, res.Functions)
		})
	}
}

func TestRunner_InvalidUTF8(t *testing.T) {
	src := []byte("def f(a):\n    \"\"\"\xff\"\"\"\n")
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			runner := NewRunner(WithStrategy(strategy), WithLogger(quietLogger()))
			res, err := runner.CheckSource(context.Background(), src, "bad.py")
			assert.ErrorIs(t, err, ErrScanFailed)
			assert.ErrorIs(t, err, signature.ErrInvalidContent)
			assert.Zero(t, res.Functions)
		})
	}
}

func TestRunner_ScanFailure(t *testing.T) {
	var logs bytes.Buffer
	runner := NewRunner(
		WithStrategy(signature.StrategyLexer),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	src := compliantSource + "\ndef broken(a, b"
	res, err := runner.CheckSource(context.Background(), []byte(src), "broken.py")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScanFailed)
	assert.ErrorIs(t, err, lexer.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "broken.py")

	assert.False(t, res.Compliant())
	assert.Equal(t, 1, res.Functions, "functions before the failure are still checked")
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, logs.String(), `"class":"structural"`)
}

func TestRunner_CheckFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	var paths []string
	for i := 0; i < 8; i++ {
		paths = append(paths, write(fmt.Sprintf("ok%d.py", i), compliantSource))
	}
	paths = append(paths,
		write("stale.py", staleSource),
		write("broken.py", "def broken(a, b"),
		filepath.Join(dir, "missing.py"),
	)

	runner := NewRunner(
		WithStrategy(signature.StrategyLexer),
		WithWorkers(3),
		WithLogger(quietLogger()),
	)

	run, err := runner.CheckFiles(context.Background(), paths)
	require.NoError(t, err)

	assert.False(t, run.OK())
	assert.Equal(t, int64(2), run.Violations)
	assert.Equal(t, int64(2), run.Failures)
	assert.Equal(t, int64(10), run.Functions)
	require.Len(t, run.Files, len(paths))

	for i, res := range run.Files {
		require.NotNil(t, res)
		assert.Equal(t, paths[i], res.Path, "results keep input order")
	}
	assert.True(t, run.Files[0].Compliant())
	assert.Len(t, run.Files[8].Violations, 2)
	assert.Error(t, run.Files[9].Err)
	assert.Error(t, run.Files[10].Err)
}

func TestRunner_CheckFilesAllCompliant(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ok.py")
	require.NoError(t, os.WriteFile(p, []byte(compliantSource), 0o644))

	run, err := NewRunner(WithLogger(quietLogger())).CheckFiles(context.Background(), []string{p})
	require.NoError(t, err)
	assert.True(t, run.OK())
	assert.Equal(t, int64(1), run.Functions)
}

func TestRunner_CheckFilesCanceled(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ok.py")
	require.NoError(t, os.WriteFile(p, []byte(compliantSource), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewRunner(WithLogger(quietLogger())).CheckFiles(ctx, []string{p})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.False(t, run.OK())
}

func TestRunner_Defaults(t *testing.T) {
	runner := NewRunner()
	assert.Equal(t, signature.StrategyTree, runner.Strategy())
	assert.Equal(t, rules.Flags{}, runner.Flags())
	assert.Positive(t, runner.workerCount())
	assert.Equal(t, signature.StrategyLexer, runner.Extractor(signature.StrategyLexer).Strategy())
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]FileResult
	loads   int
}

func (c *mapCache) Load(_ context.Context, key string) (*FileResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	res, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &res, true
}

func (c *mapCache) Store(_ context.Context, key string, res *FileResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *res
}

func TestRunner_Cache(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "stale.py")
	require.NoError(t, os.WriteFile(p, []byte(staleSource), 0o644))

	cache := &mapCache{entries: make(map[string]FileResult)}
	runner := NewRunner(WithCache(cache), WithLogger(quietLogger()))

	first, err := runner.CheckFile(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, cache.entries, 1)

	second, err := runner.CheckFile(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Violations, second.Violations)

	require.NoError(t, os.WriteFile(p, []byte(compliantSource), 0o644))
	third, err := runner.CheckFile(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, third.Cached, "content change misses")
	assert.True(t, third.Compliant())

	lexed := NewRunner(WithCache(cache), WithStrategy(signature.StrategyLexer), WithLogger(quietLogger()))
	fourth, err := lexed.CheckFile(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, fourth.Cached, "strategy is part of the key")
}

func TestRunner_CacheHitLogsViolations(t *testing.T) {
	p := filepath.Join(t.TempDir(), "stale.py")
	require.NoError(t, os.WriteFile(p, []byte(staleSource), 0o644))

	var logs bytes.Buffer
	cache := &mapCache{entries: make(map[string]FileResult)}
	runner := NewRunner(WithCache(cache), WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	_, err := runner.CheckFile(context.Background(), p)
	require.NoError(t, err)
	fresh := logs.String()
	logs.Reset()

	res, err := runner.CheckFile(context.Background(), p)
	require.NoError(t, err)
	require.True(t, res.Cached)
	cached := logs.String()

	assert.Equal(t, 2, strings.Count(cached, `"level":"ERROR"`))
	for _, want := range []string{
		`"rule":"SD102"`,
		`"rule":"SD100"`,
		`"function":"add"`,
		`"function":"undocumented"`,
		`"line":10`,
		`"function_params":"[a: int, b: int]"`,
		`"docstring_params":"[a: int]"`,
	} {
		assert.Contains(t, fresh, want)
		assert.Contains(t, cached, want)
	}
}

func TestRunner_CacheSkippedForFailuresAndFilters(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.py")
	require.NoError(t, os.WriteFile(broken, []byte("def broken(a, b"), 0o644))
	ok := filepath.Join(dir, "ok.py")
	require.NoError(t, os.WriteFile(ok, []byte(compliantSource), 0o644))

	cache := &mapCache{entries: make(map[string]FileResult)}
	_, err := NewRunner(WithCache(cache), WithStrategy(signature.StrategyLexer), WithLogger(quietLogger())).
		CheckFile(context.Background(), broken)
	require.Error(t, err)
	assert.Empty(t, cache.entries, "failed scans are not cached")

	_, err = NewRunner(WithCache(cache), WithChangedLines(lineSet{1: true}), WithLogger(quietLogger())).
		CheckFile(context.Background(), ok)
	require.NoError(t, err)
	assert.Zero(t, cache.loads, "filtered runs bypass the cache")
}
