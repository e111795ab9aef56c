// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/staledoc/services/staledoc/docstring"
	"github.com/AleutianAI/staledoc/services/staledoc/rules"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "tree", cfg.Strategy)
	assert.Equal(t, "auto", cfg.DocstringStyle)
	assert.Equal(t, []string{"**/*.py"}, cfg.Include)
	assert.Empty(t, cfg.Exclude)
	assert.Equal(t, "auto", cfg.Color)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "", cfg.Cache.Dir)
	assert.Equal(t, 168*time.Hour, cfg.Cache.TTL)

	flags, err := cfg.Flags()
	require.NoError(t, err)
	assert.Equal(t, rules.Flags{Style: docstring.StyleAutoDetect}, flags)

	strategy, err := cfg.StrategyValue()
	require.NoError(t, err)
	assert.Equal(t, signature.StrategyTree, strategy)
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
strategy: lexer
docstring_style: numpy
skip_variadic_params: true
succeed_if_docstring_untyped: true
exclude:
  - "tests/**"
server:
  burst: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lexer", cfg.Strategy)
	assert.Equal(t, []string{"**/*.py"}, cfg.Include, "absent keys keep defaults")
	assert.Equal(t, []string{"tests/**"}, cfg.Exclude)
	assert.Equal(t, 5, cfg.Server.Burst)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr, "nested keys keep defaults")

	flags, err := cfg.Flags()
	require.NoError(t, err)
	assert.Equal(t, rules.Flags{
		SkipVariadicParams:        true,
		SucceedIfDocstringUntyped: true,
		Style:                     docstring.StyleNumPy,
	}, flags)
}

func TestLoad_EmptyPathAndEmptyFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tree", cfg.Strategy)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tree", cfg.Strategy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown strategy", yaml: "strategy: regex\n"},
		{name: "unknown style", yaml: "docstring_style: sphinx\n"},
		{name: "negative workers", yaml: "workers: -1\n"},
		{name: "unknown key", yaml: "succeed_if_no_docstrings: true\n"},
		{name: "empty include", yaml: "include: []\n"},
		{name: "bad color", yaml: "color: rainbow\n"},
		{name: "bad listen address", yaml: "server:\n  addr: nowhere\n"},
		{name: "malformed yaml", yaml: "strategy: [tree\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, "", Find(nested))

	path := filepath.Join(root, AltFileName)
	require.NoError(t, os.WriteFile(path, []byte("strategy: lexer\n"), 0o644))
	assert.Equal(t, path, Find(nested))

	preferred := filepath.Join(root, "a", FileName)
	require.NoError(t, os.WriteFile(preferred, []byte("strategy: tree\n"), 0o644))
	assert.Equal(t, preferred, Find(nested))
}
