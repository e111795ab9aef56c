// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads staledoc's run configuration from embedded defaults
// and an optional project file.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/staledoc/services/staledoc/docstring"
	"github.com/AleutianAI/staledoc/services/staledoc/rules"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	// MaxYAMLFileSize bounds project config files (1MB).
	MaxYAMLFileSize = 1 * 1024 * 1024

	// FileName is the project config file searched for by Find.
	FileName = ".staledoc.yaml"

	// AltFileName is accepted when FileName is absent.
	AltFileName = ".staledoc.yml"
)

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete run configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Strategy selects signature extraction: tree or lexer.
	Strategy string `yaml:"strategy" validate:"oneof=tree lexer"`

	// DocstringStyle selects the convention: auto, google or numpy.
	DocstringStyle string `yaml:"docstring_style" validate:"oneof=auto google numpy"`

	BreakOnEmptyLine          bool `yaml:"break_on_empty_line"`
	SucceedIfNoDocstring      bool `yaml:"succeed_if_no_docstring"`
	SucceedIfNoArgsSection    bool `yaml:"succeed_if_no_args_section"`
	SucceedIfDocstringUntyped bool `yaml:"succeed_if_docstring_untyped"`
	SkipVariadicParams        bool `yaml:"skip_variadic_params"`

	// Workers bounds concurrently checked files; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"min=0,max=1024"`

	// MaxFileSize is the largest source accepted by the tree strategy.
	MaxFileSize int64 `yaml:"max_file_size" validate:"min=1"`

	// Include and Exclude are slash-separated globs; `**` spans directories.
	Include []string `yaml:"include" validate:"min=1,dive,required"`
	Exclude []string `yaml:"exclude" validate:"dive,required"`

	// Color controls terminal colors: auto, always or never.
	Color string `yaml:"color" validate:"oneof=auto always never"`

	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Watch  WatchConfig  `yaml:"watch"`
}

// CacheConfig configures the on-disk result cache.
type CacheConfig struct {
	// Dir holds the cache database. Empty disables caching.
	Dir string `yaml:"dir"`

	// TTL expires cached results.
	TTL time.Duration `yaml:"ttl" validate:"min=0"`
}

// ServerConfig configures `staledoc serve`.
type ServerConfig struct {
	// Addr is the listen address. Loopback by default.
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// RateLimit is the sustained requests per second.
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`

	// Burst is the token bucket size.
	Burst int `yaml:"burst" validate:"min=1"`

	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"min=1"`
}

// WatchConfig configures `staledoc watch`.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce time.Duration `yaml:"debounce" validate:"min=0"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded defaults.
func Default() (*Config, error) {
	var cfg Config
	if err := decode(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("embedded defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load returns the defaults overlaid with the YAML file at path.
//
// Description:
//
//	Keys absent from the file keep their default values; lists present in
//	the file replace the default lists. Unknown keys are rejected so typos
//	do not silently fall back to defaults. An empty path returns the
//	defaults.
//
// Inputs:
//
//	path - Config file path, or "" for defaults only.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - ErrInvalidConfig on parse or validation failure, or the read error.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := Apply(cfg, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("config loaded",
		slog.String("path", path),
		slog.String("strategy", cfg.Strategy),
		slog.String("docstring_style", cfg.DocstringStyle),
	)
	return cfg, nil
}

// Apply overlays YAML data onto cfg and validates the result.
func Apply(cfg *Config, data []byte) error {
	if len(data) > MaxYAMLFileSize {
		return fmt.Errorf("%w: YAML data exceeds maximum size (%d > %d)", ErrInvalidConfig, len(data), MaxYAMLFileSize)
	}
	if err := decode(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Find returns the nearest project config file in dir or its parents, or
// "" if there is none.
func Find(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		for _, name := range []string{FileName, AltFileName} {
			candidate := filepath.Join(abs, name)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return ""
		}
		abs = parent
	}
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}
	return nil
}

// =============================================================================
// Validation & Conversion
// =============================================================================

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: %s fails %q (value %v)", ErrInvalidConfig, first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// StrategyValue parses Strategy.
func (c *Config) StrategyValue() (signature.Strategy, error) {
	s, err := signature.ParseStrategy(c.Strategy)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// Flags builds the rule engine flags.
func (c *Config) Flags() (rules.Flags, error) {
	style, err := docstring.ParseStyle(c.DocstringStyle)
	if err != nil {
		return rules.Flags{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return rules.Flags{
		BreakOnEmptyLine:          c.BreakOnEmptyLine,
		SucceedIfNoDocstring:      c.SucceedIfNoDocstring,
		SucceedIfNoArgsSection:    c.SucceedIfNoArgsSection,
		SucceedIfDocstringUntyped: c.SucceedIfDocstringUntyped,
		SkipVariadicParams:        c.SkipVariadicParams,
		Style:                     style,
	}, nil
}
