// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signature

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContent indicates a source that is not valid UTF-8. Both
// strategies reject such input before extracting anything.
var ErrInvalidContent = errors.New("invalid content")

// Strategy selects a signature extraction implementation.
type Strategy int

const (
	// StrategyTree walks a tree-sitter syntax tree.
	StrategyTree Strategy = iota

	// StrategyLexer runs the incremental token scanner over raw source.
	StrategyLexer
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyTree:
		return "tree"
	case StrategyLexer:
		return "lexer"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name as used in config files and flags.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tree", "ast", "":
		return StrategyTree, nil
	case "lexer", "lex":
		return StrategyLexer, nil
	default:
		return StrategyTree, fmt.Errorf("unknown extraction strategy %q (want tree or lexer)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// VisitFunc receives one signature per function definition.
//
// The signature and its Params slice are reused by the extractor after the
// call returns; use Signature.Clone to retain one.
type VisitFunc func(sig *Signature) error

// Extractor extracts function signatures from a whole source file.
//
// Description:
//
//	Both strategies implement this contract. Each Extract call owns its own
//	cursor over the source; implementations hold no mutable state between
//	calls and are safe to share across goroutines.
//
// Inputs:
//   - ctx: Checked between functions.
//   - source: Whole-file source text.
//   - visit: Called once per function definition, in source order.
//
// Outputs:
//   - error: Structural scan failure, invariant violation, context error,
//     or the first error returned by visit.
type Extractor interface {
	Strategy() Strategy
	Extract(ctx context.Context, source string, visit VisitFunc) error
}

// ExtractAll collects every signature produced by e into independent copies.
func ExtractAll(ctx context.Context, e Extractor, source string) ([]Signature, error) {
	var out []Signature
	err := e.Extract(ctx, source, func(sig *Signature) error {
		out = append(out, sig.Clone())
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, nil
}
