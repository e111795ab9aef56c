// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lexer implements the token-stream signature extraction strategy.
//
// It never builds a syntax tree. A forward-only Scanner produces tokens and a
// FunctionScanner pulls one function header at a time out of the stream,
// which keeps memory flat for very large files.
package lexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/staledoc/services/staledoc/docstring"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// receiverName is the only receiver dropped from parameter lists.
const receiverName = "self"

// Extractor is the lexer-strategy implementation of signature.Extractor.
//
// Thread Safety: Safe for concurrent use. Each Extract call owns its own
// scanner and scratch buffer.
type Extractor struct {
	skipVariadic bool
	logger       *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSkipVariadic drops `*args` and `**kwargs` style parameters.
func WithSkipVariadic(skip bool) Option {
	return func(e *Extractor) {
		e.skipVariadic = skip
	}
}

// WithLogger sets the logger used for degenerate-docstring debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates a lexer-strategy extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy implements signature.Extractor.
func (e *Extractor) Strategy() signature.Strategy {
	return signature.StrategyLexer
}

// Extract implements signature.Extractor.
func (e *Extractor) Extract(ctx context.Context, source string, visit signature.VisitFunc) error {
	if !utf8.ValidString(source) {
		return fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	fs := NewFunctionScanner(source, e.skipVariadic)
	fs.logger = e.logger

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sig, err := fs.Next()
		if err != nil {
			return err
		}
		if sig == nil {
			return nil
		}
		if err := visit(sig); err != nil {
			return err
		}
	}
}

// Compile-time interface check.
var _ signature.Extractor = (*Extractor)(nil)

// =============================================================================
// FUNCTION SCANNER
// =============================================================================

// FunctionScanner yields one function signature per call to Next.
//
// Thread Safety: Not safe for concurrent use. The returned signature is a
// scratch value overwritten by the following call.
type FunctionScanner struct {
	sc           *Scanner
	skipVariadic bool
	sig          signature.Signature
	logger       *slog.Logger
}

// NewFunctionScanner starts scanning source from its first byte.
func NewFunctionScanner(source string, skipVariadic bool) *FunctionScanner {
	return &FunctionScanner{
		sc:           NewScanner(source),
		skipVariadic: skipVariadic,
		logger:       slog.Default(),
	}
}

// Next returns the next function signature in textual order.
//
// Description:
//
//	Tokens are skipped until a `def`. The following text token names the
//	function; tokens up to the first `(` (type parameter lists, for
//	instance) are skipped. Parameter entries are read until the closing
//	`)`, then everything up to the header's `:` at bracket depth zero is
//	skipped (return annotations included). If the first body token is a
//	triple-quoted literal, its closing delimiter is located in the raw
//	source.
//
// Outputs:
//   - *signature.Signature: The next signature, or nil at end of source.
//   - error: *ScanError when the source ends inside a header or a header
//     token is out of place.
func (f *FunctionScanner) Next() (*signature.Signature, error) {
	f.sig.Reset()

	for {
		tok := f.sc.Next()
		switch tok.Kind {
		case TokenEOF:
			return nil, nil
		case TokenDef:
			if err := f.function(tok); err != nil {
				return nil, err
			}
			return &f.sig, nil
		}
	}
}

func (f *FunctionScanner) function(def Token) error {
	src := f.sc.Source()
	line, col := f.sc.LineAt(def.Span.Start)
	f.sig.Location = signature.Location{Line: line, Column: col, Offset: def.Span.Start}

	tok := f.sc.Next()
	if tok.Kind == TokenText {
		f.sig.Name = tok.Text(src)
		tok = f.sc.Next()
	}

	// Skip a type parameter list such as `[T: (int, str)]`.
	depth := 0
	for tok.Kind != TokenParOpen || depth > 0 {
		switch tok.Kind {
		case TokenEOF:
			return f.fail(tok, "expected parameter list", ErrUnexpectedEOF)
		case TokenDef:
			return f.fail(tok, "expected parameter list", ErrMalformedHeader)
		case TokenColon:
			if depth == 0 {
				return f.fail(tok, "expected parameter list", ErrMalformedHeader)
			}
		case TokenParOpen, TokenBraceOpen, TokenBracketOpen:
			depth++
		case TokenParClose, TokenBraceClose, TokenBracketClose:
			depth--
		}
		tok = f.sc.Next()
	}

	if err := f.parameters(); err != nil {
		return err
	}
	colon, err := f.headerColon()
	if err != nil {
		return err
	}
	f.sig.EndLine = f.sig.LineOf(src, colon.Span.Start)

	f.docstring()
	return nil
}

// parameters reads entries up to and including the closing `)`.
func (f *FunctionScanner) parameters() error {
	src := f.sc.Source()

	for {
		tok := f.sc.Next()
		switch tok.Kind {
		case TokenParClose:
			return nil
		case TokenComma:
			continue
		case TokenEOF:
			return f.fail(tok, "unterminated parameter list", ErrUnexpectedEOF)
		case TokenText:
		default:
			return f.fail(tok, "unexpected "+tok.Kind.String()+" in parameter list", ErrMalformedHeader)
		}

		name := tok.Text(src)
		next := f.sc.Next()

		var end Kind
		switch next.Kind {
		case TokenColon:
			typ, stop, err := f.run(true)
			if err != nil {
				return err
			}
			f.add(signature.Typed(name, typ))
			end = stop
			if stop == TokenEquals {
				if _, end, err = f.run(false); err != nil {
					return err
				}
			}

		case TokenEquals:
			_, stop, err := f.run(false)
			if err != nil {
				return err
			}
			f.add(signature.Untyped(name))
			end = stop

		case TokenComma, TokenParClose:
			f.add(signature.Untyped(name))
			end = next.Kind

		case TokenEOF:
			return f.fail(next, "unterminated parameter list", ErrUnexpectedEOF)

		default:
			return f.fail(next, "unexpected "+next.Kind.String()+" after parameter "+name, ErrMalformedHeader)
		}

		if end == TokenParClose {
			return nil
		}
	}
}

// run consumes a type annotation or default value and returns its trimmed
// source text together with the token that ended it: a `,` or `=` at depth
// zero, or the `)` closing the parameter list. Every token of the run,
// including the first, updates the depth counters. The text ends with the
// last token before the stopper, so trailing comments are not part of it.
func (f *FunctionScanner) run(stopOnEquals bool) (string, Kind, error) {
	src := f.sc.Source()
	var par, brace, bracket int
	start, end := -1, -1

	text := func() string {
		if start < 0 || end < start {
			return ""
		}
		return strings.TrimSpace(src[start:end])
	}

	for {
		tok := f.sc.Next()
		flat := par == 0 && brace == 0 && bracket == 0

		switch tok.Kind {
		case TokenEOF:
			return "", tok.Kind, f.fail(tok, "unterminated parameter list", ErrUnexpectedEOF)
		case TokenParOpen:
			par++
		case TokenParClose:
			if flat {
				return text(), tok.Kind, nil
			}
			par--
		case TokenBraceOpen:
			brace++
		case TokenBraceClose:
			brace--
		case TokenBracketOpen:
			bracket++
		case TokenBracketClose:
			bracket--
		case TokenComma:
			if flat {
				return text(), tok.Kind, nil
			}
		case TokenEquals:
			if stopOnEquals && flat {
				return text(), tok.Kind, nil
			}
		}

		if start < 0 {
			start = tok.Span.Start
		}
		end = tok.Span.End
	}
}

// headerColon skips to the `:` ending the header and returns it.
func (f *FunctionScanner) headerColon() (Token, error) {
	depth := 0
	for {
		tok := f.sc.Next()
		switch tok.Kind {
		case TokenEOF:
			return tok, f.fail(tok, "expected ':' after parameter list", ErrUnexpectedEOF)
		case TokenParOpen, TokenBraceOpen, TokenBracketOpen:
			depth++
		case TokenParClose, TokenBraceClose, TokenBracketClose:
			depth--
		case TokenColon:
			if depth <= 0 {
				return tok, nil
			}
		}
	}
}

// docstring inspects, without consuming, the first body token.
func (f *FunctionScanner) docstring() {
	tok := f.sc.Peek()
	if tok.Kind != TokenText {
		return
	}

	src := f.sc.Source()
	if !docstring.StartsWithDelimiter(tok.Text(src)) {
		return
	}

	span, ok := docstring.FindClosing(src, tok.Span.Start)
	if !ok {
		f.logger.Debug("unterminated docstring treated as absent",
			slog.String("function", f.sig.Name),
			slog.Int("line", f.sig.Line),
		)
		return
	}
	f.sig.Docstring = span
	f.sig.HasDocstring = true
	f.sig.EndLine = f.sig.LineOf(src, span.End-1)
}

func (f *FunctionScanner) add(p signature.Parameter) {
	switch {
	case p.Name == receiverName:
		return
	case p.Name == "*" || p.Name == "/":
		return
	case f.skipVariadic && p.IsVariadic():
		return
	}
	f.sig.Params = append(f.sig.Params, p)
}

func (f *FunctionScanner) fail(tok Token, msg string, cause error) error {
	line, _ := f.sc.LineAt(tok.Span.Start)
	return &ScanError{
		Offset:   tok.Span.Start,
		Line:     line,
		Function: f.sig.Name,
		Message:  msg,
		Cause:    cause,
	}
}
