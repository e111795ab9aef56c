// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexer

import (
	"strings"

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// =============================================================================
// TOKENS
// =============================================================================

// Kind is the kind of a token.
type Kind int

const (
	TokenEOF Kind = iota
	TokenDef
	TokenParOpen
	TokenParClose
	TokenBraceOpen
	TokenBraceClose
	TokenBracketOpen
	TokenBracketClose
	TokenComma
	TokenColon
	TokenEquals
	TokenText
)

var kindNames = [...]string{
	TokenEOF:          "EOF",
	TokenDef:          "def",
	TokenParOpen:      "(",
	TokenParClose:     ")",
	TokenBraceOpen:    "{",
	TokenBraceClose:   "}",
	TokenBracketOpen:  "[",
	TokenBracketClose: "]",
	TokenComma:        ",",
	TokenColon:        ":",
	TokenEquals:       "=",
	TokenText:         "text",
}

// String returns a short name for the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Token is a lexed token. Its text is a span of the scanned source.
type Token struct {
	Kind Kind
	Span signature.Span
}

// Text resolves the token against the scanned source.
func (t Token) Text(source string) string {
	return t.Span.Text(source)
}

// =============================================================================
// SCANNER
// =============================================================================

// Scanner is a forward-only tokenizer tuned for function headers.
//
// Description:
//
//	Whitespace, backslash line continuations and `#` comments separate
//	tokens and are never returned. Punctuation `( ) { } [ ] , :` and a
//	standalone `=` are single-byte tokens. Everything else is glued into
//	text tokens: identifiers, numbers, operators, and string literals. A
//	string literal (any quote style, any prefix) is consumed whole, so
//	punctuation inside strings never reaches the parser. An `=` that is part
//	of an operator such as `==`, `<=` or `!=` stays inside the text token.
//	The exact word `def` is returned as TokenDef.
//
// Thread Safety: Not safe for concurrent use. Create one per source.
type Scanner struct {
	src    string
	pos    int
	peeked bool
	peek   Token

	// line cursor for LineAt
	lineOff   int
	line      int
	lineStart int
}

// NewScanner returns a scanner positioned at the start of src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src, line: 1}
}

// Source returns the scanned source.
func (s *Scanner) Source() string {
	return s.src
}

// Offset returns the byte offset of the next unread token or trivia.
func (s *Scanner) Offset() int {
	if s.peeked {
		return s.peek.Span.Start
	}
	return s.pos
}

// LineAt returns the 1-based line and 0-based byte column of offset.
// Non-decreasing offsets are resolved incrementally.
func (s *Scanner) LineAt(offset int) (line, column int) {
	offset = max(0, min(offset, len(s.src)))
	if offset < s.lineOff {
		s.lineOff, s.line, s.lineStart = 0, 1, 0
	}
	seg := s.src[s.lineOff:offset]
	if n := strings.Count(seg, "\n"); n > 0 {
		s.line += n
		s.lineStart = s.lineOff + strings.LastIndexByte(seg, '\n') + 1
	}
	s.lineOff = offset
	return s.line, offset - s.lineStart
}

// Next consumes and returns the next token. At the end of input it keeps
// returning TokenEOF.
func (s *Scanner) Next() Token {
	if s.peeked {
		s.peeked = false
		return s.peek
	}
	return s.scan()
}

// Peek returns the next token without consuming it.
func (s *Scanner) Peek() Token {
	if !s.peeked {
		s.peek = s.scan()
		s.peeked = true
	}
	return s.peek
}

func (s *Scanner) scan() Token {
	s.skipTrivia()
	if s.pos >= len(s.src) {
		return Token{Kind: TokenEOF, Span: signature.Span{Start: len(s.src), End: len(s.src)}}
	}

	start := s.pos
	if kind, ok := punctuation(s.src[s.pos]); ok {
		s.pos++
		return Token{Kind: kind, Span: signature.Span{Start: start, End: s.pos}}
	}
	if s.src[s.pos] == '=' && s.standaloneEquals(s.pos) {
		s.pos++
		return Token{Kind: TokenEquals, Span: signature.Span{Start: start, End: s.pos}}
	}

	s.scanText()
	span := signature.Span{Start: start, End: s.pos}
	if span.Text(s.src) == "def" {
		return Token{Kind: TokenDef, Span: span}
	}
	return Token{Kind: TokenText, Span: span}
}

// skipTrivia advances over whitespace, line continuations and comments.
func (s *Scanner) skipTrivia() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '\\' && s.pos+1 < len(s.src) && (s.src[s.pos+1] == '\n' || s.src[s.pos+1] == '\r'):
			s.pos += 2
		case c == '#':
			nl := strings.IndexByte(s.src[s.pos:], '\n')
			if nl < 0 {
				s.pos = len(s.src)
				return
			}
			s.pos += nl
		default:
			return
		}
	}
}

func (s *Scanner) scanText() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c) || c == '#':
			return
		case c == '"' || c == '\'':
			s.pos = skipString(s.src, s.pos)
		case c == '=' && s.standaloneEquals(s.pos):
			return
		default:
			if _, ok := punctuation(c); ok {
				return
			}
			s.pos++
		}
	}
}

// standaloneEquals reports whether the `=` at i is an assignment or default
// marker rather than part of a comparison or augmented operator.
func (s *Scanner) standaloneEquals(i int) bool {
	if i+1 < len(s.src) && s.src[i+1] == '=' {
		return false
	}
	if i > 0 && strings.IndexByte("=<>!+-*/%&|^@:~", s.src[i-1]) >= 0 {
		return false
	}
	return true
}

// skipString returns the offset just past the string literal opening at i.
// Single-quoted literals stop at a newline; an unterminated literal runs to
// the end of the source.
func skipString(src string, i int) int {
	q := src[i]
	triple := string([]byte{q, q, q})

	if strings.HasPrefix(src[i:], triple) {
		for j := i + 3; j < len(src); j++ {
			switch {
			case src[j] == '\\':
				j++
			case strings.HasPrefix(src[j:], triple):
				return j + 3
			}
		}
		return len(src)
	}

	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(src)
}

func punctuation(c byte) (Kind, bool) {
	switch c {
	case '(':
		return TokenParOpen, true
	case ')':
		return TokenParClose, true
	case '{':
		return TokenBraceOpen, true
	case '}':
		return TokenBraceClose, true
	case '[':
		return TokenBracketOpen, true
	case ']':
		return TokenBracketClose, true
	case ',':
		return TokenComma, true
	case ':':
		return TokenColon, true
	default:
		return TokenEOF, false
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}
