// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signature defines the data model shared by both signature
// extraction strategies: parameters, docstring spans and the Extractor
// contract.
//
// All text held by a Signature is a substring of the source string handed to
// the extractor. Go substrings share the backing array of the source, so no
// parameter name, type annotation or docstring is ever copied during
// extraction.
package signature

import (
	"fmt"
	"strings"
)

// =============================================================================
// SPAN
// =============================================================================

// Span is a half-open byte range [Start, End) into an immutable source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.End <= s.Start
}

// Text resolves the span against source.
//
// Out-of-range spans resolve to the empty string rather than panicking; a
// span is only meaningful for the source it was produced from.
func (s Span) Text(source string) string {
	if s.Start < 0 || s.End > len(source) || s.Start > s.End {
		return ""
	}
	return source[s.Start:s.End]
}

// =============================================================================
// PARAMETER
// =============================================================================

// Parameter is one formal parameter, either declared in code or documented
// in a docstring.
//
// HasType distinguishes an absent annotation from an empty one.
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	HasType bool   `json:"has_type"`
}

// Untyped returns a parameter without a type annotation.
func Untyped(name string) Parameter {
	return Parameter{Name: name}
}

// Typed returns a parameter carrying a type annotation.
func Typed(name, typ string) Parameter {
	return Parameter{Name: name, Type: typ, HasType: true}
}

// IsVariadic reports whether the name carries a `*` or `**` marker.
func (p Parameter) IsVariadic() bool {
	return IsVariadicName(p.Name)
}

// String renders the parameter as `name` or `name: type`.
func (p Parameter) String() string {
	if !p.HasType {
		return p.Name
	}
	return p.Name + ": " + p.Type
}

// IsVariadicName reports whether name starts with one or two `*`.
func IsVariadicName(name string) bool {
	return strings.HasPrefix(name, "*")
}

// FormatParams renders a parameter list for diagnostics, e.g. `[x: int, y]`.
func FormatParams(params []Parameter) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(']')
	return b.String()
}

// =============================================================================
// LOCATION & SIGNATURE
// =============================================================================

// Location identifies a function for diagnostics only.
type Location struct {
	// Name is the function name, empty when the extractor could not find it.
	Name string `json:"name,omitempty"`

	// Line is the 1-indexed line of the `def` keyword.
	Line int `json:"line"`

	// Column is the 0-indexed column of the `def` keyword.
	Column int `json:"column"`

	// Offset is the byte offset of the `def` keyword.
	Offset int `json:"offset"`

	// EndLine is the 1-indexed last line of the checked region: the header
	// through its closing `:`, extended to the docstring's closing
	// delimiter when there is one.
	EndLine int `json:"end_line,omitempty"`
}

// String names the function when known, otherwise its source line.
func (l Location) String() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("line %d", l.Line)
}

// LineOf returns the 1-indexed line of offset, counting newlines from
// the `def` keyword. Offsets before the keyword or past the source yield
// Line.
func (l Location) LineOf(source string, offset int) int {
	if offset <= l.Offset || offset > len(source) || l.Offset < 0 {
		return l.Line
	}
	return l.Line + strings.Count(source[l.Offset:offset], "\n")
}

// Signature is the ordered parameter list and docstring span of one
// function occurrence.
//
// Thread Safety: Not safe for concurrent use. Extractors hand out a pointer
// that is only valid for the duration of the visit callback.
type Signature struct {
	Location

	// Params are the declared parameters in declaration order, receiver
	// excluded.
	Params []Parameter

	// Docstring is the span of the docstring literal including delimiters.
	// Only meaningful when HasDocstring is true.
	Docstring Span

	// HasDocstring reports whether the body starts with a terminated
	// triple-quoted literal.
	HasDocstring bool
}

// DocstringText resolves the docstring against the source it came from.
func (s *Signature) DocstringText(source string) (string, bool) {
	if !s.HasDocstring {
		return "", false
	}
	return s.Docstring.Text(source), true
}

// Clone returns a copy whose Params slice is independent of the extractor's
// scratch buffer.
func (s *Signature) Clone() Signature {
	out := *s
	out.Params = append([]Parameter(nil), s.Params...)
	return out
}

// Reset clears the signature while keeping the Params capacity.
func (s *Signature) Reset() {
	params := s.Params[:0]
	*s = Signature{Params: params}
}
