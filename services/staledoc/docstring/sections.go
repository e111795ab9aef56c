// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docstring

import (
	"strings"
	"unicode"

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// Section headers.
const (
	googleArgsHeader    = "Args:"
	googleYieldsHeader  = "Yields:"
	googleReturnsHeader = "Returns:"
	googleRaisesHeader  = "Raises:"

	numpyParamsHeader  = "Parameters"
	numpyReturnsHeader = "Returns"
)

// Options controls section parsing. The zero value reads the whole section
// and keeps variadic entries.
type Options struct {
	// BreakOnEmptyLine ends the section at the first blank line.
	BreakOnEmptyLine bool

	// SkipVariadic drops entries whose name starts with `*`.
	SkipVariadic bool
}

// Parse extracts the documented parameters of a docstring in the given style.
//
// Description:
//
//	StyleAutoDetect always attempts Google before NumPy, so a docstring that
//	carries both headers resolves to its Google section.
//
// Outputs:
//   - []signature.Parameter: Documented parameters in documentation order.
//   - bool: False when no parseable args section exists.
func Parse(doc string, style Style, opts Options) ([]signature.Parameter, bool) {
	switch style {
	case StyleGoogle:
		return ParseGoogle(doc, opts)
	case StyleNumPy:
		return ParseNumPy(doc, opts)
	default:
		if params, ok := ParseGoogle(doc, opts); ok {
			return params, true
		}
		return ParseNumPy(doc, opts)
	}
}

// ParseGoogle reads the `Args:` section of a Google-style docstring.
//
// Description:
//
//	The section starts after an `Args:` header immediately followed by a
//	newline and ends at the first `Yields:`, `Returns:` or `Raises:` header
//	line (and at the first blank line when BreakOnEmptyLine is set). The
//	first line fixes the entry indentation; deeper lines are descriptions.
//	Each entry is `name: description` or `name (type): description`; the
//	type loses one surrounding pair of parentheses and a trailing
//	`, optional`. Entry-indented lines without a colon are skipped.
//
// Examples:
//
//	Args:
//	    x (int): First.           -> x: int
//	    y (str, optional): Second -> y: str
//	    z: Third.                 -> z
func ParseGoogle(doc string, opts Options) ([]signature.Parameter, bool) {
	section, ok := sectionAfter(doc, googleArgsHeader)
	if !ok {
		return nil, false
	}

	section = truncateAtHeaderLine(section, googleYieldsHeader, googleReturnsHeader, googleRaisesHeader)
	if opts.BreakOnEmptyLine {
		section = truncateAtBlankLine(section)
	}

	lines := splitLines(section)
	if len(lines) == 0 {
		return nil, false
	}
	indent := leadingSpace(lines[0])

	params := make([]signature.Parameter, 0, len(lines))
	for _, line := range lines {
		if !isEntryLine(line, indent) {
			continue
		}

		arg, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		arg = strings.TrimSpace(arg)

		if opts.SkipVariadic && signature.IsVariadicName(arg) {
			continue
		}

		name, typ, typed := strings.Cut(arg, " ")
		if !typed {
			params = append(params, signature.Untyped(arg))
			continue
		}

		params = append(params, signature.Typed(name, normalizeGoogleType(typ)))
	}

	return params, true
}

// ParseNumPy reads the underlined `Parameters` section of a NumPy-style
// docstring.
//
// Description:
//
//	The line after the header is the underline and is skipped. The section
//	ends at a `Returns` header line (and at the first blank line when
//	BreakOnEmptyLine is set). The first line after the underline fixes the
//	entry indentation. Entries are `name : type` or a bare `name`; lines
//	consisting only of quote characters are ignored so the closing
//	delimiter is never read as a parameter.
func ParseNumPy(doc string, opts Options) ([]signature.Parameter, bool) {
	section, ok := sectionAfter(doc, numpyParamsHeader)
	if !ok {
		return nil, false
	}

	section = truncateAtHeaderLine(section, numpyReturnsHeader)
	if opts.BreakOnEmptyLine {
		section = truncateAtBlankLine(section)
	}

	lines := splitLines(section)
	if len(lines) < 2 {
		return nil, false
	}
	indent := leadingSpace(lines[1])

	params := make([]signature.Parameter, 0, len(lines))
	for _, line := range lines[1:] {
		if !isEntryLine(line, indent) {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.TrimRight(trimmed, `'"`) == "" {
			continue
		}

		name, typ, typed := strings.Cut(line, ":")
		if !typed {
			if opts.SkipVariadic && signature.IsVariadicName(trimmed) {
				continue
			}
			params = append(params, signature.Untyped(trimmed))
			continue
		}

		name = strings.TrimSpace(name)
		if opts.SkipVariadic && signature.IsVariadicName(name) {
			continue
		}
		params = append(params, signature.Typed(name, strings.TrimSpace(typ)))
	}

	return params, true
}

// =============================================================================
// HELPERS
// =============================================================================

// normalizeGoogleType strips one pair of parentheses and an optional marker.
func normalizeGoogleType(typ string) string {
	typ = strings.TrimSpace(typ)
	typ = strings.TrimPrefix(typ, "(")
	typ = strings.TrimSuffix(typ, ")")
	typ = strings.TrimSuffix(typ, ", optional")
	return typ
}

// sectionAfter returns the text following the first occurrence of header
// that is immediately followed by a line break.
func sectionAfter(text, header string) (string, bool) {
	offset := 0
	for {
		i := strings.Index(text[offset:], header)
		if i < 0 {
			return "", false
		}
		after := offset + i + len(header)
		switch {
		case strings.HasPrefix(text[after:], "\n"):
			return text[after+1:], true
		case strings.HasPrefix(text[after:], "\r\n"):
			return text[after+2:], true
		}
		offset = after
	}
}

// truncateAtHeaderLine cuts text at the start of the first line whose
// trimmed content equals one of headers.
func truncateAtHeaderLine(text string, headers ...string) string {
	start := 0
	for start < len(text) {
		end := strings.IndexByte(text[start:], '\n')
		line := text[start:]
		next := len(text)
		if end >= 0 {
			line = text[start : start+end]
			next = start + end + 1
		}
		trimmed := strings.TrimSpace(line)
		for _, h := range headers {
			if trimmed == h {
				return text[:start]
			}
		}
		start = next
	}
	return text
}

// truncateAtBlankLine cuts text at the start of the first whitespace-only
// line that is followed by more text.
func truncateAtBlankLine(text string) string {
	start := 0
	for start < len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			return text
		}
		if strings.TrimSpace(text[start:start+end]) == "" {
			return text[:start]
		}
		start += end + 1
	}
	return text
}

// splitLines splits on '\n', drops a trailing empty line and strips '\r'.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// leadingSpace counts the leading whitespace runes of line.
func leadingSpace(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

// isEntryLine reports whether line starts a new entry: exactly indent
// whitespace runes followed by a non-space rune.
func isEntryLine(line string, indent int) bool {
	n := 0
	for _, r := range line {
		if n == indent {
			return !unicode.IsSpace(r)
		}
		if !unicode.IsSpace(r) {
			return false
		}
		n++
	}
	return false
}
