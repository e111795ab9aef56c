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

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// Triple-quote delimiters recognised as docstring literals.
const (
	DoubleQuoteDelimiter = `"""`
	SingleQuoteDelimiter = `'''`
)

// ExtractLiteral returns the span of a leading triple-quoted literal in the
// text of a function body.
//
// Description:
//
//	The text must begin with a delimiter; nothing is skipped. The closing
//	delimiter is the next occurrence of the same delimiter after offset 3.
//	The returned span is relative to text and includes both delimiters.
//
// Outputs:
//   - signature.Span: The literal, delimiters included.
//   - bool: False when the text does not start with a delimiter or when the
//     literal is never closed. Callers treat both as "no docstring".
func ExtractLiteral(text string) (signature.Span, bool) {
	return FindClosing(text, 0)
}

// FindClosing applies the ExtractLiteral rule at an arbitrary offset of a
// raw source buffer and returns an absolute span.
func FindClosing(source string, start int) (signature.Span, bool) {
	if start < 0 || start > len(source) {
		return signature.Span{}, false
	}

	rest := source[start:]
	delim := openingDelimiter(rest)
	if delim == "" {
		return signature.Span{}, false
	}

	end := strings.Index(rest[len(delim):], delim)
	if end < 0 {
		return signature.Span{}, false
	}

	return signature.Span{
		Start: start,
		End:   start + len(delim) + end + len(delim),
	}, true
}

// StartsWithDelimiter reports whether text begins with a triple quote.
func StartsWithDelimiter(text string) bool {
	return openingDelimiter(text) != ""
}

func openingDelimiter(text string) string {
	switch {
	case strings.HasPrefix(text, DoubleQuoteDelimiter):
		return DoubleQuoteDelimiter
	case strings.HasPrefix(text, SingleQuoteDelimiter):
		return SingleQuoteDelimiter
	default:
		return ""
	}
}
