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
	"errors"
	"fmt"

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// Sentinel errors for structural scan failures.
var (
	// ErrUnexpectedEOF indicates the source ended before a function header
	// was closed.
	ErrUnexpectedEOF = errors.New("unexpected end of source")

	// ErrMalformedHeader indicates a token that cannot appear where the
	// scanner found it, such as two names in a row inside a parameter list.
	ErrMalformedHeader = errors.New("malformed function header")

	// ErrInvalidContent indicates that the source is not valid UTF-8.
	ErrInvalidContent = signature.ErrInvalidContent
)

// ScanError describes where the lexer strategy gave up on a file.
type ScanError struct {
	// Offset is the byte offset of the offending token.
	Offset int

	// Line is the 1-indexed line of the offending token.
	Line int

	// Function is the name of the function being scanned, if known.
	Function string

	// Message describes what the scanner expected.
	Message string

	// Cause is ErrUnexpectedEOF or ErrMalformedHeader.
	Cause error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("line %d: %s in %s: %v", e.Line, e.Message, e.Function, e.Cause)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Cause)
}

// Unwrap returns the underlying sentinel.
func (e *ScanError) Unwrap() error {
	return e.Cause
}
