// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// Sentinel errors for tree extraction failures.
//
// These errors can be checked using errors.Is() to determine the
// category of failure without inspecting error messages.
var (
	// ErrInvalidContent indicates that the source is not valid UTF-8.
	ErrInvalidContent = signature.ErrInvalidContent

	// ErrFileTooLarge is returned when input content exceeds the maximum
	// file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrParseFailed indicates tree-sitter produced no tree at all.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvariant indicates the syntax tree contradicts the grammar the
	// extractor was written against, such as a typed parameter without a
	// name. It is never raised for syntax errors in the source, which
	// tree-sitter recovers from.
	ErrInvariant = errors.New("syntax tree invariant violated")
)

// NodeError locates an invariant violation in the source.
//
// Example:
//
//	var nodeErr *NodeError
//	if errors.As(err, &nodeErr) {
//	    fmt.Printf("line %d: %s\n", nodeErr.Line, nodeErr.Message)
//	}
type NodeError struct {
	// Line is the 1-indexed line of the offending node.
	Line int

	// Column is the 0-indexed column of the offending node.
	Column int

	// NodeType is the tree-sitter node type.
	NodeType string

	// Message describes the violation.
	Message string

	// Cause is the underlying sentinel, normally ErrInvariant.
	Cause error
}

// Error returns a formatted error message including the node location.
func (e *NodeError) Error() string {
	return fmt.Sprintf("%d:%d: %s node: %s", e.Line, e.Column, e.NodeType, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// IsInvariant checks if an error is or wraps ErrInvariant.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}
