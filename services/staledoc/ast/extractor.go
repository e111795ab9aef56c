// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast implements the syntax-tree signature extraction strategy on
// top of tree-sitter's Python grammar.
package ast

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/staledoc/services/staledoc/docstring"
	"github.com/AleutianAI/staledoc/services/staledoc/signature"
)

// File size constants for security validation.
const (
	// DefaultMaxFileSize is the maximum file size the extractor will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// TreeExtractorOption configures a TreeExtractor instance.
type TreeExtractorOption func(*TreeExtractor)

// WithMaxFileSize sets the maximum source size the extractor will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	e := NewTreeExtractor(WithMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithMaxFileSize(bytes int64) TreeExtractorOption {
	return func(e *TreeExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithSkipVariadic drops `*args` and `**kwargs` style parameters.
func WithSkipVariadic(skip bool) TreeExtractorOption {
	return func(e *TreeExtractor) {
		e.skipVariadic = skip
	}
}

// WithLogger sets the logger for large-file warnings and debug records.
func WithLogger(logger *slog.Logger) TreeExtractorOption {
	return func(e *TreeExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// TreeExtractor implements signature.Extractor by walking a tree-sitter
// syntax tree.
//
// Description:
//
//	Every Extract call parses the whole source into a tree, then visits
//	function_definition nodes in pre-order, so outer functions are reported
//	before the functions nested in them. Tree-sitter is error-tolerant:
//	syntax errors produce ERROR nodes and never fail the extraction.
//
// Thread Safety:
//
//	TreeExtractor instances are safe for concurrent use. Each Extract call
//	creates its own tree-sitter parser internally.
//
// Example:
//
//	e := NewTreeExtractor(WithSkipVariadic(true))
//	err := e.Extract(ctx, source, func(sig *signature.Signature) error {
//	    fmt.Println(sig.Name, signature.FormatParams(sig.Params))
//	    return nil
//	})
type TreeExtractor struct {
	maxFileSize  int64
	skipVariadic bool
	logger       *slog.Logger
}

// NewTreeExtractor creates a new TreeExtractor with the given options.
//
// Inputs:
//   - opts: Optional configuration functions (WithMaxFileSize, WithSkipVariadic, WithLogger)
//
// Outputs:
//   - *TreeExtractor: Configured extractor, never nil
func NewTreeExtractor(opts ...TreeExtractorOption) *TreeExtractor {
	e := &TreeExtractor{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Strategy implements signature.Extractor.
func (e *TreeExtractor) Strategy() signature.Strategy {
	return signature.StrategyTree
}

// Extract walks source and calls visit once per function definition.
//
// Description:
//
//	Validates size and encoding, parses with tree-sitter, then walks the
//	tree with a cursor. The signature handed to visit is reused for the
//	next function.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before parsing and between
//     functions. Tree-sitter parsing itself honours ctx via ParseCtx.
//   - source: Whole-file Python source. Must be valid UTF-8.
//   - visit: Callback per function, in pre-order.
//
// Outputs:
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: Source exceeds the configured maximum
//   - ErrInvalidContent: Source is not valid UTF-8
//   - ErrInvariant: The tree contradicts the grammar (wrapped in *NodeError)
//   - Context errors, or the first error returned by visit
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (e *TreeExtractor) Extract(ctx context.Context, source string, visit signature.VisitFunc) error {
	ctx, span := startExtractSpan(ctx, len(source))
	defer span.End()

	start := time.Now()
	count := 0
	fail := func(err error) error {
		recordExtractMetrics(ctx, time.Since(start), count, false)
		span.RecordError(err)
		return err
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("extract canceled before start: %w", err))
	}

	if int64(len(source)) > e.maxFileSize {
		return fail(fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(source), e.maxFileSize))
	}

	if len(source) > WarnFileSize {
		e.logger.Warn("parsing large file",
			slog.Int("size_bytes", len(source)))
	}

	if !utf8.ValidString(source) {
		return fail(fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent))
	}

	// Create tree-sitter parser (new instance per call for thread safety)
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(source))
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrParseFailed, err))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return fail(fmt.Errorf("%w: tree-sitter returned nil root node", ErrParseFailed))
	}

	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	var sig signature.Signature
	for {
		node := cursor.CurrentNode()

		ok, err := FunctionSignature(node, source, e.skipVariadic, &sig)
		if err != nil {
			return fail(err)
		}
		if ok {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if !sig.HasDocstring && docstring.StartsWithDelimiter(firstStatementText(node, source)) {
				e.logger.Debug("unterminated docstring treated as absent",
					slog.String("function", sig.Name),
					slog.Int("line", sig.Line))
			}
			count++
			if err := visit(&sig); err != nil {
				return fail(err)
			}
		}

		if cursor.GoToFirstChild() {
			continue
		}
		for !cursor.GoToNextSibling() {
			if !cursor.GoToParent() {
				setExtractSpanResult(span, count, root.HasError())
				recordExtractMetrics(ctx, time.Since(start), count, true)
				return nil
			}
		}
	}
}

// Compile-time interface check.
var _ signature.Extractor = (*TreeExtractor)(nil)

// =============================================================================
// NODE EXTRACTION
// =============================================================================

// FunctionSignature fills sig from a function_definition node.
//
// Description:
//
//	Returns false for any other node type and for a definition without a
//	parameters child. Parameters are read in declaration order:
//	  - identifier: untyped parameter
//	  - typed_parameter: name (or splat pattern) and its annotation
//	  - default_parameter, typed_default_parameter: name only, the
//	    annotation of a defaulted parameter is not kept
//	  - list_splat_pattern, dictionary_splat_pattern: `*name`, `**name`
//	  - separators and comments: ignored
//	`self` is never included. The docstring is the triple-quoted literal
//	at the start of the first statement of the body. EndLine is the line
//	of the header's `:`, or of the docstring's closing delimiter.
//
// Inputs:
//   - node: Any tree-sitter node.
//   - source: The exact source the tree was parsed from.
//   - skipVariadic: Drop splat parameters.
//   - sig: Scratch signature, reset before use.
//
// Outputs:
//   - bool: True if node is a function definition and sig was filled.
//   - error: *NodeError wrapping ErrInvariant for trees that break the grammar.
func FunctionSignature(node *sitter.Node, source string, skipVariadic bool, sig *signature.Signature) (bool, error) {
	if node == nil || node.Type() != pyNodeFunctionDefinition {
		return false, nil
	}
	params := node.ChildByFieldName(pyFieldParameters)
	if params == nil {
		return false, nil
	}

	sig.Reset()
	sig.Location = location(node, source)

	for i := 0; i < int(params.NamedChildCount()); i++ {
		p, ok, err := parameter(params.NamedChild(i), source)
		if err != nil {
			return false, err
		}
		switch {
		case !ok:
		case p.Name == receiverName:
		case skipVariadic && p.IsVariadic():
		default:
			sig.Params = append(sig.Params, p)
		}
	}

	sig.EndLine = sig.Line
	if colon := headerColon(node); colon != nil {
		sig.EndLine = int(colon.StartPoint().Row) + 1
	}

	if first := firstStatement(node); first != nil {
		if span, ok := docstring.FindClosing(source, int(first.StartByte())); ok {
			sig.Docstring = span
			sig.HasDocstring = true
			sig.EndLine = sig.LineOf(source, span.End-1)
		}
	}

	return true, nil
}

// headerColon returns the `:` that ends the function header. Colons inside
// annotations belong to nested nodes.
func headerColon(fn *sitter.Node) *sitter.Node {
	for i := 0; i < int(fn.ChildCount()); i++ {
		if child := fn.Child(i); child.Type() == pyNodeColon {
			return child
		}
	}
	return nil
}

// parameter converts one named child of a parameters node.
func parameter(node *sitter.Node, source string) (signature.Parameter, bool, error) {
	switch node.Type() {
	case pyNodeIdentifier:
		return signature.Untyped(text(node, source)), true, nil

	case pyNodeTypedParameter:
		name := typedParameterName(node)
		if name == nil {
			return signature.Parameter{}, false, invariant(node, "typed parameter without a name")
		}
		typ := node.ChildByFieldName(pyFieldType)
		if typ == nil {
			return signature.Untyped(text(name, source)), true, nil
		}
		return signature.Typed(text(name, source), text(typ, source)), true, nil

	case pyNodeDefaultParameter, pyNodeTypedDefaultParameter:
		name := node.ChildByFieldName(pyFieldName)
		if name == nil {
			return signature.Parameter{}, false, invariant(node, "default parameter without a name")
		}
		return signature.Untyped(text(name, source)), true, nil

	case pyNodeListSplatPattern, pyNodeDictSplatPattern:
		// Older grammars emit a bare `*` separator as an empty splat.
		if node.NamedChildCount() == 0 {
			return signature.Parameter{}, false, nil
		}
		return signature.Untyped(text(node, source)), true, nil

	default:
		return signature.Parameter{}, false, nil
	}
}

// typedParameterName returns the identifier or splat pattern of a
// typed_parameter node.
func typedParameterName(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case pyNodeIdentifier, pyNodeListSplatPattern, pyNodeDictSplatPattern:
			return child
		}
	}
	return nil
}

// firstStatement returns the first non-comment statement of the body.
func firstStatement(fn *sitter.Node) *sitter.Node {
	body := fn.ChildByFieldName(pyFieldBody)
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != pyNodeComment {
			return child
		}
	}
	return nil
}

func firstStatementText(fn *sitter.Node, source string) string {
	first := firstStatement(fn)
	if first == nil {
		return ""
	}
	return text(first, source)
}

// location anchors the function at its `def` keyword so that `async def`
// reports the same column under both strategies.
func location(fn *sitter.Node, source string) signature.Location {
	anchor := fn
	for i := 0; i < int(fn.ChildCount()); i++ {
		if child := fn.Child(i); child.Type() == pyNodeDef {
			anchor = child
			break
		}
	}

	loc := signature.Location{
		Line:   int(anchor.StartPoint().Row) + 1,
		Column: int(anchor.StartPoint().Column),
		Offset: int(anchor.StartByte()),
	}
	if name := fn.ChildByFieldName(pyFieldName); name != nil {
		loc.Name = text(name, source)
	}
	return loc
}

// text slices the node out of the original string so no bytes are copied.
func text(node *sitter.Node, source string) string {
	return signature.Span{Start: int(node.StartByte()), End: int(node.EndByte())}.Text(source)
}

func invariant(node *sitter.Node, msg string) error {
	return &NodeError{
		Line:     int(node.StartPoint().Row) + 1,
		Column:   int(node.StartPoint().Column),
		NodeType: node.Type(),
		Message:  msg,
		Cause:    ErrInvariant,
	}
}
