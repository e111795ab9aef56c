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

// Tree-sitter node types and field names read by the tree extractor.
//
// Reference: https://github.com/tree-sitter/tree-sitter-python/blob/master/src/grammar.json
const (
	pyNodeFunctionDefinition    = "function_definition"
	pyNodeDef                   = "def"
	pyNodeColon                 = ":"
	pyNodeIdentifier            = "identifier"
	pyNodeTypedParameter        = "typed_parameter"
	pyNodeDefaultParameter      = "default_parameter"
	pyNodeTypedDefaultParameter = "typed_default_parameter"
	pyNodeListSplatPattern      = "list_splat_pattern"
	pyNodeDictSplatPattern      = "dictionary_splat_pattern"
	pyNodeComment               = "comment"

	pyFieldName       = "name"
	pyFieldParameters = "parameters"
	pyFieldType       = "type"
	pyFieldBody       = "body"
)

// receiverName is the only receiver dropped from parameter lists.
const receiverName = "self"
