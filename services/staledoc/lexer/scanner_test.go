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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lexeme struct {
	kind Kind
	text string
}

func scanAll(t *testing.T, src string) []lexeme {
	t.Helper()
	sc := NewScanner(src)
	var out []lexeme
	for i := 0; i < 10000; i++ {
		tok := sc.Next()
		if tok.Kind == TokenEOF {
			return out
		}
		out = append(out, lexeme{tok.Kind, tok.Text(src)})
	}
	require.FailNow(t, "scanner did not reach EOF")
	return nil
}

func TestScanner_Header(t *testing.T) {
	src := "def f(x, y, z):\n    \"\"\"Hello!\"\"\"\""

	assert.Equal(t, []lexeme{
		{TokenDef, "def"},
		{TokenText, "f"},
		{TokenParOpen, "("},
		{TokenText, "x"},
		{TokenComma, ","},
		{TokenText, "y"},
		{TokenComma, ","},
		{TokenText, "z"},
		{TokenParClose, ")"},
		{TokenColon, ":"},
		{TokenText, "\"\"\"Hello!\"\"\"\""},
	}, scanAll(t, src))
}

func TestScanner_Texture(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []lexeme
	}{
		{
			name: "comments are trivia",
			src:  "x # trailing (comment,\ny",
			want: []lexeme{{TokenText, "x"}, {TokenText, "y"}},
		},
		{
			name: "strings keep punctuation",
			src:  `a="x, y)" b`,
			want: []lexeme{{TokenText, "a"}, {TokenEquals, "="}, {TokenText, `"x, y)"`}, {TokenText, "b"}},
		},
		{
			name: "prefixed string",
			src:  `f"{a}, {b}"`,
			want: []lexeme{{TokenText, `f"{a}, {b}"`}},
		},
		{
			name: "comparison operators stay text",
			src:  "a==b c<=d e!=f g=h",
			want: []lexeme{
				{TokenText, "a==b"},
				{TokenText, "c<=d"},
				{TokenText, "e!=f"},
				{TokenText, "g"},
				{TokenEquals, "="},
				{TokenText, "h"},
			},
		},
		{
			name: "def needs an exact match",
			src:  "undef define def",
			want: []lexeme{{TokenText, "undef"}, {TokenText, "define"}, {TokenDef, "def"}},
		},
		{
			name: "line continuation",
			src:  "a \\\n b",
			want: []lexeme{{TokenText, "a"}, {TokenText, "b"}},
		},
		{
			name: "single-quoted string stops at newline",
			src:  "'abc\nd",
			want: []lexeme{{TokenText, "'abc"}, {TokenText, "d"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanAll(t, tt.src))
		})
	}
}

func TestScanner_Peek(t *testing.T) {
	sc := NewScanner("a b")
	assert.Equal(t, TokenText, sc.Peek().Kind)
	assert.Equal(t, 0, sc.Offset())
	assert.Equal(t, "a", sc.Next().Text("a b"))
	assert.Equal(t, "b", sc.Next().Text("a b"))
	assert.Equal(t, TokenEOF, sc.Next().Kind)
	assert.Equal(t, TokenEOF, sc.Next().Kind)
}

func TestScanner_LineAt(t *testing.T) {
	src := "a\nbb\n  ccc"
	sc := NewScanner(src)

	line, col := sc.LineAt(0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 0, col)

	line, col = sc.LineAt(8)
	assert.Equal(t, 3, line)
	assert.Equal(t, 3, col)

	// Going backwards restarts the cursor.
	line, col = sc.LineAt(3)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)
}
