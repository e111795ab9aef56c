// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffscope restricts checks to the lines touched by a unified diff.
package diffscope

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrInvalidDiff indicates input that is not a unified diff.
var ErrInvalidDiff = errors.New("invalid diff")

const devNull = "/dev/null"

// Range is an inclusive range of new-file line numbers.
type Range struct {
	Start int
	End   int
}

// Contains reports whether line lies in the range.
func (r Range) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Overlaps reports whether the range shares a line with [start, end].
func (r Range) Overlaps(start, end int) bool {
	return start <= r.End && end >= r.Start
}

// Changes maps files to the line ranges a diff touches in their new version.
//
// Description:
//
//	Each hunk contributes its whole new-file range, context lines
//	included, so a function whose `def` line sits next to an edit is still
//	in scope. A pure deletion (zero new lines, as in `git diff -U0`)
//	contributes the lines on both sides of the gap. Deleted files
//	contribute nothing.
//
// Thread Safety: Immutable after Parse; safe for concurrent use.
type Changes struct {
	files map[string][]Range
}

// Parse reads a multi-file unified diff such as `git diff` output.
//
// Inputs:
//
//	data - The diff text. Empty input yields empty Changes.
//
// Outputs:
//
//	*Changes - Changed ranges keyed by cleaned, slash-separated path.
//	error - ErrInvalidDiff wrapping the parse failure.
func Parse(data []byte) (*Changes, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiff, err)
	}

	c := &Changes{files: make(map[string][]Range)}
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "" || name == devNull {
			continue
		}
		name = normalize(strings.TrimPrefix(name, "b/"))

		for _, h := range fd.Hunks {
			c.files[name] = append(c.files[name], hunkRange(h))
		}
		if _, ok := c.files[name]; !ok {
			// Mode or rename only: keep the file visible with no ranges.
			c.files[name] = nil
		}
	}
	return c, nil
}

// hunkRange is the new-file range of h. For a pure deletion NewStartLine
// names the line before the gap, so the range covers it and its successor.
func hunkRange(h *diff.Hunk) Range {
	start := int(h.NewStartLine)
	if h.NewLines == 0 {
		return Range{Start: max(start, 1), End: start + 1}
	}
	return Range{Start: start, End: start + int(h.NewLines) - 1}
}

// Load parses the diff at path, or standard input when path is "-".
func Load(path string) (*Changes, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading diff: %w", err)
	}
	return Parse(data)
}

// Contains reports whether line of file lies in a changed range.
//
// The file is matched exactly or, for paths that carry a prefix such as
// an absolute checkout directory, by a trailing path-segment match.
func (c *Changes) Contains(file string, line int) bool {
	for _, r := range c.ranges(file) {
		if r.Contains(line) {
			return true
		}
	}
	return false
}

// Overlaps reports whether any changed range of file shares a line with
// [start, end]. Files are matched as in Contains.
func (c *Changes) Overlaps(file string, start, end int) bool {
	for _, r := range c.ranges(file) {
		if r.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Ranges returns the changed ranges of file.
func (c *Changes) Ranges(file string) []Range {
	return c.ranges(file)
}

// Files returns the changed files in lexical order.
func (c *Changes) Files() []string {
	files := make([]string, 0, len(c.files))
	for f := range c.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (c *Changes) ranges(file string) []Range {
	file = normalize(file)
	if r, ok := c.files[file]; ok {
		return r
	}
	for name, r := range c.files {
		if strings.HasSuffix(file, "/"+name) {
			return r
		}
	}
	return nil
}

func normalize(p string) string {
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "./")
}
