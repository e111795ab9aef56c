// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery expands command-line paths into the Python files to check.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrBadPattern indicates a malformed include or exclude glob.
	ErrBadPattern = errors.New("bad glob pattern")

	// ErrPathNotFound indicates a root that does not exist.
	ErrPathNotFound = errors.New("path not found")
)

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{"__pycache__", "venv", ".venv", "node_modules"}

// Walker selects files under a set of roots.
//
// Description:
//
//	Directories are walked recursively. Walked files are kept when they
//	match an include glob and no exclude glob. Files named explicitly are
//	kept unless excluded. Hidden directories and DefaultIgnoreDirs are
//	skipped.
//
//	Globs are slash-separated and matched against the path relative to the
//	root being walked. `**` matches any number of directories. A pattern
//	without a slash matches the base name at any depth.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Walker struct {
	include    []string
	exclude    []string
	ignoreDirs map[string]bool
	logger     *slog.Logger
}

// Option configures the Walker.
type Option func(*Walker)

// WithLogger sets the logger for skipped paths.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithIgnoreDirs replaces DefaultIgnoreDirs.
func WithIgnoreDirs(names ...string) Option {
	return func(w *Walker) {
		w.ignoreDirs = make(map[string]bool, len(names))
		for _, n := range names {
			w.ignoreDirs[n] = true
		}
	}
}

// NewWalker validates the globs and creates a walker.
//
// Inputs:
//
//	include - Globs a walked file must match. Empty means every file.
//	exclude - Globs that remove files and prune directories.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Walker - The walker.
//	error - ErrBadPattern naming the first malformed glob.
func NewWalker(include, exclude []string, opts ...Option) (*Walker, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if err := checkPattern(p); err != nil {
			return nil, err
		}
	}

	w := &Walker{
		include: include,
		exclude: exclude,
		logger:  slog.Default(),
	}
	WithIgnoreDirs(DefaultIgnoreDirs...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Collect returns the sorted, de-duplicated files selected under roots.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per directory entry.
//	roots - Files or directories.
//
// Outputs:
//
//	[]string - Selected files, cleaned, in lexical order.
//	error - ErrPathNotFound for a missing root, or the walk or context error.
func (w *Walker) Collect(ctx context.Context, roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range roots {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, root)
			}
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if w.excluded(filepath.ToSlash(root)) {
				w.logger.Debug("explicit file excluded", slog.String("path", root))
				continue
			}
			add(root)
			continue
		}

		if err := w.walk(ctx, root, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (w *Walker) walk(ctx context.Context, root string, add func(string)) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("walk error",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == root {
				return nil
			}
			if w.skipDir(d.Name(), rel) {
				w.logger.Debug("directory skipped", slog.String("path", p))
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if w.included(rel) && !w.excluded(rel) {
			add(p)
		}
		return nil
	})
}

// Selects reports whether a file at rel, relative to a walked root, would
// be collected. Used by watch mode to filter change events.
func (w *Walker) Selects(rel string) bool {
	rel = filepath.ToSlash(rel)
	dir := path.Dir(rel)
	for dir != "." && dir != "/" {
		if w.skipDir(path.Base(dir), dir) {
			return false
		}
		dir = path.Dir(dir)
	}
	return w.included(rel) && !w.excluded(rel)
}

func (w *Walker) skipDir(name, rel string) bool {
	if strings.HasPrefix(name, ".") || w.ignoreDirs[name] {
		return true
	}
	for _, p := range w.exclude {
		if Match(p, rel) {
			return true
		}
		if dir, ok := strings.CutSuffix(p, "/**"); ok && Match(dir, rel) {
			return true
		}
	}
	return false
}

func (w *Walker) included(rel string) bool {
	if len(w.include) == 0 {
		return true
	}
	for _, p := range w.include {
		if Match(p, rel) {
			return true
		}
	}
	return false
}

func (w *Walker) excluded(rel string) bool {
	for _, p := range w.exclude {
		if Match(p, rel) {
			return true
		}
	}
	return false
}

// =============================================================================
// Glob Matching
// =============================================================================

// Match reports whether the slash-separated name matches pattern.
//
// Each segment is matched with path.Match, and a `**` segment matches zero
// or more segments. A pattern with no slash is matched against the last
// segment of name only. Malformed patterns never match.
func Match(pattern, name string) bool {
	if !strings.Contains(pattern, "/") {
		ok, err := path.Match(pattern, path.Base(name))
		return err == nil && ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

func checkPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
	}
	return nil
}
