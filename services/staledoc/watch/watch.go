// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-checks Python files as they are saved.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/staledoc/services/staledoc/discovery"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 200 * time.Millisecond

// Handler receives each debounced batch of changed files, sorted and
// de-duplicated. It runs on the watcher goroutine; events arriving
// meanwhile are buffered by fsnotify.
type Handler func(ctx context.Context, paths []string)

// Watcher watches files and directory trees for writes and creations.
//
// # Description
//
// Directory roots are watched recursively, skipping hidden directories
// and discovery.DefaultIgnoreDirs. Directories created later are added as
// they appear. File roots are watched through their parent directory and
// only that file is reported.
//
// # Debouncing
//
// Changes are collected into a set. When the debounce period passes
// without new changes, the set is handed to the handler. Editors that
// save through rename-and-replace produce a Create, which is reported
// like a Write.
//
// # Thread Safety
//
// Run must be called once. The handler is called from a single goroutine.
type Watcher struct {
	roots    []string
	dirRoots []string
	files    map[string]bool
	handler  Handler
	debounce time.Duration
	accept   func(path string) bool
	ignore   map[string]bool
	logger   *slog.Logger

	fsw       *fsnotify.Watcher
	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter replaces the default `.py` suffix filter for files under
// directory roots.
func WithFilter(accept func(path string) bool) Option {
	return func(w *Watcher) {
		if accept != nil {
			w.accept = accept
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// IsPython reports whether path names a Python source file.
func IsPython(path string) bool {
	return strings.HasSuffix(path, ".py")
}

// New creates a watcher for roots.
//
// # Inputs
//
//   - roots: Files or directories. Must exist.
//   - handler: Called with each debounced batch.
//   - opts: Optional configuration.
//
// # Outputs
//
//   - *Watcher: Ready to Run.
//   - error: Non-nil if a root is missing or fsnotify is unavailable.
func New(roots []string, handler Handler, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		files:    make(map[string]bool),
		handler:  handler,
		debounce: DefaultDebounce,
		accept:   IsPython,
		ignore:   make(map[string]bool),
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}
	for _, d := range discovery.DefaultIgnoreDirs {
		w.ignore[d] = true
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		w.roots = append(w.roots, abs)
		if info.IsDir() {
			w.dirRoots = append(w.dirRoots, abs)
		} else {
			w.files[abs] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw
	return w, nil
}

// Ready is closed once every root is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is canceled. Pending changes are dropped on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for _, r := range w.dirRoots {
		if err := w.addRecursive(r); err != nil {
			return err
		}
	}
	for f := range w.files {
		if err := w.fsw.Add(filepath.Dir(f)); err != nil {
			return err
		}
	}
	w.readyOnce.Do(func() { close(w.ready) })

	w.logger.Info("watching",
		slog.Int("roots", len(w.roots)),
		slog.Duration("debounce", w.debounce),
	)

	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.consider(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timerC = nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			sort.Strings(batch)

			w.logger.Debug("changes detected", slog.Int("files", len(batch)))
			if w.handler != nil {
				w.handler(ctx, batch)
			}
		}
	}
}

// consider adds new directories to the watch list and reports whether
// event names a file to re-check.
func (w *Watcher) consider(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if w.files[event.Name] {
		return true
	}
	if !w.underDirRoot(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.skipDir(filepath.Base(event.Name)) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("watch add failed",
						slog.String("path", event.Name),
						slog.String("error", err.Error()),
					)
				}
			}
			return false
		}
	}
	return w.accept(event.Name)
}

func (w *Watcher) underDirRoot(path string) bool {
	for _, r := range w.dirRoots {
		if strings.HasPrefix(path, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || w.ignore[name]
}

// addRecursive adds a directory and all subdirectories to the watch list.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
