// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs work when scenario files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoTargets is returned by New when nothing is given to watch.
var ErrNoTargets = errors.New("no watch targets")

// Handler receives the changed scenario files of one debounce window, in
// sorted order. It runs on the watcher goroutine.
type Handler func(ctx context.Context, paths []string)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before a batch is delivered.
	// Default: 200ms.
	Debounce time.Duration

	// Extensions are the file suffixes picked up inside watched
	// directories. Default: .yaml, .yml, .json.
	Extensions []string

	Logger *slog.Logger
}

// DefaultOptions returns the default Options.
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		Extensions: []string{".yaml", ".yml", ".json"},
		Logger:     slog.Default(),
	}
}

// Watcher batches fsnotify events for a set of scenario files and
// directories. Files are watched through their parent directory so
// editors that replace files by rename keep being observed.
type Watcher struct {
	fsw     *fsnotify.Watcher
	handler Handler
	opts    Options

	// files are explicitly named targets; dirs are watched directory
	// targets whose matching files are all of interest.
	files map[string]struct{}
	dirs  map[string]struct{}
}

// New prepares a watcher over targets, each a file or a directory.
// Directories are watched recursively.
func New(targets []string, handler Handler, opts Options) (*Watcher, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:     fsw,
		handler: handler,
		opts:    opts,
		files:   make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
	}

	for _, t := range targets {
		if err := w.add(t); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch target: %w", err)
	}

	if !info.IsDir() {
		w.files[abs] = struct{}{}
		return w.fsw.Add(filepath.Dir(abs))
	}

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != abs && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.dirs[path] = struct{}{}
		return w.fsw.Add(path)
	})
}

// Files returns the scenario files currently matched by the targets.
func (w *Watcher) Files() []string {
	var out []string
	for f := range w.files {
		out = append(out, f)
	}
	for d := range w.dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			p := filepath.Join(d, e.Name())
			if !e.IsDir() && w.matches(p) {
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// matches reports whether path is a scenario file of interest.
func (w *Watcher) matches(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(path)]; !ok {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(w.opts.Extensions, ext)
}

// Run delivers batches to the handler until ctx is cancelled, then closes
// the watcher. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.track(ev)
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer, timerC = nil, nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			slices.Sort(batch)
			if w.handler != nil {
				w.handler(ctx, batch)
			}
		}
	}
}

// track follows directories created under a watched directory.
func (w *Watcher) track(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}
	if _, ok := w.dirs[filepath.Dir(ev.Name)]; !ok {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(ev.Name); err != nil {
		w.opts.Logger.Warn("watch new directory", slog.String("path", ev.Name), slog.String("error", err.Error()))
		return
	}
	w.dirs[ev.Name] = struct{}{}
}
