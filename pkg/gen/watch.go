// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gen

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Thermoquad/telemgen/pkg/config"
)

// DefaultDebounce is how long Watch waits for a burst of edits to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watch calls run once, then again whenever one of inputs changes, until
// ctx is done. Parent directories are watched rather than the files so
// editors that save by rename keep triggering. Errors from run are handed to
// onError and do not stop the watch.
func Watch(ctx context.Context, inputs []string, debounce time.Duration, run func(context.Context) error, onError func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	watched := make(map[string]bool, len(inputs))
	dirs := make(map[string]bool)
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	if err := run(ctx); err != nil {
		onError(err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onError(fmt.Errorf("watch: %w", err))

		case <-timer.C:
			if err := run(ctx); err != nil {
				onError(err)
			}
		}
	}
}

// Watch regenerates boards whenever the config or a schema it names
// changes. The config is reloaded before every run; inputs added by an edit
// are picked up on the next Watch.
func (g *Generator) Watch(ctx context.Context, boards ...string) error {
	inputs := g.cfg.Inputs()
	run := func(ctx context.Context) error {
		if g.cfg.Path != "" {
			cfg, err := config.Load(g.cfg.Path)
			if err != nil {
				return err
			}
			g.cfg = cfg
		}
		selected, err := g.cfg.Select(boards...)
		if err != nil {
			return err
		}
		results, err := g.Generate(ctx, selected...)
		if err != nil {
			return err
		}
		changed := 0
		for _, r := range results {
			if r.Status != StatusUnchanged {
				changed++
			}
		}
		g.logger.Info("regenerated", "files", len(results), "changed", changed)
		return nil
	}
	onError := func(err error) {
		g.logger.Error("generation failed", "error", err)
	}
	g.logger.Info("watching for schema changes", "inputs", len(inputs))
	return Watch(ctx, inputs, DefaultDebounce, run, onError)
}
