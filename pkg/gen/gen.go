// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gen drives a generation run: it compiles every selected board,
// renders its artifacts, merges preserved user regions from the files on
// disk and only then writes. Any error aborts the run before the first
// write.
package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/telemgen/pkg/config"
	"github.com/Thermoquad/telemgen/pkg/emit"
	"github.com/Thermoquad/telemgen/pkg/preserve"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

// ErrStale is returned by a check run when any output differs from what
// would be generated.
var ErrStale = errors.New("gen: generated files are out of date")

// Options control how a run treats existing files.
type Options struct {
	// Force overwrites existing files that carry no generated markers.
	Force bool
	// DropOrphans discards preserved regions whose section no longer exists.
	DropOrphans bool
	// DryRun renders and compares without writing.
	DryRun bool
	// Check is DryRun that fails with ErrStale when anything would change.
	Check bool
}

// Status describes what a run did, or would do, to one output file.
type Status int

const (
	StatusUnchanged Status = iota
	StatusCreated
	StatusUpdated
)

func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusCreated:
		return "created"
	case StatusUpdated:
		return "updated"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result reports one output file.
type Result struct {
	Board  string
	Path   string
	Status Status

	// Dropped names orphaned regions discarded with DropOrphans.
	Dropped []string
}

// Output is a rendered artifact bound to its destination.
type Output struct {
	Board    config.Board
	Path     string
	Artifact emit.Artifact
}

// Generator runs the pipeline for a project config.
type Generator struct {
	cfg     *config.Config
	opts    Options
	logger  *slog.Logger
	workers int
}

// New creates a generator. A nil logger discards log output.
func New(cfg *config.Config, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{cfg: cfg, opts: opts, logger: logger, workers: runtime.GOMAXPROCS(0)}
}

// Render compiles one board and binds its artifacts to output paths. It
// reads schemas but never touches output files.
func (g *Generator) Render(ctx context.Context, b config.Board) ([]Output, error) {
	cmds, err := LoadCommands(g.cfg)
	if err != nil {
		return nil, err
	}
	return g.render(ctx, b, cmds)
}

func (g *Generator) render(ctx context.Context, b config.Board, cmds []schema.Command) ([]Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := Compile(g.cfg, b, cmds)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", b.Name, err)
	}

	arts := m.Artifacts()
	out := make([]Output, 0, len(arts))
	for _, a := range arts {
		dir := b.Outputs.Dir(a.Kind.String())
		if dir == "" {
			continue
		}
		out = append(out, Output{Board: b, Path: filepath.Join(dir, a.Name), Artifact: a})
	}
	g.logger.Debug("rendered board", "board", b.Name, "id", b.ID, "packet_bytes", m.Layout.Size, "files", len(out))
	return out, nil
}

// pending is a fully merged file waiting to be written.
type pending struct {
	result Result
	data   []byte
}

// Generate renders every board concurrently, merges each output with the
// file it replaces and writes the changed files. Boards default to every
// board in the config.
func (g *Generator) Generate(ctx context.Context, boards ...config.Board) ([]Result, error) {
	if len(boards) == 0 {
		boards = g.cfg.Boards
	}

	cmds, err := LoadCommands(g.cfg)
	if err != nil {
		return nil, err
	}

	rendered := make([][]Output, len(boards))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, b := range boards {
		eg.Go(func() error {
			out, err := g.render(egCtx, b, cmds)
			rendered[i] = out
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	outputs := slices.Concat(rendered...)
	if err := checkCollisions(outputs); err != nil {
		return nil, err
	}

	// Every prior file is read and merged before anything is written.
	var errs []error
	files := make([]pending, 0, len(outputs))
	for _, o := range outputs {
		p, err := g.merge(o)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	results := make([]Result, len(files))
	stale := false
	for i, p := range files {
		results[i] = p.result
		stale = stale || p.result.Status != StatusUnchanged
	}

	if g.opts.Check {
		if stale {
			return results, ErrStale
		}
		return results, nil
	}
	if g.opts.DryRun {
		return results, nil
	}

	for _, p := range files {
		if p.result.Status == StatusUnchanged {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := writeFile(p.result.Path, p.data); err != nil {
			return results, err
		}
		g.logger.Info("wrote file", "board", p.result.Board, "path", p.result.Path, "status", p.result.Status)
	}
	return results, nil
}

// merge reads the file an output replaces, carries its user regions over
// and reports whether the content changes.
func (g *Generator) merge(o Output) (pending, error) {
	res := Result{Board: o.Board.Name, Path: o.Path}

	prior, err := os.ReadFile(o.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		prior = nil
	case err != nil:
		return pending{}, fmt.Errorf("read %s: %w", o.Path, err)
	}

	regions, err := preserve.Load(o.Path, prior, g.opts.Force)
	if err != nil {
		return pending{}, err
	}

	used := make(map[string]bool)
	for _, s := range o.Artifact.Sections() {
		used[s] = true
	}
	if orphans := regions.Orphans(used); len(orphans) > 0 {
		names := make([]string, len(orphans))
		for i, r := range orphans {
			names[i] = r.Name
		}
		if !g.opts.DropOrphans {
			return pending{}, &preserve.OrphanedRegionError{Path: o.Path, Names: names}
		}
		res.Dropped = names
		g.logger.Warn("dropping orphaned user sections", "path", o.Path, "sections", names)
	}

	data, err := o.Artifact.Render(regions)
	if err != nil {
		return pending{}, err
	}

	switch {
	case prior == nil:
		res.Status = StatusCreated
	case !bytes.Equal(prior, data):
		res.Status = StatusUpdated
	}
	return pending{result: res, data: data}, nil
}

// checkCollisions rejects two outputs sharing a path, which happens when
// boards share an output directory.
func checkCollisions(outputs []Output) error {
	owner := make(map[string]string, len(outputs))
	var errs []error
	for _, o := range outputs {
		if prev, dup := owner[o.Path]; dup {
			errs = append(errs, fmt.Errorf("gen: %s is generated for both %s and %s", o.Path, prev, o.Board.Name))
			continue
		}
		owner[o.Path] = o.Board.Name
	}
	return errors.Join(errs...)
}
