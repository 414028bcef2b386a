// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/gen"
)

var (
	genBoards      []string
	genCheck       bool
	genDryRun      bool
	genWatch       bool
	genForce       bool
	genDropOrphans bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate firmware and decoder sources for each board",
	Long: `Compile every board in the project and write its generated files.

Each board produces the telemetry packer, globals, command dispatch table,
command stubs and (with a test case) the simulation tables. A board with a
decoder output also gets a Go package that decodes its packets.

Code between BEGIN/END USER SECTION markers is carried over from the existing
files. Nothing is written unless every board compiles and every existing file
merges cleanly.

Exit codes:
  0 - Success (with --check: everything up to date)
  1 - Schema, config or merge error (with --check: files out of date)`,
	RunE: runGenerate,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify generated files are up to date",
	Long: `Render every board and compare the result with the files on disk without
writing anything. Exits non-zero if any file would change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		genCheck = true
		return runGenerate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(checkCmd)

	for _, c := range []*cobra.Command{generateCmd, checkCmd} {
		c.Flags().StringSliceVar(&genBoards, "board", nil, "Board name or id (repeatable, default: all)")
	}
	generateCmd.Flags().BoolVar(&genCheck, "check", false, "Fail if any generated file is out of date")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Report what would change without writing")
	generateCmd.Flags().BoolVar(&genWatch, "watch", false, "Regenerate whenever a schema changes")
	generateCmd.Flags().BoolVar(&genForce, "force", false, "Overwrite files that were not generated by telemgen")
	generateCmd.Flags().BoolVar(&genDropOrphans, "drop-orphans", false, "Discard user sections whose command no longer exists")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	boards, err := cfg.Select(genBoards...)
	if err != nil {
		return err
	}

	opts := gen.Options{
		Force:       genForce,
		DropOrphans: genDropOrphans,
		DryRun:      genDryRun,
		Check:       genCheck,
	}
	g := gen.New(cfg, opts, newLogger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if genWatch {
		if genCheck || genDryRun {
			return fmt.Errorf("--watch cannot be combined with --check or --dry-run")
		}
		fmt.Printf("Watching %s (Ctrl+C to exit)\n", cfg.Path)
		return g.Watch(ctx, genBoards...)
	}

	results, err := g.Generate(ctx, boards...)
	if len(results) > 0 {
		printResults(results, filepath.Dir(cfg.Path))
	}
	if errors.Is(err, gen.ErrStale) {
		fmt.Println(errorStyle.Render("Generated files are out of date; run telemgen generate"))
	}
	return err
}

// printResults lists every output with its status, relative to the project.
func printResults(results []gen.Result, root string) {
	changed := 0
	for _, r := range results {
		path := r.Path
		if rel, err := filepath.Rel(root, r.Path); err == nil {
			path = rel
		}
		label := fmt.Sprintf("%-9s", r.Status)
		if genDryRun || genCheck {
			if r.Status != gen.StatusUnchanged {
				label = fmt.Sprintf("%-9s", "stale")
			}
		}
		fmt.Printf("  %s %s %s\n", statusStyle(r.Status).Render(label), dimStyle.Render(r.Board), path)
		for _, name := range r.Dropped {
			fmt.Printf("            %s\n", warningStyle.Render("dropped user section "+name))
		}
		if r.Status != gen.StatusUnchanged {
			changed++
		}
	}
	fmt.Printf("%s %d files, %d changed\n", titleStyle.Render("telemgen:"), len(results), changed)
}
