// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/config"
	"github.com/Thermoquad/telemgen/pkg/gen"
)

var (
	// Project flags
	configPath string
	verbose    bool

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "telemgen",
	Short: "Telemetry and command code generator",
	Long: `Telemgen - Generate firmware telemetry and command code from CSV schemas.

A telemgen.yaml project file names the shared command schema and one entry per
board: its data schema, an optional simulation test case and the directories
generated files are written to. Without --config the file is searched for in
the current directory and its parents.

Besides generation, telemgen decodes captured telemetry packets and encodes
command frames using the same layout the firmware was generated from.

Connection modes (capture, command --send):
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the TELEMGEN_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Project file (default: search for "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every step to stderr")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command. Errors are printed to stdout so schema row
// numbers show up next to the rest of the report.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Println(errorStyle.Render("error:"), err)
	}
	return err
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, or the nearest project file above the working
// directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path, err := config.Find(wd)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// loadModel compiles the single board named by selector.
func loadModel(selector string) (*gen.Model, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	b, err := cfg.Board(selector)
	if err != nil {
		return nil, err
	}
	cmds, err := gen.LoadCommands(cfg)
	if err != nil {
		return nil, err
	}
	m, err := gen.Compile(cfg, b, cmds)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", b.Name, err)
	}
	return m, nil
}
