// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/telem"
)

var rawLogBoard string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display live telemetry frames in human-readable format",
	Long: `Continuously decode and display telemetry packets as they arrive, using a
board's packet layout. Each frame is printed with its arrival time, decoded
values and raw bytes.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogBoard, "board", "", "Board name or id")
	_ = rawLogCmd.MarkFlagRequired("board")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	m, err := loadModel(rawLogBoard)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Telemgen - Raw Frame Log\n")
	fmt.Printf("Board: %s (%d byte packets)\n", m.Board.Name, m.Layout.Size)
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	start := time.Now()
	fr := telem.NewFrameReader(conn, m.Codec())
	for {
		frame, err := fr.Next()
		switch {
		case err == nil:
			fmt.Print(telem.FormatFrame(time.Since(start).Seconds(), frame))
			fmt.Printf("  raw: %s\n", telem.FormatHex(frame.Raw))
		case errors.Is(err, ErrConnectionClosed), errors.Is(err, io.EOF):
			log.Printf("Connection closed after %d frames", fr.Frames())
			return nil
		case errors.Is(err, telem.ErrShortFrame):
			fmt.Printf("[ERROR] %v\n", err)
			return nil
		default:
			return fmt.Errorf("read: %w", err)
		}
	}
}
