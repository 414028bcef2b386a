// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/telem"
)

var (
	packetTestBoard   string
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test a connection by waiting for one telemetry packet",
	Long: `Wait until one full telemetry packet of the board's size has arrived on
the connection, then decode it and check it against the schema bounds.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a packet
  2 - Connection error

Useful for testing connectivity to a board or its WebSocket bridge.`,
	Args: cobra.NoArgs,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().StringVar(&packetTestBoard, "board", "", "Board name or id")
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
	_ = packetTestCmd.MarkFlagRequired("board")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	m, err := loadModel(packetTestBoard)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Telemgen - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for a %d byte %s packet...\n\n", m.Layout.Size, m.Board.Name)

	type result struct {
		frame *telem.Frame
		err   error
	}
	done := make(chan result, 1)
	go func() {
		frame, err := telem.NewFrameReader(conn, m.Codec()).Next()
		done <- result{frame, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", r.err)
			os.Exit(2)
		}
		fmt.Printf("SUCCESS: Received packet\n")
		fmt.Printf("  Bytes: %s\n", telem.FormatHex(r.frame.Raw))
		fmt.Print(telem.FormatFrame(0, r.frame))
		for _, a := range telem.ValidateFrame(r.frame) {
			fmt.Printf("  %s %s\n", warningStyle.Render(a.Type.String()+":"), a.Message)
		}
		os.Exit(0)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}
	return nil
}
