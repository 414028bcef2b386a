// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/telem"
)

var (
	commandBoard string
	commandSend  bool
)

var commandCmd = &cobra.Command{
	Use:   "command FUNCTION [ARGS...]",
	Short: "Encode a command frame for a board",
	Long: `Encode a command the way the board's dispatch table expects it: the
command id followed by each argument multiplied by its transmit scale and
packed little-endian.

The frame is printed as hex. With --send it is also written to the
connection selected by --port or --url.

Example:
  telemgen command --board heater set_vlv 1 1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(commandCmd)
	commandCmd.Flags().StringVar(&commandBoard, "board", "", "Board name or id")
	commandCmd.Flags().BoolVar(&commandSend, "send", false, "Write the frame to the connection")
	_ = commandCmd.MarkFlagRequired("board")
}

func runCommand(cmd *cobra.Command, args []string) error {
	m, err := loadModel(commandBoard)
	if err != nil {
		return err
	}
	if m.Dispatch == nil {
		return fmt.Errorf("board %s: no command schema configured", m.Board.Name)
	}

	name := args[0]
	c, id, ok := m.Dispatch.Lookup(name)
	if !ok {
		return fmt.Errorf("board %s: %s is not supported by target %d", m.Board.Name, name, m.Dispatch.Target)
	}
	values, err := telem.ParseCommandArgs(c, args[1:])
	if err != nil {
		return err
	}
	frame, err := telem.EncodeCommand(m.Dispatch, name, values)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s (id %d, %d argument bytes)\n", titleStyle.Render(m.Board.Name), name, id, len(frame)-1)
	fmt.Println(telem.FormatHex(frame))

	if !commandSend {
		return nil
	}
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("send to %s: %w", connInfo, err)
	}
	fmt.Printf("Sent %d bytes to %s\n", len(frame), connInfo)
	return nil
}
