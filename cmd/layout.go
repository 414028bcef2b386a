// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemgen/pkg/layout"
)

var (
	layoutBoard  string
	layoutTarget int
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show a board's packet layout and command table",
	Long: `Print the byte offset, width and type of every transmitted item in the
board's telemetry packet, followed by the command ids built for the board.

Use --target to list the dispatch table another target id would get from the
shared command schema.`,
	Args: cobra.NoArgs,
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().StringVar(&layoutBoard, "board", "", "Board name or id")
	layoutCmd.Flags().IntVar(&layoutTarget, "target", -1, "Target id for the command table (default: the board's id)")
	_ = layoutCmd.MarkFlagRequired("board")
}

func runLayout(cmd *cobra.Command, args []string) error {
	m, err := loadModel(layoutBoard)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s (id %d) packet: %d bytes", m.Board.Name, m.Board.ID, m.Layout.Size)))
	fmt.Println(packetTable(m.Layout))

	dispatch := m.Dispatch
	if layoutTarget >= 0 && m.Commands != nil {
		dispatch = layout.BuildDispatchTable(m.Commands, layoutTarget)
	}
	if dispatch == nil {
		return nil
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("target %d commands: %d, max %d argument bytes",
		dispatch.Target, len(dispatch.Commands), dispatch.MaxArgBytes())))
	if len(dispatch.Commands) > 0 {
		fmt.Println(commandTable(dispatch))
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Headers(headers...)
}

func packetTable(l *layout.PacketLayout) *table.Table {
	t := newTable("Offset", "Bytes", "Variable", "Type", "Scale", "Unit", "Decoded as")
	for _, s := range l.Slots {
		name := s.Field.DisplayName()
		if s.Field.DisplayType != "" {
			name += " (" + s.Field.DisplayType + ")"
		}
		t.Row(
			strconv.Itoa(s.Offset),
			strconv.Itoa(s.Width),
			s.Ident(),
			s.Type.Name,
			strconv.FormatFloat(s.Field.Scale, 'g', -1, 64),
			s.Field.Unit,
			name,
		)
	}
	return t
}

func commandTable(d *layout.DispatchTable) *table.Table {
	t := newTable("Id", "Function", "Arguments", "Bytes")
	for id, c := range d.Commands {
		args := make([]string, 0, len(c.Args))
		for _, s := range layout.ArgLayout(c) {
			arg := fmt.Sprintf("%s %s@%d", s.Type.Name, s.Arg.Name, s.Offset)
			if s.Arg.Scale != 1 {
				arg += " x" + strconv.FormatFloat(s.Arg.Scale, 'g', -1, 64)
			}
			args = append(args, arg)
		}
		t.Row(strconv.Itoa(id), c.Name, strings.Join(args, ", "), strconv.Itoa(layout.ArgBytes(c)))
	}
	return t
}
