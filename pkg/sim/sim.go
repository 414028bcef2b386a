// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim turns a firmware test case into a simulation table: one fully
// populated value array per overridden variable, the entry durations and the
// packed arguments of every simulated command.
package sim

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
	"github.com/Thermoquad/telemgen/pkg/telem"
)

// Column is one simulated firmware variable.
type Column struct {
	Slot layout.Slot

	// Values holds one value per data entry, forward-filled.
	Values []float64
}

// Define is the preprocessor flag marking the variable as simulated,
// e.g. FW_SIM_IVLV_3.
func (c Column) Define() string {
	return "FW_SIM_" + strings.ToUpper(mangle(c.Slot.Ident()))
}

// ArrayName is the C array holding the column, e.g. FW_SIM_ivlv_3.
func (c Column) ArrayName() string {
	return "FW_SIM_" + mangle(c.Slot.Ident())
}

// reservedNames are the fixed identifiers of firmware_test.h. Column
// defines and arrays share their namespace.
var reservedNames = []string{
	"FW_SIM_TOTAL_LENGTH", "FW_SIM_NUM_CMDS", "FW_SIM_NUM_DATA", "FW_SIM_CMD_ARG_BYTES",
	"FW_SIM_entry_durations", "FW_SIM_entry_is_cmd", "FW_SIM_cmd_ids", "FW_SIM_cmd_args",
	"FW_SIM_init_simulation_variables", "FW_SIM_run_simulation",
}

func mangle(ident string) string {
	return strings.NewReplacer("[", "_", "]", "").Replace(ident)
}

// Command is one simulated command invocation.
type Command struct {
	Row  int
	ID   int
	Name string
	Args []float64

	// Data is the packed argument buffer the dispatch stub receives.
	Data []byte
}

// Table is a complete simulation.
type Table struct {
	Source    string
	Durations []uint32
	IsCmd     []bool
	Columns   []Column
	Commands  []Command

	// ArgStride is the per-command size of the packed argument array.
	ArgStride int
}

// Len is the total entry count.
func (t *Table) Len() int {
	return len(t.Durations)
}

// NumData is the number of data entries.
func (t *Table) NumData() int {
	return len(t.Durations) - len(t.Commands)
}

// NumCmds is the number of command entries.
func (t *Table) NumCmds() int {
	return len(t.Commands)
}

// Build validates a test case against a board's packet layout and dispatch
// table and expands it into a simulation table. The first data entry must
// initialize every column; later empty cells repeat the previous value.
func Build(tc *schema.TestCase, l *layout.PacketLayout, cmds *layout.DispatchTable) (*Table, error) {
	t := &Table{Source: tc.Source, ArgStride: max(1, cmds.MaxArgBytes())}

	var errs []error
	used := make(map[string]string, len(reservedNames)+2*len(tc.Columns))
	for _, n := range reservedNames {
		used[n] = "the simulation tables"
	}
	for _, name := range tc.Columns {
		slot, ok := l.Lookup(name)
		if !ok {
			errs = append(errs, &schema.SchemaFormatError{Source: tc.Source, Row: 1, Column: name,
				Message: fmt.Sprintf("%s is not a packet variable on board %d", name, cmds.Target)})
			continue
		}
		c := Column{Slot: slot}
		for _, ident := range []string{c.Define(), c.ArrayName()} {
			if prev, taken := used[ident]; taken {
				errs = append(errs, &schema.SchemaFormatError{Source: tc.Source, Row: 1, Column: name,
					Message: fmt.Sprintf("simulated name %s is already used by %s", ident, prev)})
				continue
			}
			used[ident] = name
		}
		t.Columns = append(t.Columns, c)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	initialized := false
	for _, e := range tc.Entries {
		switch e.Kind {
		case schema.EntryData:
			if !initialized {
				for _, c := range t.Columns {
					if strings.TrimSpace(e.Values[c.Slot.Ident()]) == "" {
						return nil, &schema.IncompleteInitError{Source: tc.Source, Row: e.Row, Field: c.Slot.Ident()}
					}
				}
				initialized = true
			}
			for i := range t.Columns {
				c := &t.Columns[i]
				cell := strings.TrimSpace(e.Values[c.Slot.Ident()])
				if cell == "" {
					c.Values = append(c.Values, c.Values[len(c.Values)-1])
					continue
				}
				v, err := parseValue(tc.Source, e.Row, c.Slot, cell)
				if err != nil {
					errs = append(errs, err)
					v = 0
				}
				c.Values = append(c.Values, v)
			}
			t.Durations = append(t.Durations, e.Duration)
			t.IsCmd = append(t.IsCmd, false)

		case schema.EntryCommand:
			cmd, err := buildCommand(tc.Source, e, cmds)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			t.Commands = append(t.Commands, cmd)
			t.Durations = append(t.Durations, e.Duration)
			t.IsCmd = append(t.IsCmd, true)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if t.Len() == 0 {
		return nil, &schema.SchemaFormatError{Source: tc.Source, Message: "test case has no data or command entries"}
	}
	if len(t.Columns) > 0 && t.NumData() == 0 {
		return nil, &schema.SchemaFormatError{Source: tc.Source, Message: "test case overrides variables but has no data entries"}
	}
	return t, nil
}

// parseValue reads a simulated firmware value. Values are stored unscaled,
// as the firmware variable itself holds them.
func parseValue(source string, row int, slot layout.Slot, cell string) (float64, error) {
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, &schema.SchemaFormatError{Source: source, Row: row, Column: slot.Ident(),
			Message: fmt.Sprintf("%q is not a number", cell)}
	}
	if !slot.Type.Float && v != math.Trunc(v) {
		return 0, &schema.SchemaFormatError{Source: source, Row: row, Column: slot.Ident(),
			Message: fmt.Sprintf("%s is a %s, %q is not an integer", slot.Ident(), slot.Type.Name, cell)}
	}
	if !slot.Type.Contains(v) {
		limit := slot.Type.Max
		if v < 0 {
			limit = slot.Type.Min
		}
		return 0, &schema.RangeError{Source: source, Row: row, Item: slot.Ident(), Bound: "value",
			Scaled: v, Type: slot.Type.Name, Limit: limit}
	}
	return v, nil
}

func buildCommand(source string, e schema.TestEntry, cmds *layout.DispatchTable) (Command, error) {
	def, id, ok := cmds.Lookup(e.Function)
	if !ok {
		return Command{}, &schema.SchemaFormatError{Source: source, Row: e.Row, Column: schema.ColFunctionName,
			Message: fmt.Sprintf("%s is not a valid function for board %d", e.Function, cmds.Target)}
	}

	// The first len(def.Args) argument cells must be filled and the rest empty.
	want := len(def.Args)
	var raw []string
	mismatch := false
	for i, cell := range e.Args {
		cell = strings.TrimSpace(cell)
		if (cell == "") == (i < want) {
			mismatch = true
		}
		if cell != "" {
			raw = append(raw, cell)
		}
	}
	if mismatch || len(raw) != want {
		return Command{}, &schema.ArgumentCountError{Source: source, Row: e.Row, Command: def.Name, Want: want, Got: len(raw)}
	}

	args, err := telem.ParseCommandArgs(def, raw)
	if err != nil {
		return Command{}, fmt.Errorf("%s [row %d]: %w", source, e.Row, err)
	}
	data, err := telem.EncodeCommandArgs(def, args)
	if err != nil {
		var re *schema.RangeError
		if errors.As(err, &re) {
			re.Source, re.Row = source, e.Row
		}
		return Command{}, err
	}

	return Command{Row: e.Row, ID: id, Name: def.Name, Args: args, Data: data}, nil
}
