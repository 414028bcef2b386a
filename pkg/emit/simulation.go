// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emit

import (
	"strconv"

	"github.com/Thermoquad/telemgen/pkg/cgen"
	"github.com/Thermoquad/telemgen/pkg/sim"
)

var simEntryArrays = []struct{ typ, name string }{
	{"uint32_t", "FW_SIM_entry_durations"},
	{"uint8_t", "FW_SIM_entry_is_cmd"},
}

// SimHeader emits firmware_test.h: an FW_SIM_<VAR> flag per simulated
// variable, the table lengths and extern declarations of every array.
func SimHeader(t *sim.Table) *cgen.File {
	f := &cgen.File{
		Name:     SimHeaderName,
		Banner:   banner(SimHeaderName, t.Source),
		Guard:    guard(SimHeaderName),
		Includes: []cgen.Include{stdint()},
		Trailing: true,
	}

	for _, c := range t.Columns {
		f.Items = append(f.Items, cgen.Define{Name: c.Define()})
	}
	if len(t.Columns) > 0 {
		f.Items = append(f.Items, cgen.Blank{})
	}

	f.Items = append(f.Items,
		cgen.Define{Name: "FW_SIM_TOTAL_LENGTH", Value: strconv.Itoa(t.Len())},
		cgen.Define{Name: "FW_SIM_NUM_CMDS", Value: strconv.Itoa(t.NumCmds())},
		cgen.Define{Name: "FW_SIM_NUM_DATA", Value: strconv.Itoa(t.NumData())},
		cgen.Define{Name: "FW_SIM_CMD_ARG_BYTES", Value: strconv.Itoa(t.ArgStride)},
		cgen.Blank{},
	)

	for _, a := range simEntryArrays {
		f.Items = append(f.Items, cgen.Var{Extern: true, Type: a.typ, Name: a.name, Dims: []string{"FW_SIM_TOTAL_LENGTH"}})
	}
	for _, c := range t.Columns {
		f.Items = append(f.Items, cgen.Var{Extern: true, Type: c.Slot.Type.Name, Name: c.ArrayName(), Dims: []string{"FW_SIM_NUM_DATA"}})
	}
	if t.NumCmds() > 0 {
		f.Items = append(f.Items,
			cgen.Var{Extern: true, Type: "uint8_t", Name: "FW_SIM_cmd_ids", Dims: []string{"FW_SIM_NUM_CMDS"}},
			cgen.Var{Extern: true, Type: "uint8_t", Name: "FW_SIM_cmd_args", Dims: []string{"FW_SIM_NUM_CMDS", "FW_SIM_CMD_ARG_BYTES"}},
		)
	}

	f.Items = append(f.Items,
		cgen.Blank{},
		cgen.Proto{Return: "void", Name: "FW_SIM_init_simulation_variables"},
		cgen.Proto{Return: "void", Name: "FW_SIM_run_simulation"},
	)
	return f
}

// SimSource emits firmware_test.c with every array fully populated.
func SimSource(t *sim.Table) *cgen.File {
	f := &cgen.File{
		Name:     SimSourceName,
		Banner:   banner(SimSourceName, t.Source),
		Includes: []cgen.Include{{Path: SimHeaderName}},
		Trailing: true,
	}

	durations := make([]string, t.Len())
	isCmd := make([]string, t.Len())
	for i, d := range t.Durations {
		durations[i] = strconv.FormatUint(uint64(d), 10)
		isCmd[i] = "0"
		if t.IsCmd[i] {
			isCmd[i] = "1"
		}
	}
	f.Items = append(f.Items,
		cgen.Var{Type: "uint32_t", Name: "FW_SIM_entry_durations", Dims: []string{"FW_SIM_TOTAL_LENGTH"}, Init: cgen.List{Elems: durations}},
		cgen.Blank{},
		cgen.Var{Type: "uint8_t", Name: "FW_SIM_entry_is_cmd", Dims: []string{"FW_SIM_TOTAL_LENGTH"}, Init: cgen.List{Elems: isCmd}},
		cgen.Blank{},
	)

	for _, c := range t.Columns {
		values := make([]string, len(c.Values))
		for i, v := range c.Values {
			values[i] = cValue(c.Slot.Type, v)
		}
		f.Items = append(f.Items,
			cgen.Var{Type: c.Slot.Type.Name, Name: c.ArrayName(), Dims: []string{"FW_SIM_NUM_DATA"}, Init: cgen.List{Elems: values}},
			cgen.Blank{},
		)
	}

	if t.NumCmds() > 0 {
		ids := make([]string, t.NumCmds())
		rows := make([][]string, t.NumCmds())
		for i, c := range t.Commands {
			ids[i] = strconv.Itoa(c.ID)
			row := make([]string, t.ArgStride)
			for j := range row {
				row[j] = "0x00"
				if j < len(c.Data) {
					row[j] = "0x" + strconv.FormatUint(uint64(c.Data[j])|0x100, 16)[1:]
				}
			}
			rows[i] = row
		}
		f.Items = append(f.Items,
			cgen.Var{Type: "uint8_t", Name: "FW_SIM_cmd_ids", Dims: []string{"FW_SIM_NUM_CMDS"}, Init: cgen.List{Elems: ids}},
			cgen.Blank{},
			cgen.Var{Type: "uint8_t", Name: "FW_SIM_cmd_args", Dims: []string{"FW_SIM_NUM_CMDS", "FW_SIM_CMD_ARG_BYTES"}, Init: cgen.Nested{Rows: rows}},
		)
	}
	return f
}
