// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

// EncodeCommandArgs packs argument values into the data buffer a generated
// command stub unpacks. Values are multiplied by each argument's transmit
// scale and written little-endian in declaration order.
func EncodeCommandArgs(cmd schema.Command, args []float64) ([]byte, error) {
	if len(args) != len(cmd.Args) {
		return nil, &schema.ArgumentCountError{Row: cmd.Row, Command: cmd.Name, Want: len(cmd.Args), Got: len(args)}
	}

	slots := layout.ArgLayout(cmd)
	data := make([]byte, layout.ArgBytes(cmd))
	for i, s := range slots {
		scaled := args[i] * s.Arg.Scale
		if err := putValue(data[s.Offset:s.Offset+s.Width], s.Type, scaled); err != nil {
			return nil, &schema.RangeError{
				Row: cmd.Row, Item: cmd.Name + "." + s.Arg.Name, Bound: "value",
				Scaled: scaled, Type: s.Type.Name, Limit: limitFor(s.Type, scaled),
			}
		}
	}
	return data, nil
}

// DecodeCommandArgs is the inverse of EncodeCommandArgs: each argument is
// rebuilt from its bytes and divided by its transmit scale.
func DecodeCommandArgs(cmd schema.Command, data []byte) ([]float64, error) {
	need := layout.ArgBytes(cmd)
	if len(data) < need {
		return nil, fmt.Errorf("telem: %s needs %d argument bytes, got %d", cmd.Name, need, len(data))
	}

	slots := layout.ArgLayout(cmd)
	args := make([]float64, len(slots))
	for i, s := range slots {
		args[i] = readValue(data[s.Offset:s.Offset+s.Width], s.Type) / s.Arg.Scale
	}
	return args, nil
}

// ParseCommandArgs converts textual argument values, as typed on the command
// line or in a test case, checking the command's arity first.
func ParseCommandArgs(cmd schema.Command, raw []string) ([]float64, error) {
	if len(raw) != len(cmd.Args) {
		return nil, &schema.ArgumentCountError{Row: cmd.Row, Command: cmd.Name, Want: len(cmd.Args), Got: len(raw)}
	}

	args := make([]float64, len(raw))
	for i, r := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s of %s: %q is not a number", cmd.Args[i].Name, cmd.Name, r)
		}
		args[i] = v
	}
	return args, nil
}

// EncodeCommand builds a command frame for a dispatch table: the command id
// followed by its packed arguments.
func EncodeCommand(table *layout.DispatchTable, name string, args []float64) ([]byte, error) {
	cmd, id, ok := table.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("telem: %s is not supported by target %d", name, table.Target)
	}
	if id > 0xFF {
		return nil, fmt.Errorf("telem: command id %d does not fit in one byte", id)
	}

	data, err := EncodeCommandArgs(cmd, args)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(id)}, data...), nil
}
