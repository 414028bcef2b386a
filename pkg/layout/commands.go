// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package layout

import (
	"github.com/Thermoquad/telemgen/pkg/schema"
)

// ArgSlot is one command argument's position in the command data buffer.
type ArgSlot struct {
	Arg    schema.Arg
	Type   schema.CType
	Offset int
	Width  int
}

// ArgLayout places a validated command's arguments back to back, in
// declaration order.
func ArgLayout(cmd schema.Command) []ArgSlot {
	slots := make([]ArgSlot, 0, len(cmd.Args))
	offset := 0
	for _, a := range cmd.Args {
		t, _ := schema.LookupType(a.Type)
		slots = append(slots, ArgSlot{Arg: a, Type: t, Offset: offset, Width: t.Width})
		offset += t.Width
	}
	return slots
}

// ArgBytes is the size of a command's argument buffer.
func ArgBytes(cmd schema.Command) int {
	n := 0
	for _, s := range ArgLayout(cmd) {
		n += s.Width
	}
	return n
}

// DispatchTable holds the commands built for one target. A command's id is
// its index in Commands.
type DispatchTable struct {
	Target   int
	Commands []schema.Command
}

// BuildDispatchTable keeps the commands supporting target, in schema order.
// Unsupported commands are omitted, not stubbed.
func BuildDispatchTable(cmds []schema.Command, target int) *DispatchTable {
	t := &DispatchTable{Target: target}
	for _, c := range cmds {
		if c.SupportsTarget(target) {
			t.Commands = append(t.Commands, c)
		}
	}
	return t
}

// Lookup returns a command and its id by function name.
func (t *DispatchTable) Lookup(name string) (schema.Command, int, bool) {
	for i, c := range t.Commands {
		if c.Name == name {
			return c, i, true
		}
	}
	return schema.Command{}, 0, false
}

// MaxArgBytes is the largest argument buffer of any command in the table.
func (t *DispatchTable) MaxArgBytes() int {
	n := 0
	for _, c := range t.Commands {
		n = max(n, ArgBytes(c))
	}
	return n
}
