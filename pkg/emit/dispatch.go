// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/cgen"
	"github.com/Thermoquad/telemgen/pkg/layout"
)

var stubParams = []cgen.Param{{Type: "uint8_t*", Name: "data"}, {Type: "uint8_t*", Name: "status"}}

// DispatchHeader emits pack_cmd_defines.h: a prototype per supported
// command, NUM_CMD_ITEMS, the Cmd_Pointer type and the extern jump table.
func DispatchHeader(t *layout.DispatchTable, source string) *cgen.File {
	f := &cgen.File{
		Name:     DispatchHeaderName,
		Banner:   banner(DispatchHeaderName, source),
		Guard:    guard(DispatchHeaderName),
		Includes: []cgen.Include{stdint()},
		Items: []cgen.Item{
			cgen.Define{Name: "NUM_CMD_ITEMS", Value: strconv.Itoa(len(t.Commands))},
			cgen.Blank{},
		},
		Trailing: true,
	}

	for id, c := range t.Commands {
		f.Items = append(f.Items,
			cgen.Comment{Lines: []string{fmt.Sprintf("command %d", id)}},
			cgen.Proto{Return: "void", Name: c.Name, Params: stubParams},
		)
	}

	f.Items = append(f.Items,
		cgen.Blank{},
		cgen.Typedef{Decl: "void (*Cmd_Pointer)(uint8_t* x, uint8_t* y)"},
		cgen.Blank{},
	)
	if len(t.Commands) == 0 {
		f.Items = append(f.Items, cgen.Comment{Lines: []string{fmt.Sprintf("no commands are built for target %d", t.Target)}})
		return f
	}
	f.Items = append(f.Items,
		cgen.Var{Extern: true, Type: "Cmd_Pointer", Name: "cmds_ptr", Dims: []string{"NUM_CMD_ITEMS"}},
		cgen.Blank{},
		cgen.Comment{Lines: []string{"call a command with (*cmds_ptr[id])(data, status)"}},
	)
	return f
}

// DispatchSource emits pack_cmd_defines.c: the jump table in schema order,
// so a command's id is its index.
func DispatchSource(t *layout.DispatchTable, source string) *cgen.File {
	f := &cgen.File{
		Name:     DispatchSourceName,
		Banner:   banner(DispatchSourceName, source),
		Includes: []cgen.Include{{Path: DispatchHeaderName}},
		Trailing: true,
	}
	if len(t.Commands) == 0 {
		return f
	}

	names := make([]string, len(t.Commands))
	for i, c := range t.Commands {
		names[i] = c.Name
	}
	f.Items = append(f.Items, cgen.Var{Type: "Cmd_Pointer", Name: "cmds_ptr", Dims: []string{"NUM_CMD_ITEMS"}, Init: cgen.List{Elems: names}})
	return f
}

// orBytes reconstructs a little-endian value from data[offset:offset+width]
// by OR-ing each byte shifted into place.
func orBytes(unsigned string, offset, width int) string {
	parts := make([]string, width)
	for i := range width {
		if i == 0 {
			parts[i] = fmt.Sprintf("(%s)data[%d]", unsigned, offset)
		} else {
			parts[i] = fmt.Sprintf("((%s)data[%d] << %d)", unsigned, offset+i, 8*i)
		}
	}
	return strings.Join(parts, " | ")
}

// argStatements unpacks one argument and binds it, divided by its transmit
// scale, to the argument's name.
func argStatements(s layout.ArgSlot) []cgen.Item {
	name := s.Arg.Name
	raw := name + "_raw"
	stmts := []cgen.Item{
		cgen.Stmt(fmt.Sprintf("%s %s = %s;", s.Type.Unsigned(), raw, orBytes(s.Type.Unsigned(), s.Offset, s.Width))),
	}

	if s.Type.Float {
		stmts = append(stmts,
			cgen.Stmt(fmt.Sprintf("%s %s;", s.Type.Name, name)),
			cgen.Stmt(fmt.Sprintf("memcpy(&%s, &%s, sizeof %s);", name, raw, name)),
		)
		if s.Arg.Scale != 1 {
			stmts = append(stmts, cgen.Stmt(fmt.Sprintf("%s = %s / %s;", name, name, scaleLiteral(s.Arg.Scale))))
		}
		return stmts
	}

	value := fmt.Sprintf("(%s)%s", s.Type.Name, raw)
	if s.Arg.Scale != 1 {
		value = fmt.Sprintf("(%s)(%s / %s)", s.Type.Name, value, scaleLiteral(s.Arg.Scale))
	}
	return append(stmts, cgen.Stmt(fmt.Sprintf("%s %s = %s;", s.Type.Name, name, value)))
}

// CommandStubs emits telem.c: one stub per supported command that unpacks
// its arguments and leaves the rest to a named user section.
func CommandStubs(t *layout.DispatchTable, source string) *cgen.File {
	f := &cgen.File{
		Name:   StubsSourceName,
		Banner: banner(StubsSourceName, source),
		Includes: []cgen.Include{
			stdint(),
			{Path: "string.h", System: true},
			{Path: DispatchHeaderName},
			{Path: GlobalsHeaderName},
		},
		Trailing: true,
	}

	for id, c := range t.Commands {
		var body []cgen.Item
		for _, s := range layout.ArgLayout(c) {
			body = append(body, argStatements(s)...)
		}
		body = append(body, cgen.UserSection{Name: c.Name})

		f.Items = append(f.Items,
			cgen.Comment{Lines: []string{fmt.Sprintf("command %d: %s (%d argument bytes)", id, c.Name, layout.ArgBytes(c))}},
			cgen.Func{Return: "void", Name: c.Name, Params: stubParams, Body: body},
			cgen.Blank{},
		)
	}
	return f
}
