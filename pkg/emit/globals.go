// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emit

import (
	"strconv"

	"github.com/Thermoquad/telemgen/pkg/cgen"
	"github.com/Thermoquad/telemgen/pkg/layout"
)

func declVar(d layout.Decl) cgen.Var {
	v := cgen.Var{Type: d.Type.Name, Name: d.Name}
	if d.IsArray() {
		v.Dims = []string{strconv.Itoa(d.Len)}
	}
	return v
}

// GlobalsHeader emits globals.h: one extern per scalar and per array group,
// plus TELEM_PACKET_LENGTH.
func GlobalsHeader(l *layout.PacketLayout) *cgen.File {
	f := &cgen.File{
		Name:     GlobalsHeaderName,
		Banner:   banner(GlobalsHeaderName, l.Source()),
		Guard:    guard(GlobalsHeaderName),
		Includes: []cgen.Include{stdint()},
		Items: []cgen.Item{
			cgen.Define{Name: "TELEM_PACKET_LENGTH", Value: strconv.Itoa(l.Size)},
			cgen.Blank{},
		},
		Trailing: true,
	}
	for _, d := range l.Decls {
		v := declVar(d)
		v.Extern = true
		f.Items = append(f.Items, v)
	}
	return f
}

// GlobalsSource emits globals.c with zero-initialised definitions.
func GlobalsSource(l *layout.PacketLayout) *cgen.File {
	f := &cgen.File{
		Name:     GlobalsSourceName,
		Banner:   banner(GlobalsSourceName, l.Source()),
		Includes: []cgen.Include{{Path: GlobalsHeaderName}},
		Trailing: true,
	}
	for _, d := range l.Decls {
		v := declVar(d)
		if d.IsArray() {
			v.Init = cgen.Expr("{0}")
		} else {
			v.Init = cgen.Expr("0")
		}
		f.Items = append(f.Items, v)
	}
	return f
}
