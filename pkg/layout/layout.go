// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package layout assigns byte offsets to validated schema fields and command
// arguments. A PacketLayout is built once per run and shared read-only by
// every emitter and by the runtime codec.
package layout

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/telemgen/pkg/schema"
)

// Slot is one field's byte range in the packet.
type Slot struct {
	Field  schema.Field
	Type   schema.CType
	Offset int
	Width  int

	// Array is the array group name for indexed variables, empty for scalars.
	Array string
	Index int
}

// Ident is the firmware identifier the slot is packed from.
func (s Slot) Ident() string {
	return s.Field.Variable
}

// End is the offset one past the slot's last byte.
func (s Slot) End() int {
	return s.Offset + s.Width
}

// ArrayGroup collapses every indexed field sharing an array name into one
// declaration.
type ArrayGroup struct {
	Name     string
	Type     schema.CType
	MaxIndex int
	FirstRow int

	// Slots holds the packet slot index of every member, in schema order.
	Slots []int
}

// Len is the declared element count.
func (g *ArrayGroup) Len() int {
	return g.MaxIndex + 1
}

// Width is the declaration's storage size in bytes.
func (g *ArrayGroup) Width() int {
	return g.Len() * g.Type.Width
}

// Decl is one firmware global: a scalar (Len 0) or an array group.
type Decl struct {
	Name string
	Type schema.CType
	Len  int
}

// IsArray reports whether the declaration is an array.
func (d Decl) IsArray() bool {
	return d.Len > 0
}

// PacketLayout is the byte-exact telemetry packet description.
type PacketLayout struct {
	Slots  []Slot
	Arrays []*ArrayGroup
	Decls  []Decl
	Size   int

	source string
	byName map[string]int
}

// Source is the schema the layout was built from.
func (l *PacketLayout) Source() string {
	return l.source
}

// Lookup finds a slot by firmware variable, e.g. "e_batt" or "ivlv[3]".
func (l *PacketLayout) Lookup(ident string) (Slot, bool) {
	i, ok := l.byName[ident]
	if !ok {
		return Slot{}, false
	}
	return l.Slots[i], true
}

// Array returns the array group with the given name.
func (l *PacketLayout) Array(name string) (*ArrayGroup, bool) {
	for _, g := range l.Arrays {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Assign walks validated fields in schema order and gives each one the next
// free byte range. Indexed variables are folded into array groups for the
// declarations but keep their own packet slot, so appending a row never moves
// an existing offset.
func Assign(fields []schema.Field, source string) (*PacketLayout, error) {
	l := &PacketLayout{source: source, byName: make(map[string]int, len(fields))}
	scalars := make(map[string]int)
	arrays := make(map[string]*ArrayGroup)
	var errs []error

	for _, f := range fields {
		t, ok := schema.LookupType(f.Type)
		if !ok {
			errs = append(errs, &schema.UnknownTypeError{Source: source, Row: f.Row, Type: f.Type})
			continue
		}
		name, index, indexed, err := f.ArrayRef()
		if err != nil {
			errs = append(errs, &schema.SchemaFormatError{Source: source, Row: f.Row, Column: schema.ColFirmwareVariable, Message: err.Error()})
			continue
		}
		if _, dup := l.byName[f.Variable]; dup {
			errs = append(errs, &schema.SchemaFormatError{Source: source, Row: f.Row, Column: schema.ColFirmwareVariable,
				Message: fmt.Sprintf("%s is packed twice", f.Variable)})
			continue
		}

		slot := Slot{Field: f, Type: t, Offset: l.Size, Width: t.Width}

		if indexed {
			if row, clash := scalars[name]; clash {
				errs = append(errs, &schema.SchemaFormatError{Source: source, Row: f.Row, Column: schema.ColFirmwareVariable,
					Message: fmt.Sprintf("%s is declared as a scalar on row %d", name, row)})
				continue
			}
			g, seen := arrays[name]
			if !seen {
				g = &ArrayGroup{Name: name, Type: t, MaxIndex: index, FirstRow: f.Row}
				arrays[name] = g
				l.Arrays = append(l.Arrays, g)
				l.Decls = append(l.Decls, Decl{Name: name, Type: t})
			} else if g.Type.Name != t.Name {
				errs = append(errs, &schema.TypeConflictError{Source: source, Row: f.Row, Array: name, Want: g.Type.Name, Got: t.Name})
				continue
			}
			g.MaxIndex = max(g.MaxIndex, index)
			g.Slots = append(g.Slots, len(l.Slots))
			slot.Array = name
			slot.Index = index
		} else {
			if g, clash := arrays[name]; clash {
				errs = append(errs, &schema.SchemaFormatError{Source: source, Row: f.Row, Column: schema.ColFirmwareVariable,
					Message: fmt.Sprintf("%s is declared as an array on row %d", name, g.FirstRow)})
				continue
			}
			scalars[name] = f.Row
			l.Decls = append(l.Decls, Decl{Name: name, Type: t})
		}

		l.byName[f.Variable] = len(l.Slots)
		l.Slots = append(l.Slots, slot)
		l.Size += t.Width
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Array lengths are only known once every row has been seen.
	for i, d := range l.Decls {
		if g, ok := arrays[d.Name]; ok {
			l.Decls[i].Len = g.Len()
		}
	}

	return l, nil
}
