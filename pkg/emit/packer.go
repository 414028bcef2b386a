// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emit

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/telemgen/pkg/cgen"
	"github.com/Thermoquad/telemgen/pkg/layout"
)

// Bit-cast helpers let float and double slots be shifted out byte by byte
// without aliasing the variable through a pointer.
var bitCastHelpers = []cgen.Item{
	cgen.Func{Static: true, Return: "inline uint32_t", Name: "telem_float_bits", Params: []cgen.Param{{Type: "float", Name: "v"}}, Body: []cgen.Item{
		cgen.Stmt("uint32_t u;"),
		cgen.Stmt("memcpy(&u, &v, sizeof u);"),
		cgen.Stmt("return u;"),
	}},
	cgen.Blank{},
	cgen.Func{Static: true, Return: "inline uint64_t", Name: "telem_double_bits", Params: []cgen.Param{{Type: "double", Name: "v"}}, Body: []cgen.Item{
		cgen.Stmt("uint64_t u;"),
		cgen.Stmt("memcpy(&u, &v, sizeof u);"),
		cgen.Stmt("return u;"),
	}},
	cgen.Blank{},
}

// wireExpr is the expression a slot is packed from: the variable times its
// transmit scale, cast to the wire type and then to the unsigned type of the
// same width so shifts are well defined.
func wireExpr(s layout.Slot) string {
	value := s.Ident()
	if s.Field.Scale != 1 {
		value = fmt.Sprintf("%s * %s", s.Ident(), scaleLiteral(s.Field.Scale))
	}
	switch {
	case s.Type.Float && s.Type.Width == 4:
		return fmt.Sprintf("telem_float_bits((float)(%s))", value)
	case s.Type.Float:
		return fmt.Sprintf("telem_double_bits((double)(%s))", value)
	default:
		return fmt.Sprintf("(%s)(%s)(%s)", s.Type.Unsigned(), s.Type.Name, value)
	}
}

// PackerHeader emits pack_telem_defines.h: one TELEM_ITEM_<n> macro per
// packet byte, NUM_TELEM_ITEMS and the pack_telem_data prototype.
func PackerHeader(l *layout.PacketLayout) *cgen.File {
	f := &cgen.File{
		Name:     PackerHeaderName,
		Banner:   banner(PackerHeaderName, l.Source()),
		Guard:    guard(PackerHeaderName),
		Includes: []cgen.Include{stdint(), {Path: "string.h", System: true}, {Path: GlobalsHeaderName}},
		Trailing: true,
	}

	hasFloat := false
	for _, s := range l.Slots {
		hasFloat = hasFloat || s.Type.Float
	}
	if hasFloat {
		f.Items = append(f.Items, bitCastHelpers...)
	}

	n := 0
	for _, s := range l.Slots {
		f.Items = append(f.Items, cgen.Comment{Lines: []string{
			fmt.Sprintf("%s: %s, scale %s, bytes %d-%d", s.Ident(), s.Type.Name, scaleLiteral(s.Field.Scale), s.Offset, s.End()-1),
		}})
		wire := wireExpr(s)
		for b := range s.Width {
			f.Items = append(f.Items, cgen.Define{
				Name:  "TELEM_ITEM_" + strconv.Itoa(n),
				Value: fmt.Sprintf("((uint8_t)((%s) >> %d))", wire, 8*b),
			})
			n++
		}
	}

	f.Items = append(f.Items,
		cgen.Blank{},
		cgen.Define{Name: "NUM_TELEM_ITEMS", Value: strconv.Itoa(l.Size)},
		cgen.Blank{},
		cgen.Proto{Return: "void", Name: "pack_telem_data", Params: []cgen.Param{{Type: "uint8_t*", Name: "dst"}}},
	)
	return f
}

// PackerSource emits pack_telem_defines.c with the pack_telem_data body.
func PackerSource(l *layout.PacketLayout) *cgen.File {
	body := make([]cgen.Item, 0, l.Size)
	for n := range l.Size {
		body = append(body, cgen.Stmt(fmt.Sprintf("*(dst + %d) = TELEM_ITEM_%d;", n, n)))
	}

	return &cgen.File{
		Name:     PackerSourceName,
		Banner:   banner(PackerSourceName, l.Source()),
		Includes: []cgen.Include{{Path: PackerHeaderName}},
		Items: []cgen.Item{
			cgen.Func{Return: "void", Name: "pack_telem_data", Params: []cgen.Param{{Type: "uint8_t*", Name: "dst"}}, Body: body},
		},
		Trailing: true,
	}
}
