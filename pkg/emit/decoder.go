// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emit

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

// GoIdent turns a display name such as "e_batt" or "ivlv[3]" into an
// exported Go identifier ("EBatt", "Ivlv3").
func GoIdent(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
	id := inflect.Camelize(strings.Trim(clean, "_"))
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		id = "Item" + id
	}
	return id
}

// offsetIdents names every slot's offset constant, suffixing repeats with
// their slot index so two display names that camelize alike stay distinct.
func offsetIdents(l *layout.PacketLayout) []string {
	seen := make(map[string]bool, len(l.Slots))
	idents := make([]string, len(l.Slots))
	for i, s := range l.Slots {
		id := GoIdent(s.Field.DisplayName()) + "Offset"
		if seen[id] {
			id = GoIdent(s.Field.DisplayName()) + strconv.Itoa(i) + "Offset"
		}
		seen[id] = true
		idents[i] = id
	}
	return idents
}

// readExpr reads one slot from packet as a float64 before scaling.
func readExpr(s layout.Slot, offset jen.Code) *jen.Statement {
	le := func(fn string) *jen.Statement {
		return jen.Qual("encoding/binary", "LittleEndian").Dot(fn).Call(jen.Id("packet").Index(offset, jen.Empty()))
	}
	t := s.Type
	switch {
	case t.Float && t.Width == 4:
		return jen.Float64().Call(jen.Qual("math", "Float32frombits").Call(le("Uint32")))
	case t.Float:
		return jen.Qual("math", "Float64frombits").Call(le("Uint64"))
	case t.Width == 1 && t.Signed:
		return jen.Float64().Call(jen.Int8().Call(jen.Id("packet").Index(offset)))
	case t.Width == 1:
		return jen.Float64().Call(jen.Id("packet").Index(offset))
	}

	bits := strconv.Itoa(8 * t.Width)
	raw := le("Uint" + bits)
	if t.Signed {
		raw = jen.Id("int" + bits).Call(raw)
	}
	return jen.Float64().Call(raw)
}

// valueExpr applies the transmit scale and display type to a raw read.
func valueExpr(s layout.Slot, offset jen.Code) *jen.Statement {
	v := readExpr(s, offset)
	if s.Field.Scale != 1 {
		v = v.Op("/").Id(scaleLiteral(s.Field.Scale))
	}
	switch s.Field.DisplayType {
	case schema.DisplayInt:
		return jen.Qual("math", "Trunc").Call(v)
	case schema.DisplayBool:
		return jen.Id("flag").Call(v)
	}
	return v
}

// Decoder emits a Go package for ground-station tools that parses telemetry
// packets into values keyed by display name, plus the matching CSV header
// and log-line formatter.
func Decoder(l *layout.PacketLayout, pkg string) *jen.File {
	f := jen.NewFile(pkg)
	if src := l.Source(); src != "" {
		f.HeaderComment("Code generated by telemgen from " + filepath.ToSlash(filepath.Base(src)) + ". DO NOT EDIT.")
	} else {
		f.HeaderComment("Code generated by telemgen. DO NOT EDIT.")
	}

	idents := offsetIdents(l)
	names := make([]string, len(l.Slots))
	units := make([]string, len(l.Slots))
	header := []string{"Time (s)"}
	usesFlag := false
	for i, s := range l.Slots {
		names[i] = s.Field.DisplayName()
		units[i] = s.Field.Unit
		header = append(header, names[i]+" ("+units[i]+")")
		usesFlag = usesFlag || s.Field.DisplayType == schema.DisplayBool
	}

	f.Comment("PacketSize is the telemetry packet length in bytes.")
	f.Const().Id("PacketSize").Op("=").Lit(l.Size)

	if len(l.Slots) > 0 {
		f.Comment("Byte offset of every item in the packet.")
		f.Const().DefsFunc(func(g *jen.Group) {
			for i, s := range l.Slots {
				g.Id(idents[i]).Op("=").Lit(s.Offset)
			}
		})
	}

	f.Comment("Items lists every item's display name in packet order.")
	f.Var().Id("Items").Op("=").Index().String().ValuesFunc(func(g *jen.Group) {
		for _, n := range names {
			g.Lit(n)
		}
	})

	f.Comment("Units lists every item's unit, parallel to Items.")
	f.Var().Id("Units").Op("=").Index().String().ValuesFunc(func(g *jen.Group) {
		for _, u := range units {
			g.Lit(u)
		}
	})

	f.Comment("CSVHeader is the column header matching LogLine.")
	f.Const().Id("CSVHeader").Op("=").Lit(strings.Join(header, ","))

	f.Comment("ErrPacketSize is returned for packets that are not PacketSize bytes long.")
	f.Var().Id("ErrPacketSize").Op("=").Qual("errors", "New").Call(jen.Lit(pkg + ": wrong packet size"))

	f.Comment("ParsePacket decodes one packet into values keyed by display name.")
	f.Func().Id("ParsePacket").Params(jen.Id("packet").Index().Byte()).Params(
		jen.Map(jen.String()).Float64(),
		jen.Error(),
	).BlockFunc(func(g *jen.Group) {
		g.If(jen.Len(jen.Id("packet")).Op("!=").Id("PacketSize")).Block(
			jen.Return(jen.Nil(), jen.Id("ErrPacketSize")),
		)
		g.Id("values").Op(":=").Make(jen.Map(jen.String()).Float64(), jen.Len(jen.Id("Items")))
		for i, s := range l.Slots {
			g.Id("values").Index(jen.Lit(names[i])).Op("=").Add(valueExpr(s, jen.Id(idents[i])))
		}
		g.Return(jen.Id("values"), jen.Nil())
	})

	f.Comment("LogLine renders one CSV row at time t (seconds), in Items order.")
	f.Func().Id("LogLine").Params(
		jen.Id("t").Float64(),
		jen.Id("values").Map(jen.String()).Float64(),
	).String().Block(
		jen.Var().Id("b").Qual("strings", "Builder"),
		jen.Id("b").Dot("WriteString").Call(jen.Qual("strconv", "FormatFloat").Call(jen.Id("t"), jen.LitRune('g'), jen.Lit(-1), jen.Lit(64))),
		jen.For(jen.List(jen.Id("_"), jen.Id("name")).Op(":=").Range().Id("Items")).Block(
			jen.Id("b").Dot("WriteByte").Call(jen.LitRune(',')),
			jen.Id("b").Dot("WriteString").Call(jen.Qual("strconv", "FormatFloat").Call(jen.Id("values").Index(jen.Id("name")), jen.LitRune('g'), jen.Lit(-1), jen.Lit(64))),
		),
		jen.Return(jen.Id("b").Dot("String").Call()),
	)

	if usesFlag {
		f.Func().Id("flag").Params(jen.Id("v").Float64()).Float64().Block(
			jen.If(jen.Id("v").Op("!=").Lit(0)).Block(jen.Return(jen.Lit(1))),
			jen.Return(jen.Lit(0)),
		)
	}

	return f
}
