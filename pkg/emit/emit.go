// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emit turns validated schemas, packet layouts and simulation tables
// into structured source files. Every emitter is a pure function; rendering
// and writing happen elsewhere.
package emit

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/cgen"
	"github.com/Thermoquad/telemgen/pkg/preserve"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

// Output file names.
const (
	PackerHeaderName   = "pack_telem_defines.h"
	PackerSourceName   = "pack_telem_defines.c"
	GlobalsHeaderName  = "globals.h"
	GlobalsSourceName  = "globals.c"
	DispatchHeaderName = "pack_cmd_defines.h"
	DispatchSourceName = "pack_cmd_defines.c"
	StubsSourceName    = "telem.c"
	SimHeaderName      = "firmware_test.h"
	SimSourceName      = "firmware_test.c"
	DecoderName        = "telem_decoder.go"
)

// banner is the comment block opening every generated C file. It carries no
// timestamp so identical inputs render identical bytes.
func banner(name string, sources ...string) []string {
	lines := []string{strings.TrimPrefix(preserve.Banner, "// "), name}
	for _, s := range sources {
		if s != "" {
			lines = append(lines, "Generated by telemgen from "+filepath.ToSlash(filepath.Base(s)))
		}
	}
	return lines
}

// guard derives an include guard from a header name.
func guard(name string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
}

func stdint() cgen.Include {
	return cgen.Include{Path: "stdint.h", System: true}
}

// scaleLiteral renders a transmit scale as a C literal.
func scaleLiteral(scale float64) string {
	return strconv.FormatFloat(scale, 'g', -1, 64)
}

// cValue renders a value as a C literal of type t.
func cValue(t schema.CType, v float64) string {
	if !t.Float {
		s := strconv.FormatFloat(v, 'f', 0, 64)
		switch {
		case t.Width == 8 && t.Signed && v == -(1<<63):
			return "INT64_MIN"
		case t.Width == 8 && !t.Signed:
			return s + "ULL"
		case t.Width == 8:
			return s + "LL"
		case t.Width == 4 && !t.Signed:
			return s + "U"
		}
		return s
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	if t.Width == 4 {
		return s + "f"
	}
	return s
}
