// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"math"
	"sort"
)

// CType describes a firmware wire type: its C spelling, byte width and the
// numeric range a scaled value must fit into.
type CType struct {
	Name   string
	Width  int
	Signed bool
	Float  bool
	Min    float64
	Max    float64
}

// Unsigned returns the C unsigned integer type of the same width, used when
// shifting bytes out of a value.
func (t CType) Unsigned() string {
	switch t.Width {
	case 1:
		return "uint8_t"
	case 2:
		return "uint16_t"
	case 4:
		return "uint32_t"
	default:
		return "uint64_t"
	}
}

// Contains reports whether v is representable by the type.
func (t CType) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return v >= t.Min && v <= t.Max
}

var typeTable = map[string]CType{
	"char":     {Name: "char", Width: 1, Min: 0, Max: math.MaxUint8},
	"uint8_t":  {Name: "uint8_t", Width: 1, Min: 0, Max: math.MaxUint8},
	"int8_t":   {Name: "int8_t", Width: 1, Signed: true, Min: math.MinInt8, Max: math.MaxInt8},
	"uint16_t": {Name: "uint16_t", Width: 2, Min: 0, Max: math.MaxUint16},
	"int16_t":  {Name: "int16_t", Width: 2, Signed: true, Min: math.MinInt16, Max: math.MaxInt16},
	"uint32_t": {Name: "uint32_t", Width: 4, Min: 0, Max: math.MaxUint32},
	"int32_t":  {Name: "int32_t", Width: 4, Signed: true, Min: math.MinInt32, Max: math.MaxInt32},
	"uint64_t": {Name: "uint64_t", Width: 8, Min: 0, Max: math.MaxUint64},
	"int64_t":  {Name: "int64_t", Width: 8, Signed: true, Min: math.MinInt64, Max: math.MaxInt64},
	"float":    {Name: "float", Width: 4, Signed: true, Float: true, Min: -math.MaxFloat32, Max: math.MaxFloat32},
	"double":   {Name: "double", Width: 8, Signed: true, Float: true, Min: -math.MaxFloat64, Max: math.MaxFloat64},
}

// LookupType returns the wire type for a firmware type name.
func LookupType(name string) (CType, bool) {
	t, ok := typeTable[name]
	return t, ok
}

// TypeNames returns the supported firmware type names, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(typeTable))
	for name := range typeTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
