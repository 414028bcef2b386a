// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/schema"
)

// FormatFrame formats a frame into a human-readable block, one item per line
func FormatFrame(t float64, f *Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%10.3fs] frame len=%d\n", t, len(f.Raw))

	width := 0
	for _, name := range f.codec.names {
		width = max(width, len(name))
	}

	for i, s := range f.codec.layout.Slots {
		fmt.Fprintf(&b, "  %-*s = %s", width, f.codec.names[i], FormatValue(f.Values[i], s.Field.DisplayType))
		if s.Field.Unit != "" {
			b.WriteString(" ")
			b.WriteString(s.Field.Unit)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatValue renders a value according to its display type
func FormatValue(v float64, displayType string) string {
	switch displayType {
	case schema.DisplayBool:
		if v != 0 {
			return "true"
		}
		return "false"
	case schema.DisplayInt:
		return fmt.Sprintf("%d", int64(v))
	default:
		return formatValue(v)
	}
}

// FormatHex renders a raw packet as space separated hex bytes
func FormatHex(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}
