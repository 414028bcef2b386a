// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telem is the ground-station side of the generated wire contract.
// It packs and decodes telemetry packets exactly like the generated C packer
// and Go decoder, encodes command arguments for the generated dispatch stubs,
// and validates, formats and records decoded frames.
package telem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

// ErrFrameLength is returned when a packet does not match the layout size.
var ErrFrameLength = errors.New("telem: packet length does not match layout")

// Codec packs and decodes packets for one PacketLayout
type Codec struct {
	layout *layout.PacketLayout
	names  []string
	index  map[string]int
}

// NewCodec creates a codec for the given layout
func NewCodec(l *layout.PacketLayout) *Codec {
	c := &Codec{
		layout: l,
		names:  make([]string, len(l.Slots)),
		index:  make(map[string]int, len(l.Slots)),
	}
	for i, s := range l.Slots {
		c.names[i] = s.Field.DisplayName()
		c.index[c.names[i]] = i
	}
	return c
}

// Layout returns the layout the codec was built from
func (c *Codec) Layout() *layout.PacketLayout {
	return c.layout
}

// Size returns the packet size in bytes
func (c *Codec) Size() int {
	return c.layout.Size
}

// Names returns the display names of every item, in packet order
func (c *Codec) Names() []string {
	return c.names
}

// Pack builds a packet from firmware variable values, the way the generated
// pack_telem_data does: each value is multiplied by its transmit scale,
// truncated toward zero for integer types and written little-endian.
// Missing variables pack as zero.
func (c *Codec) Pack(values map[string]float64) ([]byte, error) {
	for name := range values {
		if _, ok := c.layout.Lookup(name); !ok {
			return nil, fmt.Errorf("telem: %s is not in the packet", name)
		}
	}

	packet := make([]byte, c.layout.Size)
	var errs []error
	for _, s := range c.layout.Slots {
		scaled := values[s.Ident()] * s.Field.Scale
		if err := putValue(packet[s.Offset:s.End()], s.Type, scaled); err != nil {
			errs = append(errs, &schema.RangeError{
				Source: c.layout.Source(), Row: s.Field.Row, Item: s.Ident(),
				Bound: "value", Scaled: scaled, Type: s.Type.Name, Limit: limitFor(s.Type, scaled),
			})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return packet, nil
}

// Decode unpacks a packet into a Frame
func (c *Codec) Decode(packet []byte) (*Frame, error) {
	if len(packet) != c.layout.Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(packet), c.layout.Size)
	}

	f := &Frame{
		codec:  c,
		Values: make([]float64, len(c.layout.Slots)),
		Raw:    append([]byte(nil), packet...),
	}
	for i, s := range c.layout.Slots {
		v := readValue(packet[s.Offset:s.End()], s.Type) / s.Field.Scale
		switch s.Field.DisplayType {
		case schema.DisplayInt:
			v = math.Trunc(v)
		case schema.DisplayBool:
			if v != 0 {
				v = 1
			}
		}
		f.Values[i] = v
	}
	return f, nil
}

// CSVHeader returns the decoder's CSV header line, without a newline
func (c *Codec) CSVHeader() string {
	var b strings.Builder
	b.WriteString("Time (s)")
	for i, s := range c.layout.Slots {
		b.WriteString(",")
		b.WriteString(c.names[i])
		b.WriteString(" (")
		b.WriteString(s.Field.Unit)
		b.WriteString(")")
	}
	return b.String()
}

// LogLine renders one CSV row for a decoded frame at time t (seconds)
func (c *Codec) LogLine(t float64, f *Frame) string {
	var b strings.Builder
	b.WriteString(formatValue(t))
	for _, v := range f.Values {
		b.WriteString(",")
		b.WriteString(formatValue(v))
	}
	return b.String()
}

// Frame is one decoded telemetry packet
type Frame struct {
	codec *Codec

	// Values holds every item's decoded value, in packet order.
	Values []float64
	Raw    []byte
}

// Get returns an item's value by display name
func (f *Frame) Get(name string) (float64, bool) {
	i, ok := f.codec.index[name]
	if !ok {
		return 0, false
	}
	return f.Values[i], true
}

// Map returns the frame keyed by display name, like the generated
// ParsePacket.
func (f *Frame) Map() map[string]float64 {
	m := make(map[string]float64, len(f.Values))
	for i, v := range f.Values {
		m[f.codec.names[i]] = v
	}
	return m
}

// putValue writes a scaled value into dst as t. It fails when the value
// cannot be represented.
func putValue(dst []byte, t schema.CType, v float64) error {
	if t.Float {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errOutOfRange
		}
		if t.Width == 4 {
			if !t.Contains(v) {
				return errOutOfRange
			}
			binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
		} else {
			binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
		}
		return nil
	}

	v = math.Trunc(v)
	if !fits(t, v) {
		return errOutOfRange
	}
	var u uint64
	if t.Signed {
		u = uint64(int64(v))
	} else {
		u = uint64(v)
	}
	for i := range t.Width {
		dst[i] = byte(u >> (8 * i))
	}
	return nil
}

var errOutOfRange = errors.New("value out of range")

// fits reports whether a truncated integer value converts to t without
// overflow. 64-bit limits are not exact in float64, so they are compared
// against the next power of two.
func fits(t schema.CType, v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if t.Width == 8 {
		if t.Signed {
			return v >= -(1<<63) && v < 1<<63
		}
		return v >= 0 && v < 1<<64
	}
	return t.Contains(v)
}

func limitFor(t schema.CType, v float64) float64 {
	if v < 0 {
		return t.Min
	}
	return t.Max
}

// readValue reconstructs a little-endian value of type t by OR-ing its bytes
func readValue(src []byte, t schema.CType) float64 {
	var u uint64
	for i := range t.Width {
		u |= uint64(src[i]) << (8 * i)
	}
	switch {
	case t.Float && t.Width == 4:
		return float64(math.Float32frombits(uint32(u)))
	case t.Float:
		return math.Float64frombits(u)
	case t.Signed:
		shift := 64 - 8*t.Width
		return float64(int64(u<<shift) >> shift)
	default:
		return float64(u)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
