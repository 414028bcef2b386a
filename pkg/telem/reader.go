// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"errors"
	"fmt"
	"io"
)

// ErrShortFrame is returned when a capture ends in the middle of a packet.
var ErrShortFrame = errors.New("telem: short frame")

// FrameReader reads back-to-back fixed-size packets from a capture stream
type FrameReader struct {
	r      io.Reader
	codec  *Codec
	buf    []byte
	frames uint64
}

// NewFrameReader creates a reader for packets laid out by codec
func NewFrameReader(r io.Reader, codec *Codec) *FrameReader {
	return &FrameReader{
		r:     r,
		codec: codec,
		buf:   make([]byte, codec.Size()),
	}
}

// ReadPacket returns the next raw packet. The returned slice is reused by
// the next call. io.EOF is returned at a clean packet boundary.
func (fr *FrameReader) ReadPacket() ([]byte, error) {
	n, err := io.ReadFull(fr.r, fr.buf)
	switch {
	case err == nil:
		fr.frames++
		return fr.buf, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: frame %d has %d of %d bytes", ErrShortFrame, fr.frames, n, len(fr.buf))
	default:
		return nil, err
	}
}

// Next reads and decodes the next packet
func (fr *FrameReader) Next() (*Frame, error) {
	packet, err := fr.ReadPacket()
	if err != nil {
		return nil, err
	}
	return fr.codec.Decode(packet)
}

// Frames returns the number of complete packets read so far
func (fr *FrameReader) Frames() uint64 {
	return fr.frames
}
