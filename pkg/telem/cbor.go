// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Record is one decoded frame as stored in a CBOR or MessagePack log
type Record struct {
	Time   float64            `cbor:"1,keyasint" msgpack:"t" json:"time"`
	Values map[string]float64 `cbor:"2,keyasint" msgpack:"v" json:"values"`
	Raw    []byte             `cbor:"3,keyasint,omitempty" msgpack:"raw,omitempty" json:"raw,omitempty"`
}

// NewRecord builds a record for a frame decoded at time t (seconds)
func NewRecord(t float64, f *Frame, withRaw bool) Record {
	r := Record{Time: t, Values: f.Map()}
	if withRaw {
		r.Raw = append([]byte(nil), f.Raw...)
	}
	return r
}

// Core deterministic encoding sorts map keys, so equal frames encode to equal
// bytes.
var recordEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("telem: cbor options: %v", err))
	}
	return em
}()

// MarshalRecord encodes a record as a CBOR map
func MarshalRecord(r Record) ([]byte, error) {
	data, err := recordEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a record written by MarshalRecord
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if len(data) == 0 {
		return r, fmt.Errorf("empty CBOR record")
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode CBOR record: %w", err)
	}
	return r, nil
}
