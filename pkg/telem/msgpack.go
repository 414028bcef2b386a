// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MarshalRecordMsgpack encodes a record as a MessagePack map. Value keys are
// sorted so equal frames encode to equal bytes.
func MarshalRecordMsgpack(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack record: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalRecordMsgpack decodes a record written by MarshalRecordMsgpack
func UnmarshalRecordMsgpack(data []byte) (Record, error) {
	var r Record
	if len(data) == 0 {
		return r, fmt.Errorf("empty MessagePack record")
	}
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode MessagePack record: %w", err)
	}
	return r, nil
}
