// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telem

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

func moveStepper() schema.Command {
	return schema.Command{
		Row: 4, Name: "move_stepper_degrees", Targets: []int{2, 3},
		Args: []schema.Arg{
			{Name: "motor_num", Type: "uint8_t", Scale: 1},
			{Name: "deg", Type: "int16_t", Scale: 10},
			{Name: "speed", Type: "uint32_t", Scale: 1},
		},
	}
}

// ============================================================
// Command Argument Tests
// ============================================================

func TestEncodeCommandArgs(t *testing.T) {
	data, err := EncodeCommandArgs(moveStepper(), []float64{2, -90.5, 70000})
	if err != nil {
		t.Fatalf("EncodeCommandArgs failed: %v", err)
	}

	want := []byte{
		0x02,       // motor_num
		0x77, 0xFC, // deg: -905
		0x70, 0x11, 0x01, 0x00, // speed: 70000
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("argument bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCommandArgs_MultiByte(t *testing.T) {
	// Every byte of a multi-byte argument must contribute. 0x0102 would
	// decode as 0x01 << 0x02 = 4 with a shift-chain reconstruction.
	cmd := schema.Command{Name: "set_kp", Args: []schema.Arg{{Name: "kp", Type: "uint16_t", Scale: 1}}}

	args, err := DecodeCommandArgs(cmd, []byte{0x02, 0x01})
	if err != nil {
		t.Fatalf("DecodeCommandArgs failed: %v", err)
	}
	if args[0] != 0x0102 {
		t.Errorf("Expected 258, got %v", args[0])
	}
}

func TestCommandArgs_RoundTrip(t *testing.T) {
	cmd := moveStepper()
	cmd.Args = append(cmd.Args, schema.Arg{Name: "gain", Type: "float", Scale: 100})
	in := []float64{7, 12.3, 123456, 0.25}

	data, err := EncodeCommandArgs(cmd, in)
	if err != nil {
		t.Fatalf("EncodeCommandArgs failed: %v", err)
	}
	if len(data) != layout.ArgBytes(cmd) {
		t.Errorf("Expected %d bytes, got %d", layout.ArgBytes(cmd), len(data))
	}
	out, err := DecodeCommandArgs(cmd, data)
	if err != nil {
		t.Fatalf("DecodeCommandArgs failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeCommandArgs_Arity(t *testing.T) {
	_, err := EncodeCommandArgs(moveStepper(), []float64{1, 2})
	if !errors.Is(err, schema.ErrArgumentCount) {
		t.Fatalf("Expected ErrArgumentCount, got %v", err)
	}
	var ae *schema.ArgumentCountError
	if errors.As(err, &ae) && (ae.Want != 3 || ae.Got != 2) {
		t.Errorf("Unexpected arity error: %+v", ae)
	}
}

func TestEncodeCommandArgs_Range(t *testing.T) {
	_, err := EncodeCommandArgs(moveStepper(), []float64{300, 0, 0})
	if !errors.Is(err, schema.ErrRange) {
		t.Errorf("Expected ErrRange, got %v", err)
	}
}

func TestDecodeCommandArgs_Short(t *testing.T) {
	if _, err := DecodeCommandArgs(moveStepper(), []byte{0x01, 0x02}); err == nil {
		t.Error("Expected error for a short argument buffer")
	}
}

func TestParseCommandArgs(t *testing.T) {
	args, err := ParseCommandArgs(moveStepper(), []string{"1", " -4.5", "1e3"})
	if err != nil {
		t.Fatalf("ParseCommandArgs failed: %v", err)
	}
	if diff := cmp.Diff([]float64{1, -4.5, 1000}, args); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseCommandArgs(moveStepper(), []string{"1"}); !errors.Is(err, schema.ErrArgumentCount) {
		t.Errorf("Expected ErrArgumentCount, got %v", err)
	}
	if _, err := ParseCommandArgs(moveStepper(), []string{"1", "x", "2"}); err == nil {
		t.Error("Expected error for a non-numeric argument")
	}
}

func TestEncodeCommand(t *testing.T) {
	cmds := []schema.Command{
		{Name: "set_kp", Targets: []int{3}, Args: []schema.Arg{{Name: "kp", Type: "uint8_t", Scale: 1}}},
		{Name: "arm", Targets: []int{2}},
		moveStepper(),
	}
	table := layout.BuildDispatchTable(cmds, 2)

	frame, err := EncodeCommand(table, "move_stepper_degrees", []float64{1, 0, 0})
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}
	if frame[0] != 1 {
		t.Errorf("Expected command id 1, got %d", frame[0])
	}
	if len(frame) != 1+7 {
		t.Errorf("Expected 8 bytes, got %d", len(frame))
	}

	if _, err := EncodeCommand(table, "set_kp", []float64{1}); err == nil {
		t.Error("Expected error for a command outside the target's table")
	}
}
