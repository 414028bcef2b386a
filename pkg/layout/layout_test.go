// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package layout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Thermoquad/telemgen/pkg/schema"
)

func field(row int, variable, typ string) schema.Field {
	return schema.Field{Row: row, Name: variable, Variable: variable, Type: typ, Scale: 1, Generate: true}
}

type slotView struct {
	Ident  string
	Type   string
	Offset int
	Width  int
}

func view(l *PacketLayout) []slotView {
	out := make([]slotView, len(l.Slots))
	for i, s := range l.Slots {
		out[i] = slotView{s.Ident(), s.Type.Name, s.Offset, s.Width}
	}
	return out
}

// ============================================================
// Offset Assignment Tests
// ============================================================

func TestAssign_Offsets(t *testing.T) {
	fields := []schema.Field{
		field(2, "valve_states", "uint32_t"),
		field(3, "e_batt", "int16_t"),
		field(4, "flag", "char"),
		field(5, "micros", "uint64_t"),
		field(6, "temp", "float"),
	}

	l, err := Assign(fields, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	want := []slotView{
		{"valve_states", "uint32_t", 0, 4},
		{"e_batt", "int16_t", 4, 2},
		{"flag", "char", 6, 1},
		{"micros", "uint64_t", 7, 8},
		{"temp", "float", 15, 4},
	}
	if diff := cmp.Diff(want, view(l)); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
	if l.Size != 19 {
		t.Errorf("Expected 19 bytes, got %d", l.Size)
	}
}

func TestAssign_SizeIsSumOfWidths(t *testing.T) {
	types := schema.TypeNames()
	var fields []schema.Field
	sum := 0
	for i, typ := range types {
		fields = append(fields, field(i+2, fmt.Sprintf("v%d", i), typ))
		ct, _ := schema.LookupType(typ)
		sum += ct.Width
	}

	l, err := Assign(fields, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if l.Size != sum {
		t.Errorf("Expected size %d, got %d", sum, l.Size)
	}
	for i := 1; i < len(l.Slots); i++ {
		if l.Slots[i].Offset != l.Slots[i-1].End() {
			t.Errorf("Slot %d not contiguous: offset %d after end %d", i, l.Slots[i].Offset, l.Slots[i-1].End())
		}
	}
}

func TestAssign_Deterministic(t *testing.T) {
	fields := []schema.Field{
		field(2, "a", "uint8_t"),
		field(3, "ivlv[1]", "uint16_t"),
		field(4, "b", "int32_t"),
		field(5, "ivlv[0]", "uint16_t"),
	}

	l1, err := Assign(fields, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	l2, err := Assign(fields, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if diff := cmp.Diff(view(l1), view(l2)); diff != "" {
		t.Errorf("layouts differ between runs:\n%s", diff)
	}
	if diff := cmp.Diff(l1.Decls, l2.Decls); diff != "" {
		t.Errorf("declarations differ between runs:\n%s", diff)
	}
}

func TestAssign_OffsetStability(t *testing.T) {
	base := []schema.Field{
		field(2, "e_batt", "int16_t"),
		field(3, "ivlv[0]", "uint8_t"),
		field(4, "ivlv[1]", "uint8_t"),
		field(5, "micros", "uint32_t"),
	}
	before, err := Assign(base, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	// Appending a scalar and growing an existing array must not move anything.
	grown := append(append([]schema.Field{}, base...),
		field(6, "e3v", "uint16_t"),
		field(7, "ivlv[7]", "uint8_t"),
	)
	after, err := Assign(grown, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	for _, s := range before.Slots {
		got, ok := after.Lookup(s.Ident())
		if !ok {
			t.Fatalf("%s disappeared", s.Ident())
		}
		if got.Offset != s.Offset || got.Width != s.Width {
			t.Errorf("%s moved from %d/%d to %d/%d", s.Ident(), s.Offset, s.Width, got.Offset, got.Width)
		}
	}
	if after.Size != before.Size+3 {
		t.Errorf("Expected size to grow by 3, got %d -> %d", before.Size, after.Size)
	}
}

// ============================================================
// Array Grouping Tests
// ============================================================

func TestAssign_ArrayGrouping(t *testing.T) {
	var fields []schema.Field
	for i := range 8 {
		fields = append(fields, field(i+2, fmt.Sprintf("ivlv[%d]", i), "uint8_t"))
	}

	l, err := Assign(fields, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	if len(l.Decls) != 1 {
		t.Fatalf("Expected one declaration, got %d: %+v", len(l.Decls), l.Decls)
	}
	d := l.Decls[0]
	if d.Name != "ivlv" || d.Len != 8 || d.Type.Name != "uint8_t" {
		t.Errorf("Unexpected declaration: %+v", d)
	}

	g, ok := l.Array("ivlv")
	if !ok {
		t.Fatal("Array group ivlv missing")
	}
	if g.Width() != 8 {
		t.Errorf("Expected group width 8, got %d", g.Width())
	}
	if len(g.Slots) != 8 {
		t.Errorf("Expected 8 member slots, got %d", len(g.Slots))
	}
}

func TestAssign_SparseArray(t *testing.T) {
	fields := []schema.Field{
		field(2, "pressure[4]", "uint16_t"),
		field(3, "e_batt", "int16_t"),
		field(4, "pressure[0]", "uint16_t"),
	}

	l, err := Assign(fields, "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	want := []Decl{
		{Name: "pressure", Len: 5},
		{Name: "e_batt"},
	}
	got := make([]Decl, len(l.Decls))
	for i, d := range l.Decls {
		got[i] = Decl{Name: d.Name, Len: d.Len}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	g, _ := l.Array("pressure")
	if g.Width() != 10 {
		t.Errorf("Expected declared width 10, got %d", g.Width())
	}
	if l.Size != 6 {
		t.Errorf("Expected 6 packet bytes, got %d", l.Size)
	}
}

func TestAssign_TypeConflict(t *testing.T) {
	fields := []schema.Field{
		field(2, "ivlv[0]", "uint8_t"),
		field(3, "ivlv[1]", "uint16_t"),
	}

	_, err := Assign(fields, "telem.csv")
	if !errors.Is(err, schema.ErrTypeConflict) {
		t.Fatalf("Expected ErrTypeConflict, got %v", err)
	}
	var tc *schema.TypeConflictError
	if errors.As(err, &tc) && tc.Row != 3 {
		t.Errorf("Expected conflict on row 3, got %d", tc.Row)
	}
}

func TestAssign_ScalarArrayClash(t *testing.T) {
	tests := [][]schema.Field{
		{field(2, "ivlv", "uint8_t"), field(3, "ivlv[0]", "uint8_t")},
		{field(2, "ivlv[0]", "uint8_t"), field(3, "ivlv", "uint8_t")},
		{field(2, "ivlv[0]", "uint8_t"), field(3, "ivlv[0]", "uint8_t")},
	}

	for i, fields := range tests {
		if _, err := Assign(fields, ""); !errors.Is(err, schema.ErrSchemaFormat) {
			t.Errorf("case %d: expected ErrSchemaFormat, got %v", i, err)
		}
	}
}

// ============================================================
// Command Layout Tests
// ============================================================

func TestAssign_ArraySlotSpelledTwice(t *testing.T) {
	_, err := Assign([]schema.Field{
		field(2, "ivlv[0]", "uint8_t"),
		field(3, "ivlv[00]", "uint8_t"),
	}, "data.csv")
	if !errors.Is(err, schema.ErrSchemaFormat) {
		t.Errorf("Expected ErrSchemaFormat, got %v", err)
	}
}

func TestArgLayout(t *testing.T) {
	cmd := schema.Command{Name: "move_stepper_degrees", Args: []schema.Arg{
		{Name: "motor_num", Type: "uint8_t", Scale: 1},
		{Name: "deg", Type: "uint16_t", Scale: 1},
		{Name: "speed", Type: "float", Scale: 10},
	}}

	slots := ArgLayout(cmd)
	offsets := []int{slots[0].Offset, slots[1].Offset, slots[2].Offset}
	if diff := cmp.Diff([]int{0, 1, 3}, offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	if ArgBytes(cmd) != 7 {
		t.Errorf("Expected 7 argument bytes, got %d", ArgBytes(cmd))
	}
}

func TestBuildDispatchTable_FiltersByTarget(t *testing.T) {
	cmds := []schema.Command{
		{Name: "set_vlv", Targets: []int{1, 2, 3}},
		{Name: "set_kp", Targets: []int{3}},
		{Name: "send_telem_all", Targets: []int{12}},
		{Name: "set_state", Targets: []int{2}},
	}

	table := BuildDispatchTable(cmds, 2)
	var names []string
	for _, c := range table.Commands {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"set_vlv", "set_state"}, names); diff != "" {
		t.Errorf("dispatch table mismatch (-want +got):\n%s", diff)
	}

	if _, id, ok := table.Lookup("set_state"); !ok || id != 1 {
		t.Errorf("Expected set_state at id 1, got %d (found=%v)", id, ok)
	}
	if _, _, ok := table.Lookup("set_kp"); ok {
		t.Error("set_kp should not be in the table for target 2")
	}
}
