// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

func fixture(t *testing.T) (*layout.PacketLayout, *layout.DispatchTable) {
	t.Helper()
	fields := []schema.Field{
		{Row: 2, Name: "e_batt", Variable: "e_batt", Type: "int16_t", Scale: 1000, Generate: true},
		{Row: 3, Name: "ivlv0", Variable: "ivlv[0]", Type: "uint8_t", Scale: 1, Generate: true},
		{Row: 4, Name: "ivlv3", Variable: "ivlv[3]", Type: "uint8_t", Scale: 1, Generate: true},
		{Row: 5, Name: "tc", Variable: "tc", Type: "float", Scale: 1, Generate: true},
	}
	l, err := layout.Assign(fields, "data.csv")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	cmds := []schema.Command{
		{Row: 2, Name: "set_kp", Targets: []int{1}, Args: []schema.Arg{{Name: "kp", Type: "uint8_t", Scale: 1}}},
		{Row: 3, Name: "set_vlv", Targets: []int{1, 3}, Args: []schema.Arg{
			{Name: "vlv_num", Type: "uint8_t", Scale: 1},
			{Name: "state", Type: "uint16_t", Scale: 1},
		}},
		{Row: 4, Name: "arm", Targets: []int{3}},
	}
	return l, layout.BuildDispatchTable(cmds, 3)
}

func readCase(t *testing.T, csv string) *schema.TestCase {
	t.Helper()
	tc, err := schema.ReadTestCase(strings.NewReader(csv), "test1.csv")
	if err != nil {
		t.Fatalf("ReadTestCase failed: %v", err)
	}
	return tc
}

// ============================================================
// Build Tests
// ============================================================

func TestBuild_ForwardFill(t *testing.T) {
	l, cmds := fixture(t)
	tc := readCase(t, `type,duration,function_name,arg0,arg1,description,e_batt,ivlv[3],tc
d,100,,,,init,12000,1,20.5
d,50,,,,,,0,
c,10,set_vlv,3,1,open,,,
s,10,,,,skipped,,,
c,10,arm,,,,,,
d,200,,,,,11000,,-3.25
`)

	table, err := Build(tc, l, cmds)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if diff := cmp.Diff([]uint32{100, 50, 10, 10, 200}, table.Durations); diff != "" {
		t.Errorf("durations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false, false, true, true, false}, table.IsCmd); diff != "" {
		t.Errorf("entry kinds mismatch (-want +got):\n%s", diff)
	}
	if table.Len() != 5 || table.NumData() != 3 || table.NumCmds() != 2 {
		t.Errorf("Unexpected counts: len=%d data=%d cmds=%d", table.Len(), table.NumData(), table.NumCmds())
	}

	got := map[string][]float64{}
	for _, c := range table.Columns {
		got[c.Slot.Ident()] = c.Values
	}
	want := map[string][]float64{
		"e_batt":  {12000, 12000, 11000},
		"ivlv[3]": {1, 0, 0},
		"tc":      {20.5, 20.5, -3.25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_CommandArgs(t *testing.T) {
	l, cmds := fixture(t)
	tc := readCase(t, `type,duration,function_name,arg0,arg1
c,10,arm,,
c,10,set_vlv,2,258
`)

	table, err := Build(tc, l, cmds)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if table.ArgStride != 3 {
		t.Errorf("Expected argument stride 3, got %d", table.ArgStride)
	}

	if len(table.Commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(table.Commands))
	}
	// ids follow the target's dispatch table: set_vlv=0, arm=1
	if table.Commands[0].ID != 1 || table.Commands[1].ID != 0 {
		t.Errorf("Unexpected ids: %d, %d", table.Commands[0].ID, table.Commands[1].ID)
	}
	if diff := cmp.Diff([]byte{0x02, 0x02, 0x01}, table.Commands[1].Data); diff != "" {
		t.Errorf("argument bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Names(t *testing.T) {
	c := Column{Slot: layout.Slot{Field: schema.Field{Variable: "ivlv[3]"}}}
	if c.Define() != "FW_SIM_IVLV_3" {
		t.Errorf("Unexpected define %q", c.Define())
	}
	if c.ArrayName() != "FW_SIM_ivlv_3" {
		t.Errorf("Unexpected array name %q", c.ArrayName())
	}
}

// ============================================================
// Error Tests
// ============================================================

func TestBuild_IncompleteInit(t *testing.T) {
	l, cmds := fixture(t)
	tc := readCase(t, `type,duration,e_batt,tc
d,100,12000,
d,100,11000,3
`)

	_, err := Build(tc, l, cmds)
	if !errors.Is(err, schema.ErrIncompleteInit) {
		t.Fatalf("Expected ErrIncompleteInit, got %v", err)
	}
	var ie *schema.IncompleteInitError
	if errors.As(err, &ie) && (ie.Row != 2 || ie.Field != "tc") {
		t.Errorf("Unexpected error: %+v", ie)
	}
}

func TestBuild_ArgumentCount(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"too few", "type,duration,function_name,arg0,arg1\nc,10,set_vlv,1,\n"},
		{"too many", "type,duration,function_name,arg0,arg1\nc,10,arm,1,\n"},
		{"gap", "type,duration,function_name,arg0,arg1,arg2\nc,10,set_vlv,,1,2\n"},
		{"missing column", "type,duration,function_name,arg0\nc,10,set_vlv,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, cmds := fixture(t)
			_, err := Build(readCase(t, tt.csv), l, cmds)
			if !errors.Is(err, schema.ErrArgumentCount) {
				t.Errorf("Expected ErrArgumentCount, got %v", err)
			}
		})
	}
}

func TestBuild_UnsupportedCommand(t *testing.T) {
	l, cmds := fixture(t)
	// set_kp only exists on target 1
	tc := readCase(t, "type,duration,function_name,arg0\nc,10,set_kp,1\n")

	_, err := Build(tc, l, cmds)
	if !errors.Is(err, schema.ErrSchemaFormat) {
		t.Fatalf("Expected ErrSchemaFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), "[row 2]") {
		t.Errorf("Expected row number in %q", err)
	}
}

func TestBuild_UnknownVariable(t *testing.T) {
	l, cmds := fixture(t)
	tc := readCase(t, "type,duration,pressure\nd,10,1\n")

	if _, err := Build(tc, l, cmds); !errors.Is(err, schema.ErrSchemaFormat) {
		t.Errorf("Expected ErrSchemaFormat, got %v", err)
	}
}

func TestBuild_ValueChecks(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want error
	}{
		{"out of range", "type,duration,ivlv[0]\nd,10,256\n", schema.ErrRange},
		{"negative unsigned", "type,duration,ivlv[0]\nd,10,-1\n", schema.ErrRange},
		{"fraction for integer", "type,duration,ivlv[0]\nd,10,1.5\n", schema.ErrSchemaFormat},
		{"not a number", "type,duration,tc\nd,10,warm\n", schema.ErrSchemaFormat},
		{"argument range", "type,duration,function_name,arg0,arg1\nc,10,set_vlv,256,0\n", schema.ErrRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, cmds := fixture(t)
			if _, err := Build(readCase(t, tt.csv), l, cmds); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	l, cmds := fixture(t)
	if _, err := Build(readCase(t, "type,duration\ns,10\n"), l, cmds); err == nil {
		t.Error("Expected error for an empty test case")
	}
	if _, err := Build(readCase(t, "type,duration,function_name,tc\nc,10,arm,\n"), l, cmds); err == nil {
		t.Error("Expected error for overridden variables without data entries")
	}
}

func TestBuild_NameCollisions(t *testing.T) {
	tests := []struct {
		name   string
		fields []schema.Field
		csv    string
	}{
		{
			name: "scalar and array element",
			fields: []schema.Field{
				{Row: 2, Name: "a1", Variable: "a_1", Type: "uint8_t", Scale: 1, Generate: true},
				{Row: 3, Name: "a[1]", Variable: "a[1]", Type: "uint8_t", Scale: 1, Generate: true},
			},
			csv: "type,duration,a_1,a[1]\nd,10,1,2\n",
		},
		{
			name: "define case fold",
			fields: []schema.Field{
				{Row: 2, Name: "lo", Variable: "ivlv", Type: "uint8_t", Scale: 1, Generate: true},
				{Row: 3, Name: "hi", Variable: "IVLV", Type: "uint8_t", Scale: 1, Generate: true},
			},
			csv: "type,duration,ivlv,IVLV\nd,10,1,2\n",
		},
		{
			name: "fixed table name",
			fields: []schema.Field{
				{Row: 2, Name: "cmd_ids", Variable: "cmd_ids", Type: "uint8_t", Scale: 1, Generate: true},
			},
			csv: "type,duration,cmd_ids\nd,10,1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := layout.Assign(tt.fields, "data.csv")
			if err != nil {
				t.Fatalf("Assign failed: %v", err)
			}
			_, err = Build(readCase(t, tt.csv), l, layout.BuildDispatchTable(nil, 1))
			if !errors.Is(err, schema.ErrSchemaFormat) {
				t.Fatalf("Expected ErrSchemaFormat, got %v", err)
			}
			if !strings.Contains(err.Error(), "is already used by") {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
